package main

import (
	"github.com/santemetrics/recordkit/cmd"
)

// Version is set at build time using ldflags.
var Version = "dev"

func main() {
	cmd.Version = Version
	cmd.Execute()
}
