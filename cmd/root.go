// Package cmd supports the command-line interface for the recordkit utility.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/santemetrics/recordkit/importer"
	"github.com/santemetrics/recordkit/measures"
)

var cfgFile string
var Version string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recordkit",
	Short: "Recordkit extracts patient records from clinical summary documents",
	Long: `
Recordkit converts clinical summary documents (HITSP C32 and ASTM CCR) into
canonical patient records: demographics plus coded, time-anchored clinical
entries grouped by section, with optional denormalization for quality
measure calculation.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recordkit.yaml)")

	rootCmd.PersistentFlags().String("log", "", "Log file to use (default is human-readable logging to stderr)")
	viper.BindPFlag("log", rootCmd.PersistentFlags().Lookup("log"))

	rootCmd.PersistentFlags().Bool("verbose", false, "Log at debug level")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().String("measures", "", "Directory of measure definition files (*.json)")
	viper.BindPFlag("measures", rootCmd.PersistentFlags().Lookup("measures"))

	rootCmd.PersistentFlags().String("auth-secret", "", "Shared secret for bearer tokens, empty disables authentication")
	viper.BindPFlag("auth-secret", rootCmd.PersistentFlags().Lookup("auth-secret"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		// Search config in home directory with name ".recordkit" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".recordkit")
	}

	viper.SetEnvPrefix("RECORDKIT")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func setupLogging() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if viper.GetBool("verbose") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if logfile := viper.GetString("log"); logfile != "" {
		f, err := os.OpenFile(logfile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fatal error: couldn't open log file ('%s'): %s\n", logfile, err)
			os.Exit(1)
		}
		log.Logger = log.Output(f)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// loadRegistry builds a measure registry from the configured definitions
// directory. An empty directory path yields an empty registry: records are
// still imported, just without measure denormalization.
func loadRegistry() (*importer.Registry, error) {
	registry := importer.NewRegistry()
	dir := viper.GetString("measures")
	if dir == "" {
		return registry, nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		def, err := measures.LoadDefinition(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("measure definition %s: %w", path, err)
		}
		registry.Register(def.ID, measures.NewCategoryImporter(def))
		log.Debug().Str("measure", def.ID).Str("path", path).Msg("registered measure")
	}
	return registry, nil
}
