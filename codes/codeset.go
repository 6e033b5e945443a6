package codes

import (
	"encoding/json"
	"fmt"
	"io"
)

// A CodeSet enumerates the codes, per canonical coding system, that define
// membership of a clinical concept (such as "vaccination given"). Code sets
// are supplied externally, usually as part of a measure definition, and are
// assumed to already use canonical system names.
type CodeSet map[string][]string

// Contains reports whether the given system carries the given code value.
func (cs CodeSet) Contains(system string, value string) bool {
	for _, v := range cs[system] {
		if v == value {
			return true
		}
	}
	return false
}

// LoadCodeSet reads a JSON code set of the form
// {"<system>": ["<value>", ...], ...}.
func LoadCodeSet(r io.Reader) (CodeSet, error) {
	var cs CodeSet
	if err := json.NewDecoder(r).Decode(&cs); err != nil {
		return nil, fmt.Errorf("codes: reading code set: %w", err)
	}
	return cs, nil
}
