// Package measures provides quality-measure denormalization over extracted
// patient entries. Each measure is a pluggable importer registered under its
// measure id; the category importer here covers measures whose calculation
// needs the event times of entries matching per-category code sets, which is
// the shape most simple measures share.
package measures

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/santemetrics/recordkit/codes"
	"github.com/santemetrics/recordkit/record"
)

// Definition describes one quality measure: an identifier and, per category
// of clinical concept (such as "encounter" or "vaccination"), the code set
// that defines membership.
type Definition struct {
	ID         string                   `json:"id"`
	Name       string                   `json:"name,omitempty"`
	Categories map[string]codes.CodeSet `json:"categories"`
}

// LoadDefinition reads a measure definition from JSON.
func LoadDefinition(r io.Reader) (Definition, error) {
	var def Definition
	if err := json.NewDecoder(r).Decode(&def); err != nil {
		return Definition{}, fmt.Errorf("measures: reading definition: %w", err)
	}
	if def.ID == "" {
		return Definition{}, fmt.Errorf("measures: definition has no id")
	}
	return def, nil
}

// CategoryImporter denormalizes entries into per-category event times. It
// reads the entries it is given and never mutates them.
type CategoryImporter struct {
	def Definition
}

// NewCategoryImporter creates an importer for one measure definition.
func NewCategoryImporter(def Definition) *CategoryImporter {
	return &CategoryImporter{def: def}
}

// Parse walks every section's entries and records, for each category, the
// times of usable entries falling within that category's code set. Times are
// sorted; a category with no matching entries is present with an empty list.
func (ci *CategoryImporter) Parse(entriesBySection map[string][]*record.Entry) (any, error) {
	result := make(map[string][]int64, len(ci.def.Categories))
	for category, cs := range ci.def.Categories {
		times := []int64{}
		for _, entries := range entriesBySection {
			for _, e := range entries {
				if !e.Usable() || !e.InCodeSet(cs) {
					continue
				}
				times = append(times, *e.Time)
			}
		}
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		result[category] = times
	}
	return result, nil
}
