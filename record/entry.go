// Package record defines the canonical representation of facts extracted
// from clinical summary documents: the Entry (a single coded, time-anchored
// clinical fact) and the Patient record that collects entries by section
// alongside demographics and denormalized measure results.
package record

import (
	"strings"

	"github.com/santemetrics/recordkit/codes"
)

// Entry is one clinical fact: a set of codes, optional temporal bounds, an
// optional scalar value and an optional status. Entries are built up by a
// section extractor through a sequence of mutations and treated as immutable
// once handed downstream.
type Entry struct {
	Description string
	Codes       map[string][]string
	Time        *int64 // point in time, epoch seconds
	StartTime   *int64
	EndTime     *int64
	Value       *string
	Unit        string
	Status      string
}

// NewEntry creates an empty entry.
func NewEntry() *Entry {
	return &Entry{Codes: make(map[string][]string)}
}

// AddCode records a code under the canonical name of its coding system.
// Adding the same value/system pair twice has no additional effect.
func (e *Entry) AddCode(value string, system string) {
	canonical := codes.Normalize(system)
	for _, v := range e.Codes[canonical] {
		if v == value {
			return
		}
	}
	e.Codes[canonical] = append(e.Codes[canonical], value)
}

// SetValue stores a scalar measurement together with its unit. Calling again
// overwrites both.
func (e *Entry) SetValue(value string, unit string) {
	v := value
	e.Value = &v
	e.Unit = unit
}

// SetTime sets the entry's point in time, in epoch seconds.
func (e *Entry) SetTime(t int64) { e.Time = &t }

// SetStartTime sets the start of the entry's time range, in epoch seconds.
func (e *Entry) SetStartTime(t int64) { e.StartTime = &t }

// SetEndTime sets the end of the entry's time range, in epoch seconds.
func (e *Entry) SetEndTime(t int64) { e.EndTime = &t }

// SetStatus stores the lower-cased form of a status string.
func (e *Entry) SetStatus(raw string) { e.Status = strings.ToLower(raw) }

// Usable reports whether this entry carries the minimum information measure
// logic can trust: at least one code and a point in time. A range without a
// point in time is not sufficient.
func (e *Entry) Usable() bool {
	return len(e.Codes) > 0 && e.Time != nil
}

// InCodeSet reports whether any coding system present on both this entry and
// the code set has intersecting values. Both sides are assumed to already use
// canonical system names; comparison is an exact string match.
func (e *Entry) InCodeSet(cs codes.CodeSet) bool {
	for system, values := range e.Codes {
		for _, v := range values {
			if cs.Contains(system, v) {
				return true
			}
		}
	}
	return false
}

// ToHash serializes the entry to its plain record form, omitting any field
// that was never set.
func (e *Entry) ToHash() map[string]any {
	h := make(map[string]any)
	if e.Description != "" {
		h["description"] = e.Description
	}
	if len(e.Codes) > 0 {
		h["codes"] = e.Codes
	}
	if e.Time != nil {
		h["time"] = *e.Time
	}
	if e.StartTime != nil {
		h["start_time"] = *e.StartTime
	}
	if e.EndTime != nil {
		h["end_time"] = *e.EndTime
	}
	if e.Value != nil {
		h["value"] = *e.Value
		if e.Unit != "" {
			h["unit"] = e.Unit
		}
	}
	if e.Status != "" {
		h["status"] = e.Status
	}
	return h
}
