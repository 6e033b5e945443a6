package record

import "encoding/json"

// Address is a patient address as carried in the demographic portion of the
// output record.
type Address struct {
	Street   string `json:"street,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
}

// Patient is the assembled output record for one document: demographics,
// denormalized measure results keyed by measure id, and the usable entries
// of each clinical section serialized to plain records. A Patient is built
// once per import and not mutated afterwards.
type Patient struct {
	First     string
	Last      string
	PatientID string
	Birthdate *int64 // epoch seconds
	Gender    string
	Race      string
	Ethnicity string
	Languages []string
	Addresses []Address

	// Measures maps measure id to the opaque result of that measure's
	// importer, or to an error marker when the importer failed.
	Measures map[string]any

	// Sections maps section key to the ordered, serialized usable entries of
	// that section.
	Sections map[string][]map[string]any
}

// MarshalJSON emits the flat record format: demographic fields, a "measures"
// object, and one top-level key per clinical section.
func (pt *Patient) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"first":      pt.First,
		"last":       pt.Last,
		"patient_id": pt.PatientID,
		"gender":     pt.Gender,
	}
	if pt.Birthdate != nil {
		out["birthdate"] = *pt.Birthdate
	}
	if pt.Race != "" {
		out["race"] = pt.Race
	}
	if pt.Ethnicity != "" {
		out["ethnicity"] = pt.Ethnicity
	}
	if len(pt.Languages) > 0 {
		out["languages"] = pt.Languages
	}
	if len(pt.Addresses) > 0 {
		out["addresses"] = pt.Addresses
	}
	measures := pt.Measures
	if measures == nil {
		measures = map[string]any{}
	}
	out["measures"] = measures
	for section, entries := range pt.Sections {
		out[section] = entries
	}
	return json.Marshal(out)
}
