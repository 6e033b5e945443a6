package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/record"
)

// C32Schema reads the CDA-derived standard: codes and dates are carried as
// attributes (code/@code, effectiveTime/@value) and timestamps use the HL7
// compact form (YYYYMMDDHHMMSS, optionally zoned or truncated).
var C32Schema = &Schema{
	Name:            "c32",
	DescriptionPath: "./text",
	DescriptionAttr: "displayName",
	CodesPath:       "./code | ./code/translation",
	ReadCode: func(n *document.Node) (string, string) {
		return n.Attr("code"), n.Attr("codeSystemName")
	},
	ExactTimePath: "./effectiveTime",
	StartTimePath: "./effectiveTime/low",
	EndTimePath:   "./effectiveTime/high",
	ReadTime:      func(n *document.Node) string { return n.Attr("value") },
	ParseTime:     ParseHL7Time,
	ValuePath:     "./value",
	ReadValue: func(n *document.Node) (string, string) {
		return n.Attr("value"), n.Attr("unit")
	},
	StatusPath:       "./statusCode",
	ReadStatus:       func(n *document.Node) string { return n.Attr("code") },
	ProductCodesPath: "./code",
}

// C32Sections selects each clinical section's statement nodes by the HITSP
// template identifier they declare. Medication, immunization and equipment
// codes live on the nested manufactured product or playing device.
func C32Sections() []SectionConfig {
	return []SectionConfig{
		{Section: "encounters", EntryPath: "//encounter[templateId@root='2.16.840.1.113883.10.20.1.21']"},
		{Section: "procedures", EntryPath: "//procedure[templateId@root='2.16.840.1.113883.10.20.1.29']"},
		{Section: "results", EntryPath: "//observation[templateId@root='2.16.840.1.113883.3.88.11.83.15']"},
		{Section: "vital_signs", EntryPath: "//observation[templateId@root='2.16.840.1.113883.3.88.11.83.14']"},
		{
			Section:     "medications",
			EntryPath:   "//substanceAdministration[templateId@root='2.16.840.1.113883.3.88.11.83.8']",
			ProductPath: "./consumable/manufacturedProduct/manufacturedMaterial",
		},
		{Section: "conditions", EntryPath: "//observation[templateId@root='2.16.840.1.113883.10.20.1.28']"},
		{Section: "social_history", EntryPath: "//observation[templateId@root='2.16.840.1.113883.3.88.11.83.19']"},
		{Section: "care_goals", EntryPath: "//observation[templateId@root='2.16.840.1.113883.10.20.1.25']"},
		{
			Section:     "medical_equipment",
			EntryPath:   "//supply[templateId@root='2.16.840.1.113883.10.20.1.34']",
			ProductPath: "./participant/participantRole/playingDevice",
		},
		{Section: "allergies", EntryPath: "//observation[templateId@root='2.16.840.1.113883.10.20.1.18']"},
		{
			Section:     "immunizations",
			EntryPath:   "//substanceAdministration[templateId@root='2.16.840.1.113883.10.20.1.24']",
			ProductPath: "./consumable/manufacturedProduct/manufacturedMaterial",
		},
	}
}

// C32Demographics extracts the demographic header of a C32 document. The
// name, identifier, birth date and gender live at fixed mandatory paths;
// race, ethnicity and languages are optional.
func C32Demographics(doc *document.Node, pt *record.Patient) error {
	role := doc.First("//recordTarget/patientRole")
	if role == nil {
		return &record.RequiredFieldError{Field: "patientRole"}
	}
	first := role.First("./patient/name/given")
	if first == nil {
		return &record.RequiredFieldError{Field: "first"}
	}
	pt.First = first.Content()
	last := role.First("./patient/name/family")
	if last == nil {
		return &record.RequiredFieldError{Field: "last"}
	}
	pt.Last = last.Content()
	id := role.First("./id")
	if id == nil || id.Attr("extension") == "" {
		return &record.RequiredFieldError{Field: "patient_id"}
	}
	pt.PatientID = id.Attr("extension")
	birth := role.First("./patient/birthTime")
	if birth == nil || birth.Attr("value") == "" {
		return &record.RequiredFieldError{Field: "birthdate"}
	}
	t, err := ParseHL7Time(birth.Attr("value"))
	if err != nil {
		return &record.DateParseError{Value: birth.Attr("value"), Err: err}
	}
	pt.Birthdate = &t
	gender := role.First("./patient/administrativeGenderCode")
	if gender == nil || gender.Attr("code") == "" {
		return &record.RequiredFieldError{Field: "gender"}
	}
	pt.Gender = gender.Attr("code")
	if race := role.First("./patient/raceCode"); race != nil {
		pt.Race = race.Attr("code")
	}
	if eth := role.First("./patient/ethnicGroupCode"); eth != nil {
		pt.Ethnicity = eth.Attr("code")
	}
	for _, lang := range role.Find("./patient/languageCommunication/languageCode") {
		if code := lang.Attr("code"); code != "" {
			pt.Languages = append(pt.Languages, code)
		}
	}
	return nil
}

// ParseHL7Time converts an HL7 compact timestamp to epoch seconds. Zone
// offsets and sub-second precision are truncated; dates are taken as UTC.
func ParseHL7Time(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "+-"); i > 0 {
		s = s[:i]
	}
	if len(s) > 14 {
		s = s[:14]
	}
	var layout string
	switch len(s) {
	case 14:
		layout = "20060102150405"
	case 12:
		layout = "200601021504"
	case 8:
		layout = "20060102"
	default:
		return 0, fmt.Errorf("unrecognized HL7 time %q", raw)
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

// NewC32Builder creates a record builder for the C32 standard.
func NewC32Builder(registry *Registry) *Builder {
	return NewBuilder(C32Schema, C32Demographics, C32Sections(), registry)
}
