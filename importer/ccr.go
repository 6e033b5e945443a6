package importer

import (
	"strings"
	"time"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/record"
)

// CCRSchema reads the ASTM continuity-of-care standard: codes and dates are
// carried as child element text (Code/Value, ExactDateTime) and timestamps
// use ISO 8601.
var CCRSchema = &Schema{
	Name:            "ccr",
	DescriptionPath: "./Description/Text",
	CodesPath:       "./Description/Code",
	ReadCode: func(n *document.Node) (string, string) {
		var value, system string
		if v := n.First("./Value"); v != nil {
			value = v.Content()
		}
		if s := n.First("./CodingSystem"); s != nil {
			system = s.Content()
		}
		return value, system
	},
	ExactTimePath:  "./ExactDateTime | ./DateTime/ExactDateTime",
	ApproxTimePath: "./ApproximateDateTime | ./DateTime/ApproximateDateTime",
	StartTimePath:  "./DateTimeRange/BeginRange",
	EndTimePath:    "./DateTimeRange/EndRange",
	ReadTime:       func(n *document.Node) string { return n.Content() },
	ParseTime:      ParseISOTime,
	ValuePath:      "./TestResult",
	ReadValue: func(n *document.Node) (string, string) {
		var value, unit string
		if v := n.First("./Value"); v != nil {
			value = v.Content()
		}
		if u := n.First("./Units"); u != nil {
			unit = u.Content()
		}
		return value, unit
	},
	StatusPath:             "./Status",
	ReadStatus:             func(n *document.Node) string { return n.Content() },
	ProductNamePaths:       []string{"./ProductName", "./BrandName"},
	ProductCodesPath:       "./Code",
	ProductDescriptionPath: "./ProductName/Text",
}

// CCRSections selects each clinical section's repeating statement nodes.
// Medication, immunization and equipment codes live in the nested Product
// element, where both the product name and the brand name contribute codes.
func CCRSections() []SectionConfig {
	return []SectionConfig{
		{Section: "encounters", EntryPath: "//Encounters/Encounter"},
		{Section: "procedures", EntryPath: "//Procedures/Procedure"},
		{Section: "results", EntryPath: "//Results/Result"},
		{Section: "vital_signs", EntryPath: "//VitalSigns/Result"},
		{Section: "medications", EntryPath: "//Medications/Medication", ProductPath: "./Product"},
		{Section: "conditions", EntryPath: "//Problems/Problem"},
		{Section: "social_history", EntryPath: "//SocialHistory/SocialHistoryElement"},
		{Section: "care_goals", EntryPath: "//Goals/Goal"},
		{Section: "medical_equipment", EntryPath: "//Equipment/EquipmentElement", ProductPath: "./Product"},
		{Section: "allergies", EntryPath: "//Alerts/Alert"},
		{Section: "immunizations", EntryPath: "//Immunizations/Immunization", ProductPath: "./Product"},
	}
}

// CCRDemographics extracts the demographic header of a CCR document. The
// patient is an actor referenced by id from the Patient element; name, birth
// date and gender live on that actor. The standard has no agreed location
// for race or ethnicity, so both are left empty.
func CCRDemographics(doc *document.Node, pt *record.Patient) error {
	idNode := doc.First("//Patient/ActorID")
	if idNode == nil || idNode.Content() == "" {
		return &record.RequiredFieldError{Field: "patient_id"}
	}
	pt.PatientID = idNode.Content()

	var actor *document.Node
	for _, a := range doc.Find("//Actors/Actor") {
		if oid := a.First("./ActorObjectID"); oid != nil && oid.Content() == pt.PatientID {
			actor = a
			break
		}
	}
	if actor == nil {
		return &record.RequiredFieldError{Field: "patient actor"}
	}
	first := actor.First("./Person/Name/CurrentName/Given")
	if first == nil {
		return &record.RequiredFieldError{Field: "first"}
	}
	pt.First = first.Content()
	last := actor.First("./Person/Name/CurrentName/Family")
	if last == nil {
		return &record.RequiredFieldError{Field: "last"}
	}
	pt.Last = last.Content()
	birth := actor.First("./Person/DateOfBirth/ExactDateTime | ./Person/DateOfBirth/ApproximateDateTime")
	if birth == nil {
		return &record.RequiredFieldError{Field: "birthdate"}
	}
	t, err := ParseISOTime(birth.Content())
	if err != nil {
		return &record.DateParseError{Value: birth.Content(), Err: err}
	}
	pt.Birthdate = &t
	gender := actor.First("./Person/Gender")
	if gender == nil || gender.Content() == "" {
		return &record.RequiredFieldError{Field: "gender"}
	}
	pt.Gender = strings.ToLower(gender.Content())
	return nil
}

// ParseISOTime converts an ISO 8601 timestamp (or bare date) to epoch
// seconds.
func ParseISOTime(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return 0, err
		}
	}
	return t.Unix(), nil
}

// NewCCRBuilder creates a record builder for the CCR standard.
func NewCCRBuilder(registry *Registry) *Builder {
	return NewBuilder(CCRSchema, CCRDemographics, CCRSections(), registry)
}
