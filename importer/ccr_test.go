package importer

import (
	"context"
	"sort"
	"testing"

	"github.com/santemetrics/recordkit/codes"
	"github.com/santemetrics/recordkit/measures"
	"github.com/santemetrics/recordkit/record"
)

func TestCCRDemographics(t *testing.T) {
	doc := parseFile(t, "testdata/ccr_patient.xml")
	var pt record.Patient
	if err := CCRDemographics(doc, &pt); err != nil {
		t.Fatal(err)
	}
	if pt.First != "William" || pt.Last != "Test" {
		t.Errorf("name = %q %q, want William Test", pt.First, pt.Last)
	}
	if pt.PatientID != "AA0001" {
		t.Errorf("patient_id = %q, want AA0001", pt.PatientID)
	}
	if pt.Birthdate == nil || *pt.Birthdate != 432388800 {
		t.Errorf("birthdate = %v, want 432388800", pt.Birthdate)
	}
	if pt.Gender != "male" {
		t.Errorf("gender = %q, want male", pt.Gender)
	}
}

func TestCCRParse(t *testing.T) {
	doc := parseFile(t, "testdata/ccr_patient.xml")
	builder := NewCCRBuilder(NewRegistry())
	pt, err := builder.Parse(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}

	encounters := pt.Sections["encounters"]
	if len(encounters) != 1 {
		t.Fatalf("encounters = %d entries, want 1", len(encounters))
	}
	enc := encounters[0]
	if enc["description"] != "Office visit" {
		t.Errorf("encounter description = %v", enc["description"])
	}
	if got := enc["codes"].(map[string][]string)["CPT"]; len(got) != 1 || got[0] != "99201" {
		t.Errorf("encounter CPT codes = %v (CPT-4 must normalize to CPT)", got)
	}
	if enc["time"] != int64(1270598400) {
		t.Errorf("encounter time = %v, want 1270598400", enc["time"])
	}

	meds := pt.Sections["medications"]
	if len(meds) != 1 {
		t.Fatalf("medications = %d entries, want 1", len(meds))
	}
	m := meds[0]
	if m["description"] != "Tetanus toxoid" {
		t.Errorf("medication description = %v", m["description"])
	}
	got := m["codes"].(map[string][]string)["RxNorm"]
	sort.Strings(got)
	if len(got) != 2 || got[0] != "583214" || got[1] != "854935" {
		t.Errorf("medication RxNorm codes = %v, want product and brand codes", got)
	}
	if m["status"] != "active" {
		t.Errorf("medication status = %v, want active", m["status"])
	}

	results := pt.Sections["results"]
	if len(results) != 1 {
		t.Fatalf("results = %d entries, want 1", len(results))
	}
	r := results[0]
	if r["value"] != "6.5" || r["unit"] != "%" {
		t.Errorf("result value/unit = %v/%v", r["value"], r["unit"])
	}
	if r["time"] != int64(1270512000) {
		t.Errorf("result time = %v, want 1270512000", r["time"])
	}
}

func TestCCRWholePatientMeasure(t *testing.T) {
	registry := NewRegistry()
	registry.Register("0043", measures.NewCategoryImporter(measures.Definition{
		ID: "0043",
		Categories: map[string]codes.CodeSet{
			"encounter":   {"CPT": {"99201"}},
			"vaccination": {"RxNorm": {"854935"}},
		},
	}))
	doc := parseFile(t, "testdata/ccr_patient.xml")
	pt, err := NewCCRBuilder(registry).Parse(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	result, ok := pt.Measures["0043"].(map[string][]int64)
	if !ok {
		t.Fatalf("measure 0043 = %#v, want category time map", pt.Measures["0043"])
	}
	if enc := result["encounter"]; len(enc) != 1 || enc[0] != 1270598400 {
		t.Errorf("encounter times = %v, want [1270598400]", enc)
	}
	if vac := result["vaccination"]; len(vac) != 1 || vac[0] != 1270598400 {
		t.Errorf("vaccination times = %v, want [1270598400]", vac)
	}
}

func TestParseISOTime(t *testing.T) {
	if got, err := ParseISOTime("2010-04-07T00:00:00Z"); err != nil || got != 1270598400 {
		t.Errorf("ParseISOTime full = %d, %v", got, err)
	}
	if got, err := ParseISOTime("2010-04-06"); err != nil || got != 1270512000 {
		t.Errorf("ParseISOTime date-only = %d, %v", got, err)
	}
	if _, err := ParseISOTime("April 7 2010"); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}
