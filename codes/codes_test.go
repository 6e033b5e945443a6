package codes

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"lnc":       "LOINC",
		"loinc":     "LOINC",
		"LOINC":     "LOINC",
		"cpt":       "CPT",
		"cpt-4":     "CPT",
		"CPT-4":     "CPT",
		"snomedct":  "SNOMED-CT",
		"SNOMED-CT": "SNOMED-CT",
		"RxNorm":    "RxNorm",
		"rxnorm":    "RxNorm",
		"icd9-cm":   "ICD-9-CM",
		"icd9":      "ICD-9-CM",
		"icd10":     "ICD-10-CM",
		"cvx":       "CVX",
		"hcpcs":     "HCPCS",
	}
	for raw, want := range tests {
		if got := Normalize(raw); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalizePassthrough(t *testing.T) {
	for _, raw := range []string{"Junk", "ICD-11", ""} {
		if got := Normalize(raw); got != raw {
			t.Errorf("Normalize(%q) = %q, want unchanged", raw, got)
		}
	}
}

func TestRegisterAlias(t *testing.T) {
	RegisterAlias("NDC-Test", "NDC")
	defer func() {
		aliasesMu.Lock()
		delete(aliases, "ndc-test")
		aliasesMu.Unlock()
	}()
	if got := Normalize("ndc-test"); got != "NDC" {
		t.Errorf("Normalize after RegisterAlias = %q, want NDC", got)
	}
}

func TestCodeSetContains(t *testing.T) {
	cs := CodeSet{"RxNorm": {"854935"}}
	if !cs.Contains("RxNorm", "854935") {
		t.Error("expected RxNorm/854935 to be present")
	}
	if cs.Contains("RxNorm", "999") {
		t.Error("did not expect RxNorm/999")
	}
	if cs.Contains("SNOMED-CT", "854935") {
		t.Error("did not expect a match in a different system")
	}
}

func TestLoadCodeSet(t *testing.T) {
	cs, err := LoadCodeSet(strings.NewReader(`{"RxNorm": ["854935", "44556699"], "CVX": ["33"]}`))
	if err != nil {
		t.Fatal(err)
	}
	if !cs.Contains("RxNorm", "44556699") || !cs.Contains("CVX", "33") {
		t.Errorf("unexpected code set contents: %v", cs)
	}
	if _, err := LoadCodeSet(strings.NewReader(`not json`)); err == nil {
		t.Error("expected an error for malformed input")
	}
}
