// Package codes canonicalizes the names of clinical coding systems (LOINC,
// RxNorm, SNOMED-CT and friends) and provides membership testing against
// externally supplied code sets.
//
// Source documents name the same vocabulary in many ways ("lnc", "loinc",
// "LOINC"); downstream measure logic needs a single canonical key per
// system. Normalization is best-effort: a name with no registered alias is
// passed through unchanged rather than rejected.
package codes

import (
	"strings"
	"sync"
)

var (
	aliasesMu sync.RWMutex
	aliases   = map[string]string{
		"lnc":       "LOINC",
		"loinc":     "LOINC",
		"cpt":       "CPT",
		"cpt-4":     "CPT",
		"snomedct":  "SNOMED-CT",
		"snomed-ct": "SNOMED-CT",
		"rxnorm":    "RxNorm",
		"icd9":      "ICD-9-CM",
		"icd9-cm":   "ICD-9-CM",
		"icd10":     "ICD-10-CM",
		"icd10-cm":  "ICD-10-CM",
		"cvx":       "CVX",
		"hcpcs":     "HCPCS",
	}
)

// Normalize returns the canonical name for a coding system, looked up
// case-insensitively. Unrecognized names are returned unchanged.
func Normalize(raw string) string {
	aliasesMu.RLock()
	defer aliasesMu.RUnlock()
	if canonical, ok := aliases[strings.ToLower(raw)]; ok {
		return canonical
	}
	return raw
}

// RegisterAlias adds or overrides an alias for a coding system. The alias is
// matched case-insensitively. Deployments whose measure definitions still
// expect the historical collapsing of ICD-10 names onto ICD-9-CM can restore
// it here.
func RegisterAlias(alias string, canonical string) {
	aliasesMu.Lock()
	defer aliasesMu.Unlock()
	aliases[strings.ToLower(alias)] = canonical
}
