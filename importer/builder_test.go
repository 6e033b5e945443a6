package importer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/santemetrics/recordkit/record"
)

type staticImporter struct{ result any }

func (s staticImporter) Parse(map[string][]*record.Entry) (any, error) {
	return s.result, nil
}

type failingImporter struct{}

func (failingImporter) Parse(map[string][]*record.Entry) (any, error) {
	return nil, errors.New("definition missing a category")
}

type panickingImporter struct{}

func (panickingImporter) Parse(map[string][]*record.Entry) (any, error) {
	panic("nil category map")
}

func TestRegistryDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic on duplicate registration")
		}
	}()
	r := NewRegistry()
	r.Register("0043", staticImporter{})
	r.Register("0043", staticImporter{})
}

func TestParseMeasureKeysMatchRegistry(t *testing.T) {
	registry := NewRegistry()
	registry.Register("0043", staticImporter{result: "ok"})
	registry.Register("0059", failingImporter{})
	registry.Register("0064", panickingImporter{})

	doc := parseFile(t, "testdata/c32_patient.xml")
	pt, err := NewC32Builder(registry).Parse(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}

	keys := make([]string, 0, len(pt.Measures))
	for k := range pt.Measures {
		keys = append(keys, k)
	}
	want := registry.MeasureIDs()
	if len(keys) != len(want) {
		t.Fatalf("measure keys = %v, want %v", keys, want)
	}
	for _, id := range want {
		if _, ok := pt.Measures[id]; !ok {
			t.Errorf("measure %s missing from record", id)
		}
	}

	if pt.Measures["0043"] != "ok" {
		t.Errorf("healthy measure result = %v", pt.Measures["0043"])
	}
	failed, ok := pt.Measures["0059"].(map[string]any)
	if !ok || failed["error"] != "definition missing a category" {
		t.Errorf("failed measure marker = %#v", pt.Measures["0059"])
	}
	panicked, ok := pt.Measures["0064"].(map[string]any)
	if !ok {
		t.Fatalf("panicked measure marker = %#v", pt.Measures["0064"])
	}
	if msg, _ := panicked["error"].(string); !strings.Contains(msg, "panicked") {
		t.Errorf("panic marker message = %q", msg)
	}
}

func TestParseHash(t *testing.T) {
	registry := NewRegistry()
	registry.Register("0043", staticImporter{result: "ok"})
	builder := NewC32Builder(registry)

	pt, err := builder.ParseHash(context.Background(), map[string]any{
		"first":      "Joe",
		"last":       "Smith",
		"patient_id": "24602",
		"gender":     "M",
		"birthdate":  int64(-87696000),
		"languages":  []any{"en-US"},
		"addresses": []any{
			map[string]any{"street": "1 Main St", "city": "Bedford", "state": "MA", "postcode": "01730"},
		},
		"events": map[string]any{
			"encounters": []any{
				map[string]any{"code": "99201", "code_set": "CPT", "time": int64(1270598400)},
				"placeholder",
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if pt.First != "Joe" || pt.Last != "Smith" || pt.PatientID != "24602" {
		t.Errorf("demographics = %q %q %q", pt.First, pt.Last, pt.PatientID)
	}
	if pt.Birthdate == nil || *pt.Birthdate != -87696000 {
		t.Errorf("birthdate = %v", pt.Birthdate)
	}
	wantAddr := record.Address{Street: "1 Main St", City: "Bedford", State: "MA", Postcode: "01730"}
	if len(pt.Addresses) != 1 || !reflect.DeepEqual(pt.Addresses[0], wantAddr) {
		t.Errorf("addresses = %+v", pt.Addresses)
	}
	encounters := pt.Sections["encounters"]
	if len(encounters) != 1 {
		t.Fatalf("encounters = %d entries, want 1 (placeholder skipped)", len(encounters))
	}
	if encounters[0]["time"] != int64(1270598400) {
		t.Errorf("encounter time = %v", encounters[0]["time"])
	}
	if pt.Measures["0043"] != "ok" {
		t.Errorf("measure result = %v", pt.Measures["0043"])
	}
}

func TestSerializationRefiltersUnusable(t *testing.T) {
	doc := parseFile(t, "testdata/c32_patient.xml")
	builder := NewC32Builder(NewRegistry())
	builder.CheckUsable(false)

	entries := builder.CreateEntries(context.Background(), doc)
	if len(entries["encounters"]) != 3 {
		t.Fatalf("raw encounters = %d, want 3 with the filter off", len(entries["encounters"]))
	}

	pt, err := builder.Parse(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(pt.Sections["encounters"]) != 2 {
		t.Errorf("serialized encounters = %d, want 2 (unusable entry dropped on output)",
			len(pt.Sections["encounters"]))
	}
}
