package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/santemetrics/recordkit/record"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func testPatient(id, first, last string) *record.Patient {
	birth := int64(-87696000)
	return &record.Patient{
		First:     first,
		Last:      last,
		PatientID: id,
		Gender:    "M",
		Birthdate: &birth,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testPatient("24602", "Joe", "Smith")); err != nil {
		t.Fatal(err)
	}
	body, err := s.Get(ctx, "24602")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if got["first"] != "Joe" || got["last"] != "Smith" || got["patient_id"] != "24602" {
		t.Errorf("stored record = %v", got)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testPatient("24602", "Joe", "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, testPatient("24602", "Joseph", "Smith")); err != nil {
		t.Fatal(err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d records after re-import, want 1", len(list))
	}
	if list[0].First != "Joseph" {
		t.Errorf("first = %q, want the re-imported value", list[0].First)
	}
	if list[0].ImportedAt != 1700000000 {
		t.Errorf("imported_at = %d", list[0].ImportedAt)
	}
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveRejectsMissingID(t *testing.T) {
	s := testStore(t)
	if err := s.Save(context.Background(), &record.Patient{First: "Joe", Last: "Smith"}); err == nil {
		t.Error("expected an error for a record without a patient id")
	}
}

func TestListOrdersByName(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, pt := range []*record.Patient{
		testPatient("3", "Carol", "Young"),
		testPatient("1", "Alice", "Adams"),
		testPatient("2", "Bob", "Adams"),
	} {
		if err := s.Save(ctx, pt); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, sm := range list {
		names = append(names, sm.First)
	}
	want := []string{"Alice", "Bob", "Carol"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("listing order = %v, want %v", names, want)
		}
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, testPatient("24602", "Joe", "Smith")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "24602"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "24602"); !errors.Is(err, ErrNotFound) {
		t.Errorf("record still present after delete: %v", err)
	}
	if err := s.Delete(ctx, "24602"); err != nil {
		t.Errorf("deleting an absent record should not fail: %v", err)
	}
}
