package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/record"
)

// MeasureImporter denormalizes a patient's entries into the data shape one
// quality measure's calculation requires. Implementations receive the
// complete entries-by-section map for the current document and must not
// mutate the entries.
type MeasureImporter interface {
	Parse(entriesBySection map[string][]*record.Entry) (any, error)
}

// Registry maps measure ids to their importers. It is owned by the caller,
// populated by Register before the first parse, and read-only afterwards;
// registration during active parsing is not supported.
type Registry struct {
	importers map[string]MeasureImporter
}

// NewRegistry creates an empty measure registry.
func NewRegistry() *Registry {
	return &Registry{importers: make(map[string]MeasureImporter)}
}

// Register adds a measure importer under its measure id.
func (r *Registry) Register(measureID string, imp MeasureImporter) {
	if _, dup := r.importers[measureID]; dup {
		panic("importer: register called twice for measure " + measureID)
	}
	r.importers[measureID] = imp
}

// MeasureIDs returns the registered measure ids, sorted.
func (r *Registry) MeasureIDs() []string {
	ids := make([]string, 0, len(r.importers))
	for id := range r.importers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DemographicsFunc extracts the demographic fields of one document standard
// into the patient record, failing fast when a mandatory field is absent.
type DemographicsFunc func(doc *document.Node, pt *record.Patient) error

// Builder assembles patient records from documents of one standard. Create
// one with NewC32Builder or NewCCRBuilder and reuse it across documents; a
// Builder holds no per-document state.
type Builder struct {
	schemaName   string
	demographics DemographicsFunc
	extractors   []*SectionExtractor
	registry     *Registry
}

// NewBuilder wires a schema, its demographics extractor and its section
// configuration to a caller-owned measure registry.
func NewBuilder(schema *Schema, demographics DemographicsFunc, sections []SectionConfig, registry *Registry) *Builder {
	b := &Builder{
		schemaName:   schema.Name,
		demographics: demographics,
		registry:     registry,
	}
	for _, cfg := range sections {
		b.extractors = append(b.extractors, NewSectionExtractor(schema, cfg))
	}
	return b
}

// CheckUsable switches the usability filter on every section extractor.
func (b *Builder) CheckUsable(check bool) {
	for _, ex := range b.extractors {
		ex.CheckUsable = check
	}
}

// Parse converts one document into a patient record: demographics, then
// per-section entries, then denormalized measures and serialized sections.
func (b *Builder) Parse(ctx context.Context, doc *document.Node) (*record.Patient, error) {
	pt := &record.Patient{}
	if err := b.demographics(doc, pt); err != nil {
		return nil, fmt.Errorf("%s demographics: %w", b.schemaName, err)
	}
	entries := b.CreateEntries(ctx, doc)
	b.processEvents(ctx, pt, entries)
	return pt, nil
}

// ParseHash converts pre-parsed patient data (demographic fields plus an
// "events" map of section-keyed event lists) into a patient record. Measure
// denormalization and section serialization are shared with Parse, so the
// result is identical whether the input came from a document or a hand-built
// event list.
func (b *Builder) ParseHash(ctx context.Context, patientHash map[string]any) (*record.Patient, error) {
	pt := &record.Patient{}
	pt.First = stringField(patientHash, "first")
	pt.Last = stringField(patientHash, "last")
	pt.PatientID = stringField(patientHash, "patient_id")
	pt.Gender = stringField(patientHash, "gender")
	pt.Race = stringField(patientHash, "race")
	pt.Ethnicity = stringField(patientHash, "ethnicity")
	if birth, ok := epochField(patientHash, "birthdate"); ok {
		pt.Birthdate = &birth
	}
	if langs, ok := patientHash["languages"].([]any); ok {
		for _, l := range langs {
			if s, ok := l.(string); ok {
				pt.Languages = append(pt.Languages, s)
			}
		}
	}
	if addrs, ok := patientHash["addresses"].([]any); ok {
		for _, a := range addrs {
			if m, ok := a.(map[string]any); ok {
				pt.Addresses = append(pt.Addresses, record.Address{
					Street:   stringField(m, "street"),
					City:     stringField(m, "city"),
					State:    stringField(m, "state"),
					Postcode: stringField(m, "postcode"),
				})
			}
		}
	}
	entries := make(map[string][]*record.Entry)
	if events, ok := patientHash["events"].(map[string]any); ok {
		for section, raw := range events {
			if list, ok := raw.([]any); ok {
				entries[section] = record.ParseEventList(list)
			}
		}
	}
	b.processEvents(ctx, pt, entries)
	return pt, nil
}

// CreateEntries runs every section extractor over the document. Sections
// have no data dependency on one another and extract in parallel.
func (b *Builder) CreateEntries(ctx context.Context, doc *document.Node) map[string][]*record.Entry {
	var mu sync.Mutex
	out := make(map[string][]*record.Entry, len(b.extractors))
	g, _ := errgroup.WithContext(ctx)
	for _, ex := range b.extractors {
		ex := ex
		g.Go(func() error {
			entries := ex.CreateEntries(doc)
			mu.Lock()
			out[ex.Section] = entries
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // extractors report per-entry problems themselves
	return out
}

// processEvents adds denormalized measure results and serialized section
// entries to the patient record. Measures run in parallel; a failing
// importer yields an error marker under its measure id and never prevents
// other measures or section serialization from completing. Serialization
// re-filters to usable entries even when an extractor was configured not to.
func (b *Builder) processEvents(ctx context.Context, pt *record.Patient, entries map[string][]*record.Entry) {
	pt.Measures = make(map[string]any, len(b.registry.importers))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for _, id := range b.registry.MeasureIDs() {
		id := id
		imp := b.registry.importers[id]
		g.Go(func() error {
			result, err := runImporter(imp, entries)
			mu.Lock()
			if err != nil {
				pt.Measures[id] = map[string]any{"error": err.Error()}
			} else {
				pt.Measures[id] = result
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	pt.Sections = make(map[string][]map[string]any, len(entries))
	for section, list := range entries {
		hashes := make([]map[string]any, 0, len(list))
		for _, e := range list {
			if e.Usable() {
				hashes = append(hashes, e.ToHash())
			}
		}
		pt.Sections[section] = hashes
	}
}

// runImporter isolates a measure importer: a panic is converted to an error
// so one bad measure cannot abort the whole parse.
func runImporter(imp MeasureImporter, entries map[string][]*record.Entry) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("measure importer panicked: %v", r)
		}
	}()
	return imp.Parse(entries)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func epochField(m map[string]any, key string) (int64, bool) {
	switch t := m[key].(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	}
	return 0, false
}
