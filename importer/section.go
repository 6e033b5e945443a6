package importer

import (
	"github.com/rs/zerolog/log"

	"github.com/santemetrics/recordkit/document"
	"github.com/santemetrics/recordkit/record"
)

// SectionExtractor produces the entries of one clinical section from a
// document. Each matched clinical-statement node yields its own
// independently-filtered entry, in document order.
type SectionExtractor struct {
	SectionConfig
	schema *Schema

	// CheckUsable controls the usability filter. Importing keeps it on;
	// statistics tooling switches it off to see everything a document holds.
	CheckUsable bool
}

// NewSectionExtractor creates an extractor for one section of one document
// standard, with the usability filter enabled.
func NewSectionExtractor(schema *Schema, cfg SectionConfig) *SectionExtractor {
	return &SectionExtractor{SectionConfig: cfg, schema: schema, CheckUsable: true}
}

// CreateEntries scans the document for this section's clinical-statement
// nodes and returns one entry per node, in document order. An entry whose
// claimed date cannot be parsed is discarded without affecting its siblings.
func (se *SectionExtractor) CreateEntries(doc *document.Node) []*record.Entry {
	nodes := doc.Find(se.EntryPath)
	entries := make([]*record.Entry, 0, len(nodes))
	for _, el := range nodes {
		entry, err := se.extract(el)
		if err != nil {
			log.Warn().Err(err).
				Str("standard", se.schema.Name).
				Str("section", se.Section).
				Msg("discarding entry")
			continue
		}
		if se.CheckUsable && !entry.Usable() {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func (se *SectionExtractor) extract(el *document.Node) (*record.Entry, error) {
	entry := record.NewEntry()
	se.extractCodes(el, entry)
	if se.ProductPath != "" {
		se.extractProductCodes(el, entry)
	}
	if err := se.extractDates(el, entry); err != nil {
		return nil, err
	}
	se.extractValue(el, entry)
	se.extractStatus(el, entry)
	return entry, nil
}

func (se *SectionExtractor) extractCodes(el *document.Node, entry *record.Entry) {
	s := se.schema
	if n := el.First(s.DescriptionPath); n != nil {
		entry.Description = n.Content()
	}
	codeNodes := el.Find(s.CodesPath)
	for _, cn := range codeNodes {
		value, system := s.ReadCode(cn)
		if value == "" {
			continue
		}
		entry.AddCode(value, system)
	}
	if entry.Description == "" && s.DescriptionAttr != "" && len(codeNodes) > 0 {
		entry.Description = codeNodes[0].Attr(s.DescriptionAttr)
	}
}

func (se *SectionExtractor) extractProductCodes(el *document.Node, entry *record.Entry) {
	s := se.schema
	for _, product := range el.Find(se.ProductPath) {
		if s.ProductDescriptionPath != "" {
			if n := product.First(s.ProductDescriptionPath); n != nil {
				entry.Description = n.Content()
			}
		}
		carriers := []*document.Node{product}
		if len(s.ProductNamePaths) > 0 {
			carriers = carriers[:0]
			for _, namePath := range s.ProductNamePaths {
				carriers = append(carriers, product.Find(namePath)...)
			}
		}
		for _, carrier := range carriers {
			for _, cn := range carrier.Find(s.ProductCodesPath) {
				value, system := s.ReadCode(cn)
				if value == "" {
					continue
				}
				entry.AddCode(value, system)
			}
		}
		if entry.Description == "" && s.DescriptionAttr != "" {
			for _, carrier := range carriers {
				if cn := carrier.First(s.ProductCodesPath); cn != nil {
					entry.Description = cn.Attr(s.DescriptionAttr)
					break
				}
			}
		}
	}
}

// extractDates fills the entry's temporal slots. The approximate slot is
// read before the exact slot, so an exact date overwrites an approximate one
// for the same point in time.
func (se *SectionExtractor) extractDates(el *document.Node, entry *record.Entry) error {
	s := se.schema
	if t, ok, err := se.timeAt(el, s.ApproxTimePath); err != nil {
		return err
	} else if ok {
		entry.SetTime(t)
	}
	if t, ok, err := se.timeAt(el, s.ExactTimePath); err != nil {
		return err
	} else if ok {
		entry.SetTime(t)
	}
	if t, ok, err := se.timeAt(el, s.StartTimePath); err != nil {
		return err
	} else if ok {
		entry.SetStartTime(t)
	}
	if t, ok, err := se.timeAt(el, s.EndTimePath); err != nil {
		return err
	} else if ok {
		entry.SetEndTime(t)
	}
	return nil
}

func (se *SectionExtractor) timeAt(el *document.Node, path string) (int64, bool, error) {
	if path == "" {
		return 0, false, nil
	}
	n := el.First(path)
	if n == nil {
		return 0, false, nil
	}
	raw := se.schema.ReadTime(n)
	if raw == "" {
		return 0, false, nil
	}
	t, err := se.schema.ParseTime(raw)
	if err != nil {
		return 0, false, &record.DateParseError{Value: raw, Err: err}
	}
	return t, true, nil
}

func (se *SectionExtractor) extractValue(el *document.Node, entry *record.Entry) {
	n := el.First(se.schema.ValuePath)
	if n == nil {
		return
	}
	value, unit := se.schema.ReadValue(n)
	if value == "" {
		return
	}
	entry.SetValue(value, unit)
}

func (se *SectionExtractor) extractStatus(el *document.Node, entry *record.Entry) {
	n := el.First(se.schema.StatusPath)
	if n == nil {
		return
	}
	if status := se.schema.ReadStatus(n); status != "" {
		entry.SetStatus(status)
	}
}
