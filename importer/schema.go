// Package importer turns clinical summary documents into canonical patient
// records. A single SectionExtractor type, parameterized by schema-specific
// selector configuration, serves both supported document standards; the
// Builder orchestrates demographic extraction, per-section entry extraction
// and per-measure denormalization into one output record.
package importer

import "github.com/santemetrics/recordkit/document"

// Schema describes how one document standard lays out the sub-structure of a
// clinical statement: where descriptions, codes, dates, values and statuses
// live relative to an entry node, and how to read each. Exactly two schemas
// exist, one per standard; section selectors vary per section and are carried
// separately in SectionConfig.
type Schema struct {
	Name string

	// DescriptionPath locates the free-text label of an entry.
	// DescriptionAttr, when set, names an attribute of the first code node
	// used as a fallback label for documents that carry display names on the
	// code itself.
	DescriptionPath string
	DescriptionAttr string

	// CodesPath locates the repeating code nodes of an entry; ReadCode
	// extracts the (value, coding-system) pair from one of them.
	CodesPath string
	ReadCode  func(n *document.Node) (value string, system string)

	// Temporal slots. The approximate path is read before the exact path so
	// that an exact date always takes precedence. ReadTime extracts the raw
	// date literal from a matched node ("" meaning absent) and ParseTime
	// converts it to epoch seconds.
	ExactTimePath  string
	ApproxTimePath string
	StartTimePath  string
	EndTimePath    string
	ReadTime       func(n *document.Node) string
	ParseTime      func(raw string) (int64, error)

	// ValuePath locates the result sub-structure; ReadValue extracts the
	// scalar and its unit.
	ValuePath string
	ReadValue func(n *document.Node) (value string, unit string)

	// StatusPath locates the status sub-structure; ReadStatus extracts the
	// raw status string.
	StatusPath string
	ReadStatus func(n *document.Node) string

	// Product sub-structure handling, for sections (medications,
	// immunizations, equipment) whose authoritative codes live in a nested
	// product element. ProductNamePaths lists the named children of a
	// product node that each contribute codes ("brand name" and "product
	// name" both feed the same entry); when empty, codes are read from the
	// product node itself. ProductCodesPath locates the code nodes within,
	// and ProductDescriptionPath an optional product label.
	ProductNamePaths       []string
	ProductCodesPath       string
	ProductDescriptionPath string
}

// SectionConfig selects the repeating clinical-statement nodes of one
// section, with an optional nested product selector.
type SectionConfig struct {
	Section     string
	EntryPath   string
	ProductPath string
}
