// Package document provides the query capability over clinical summary
// documents: a generic XML node tree with a small path-expression language.
//
// Both supported document standards are XML; they differ in namespaces and
// structure but not in the kind of lookup the extractors need. Expressions
// match element local names, ignoring namespace prefixes, so the same
// evaluator serves both. The grammar is a subset of XPath:
//
//	//Problems/Problem                 any Problems descendant, then child Problem
//	./Description/Code                 child chain from the context node
//	./ExactDateTime | ./ApproximateDateTime   alternation
//	//observation[templateId@root='x'] predicate on a child element's attribute
//	./code[@code='x']                  predicate on the node's own attribute
package document

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Node is one element of a parsed document.
type Node struct {
	Name     string // element local name, namespace prefix stripped
	Attrs    map[string]string
	Children []*Node

	text strings.Builder
}

// Parse reads an XML document and returns its root element.
func Parse(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("document: parsing XML: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attrs = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("document: multiple root elements")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("document: no root element")
	}
	return root, nil
}

// Attr returns the value of the named attribute, or "" if absent.
func (n *Node) Attr(name string) string {
	return n.Attrs[name]
}

// Content returns the trimmed text content of this node and its descendants.
func (n *Node) Content() string {
	if len(n.Children) == 0 {
		return strings.TrimSpace(n.text.String())
	}
	var sb strings.Builder
	n.content(&sb)
	return strings.TrimSpace(sb.String())
}

func (n *Node) content(sb *strings.Builder) {
	sb.WriteString(n.text.String())
	for _, c := range n.Children {
		c.content(sb)
	}
}

// Find returns the nodes matching the path expression, in document order.
// Alternatives separated by "|" are evaluated left to right and their
// results concatenated.
func (n *Node) Find(path string) []*Node {
	var out []*Node
	for _, alt := range strings.Split(path, "|") {
		out = append(out, n.findOne(strings.TrimSpace(alt))...)
	}
	return out
}

// First returns the first node matching the path expression, or nil.
func (n *Node) First(path string) *Node {
	for _, alt := range strings.Split(path, "|") {
		if found := n.findOne(strings.TrimSpace(alt)); len(found) > 0 {
			return found[0]
		}
	}
	return nil
}

func (n *Node) findOne(path string) []*Node {
	descendant := false
	switch {
	case strings.HasPrefix(path, "//"):
		descendant = true
		path = path[2:]
	case strings.HasPrefix(path, "./"):
		path = path[2:]
	}
	segs := strings.Split(path, "/")
	current := []*Node{n}
	for i, seg := range segs {
		name, pred, err := parseSegment(seg)
		if err != nil {
			return nil
		}
		var next []*Node
		for _, c := range current {
			if i == 0 && descendant {
				c.walk(func(d *Node) {
					if d.Name == name && pred.matches(d) {
						next = append(next, d)
					}
				})
				continue
			}
			for _, child := range c.Children {
				if child.Name == name && pred.matches(child) {
					next = append(next, child)
				}
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

// walk visits every descendant of n in document order, excluding n itself.
func (n *Node) walk(visit func(*Node)) {
	for _, c := range n.Children {
		visit(c)
		c.walk(visit)
	}
}

// predicate is a parsed [child@attr='value'] or [@attr='value'] filter.
type predicate struct {
	child string // empty for a self-attribute test
	attr  string
	value string
}

func (p *predicate) matches(n *Node) bool {
	if p == nil {
		return true
	}
	if p.child == "" {
		return n.Attr(p.attr) == p.value
	}
	for _, c := range n.Children {
		if c.Name == p.child && c.Attr(p.attr) == p.value {
			return true
		}
	}
	return false
}

func parseSegment(seg string) (string, *predicate, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 {
		return seg, nil, nil
	}
	if !strings.HasSuffix(seg, "]") {
		return "", nil, fmt.Errorf("document: malformed predicate in %q", seg)
	}
	name := seg[:open]
	body := seg[open+1 : len(seg)-1]
	at := strings.IndexByte(body, '@')
	eq := strings.IndexByte(body, '=')
	if at < 0 || eq < at {
		return "", nil, fmt.Errorf("document: malformed predicate in %q", seg)
	}
	value := strings.Trim(body[eq+1:], "'\"")
	return name, &predicate{
		child: body[:at],
		attr:  body[at+1 : eq],
		value: value,
	}, nil
}
