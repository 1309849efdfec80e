package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ParseFile parses one XML document and projects it into a row of values in
// the field map's column order. Unparsable XML or a document without any of
// the expected record root elements yields a *ParseError.
func (m FieldMap) ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	rec, err := m.recordNode(doc)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return m.extract(rec), nil
}

// recordNode locates the patent record root, trying the candidate record
// paths in order.
func (m FieldMap) recordNode(doc *xmlquery.Node) (*xmlquery.Node, error) {
	for _, p := range m.RecordPaths {
		node, err := xmlquery.Query(doc, p)
		if err != nil {
			return nil, fmt.Errorf("record path %q: %w", p, err)
		}
		if node != nil {
			return node, nil
		}
	}
	return nil, fmt.Errorf("no patent record root element (tried %s)", strings.Join(m.RecordPaths, ", "))
}

// extract evaluates every field rule against the record node. The result
// always has exactly one value per column.
func (m FieldMap) extract(rec *xmlquery.Node) []string {
	row := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Repeated {
			row = append(row, extractRepeated(rec, f.Paths))
		} else {
			row = append(row, extractFirst(rec, f.Paths))
		}
	}
	return row
}

// extractFirst returns the first non-empty value produced by the candidate
// paths, or the empty string.
func extractFirst(rec *xmlquery.Node, paths []string) string {
	for _, p := range paths {
		node, err := xmlquery.Query(rec, p)
		if err != nil || node == nil {
			continue
		}
		if v := normalizeValue(node.InnerText()); v != "" {
			return v
		}
	}
	return ""
}

// extractRepeated collects all matches of the first candidate path that
// yields any, joined with ValueSeparator in document order.
func extractRepeated(rec *xmlquery.Node, paths []string) string {
	for _, p := range paths {
		nodes, err := xmlquery.QueryAll(rec, p)
		if err != nil {
			continue
		}

		var values []string
		for _, n := range nodes {
			if v := normalizeValue(n.InnerText()); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			return strings.Join(values, ValueSeparator)
		}
	}
	return ""
}

// normalizeValue trims and collapses internal whitespace so multi-line XML
// text nodes serialize as a single clean cell.
func normalizeValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
