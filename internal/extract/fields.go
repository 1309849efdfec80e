package extract

import (
	"fmt"
	"os"

	"github.com/antchfx/xpath"
	"gopkg.in/yaml.v3"
)

// ValueSeparator joins multi-valued fields (classification codes, image
// references) into a single CSV cell. It is fixed for the lifetime of a run so
// repeated runs on unchanged input produce byte-identical output.
const ValueSeparator = ";"

// FieldRule binds one output column to an ordered list of candidate XPath
// expressions, tried in priority order against the record root. For
// single-valued columns the first expression yielding a non-empty value wins;
// for repeated columns the first expression yielding any matches contributes
// all of them, in document order.
type FieldRule struct {
	Column   string   `yaml:"column"`
	Paths    []string `yaml:"paths"`
	Repeated bool     `yaml:"repeated,omitempty"`
}

// FieldMap is the fixed table driving extraction: the candidate record root
// expressions plus one FieldRule per output column. The column set determines
// the CSV schema up front, so missing fields serialize as empty cells rather
// than shifting columns.
type FieldMap struct {
	RecordPaths []string    `yaml:"record_paths"`
	Fields      []FieldRule `yaml:"fields"`
}

// DefaultFieldMap returns the field map matching the TIPO patent publication
// XML schema (ST.36-style bibliographic elements).
func DefaultFieldMap() FieldMap {
	return FieldMap{
		RecordPaths: []string{
			"//tw-patent-application-publication",
			"//patent-application-publication",
			"//tw-patent-grant",
			"//patent-grant",
		},
		Fields: []FieldRule{
			{
				Column: "doc_number",
				Paths: []string{
					"//publication-reference//doc-number",
					"//application-reference//doc-number",
				},
			},
			{
				Column: "kind",
				Paths: []string{
					"//publication-reference//kind",
					"//kind-code",
				},
			},
			{
				Column: "title",
				Paths: []string{
					"//invention-title",
					"//title-of-invention",
				},
			},
			{
				Column:   "applicants",
				Repeated: true,
				Paths: []string{
					"//applicants//addressbook/orgname",
					"//applicants//addressbook/name",
					"//applicants//name",
				},
			},
			{
				Column:   "inventors",
				Repeated: true,
				Paths: []string{
					"//inventors//addressbook/name",
					"//inventors//name",
				},
			},
			{
				Column: "application_date",
				Paths: []string{
					"//application-reference//date",
				},
			},
			{
				Column: "publication_date",
				Paths: []string{
					"//publication-reference//date",
				},
			},
			{
				Column:   "ipc_codes",
				Repeated: true,
				Paths: []string{
					"//classifications-ipcr/classification-ipcr/text",
					"//classification-ipc//main-classification|//classification-ipc//further-classification",
				},
			},
			{
				Column:   "image_files",
				Repeated: true,
				Paths: []string{
					"//drawings//img/@file",
					"//figure//img/@file",
				},
			},
		},
	}
}

// LoadFieldMap reads a field map override from a YAML file.
func LoadFieldMap(path string) (FieldMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FieldMap{}, fmt.Errorf("failed to read field map: %w", err)
	}

	var fm FieldMap
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return FieldMap{}, fmt.Errorf("failed to parse field map: %w", err)
	}

	if err := fm.Validate(); err != nil {
		return FieldMap{}, fmt.Errorf("invalid field map %s: %w", path, err)
	}

	return fm, nil
}

// Columns returns the CSV header in schema order.
func (m FieldMap) Columns() []string {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// Validate checks the field map is usable before any file is touched: at least
// one record path, unique non-empty column names, and every XPath expression
// compiles.
func (m FieldMap) Validate() error {
	if len(m.RecordPaths) == 0 {
		return fmt.Errorf("no record paths defined")
	}
	for _, p := range m.RecordPaths {
		if _, err := xpath.Compile(p); err != nil {
			return fmt.Errorf("record path %q: %w", p, err)
		}
	}

	if len(m.Fields) == 0 {
		return fmt.Errorf("no fields defined")
	}

	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Column == "" {
			return fmt.Errorf("field with empty column name")
		}
		if seen[f.Column] {
			return fmt.Errorf("duplicate column %q", f.Column)
		}
		seen[f.Column] = true

		if len(f.Paths) == 0 {
			return fmt.Errorf("column %q has no candidate paths", f.Column)
		}
		for _, p := range f.Paths {
			if _, err := xpath.Compile(p); err != nil {
				return fmt.Errorf("column %q path %q: %w", f.Column, p, err)
			}
		}
	}

	return nil
}
