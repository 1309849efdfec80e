package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFieldMapValid(t *testing.T) {
	fm := DefaultFieldMap()
	if err := fm.Validate(); err != nil {
		t.Fatalf("Default field map should validate: %v", err)
	}

	cols := fm.Columns()
	expected := []string{
		"doc_number", "kind", "title", "applicants", "inventors",
		"application_date", "publication_date", "ipc_codes", "image_files",
	}
	if len(cols) != len(expected) {
		t.Fatalf("Expected %d columns, got %d", len(expected), len(cols))
	}
	for i, want := range expected {
		if cols[i] != want {
			t.Errorf("Column %d: expected %s, got %s", i, want, cols[i])
		}
	}
}

func TestFieldMapValidate(t *testing.T) {
	tests := []struct {
		name    string
		fm      FieldMap
		wantErr bool
	}{
		{
			name: "valid minimal",
			fm: FieldMap{
				RecordPaths: []string{"//record"},
				Fields:      []FieldRule{{Column: "id", Paths: []string{"//id"}}},
			},
		},
		{
			name:    "no record paths",
			fm:      FieldMap{Fields: []FieldRule{{Column: "id", Paths: []string{"//id"}}}},
			wantErr: true,
		},
		{
			name:    "no fields",
			fm:      FieldMap{RecordPaths: []string{"//record"}},
			wantErr: true,
		},
		{
			name: "empty column name",
			fm: FieldMap{
				RecordPaths: []string{"//record"},
				Fields:      []FieldRule{{Column: "", Paths: []string{"//id"}}},
			},
			wantErr: true,
		},
		{
			name: "duplicate column",
			fm: FieldMap{
				RecordPaths: []string{"//record"},
				Fields: []FieldRule{
					{Column: "id", Paths: []string{"//id"}},
					{Column: "id", Paths: []string{"//other"}},
				},
			},
			wantErr: true,
		},
		{
			name: "column without paths",
			fm: FieldMap{
				RecordPaths: []string{"//record"},
				Fields:      []FieldRule{{Column: "id"}},
			},
			wantErr: true,
		},
		{
			name: "invalid xpath",
			fm: FieldMap{
				RecordPaths: []string{"//record"},
				Fields:      []FieldRule{{Column: "id", Paths: []string{"//["}}},
			},
			wantErr: true,
		},
		{
			name: "invalid record path",
			fm: FieldMap{
				RecordPaths: []string{"//["},
				Fields:      []FieldRule{{Column: "id", Paths: []string{"//id"}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fm.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoadFieldMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")

	content := `record_paths:
  - "//custom-record"
fields:
  - column: id
    paths:
      - "//custom-id"
  - column: tags
    repeated: true
    paths:
      - "//tag"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write field map: %v", err)
	}

	fm, err := LoadFieldMap(path)
	if err != nil {
		t.Fatalf("LoadFieldMap failed: %v", err)
	}

	if len(fm.RecordPaths) != 1 || fm.RecordPaths[0] != "//custom-record" {
		t.Errorf("Unexpected record paths: %v", fm.RecordPaths)
	}
	if len(fm.Fields) != 2 {
		t.Fatalf("Expected 2 fields, got %d", len(fm.Fields))
	}
	if !fm.Fields[1].Repeated {
		t.Error("Expected tags field to be repeated")
	}
}

func TestLoadFieldMapErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadFieldMap(filepath.Join(dir, "missing.yaml")); err == nil {
			t.Error("Expected error for missing file, got nil")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("fields: [unclosed"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := LoadFieldMap(path); err == nil {
			t.Error("Expected error for invalid yaml, got nil")
		}
	})

	t.Run("invalid map", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		if err := os.WriteFile(path, []byte("fields: []"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		if _, err := LoadFieldMap(path); err == nil {
			t.Error("Expected error for field map without record paths, got nil")
		}
	})
}
