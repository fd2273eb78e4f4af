package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"a.md", "*parser.MarkdownParser", false},
		{"a.MARKDOWN", "*parser.MarkdownParser", false},
		{"a.htm", "*parser.HTMLParser", false},
		{"a.txt", "*parser.TextParser", false},
		{"a.csv", "*parser.CSVParser", false},
		{"a.pdf", "*parser.PDFParser", false},
		{"a.docx", "*parser.DOCXParser", false},
		{"a.exe", "", true},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got := typeName(p); got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}

	p, _ := ForFile("x.pdf", Options{PDFFallbackPdftotext: true})
	if !p.(*PDFParser).FallbackPdftotext {
		t.Errorf("expected pdftotext fallback to be enabled")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *MarkdownParser:
		return "*parser.MarkdownParser"
	case *HTMLParser:
		return "*parser.HTMLParser"
	case *TextParser:
		return "*parser.TextParser"
	case *CSVParser:
		return "*parser.CSVParser"
	case *PDFParser:
		return "*parser.PDFParser"
	case *DOCXParser:
		return "*parser.DOCXParser"
	}
	return "unknown"
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.md")
	if err := os.WriteFile(path, []byte("## Rules\n\n- one\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree.Section("Rules"); !ok {
		t.Errorf("expected Rules section")
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestPagesToTree(t *testing.T) {
	tree, err := pagesToTree("page one\f\fpage three", "scan.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sectionTitles(tree.Sections()); len(got) != 2 || got[0] != "Page 1" || got[1] != "Page 3" {
		t.Errorf("unexpected sections %v", got)
	}
}

func TestDocxStyles(t *testing.T) {
	levels := map[string]int{"Heading1": 1, "heading 3": 3, "Title": 1, "Heading9": 0, "Normal": 0, "Heading": 0}
	for style, want := range levels {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
	if !docxIsList("List Paragraph") || !docxIsList("ListNumber") || docxIsList("Normal") {
		t.Errorf("unexpected list style detection")
	}
}
