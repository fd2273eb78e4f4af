package parser

import (
	"fmt"
	"strings"
	"testing"
)

func TestCSVParser_RowsBecomeBullets(t *testing.T) {
	input := "function,params\nsearch_movie,query\nget_movie_details,movie_id\n"
	p := &CSVParser{}
	tree, err := p.Parse(strings.NewReader(input), "functions.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sec, ok := tree.Section("Rows 2-3")
	if !ok {
		t.Fatalf("expected section %q, got %v", "Rows 2-3", sectionTitles(tree.Sections()))
	}
	if body, _ := sec.Body(); body != "Columns: function, params" {
		t.Errorf("unexpected body %q", body)
	}
	b := sec.Bullets()
	if len(b) != 2 || b[0].Text != "function: search_movie, params: query" {
		t.Errorf("unexpected bullets %+v", b)
	}
}

func TestCSVParser_Batches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 45; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	p := &CSVParser{}
	tree, err := p.Parse(strings.NewReader(sb.String()), "n.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Rows 2-21|Rows 22-41|Rows 42-46"
	if got := strings.Join(sectionTitles(tree.Sections()), "|"); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestCSVParser_HeaderOnlyAndEmpty(t *testing.T) {
	p := &CSVParser{}
	tree, err := p.Parse(strings.NewReader("a,b\n"), "cols.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree.Section("cols"); !ok {
		t.Errorf("expected a section named after the file")
	}

	tree, err = p.Parse(strings.NewReader(""), "none.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Len() != 0 {
		t.Errorf("expected empty tree, got %d sections", tree.Len())
	}
}
