package parser

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled. Each page becomes a section.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*pom.Tree, error) {
	// ledongthuc/pdf requires a file path, so spool to a temp file.
	tmp, _, cleanup, err := spool(r, "swmlgen-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	tmpPath := tmp.Name()

	text, err := extractPDFText(tmpPath)
	if err != nil && p.FallbackPdftotext {
		text, err = extractPdftotext(tmpPath)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pagesToTree(text, filename)
}

// pagesToTree splits form-feed separated page text into "Page N" sections.
func pagesToTree(text, filename string) (*pom.Tree, error) {
	tree := pom.New()
	for i, page := range strings.Split(text, "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if _, err := tree.AddSection(fmt.Sprintf("Page %d", i+1), pom.WithBody(page)); err != nil {
			return nil, err
		}
	}
	if tree.Len() == 0 && strings.TrimSpace(text) != "" {
		if _, err := tree.AddSection(stem(filename), pom.WithBody(strings.TrimSpace(text))); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if i > 1 {
			buf.WriteString("\f") // Form feed as page separator.
		}
		buf.WriteString(text)
	}
	return buf.String(), nil
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}
