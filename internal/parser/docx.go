package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles open sections, list styles
// become bullets and every other paragraph is body text.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*pom.Tree, error) {
	// go-docx needs a ReaderAt+size, so spool to a temp file.
	tmp, size, cleanup, err := spool(r, "swmlgen-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	doc, err := docx.Parse(tmp, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	b := newTreeBuilder(filename)
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}

		text := docxParagraphText(para)
		if text == "" {
			continue
		}
		style := docxStyle(para)
		switch level := docxHeadingLevel(style); {
		case level > 0:
			if err := b.heading(level, text); err != nil {
				return nil, err
			}
		case docxIsList(style):
			numbered := strings.Contains(strings.ToLower(style), "number")
			if err := b.bullets(numbered, pom.Item(text)); err != nil {
				return nil, err
			}
		default:
			b.paragraph(text)
		}
	}
	return b.finish(), nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if s == "title" {
		return 1
	}
	if !strings.HasPrefix(s, "heading") || len(s) != len("heading")+1 {
		return 0
	}
	level := int(s[len(s)-1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

func docxIsList(style string) bool {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	return strings.HasPrefix(s, "list")
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
