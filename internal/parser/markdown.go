package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*pom.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	b := newTreeBuilder(filename)
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if err := b.heading(node.Level, extractText(node, src)); err != nil {
				return nil, err
			}
		case *ast.List:
			if err := b.bullets(node.IsOrdered(), listEntries(node, src)...); err != nil {
				return nil, err
			}
		case *ast.ThematicBreak:
		default:
			b.paragraph(extractText(n, src))
		}
	}
	return b.finish(), nil
}

// listEntries converts a list into bullets. A nested list becomes a group
// that follows the item it is attached to.
func listEntries(list *ast.List, src []byte) []pom.Bullet {
	var out []pom.Bullet
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		var nested []pom.Bullet
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, pom.Group(listEntries(sub, src)...))
				continue
			}
			if t := extractText(c, src); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			out = append(out, pom.Item(strings.Join(parts, "\n")))
		}
		out = append(out, nested...)
	}
	return out
}

// extractText returns the source text of a block. Inline markup such as
// **bold** is kept as written.
func extractText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock && n.Lines().Len() > 0 {
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if c.Type() != ast.TypeBlock {
			continue
		}
		if t := extractText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
