package parser

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
)

// treeBuilder turns a flat stream of headings, paragraphs and bullets into a
// section tree. Headings nest by level. Content that appears before the first
// heading goes into a section named after the file.
type treeBuilder struct {
	tree     *pom.Tree
	fallback string
	stack    []frame
	text     strings.Builder
}

type frame struct {
	sec   pom.Section
	level int
}

func newTreeBuilder(filename string) *treeBuilder {
	return &treeBuilder{tree: pom.New(), fallback: stem(filename)}
}

// stem returns the file name without directory or extension.
func stem(filename string) string {
	base := filepath.Base(filename)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.TrimSpace(name) == "" {
		return "Document"
	}
	return name
}

// heading opens a section at level, closing any open sections at the same or
// a deeper level. Repeated titles under the same parent merge.
func (b *treeBuilder) heading(level int, title string, opts ...pom.SectionOption) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}
	b.flushText()

	for len(b.stack) > 0 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}

	var sec pom.Section
	var err error
	if len(b.stack) == 0 {
		sec, err = b.tree.AddSection(title, opts...)
	} else {
		sec, err = b.stack[len(b.stack)-1].sec.AddSubsection(title, opts...)
	}
	if err != nil {
		return err
	}
	b.stack = append(b.stack, frame{sec: sec, level: level})
	return nil
}

// paragraph queues body text for the current section.
func (b *treeBuilder) paragraph(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

// bullets appends entries to the current section.
func (b *treeBuilder) bullets(numbered bool, entries ...pom.Bullet) error {
	if len(entries) == 0 {
		return nil
	}
	b.flushText()
	sec, err := b.current()
	if err != nil {
		return err
	}
	if numbered {
		sec.Apply(pom.WithNumberedBullets(true))
	}
	sec.AddBullets(entries...)
	return nil
}

func (b *treeBuilder) current() (pom.Section, error) {
	if len(b.stack) > 0 {
		return b.stack[len(b.stack)-1].sec, nil
	}
	sec, err := b.tree.AddSection(b.fallback)
	if err != nil {
		return pom.Section{}, err
	}
	// The preamble closes at the first heading of any level.
	b.stack = append(b.stack, frame{sec: sec, level: math.MaxInt})
	return sec, nil
}

func (b *treeBuilder) flushText() {
	t := strings.TrimSpace(b.text.String())
	b.text.Reset()
	if t == "" {
		return
	}
	sec, err := b.current()
	if err != nil {
		return
	}
	if body, ok := sec.Body(); ok && body != "" {
		t = body + "\n\n" + t
	}
	sec.SetBody(t)
}

func (b *treeBuilder) finish() *pom.Tree {
	b.flushText()
	return b.tree
}
