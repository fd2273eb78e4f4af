package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/swmlgen/internal/pom"
)

// TextParser handles plain text files. Each paragraph becomes a bullet of a
// single section named after the file.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*pom.Tree, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	b := newTreeBuilder(filename)
	for _, para := range paragraphs {
		if err := b.bullets(false, pom.Item(para)); err != nil {
			return nil, err
		}
	}
	return b.finish(), nil
}
