package pom

import (
	"fmt"
	"strings"
)

// Markdown renders the tree as Markdown. Top-level sections are "##" headings,
// each subsection level adds one "#" (capped at six).
func (t *Tree) Markdown() string {
	var b strings.Builder
	num := 0
	for i, id := range t.roots {
		if i > 0 {
			b.WriteString("\n")
		}
		prefix := ""
		if n := t.nodes[id]; n.numbered != nil && *n.numbered {
			num++
			prefix = fmt.Sprintf("%d.", num)
		}
		t.writeMarkdown(&b, id, 2, prefix)
	}
	return b.String()
}

func (t *Tree) writeMarkdown(b *strings.Builder, id, level int, prefix string) {
	n := t.nodes[id]
	heading := min(level, 6)
	title := n.title
	if prefix != "" {
		title = prefix + " " + title
	}
	fmt.Fprintf(b, "%s %s\n", strings.Repeat("#", heading), title)

	if n.hasBody && strings.TrimSpace(n.body) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(n.body))
		b.WriteString("\n")
	}
	if len(n.bullets) > 0 {
		b.WriteString("\n")
		writeBullets(b, n.bullets, 0, n.numberedBullets != nil && *n.numberedBullets)
	}

	num := 0
	for _, c := range n.children {
		child := ""
		if cn := t.nodes[c]; cn.numbered != nil && *cn.numbered {
			num++
			child = fmt.Sprintf("%d.", num)
			if prefix != "" {
				child = prefix + child
			}
		}
		b.WriteString("\n")
		t.writeMarkdown(b, c, level+1, child)
	}
}

func writeBullets(b *strings.Builder, entries []Bullet, depth int, numbered bool) {
	indent := strings.Repeat("  ", depth)
	if numbered {
		indent = strings.Repeat("   ", depth)
	}
	num := 0
	for _, e := range entries {
		if e.IsGroup() {
			writeBullets(b, e.Entries, depth+1, numbered)
			continue
		}
		num++
		marker := "-"
		if numbered {
			marker = fmt.Sprintf("%d.", num)
		}
		fmt.Fprintf(b, "%s%s %s\n", indent, marker, e.Text)
	}
}
