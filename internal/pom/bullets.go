package pom

// Bullet is one entry of a section's bullet list: either text or a nested group.
type Bullet struct {
	Text    string
	Entries []Bullet // non-nil for groups
}

// Item returns a text bullet.
func Item(text string) Bullet {
	return Bullet{Text: text}
}

// Group returns a nested bullet group. An empty group still renders as [].
func Group(entries ...Bullet) Bullet {
	b := Bullet{Entries: make([]Bullet, 0, len(entries))}
	for _, e := range entries {
		b.Entries = append(b.Entries, e.clone())
	}
	return b
}

// IsGroup reports whether the entry is a nested group.
func (b Bullet) IsGroup() bool {
	return b.Entries != nil
}

func (b Bullet) clone() Bullet {
	if !b.IsGroup() {
		return Bullet{Text: b.Text}
	}
	return Bullet{Entries: cloneBullets(b.Entries)}
}

func cloneBullets(in []Bullet) []Bullet {
	out := make([]Bullet, 0, len(in))
	for _, b := range in {
		out = append(out, b.clone())
	}
	return out
}

// bulletStructure renders text entries as strings and groups as nested lists.
func bulletStructure(in []Bullet) []any {
	out := make([]any, 0, len(in))
	for _, b := range in {
		if b.IsGroup() {
			out = append(out, bulletStructure(b.Entries))
			continue
		}
		out = append(out, b.Text)
	}
	return out
}
