// Package pom implements the prompt object model: an ordered tree of titled
// sections with optional body text, bullet lists and subsections.
//
// The tree owns a flat arena of nodes. A Section is a handle (tree, index) into
// that arena, so two handles for the same title always see the same node.
package pom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgallion1/swmlgen/internal/ordered"
)

// ErrInvalidContent is matched by every InvalidContentError.
var ErrInvalidContent = errors.New("invalid content")

// InvalidContentError reports a malformed section, such as an empty title.
type InvalidContentError struct {
	Path   []string // titles of the enclosing sections
	Reason string
}

func (e *InvalidContentError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("invalid content: %s", e.Reason)
	}
	return fmt.Sprintf("invalid content at %s: %s", strings.Join(e.Path, " > "), e.Reason)
}

func (e *InvalidContentError) Is(target error) bool {
	return target == ErrInvalidContent
}

// Tree is an ordered collection of top-level sections.
// It is not safe for concurrent mutation.
type Tree struct {
	nodes []node
	roots []int
}

type node struct {
	title           string
	body            string
	hasBody         bool
	numbered        *bool
	numberedBullets *bool
	bullets         []Bullet
	children        []int
	parent          int // -1 for top-level sections
}

// Section is a handle to a node owned by a Tree.
type Section struct {
	tree *Tree
	id   int
}

// SectionOption adjusts a section when it is created or looked up.
type SectionOption func(*node)

// WithBody sets the section body, replacing any existing one.
func WithBody(text string) SectionOption {
	return func(n *node) {
		n.body = text
		n.hasBody = true
	}
}

// WithNumbered marks the section as numbered when rendered as Markdown.
func WithNumbered(v bool) SectionOption {
	return func(n *node) { n.numbered = &v }
}

// WithNumberedBullets renders the section's bullets as an ordered list.
func WithNumberedBullets(v bool) SectionOption {
	return func(n *node) { n.numberedBullets = &v }
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// AddSection returns the top-level section with the given title, creating and
// appending it if it does not exist yet. Options are applied either way, so
// WithBody replaces an existing body while omitting it leaves the body alone.
func (t *Tree) AddSection(title string, opts ...SectionOption) (Section, error) {
	return t.getOrCreate(-1, title, opts)
}

// Section looks up a top-level section without creating it.
func (t *Tree) Section(title string) (Section, bool) {
	id, ok := t.find(t.roots, strings.TrimSpace(title))
	if !ok {
		return Section{}, false
	}
	return Section{tree: t, id: id}, true
}

// Sections returns handles to the top-level sections in insertion order.
func (t *Tree) Sections() []Section {
	return t.handles(t.roots)
}

// Len returns the number of top-level sections.
func (t *Tree) Len() int {
	return len(t.roots)
}

func (t *Tree) getOrCreate(parent int, title string, opts []SectionOption) (Section, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Section{}, &InvalidContentError{Path: t.path(parent), Reason: "section title is empty"}
	}

	siblings := t.roots
	if parent >= 0 {
		siblings = t.nodes[parent].children
	}
	id, ok := t.find(siblings, title)
	if !ok {
		// New nodes always land after their parent in the arena, which keeps the tree acyclic.
		id = len(t.nodes)
		t.nodes = append(t.nodes, node{title: title, parent: parent})
		if parent >= 0 {
			t.nodes[parent].children = append(t.nodes[parent].children, id)
		} else {
			t.roots = append(t.roots, id)
		}
	}
	for _, opt := range opts {
		opt(&t.nodes[id])
	}
	return Section{tree: t, id: id}, nil
}

func (t *Tree) find(ids []int, title string) (int, bool) {
	for _, id := range ids {
		if t.nodes[id].title == title {
			return id, true
		}
	}
	return 0, false
}

func (t *Tree) handles(ids []int) []Section {
	out := make([]Section, 0, len(ids))
	for _, id := range ids {
		out = append(out, Section{tree: t, id: id})
	}
	return out
}

func (t *Tree) path(id int) []string {
	var out []string
	for id >= 0 {
		out = append([]string{t.nodes[id].title}, out...)
		id = t.nodes[id].parent
	}
	return out
}

// Valid reports whether the handle points into a tree.
func (s Section) Valid() bool {
	return s.tree != nil && s.id >= 0 && s.id < len(s.tree.nodes)
}

func (s Section) node() *node {
	return &s.tree.nodes[s.id]
}

// Title returns the section title.
func (s Section) Title() string {
	if !s.Valid() {
		return ""
	}
	return s.node().title
}

// Path returns the titles from the top-level section down to this one.
func (s Section) Path() []string {
	if !s.Valid() {
		return nil
	}
	return s.tree.path(s.id)
}

// Body returns the body text and whether one was set.
func (s Section) Body() (string, bool) {
	if !s.Valid() {
		return "", false
	}
	n := s.node()
	return n.body, n.hasBody
}

// Apply runs options against the section, as AddSection does for an existing title.
func (s Section) Apply(opts ...SectionOption) {
	if !s.Valid() {
		return
	}
	for _, opt := range opts {
		opt(s.node())
	}
}

// SetBody replaces the body text.
func (s Section) SetBody(text string) {
	if !s.Valid() {
		return
	}
	WithBody(text)(s.node())
}

// AddBullets appends entries in call order. Duplicates are kept.
func (s Section) AddBullets(entries ...Bullet) {
	if !s.Valid() {
		return
	}
	n := s.node()
	for _, e := range entries {
		n.bullets = append(n.bullets, e.clone())
	}
}

// AddTextBullets appends plain text bullets.
func (s Section) AddTextBullets(texts ...string) {
	for _, text := range texts {
		s.AddBullets(Item(text))
	}
}

// Bullets returns a copy of the section's bullet entries.
func (s Section) Bullets() []Bullet {
	if !s.Valid() {
		return nil
	}
	return cloneBullets(s.node().bullets)
}

// AddSubsection is AddSection scoped to this section's children.
func (s Section) AddSubsection(title string, opts ...SectionOption) (Section, error) {
	if !s.Valid() {
		return Section{}, &InvalidContentError{Reason: "subsection added to a detached section"}
	}
	return s.tree.getOrCreate(s.id, title, opts)
}

// Subsection looks up a direct child by title.
func (s Section) Subsection(title string) (Section, bool) {
	if !s.Valid() {
		return Section{}, false
	}
	id, ok := s.tree.find(s.node().children, strings.TrimSpace(title))
	if !ok {
		return Section{}, false
	}
	return Section{tree: s.tree, id: id}, true
}

// Subsections returns the direct children in insertion order.
func (s Section) Subsections() []Section {
	if !s.Valid() {
		return nil
	}
	return s.tree.handles(s.node().children)
}

// ToStructure projects the tree onto plain values: a list of *ordered.Map, one
// per section, with keys title, body, numbered, numberedBullets, bullets and
// subsections (absent when unset or empty). It does not modify the tree.
func (t *Tree) ToStructure() []any {
	out := make([]any, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.structure(id))
	}
	return out
}

func (t *Tree) structure(id int) *ordered.Map {
	n := t.nodes[id]
	m := ordered.New().Set("title", n.title)
	if n.hasBody {
		m.Set("body", n.body)
	}
	if n.numbered != nil {
		m.Set("numbered", *n.numbered)
	}
	if n.numberedBullets != nil {
		m.Set("numberedBullets", *n.numberedBullets)
	}
	if len(n.bullets) > 0 {
		m.Set("bullets", bulletStructure(n.bullets))
	}
	if len(n.children) > 0 {
		subs := make([]any, 0, len(n.children))
		for _, c := range n.children {
			subs = append(subs, t.structure(c))
		}
		m.Set("subsections", subs)
	}
	return m
}
