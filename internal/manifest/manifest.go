// Package manifest describes a document build as a YAML or JSON file and
// assembles it into a swml.Document.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/pom"
	"github.com/dgallion1/swmlgen/internal/swml"
	"gopkg.in/yaml.v3"
)

// ErrConflictingContent is returned when a content slot names more than one
// source.
var ErrConflictingContent = errors.New("content slot must use exactly one of sections, file or text")

// Manifest is the declarative input of a build.
type Manifest struct {
	Version       string        `yaml:"version"`
	Applications  []Application `yaml:"applications"`
	SwaigDefaults *ordered.Map  `yaml:"swaig_defaults"`
	Include       *Include      `yaml:"include"`
	Languages     []Language    `yaml:"languages"`
	Params        *ordered.Map  `yaml:"params"`
	Prompt        *Content      `yaml:"prompt"`
	PostPrompt    *Content      `yaml:"post_prompt"`
	PostPromptURL string        `yaml:"post_prompt_url"`
	Activate      string        `yaml:"activate"`
	Extra         *ordered.Map  `yaml:"extra"`

	// order is the top-level key order of the source; Build applies keys in
	// this order so the document keeps the manifest's layout.
	order []string
}

var defaultOrder = []string{
	"version", "applications", "swaig_defaults", "include", "languages", "params",
	"prompt", "post_prompt", "post_prompt_url", "activate", "extra",
}

// Application appends one action to a named section.
type Application struct {
	Section string       `yaml:"section"`
	Kind    string       `yaml:"kind"`
	Options *ordered.Map `yaml:"options"`
}

type Include struct {
	URL          string   `yaml:"url"`
	Capabilities []string `yaml:"capabilities"`
}

type Language struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Voice string `yaml:"voice"`
}

// Content fills a prompt slot. Sections is an inline section tree, File a
// document imported through the parser package, Text a plain string.
type Content struct {
	Params   *ordered.Map `yaml:"params"`
	Sections yaml.Node    `yaml:"sections"`
	File     string       `yaml:"file"`
	Text     string       `yaml:"text"`
}

// Load decodes a manifest. Unknown fields are rejected.
func Load(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode manifest: empty input")
		}
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	m.order = keyOrder(data)
	return &m, nil
}

// LoadFile reads and decodes the manifest at path.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Load(data)
}

func keyOrder(data []byte) []string {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil || len(root.Content) == 0 {
		return nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	var keys []string
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}
	return keys
}

func (m *Manifest) validate() error {
	for i, a := range m.Applications {
		if strings.TrimSpace(a.Section) == "" {
			return fmt.Errorf("applications[%d]: section is required", i)
		}
		if strings.TrimSpace(a.Kind) == "" {
			return fmt.Errorf("applications[%d]: kind is required", i)
		}
	}
	for i, l := range m.Languages {
		if strings.TrimSpace(l.Code) == "" {
			return fmt.Errorf("languages[%d]: code is required", i)
		}
	}
	for _, slot := range []struct {
		name string
		c    *Content
	}{{swml.KeyPrompt, m.Prompt}, {swml.KeyPostPrompt, m.PostPrompt}} {
		if slot.c != nil && slot.c.sources() > 1 {
			return fmt.Errorf("%s: %w", slot.name, ErrConflictingContent)
		}
	}
	return nil
}

// Files lists the content files the manifest imports, in slot order.
func (m *Manifest) Files() []string {
	var out []string
	for _, c := range []*Content{m.Prompt, m.PostPrompt} {
		if c != nil && c.File != "" {
			out = append(out, c.File)
		}
	}
	return out
}

func (c *Content) sources() int {
	n := 0
	if c.hasSections() {
		n++
	}
	if c.File != "" {
		n++
	}
	if c.Text != "" {
		n++
	}
	return n
}

// Build assembles the document. Relative content files resolve against
// baseDir.
func (m *Manifest) Build(baseDir string, opts ...parser.Options) (*swml.Document, error) {
	d := swml.New(m.Version)
	order := m.order
	if len(order) == 0 {
		order = defaultOrder
	}
	for _, key := range order {
		if err := m.apply(d, key, baseDir, opts); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (m *Manifest) apply(d *swml.Document, key, baseDir string, opts []parser.Options) error {
	switch key {
	case "applications":
		for _, a := range m.Applications {
			d.AddApplication(a.Section, a.Kind, a.Options)
		}
	case "swaig_defaults":
		if m.SwaigDefaults != nil {
			d.SetSwaigDefaults(m.SwaigDefaults)
		}
	case "include":
		if m.Include != nil {
			d.SetInclude(m.Include.URL, m.Include.Capabilities)
		}
	case "languages":
		for _, l := range m.Languages {
			d.SetLanguage(l.Code, l.Name, l.Voice)
		}
	case "params":
		if m.Params != nil {
			d.SetRuntimeParams(m.Params)
		}
	case "prompt":
		return m.fill(d, swml.SlotPrompt, m.Prompt, baseDir, opts)
	case "post_prompt":
		return m.fill(d, swml.SlotPostPrompt, m.PostPrompt, baseDir, opts)
	case "post_prompt_url":
		if m.PostPromptURL != "" {
			d.SetPostPromptURL(m.PostPromptURL)
		}
	case "activate":
		if m.Activate != "" {
			d.Activate(m.Activate)
		}
	case "extra":
		if m.Extra == nil {
			return nil
		}
		for _, p := range m.Extra.Pairs() {
			if err := d.Set(p.Key, p.Value); err != nil {
				return fmt.Errorf("extra: %w", err)
			}
		}
	}
	return nil
}

func (m *Manifest) fill(d *swml.Document, slot swml.Slot, c *Content, baseDir string, opts []parser.Options) error {
	if c == nil {
		return nil
	}
	if c.Params != nil {
		if err := d.SetPhaseParams(slot, c.Params); err != nil {
			return fmt.Errorf("%s: %w", slot, err)
		}
	}
	value, ok, err := c.value(baseDir, opts)
	if err != nil {
		return fmt.Errorf("%s: %w", slot, err)
	}
	if !ok {
		return nil
	}
	if err := d.SetContentBlock(slot, value); err != nil {
		return fmt.Errorf("%s: %w", slot, err)
	}
	return nil
}

func (c *Content) hasSections() bool {
	return c.Sections.Kind != 0 && c.Sections.Tag != "!!null"
}

// value resolves the single content source of c.
func (c *Content) value(baseDir string, opts []parser.Options) (any, bool, error) {
	switch {
	case c.sources() > 1:
		return nil, false, ErrConflictingContent
	case c.hasSections():
		raw, err := ordered.FromNode(&c.Sections)
		if err != nil {
			return nil, false, err
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, false, fmt.Errorf("sections must be a list, got %T", raw)
		}
		tree, err := pom.FromStructure(list)
		if err != nil {
			return nil, false, err
		}
		return tree, true, nil
	case c.File != "":
		path := c.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		tree, err := parser.ParseFile(path, opts...)
		if err != nil {
			return nil, false, fmt.Errorf("import %s: %w", c.File, err)
		}
		return tree, true, nil
	case c.Text != "":
		return c.Text, true, nil
	}
	return nil, false, nil
}
