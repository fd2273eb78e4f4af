// Package swml builds SWML documents: versioned application sections, AI
// runtime settings and prompt content assembled through typed setters, with
// unknown top-level keys carried through verbatim.
//
// A Document is one build session. It is not safe for concurrent mutation.
package swml

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/pom"
)

// DefaultVersion is used when New is called with an empty version.
const DefaultVersion = "1.0.0"

// Recognized top-level keys.
const (
	KeyVersion       = "version"
	KeyApplications  = "applications"
	KeySwaigDefaults = "swaig_defaults"
	KeyInclude       = "include"
	KeyLanguage      = "language"
	KeyParams        = "params"
	KeyPrompt        = "prompt"
	KeyPostPrompt    = "post_prompt"
	KeyPostPromptURL = "post_prompt_url"
	KeyActivate      = "activate"
)

var reservedKeys = map[string]bool{
	KeyVersion: true, KeyApplications: true, KeySwaigDefaults: true, KeyInclude: true,
	KeyLanguage: true, KeyParams: true, KeyPrompt: true, KeyPostPrompt: true,
	KeyPostPromptURL: true, KeyActivate: true,
}

// IsReserved reports whether key is one of the recognized top-level keys.
func IsReserved(key string) bool {
	return reservedKeys[key]
}

// ErrReservedKey is returned when a passthrough or slot name collides with a
// key the document manages itself.
var ErrReservedKey = errors.New("reserved key")

// Slot names a content block.
type Slot string

const (
	SlotPrompt     Slot = KeyPrompt
	SlotPostPrompt Slot = KeyPostPrompt
)

// Action is one step of an application section.
type Action struct {
	Kind    string
	Options *ordered.Map
}

// Include references a remote capability set by URL.
type Include struct {
	URL          string
	Capabilities []string
}

// Language is a language/voice entry, keyed by Code.
type Language struct {
	Code  string
	Name  string
	Voice string
}

type contentBlock struct {
	params   *ordered.Map
	value    any
	hasValue bool
}

func (b *contentBlock) empty() bool {
	return b.params == nil && !b.hasValue
}

// Document is the top-level SWML configuration object.
type Document struct {
	order []string // top-level keys in first-insertion order

	version       string
	sections      []string
	actions       map[string][]Action
	swaigDefaults *ordered.Map
	include       *Include
	languages     []Language
	params        *ordered.Map
	blocks        map[Slot]*contentBlock
	postPromptURL string
	activate      string
	extras        *ordered.Map
}

// New returns a document with the given version (DefaultVersion when empty).
func New(version string) *Document {
	if version == "" {
		version = DefaultVersion
	}
	d := &Document{
		actions: make(map[string][]Action),
		blocks:  make(map[Slot]*contentBlock),
		extras:  ordered.New(),
	}
	d.SetVersion(version)
	return d
}

func (d *Document) touch(key string) {
	if !slices.Contains(d.order, key) {
		d.order = append(d.order, key)
	}
}

func (d *Document) forget(key string) {
	if i := slices.Index(d.order, key); i >= 0 {
		d.order = slices.Delete(d.order, i, i+1)
	}
}

// SetVersion replaces the version marker.
func (d *Document) SetVersion(version string) {
	d.version = version
	d.touch(KeyVersion)
}

// AddApplication appends an action to the named section, creating the section
// on first use. Calls are kept in order and never deduplicated. A nil options
// map renders as an empty mapping.
func (d *Document) AddApplication(section, kind string, options *ordered.Map) {
	if _, ok := d.actions[section]; !ok {
		d.sections = append(d.sections, section)
	}
	d.actions[section] = append(d.actions[section], Action{Kind: kind, Options: options})
	d.touch(KeyApplications)
}

// SetSwaigDefaults replaces the default SWAIG function settings.
func (d *Document) SetSwaigDefaults(defaults *ordered.Map) {
	d.swaigDefaults = defaults
	d.touch(KeySwaigDefaults)
}

// SetInclude registers the include set, replacing any earlier one.
// Capability names are stored as given.
func (d *Document) SetInclude(url string, capabilities []string) {
	d.include = &Include{URL: url, Capabilities: slices.Clone(capabilities)}
	d.touch(KeyInclude)
}

// SetLanguage upserts a language entry by code. An existing entry keeps its position.
func (d *Document) SetLanguage(code, name, voice string) {
	entry := Language{Code: code, Name: name, Voice: voice}
	d.touch(KeyLanguage)
	for i := range d.languages {
		if d.languages[i].Code == code {
			d.languages[i] = entry
			return
		}
	}
	d.languages = append(d.languages, entry)
}

// SetRuntimeParams replaces the whole runtime parameter block.
func (d *Document) SetRuntimeParams(params *ordered.Map) {
	d.params = params
	d.touch(KeyParams)
}

func (d *Document) checkSlot(slot Slot) error {
	name := string(slot)
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("content slot name is empty")
	}
	if slot == SlotPrompt || slot == SlotPostPrompt {
		return nil
	}
	if IsReserved(name) {
		return fmt.Errorf("%w: %q cannot be used as a content slot", ErrReservedKey, name)
	}
	if d.extras.Has(name) {
		return fmt.Errorf("%w: %q is already a passthrough key", ErrReservedKey, name)
	}
	return nil
}

func (d *Document) block(slot Slot) *contentBlock {
	b, ok := d.blocks[slot]
	if !ok {
		b = &contentBlock{}
		d.blocks[slot] = b
	}
	return b
}

func (d *Document) settle(slot Slot) {
	if b := d.blocks[slot]; b != nil && b.empty() {
		delete(d.blocks, slot)
		d.forget(string(slot))
		return
	}
	d.touch(string(slot))
}

// SetContentBlock binds content to a slot. A *pom.Tree is snapshotted through
// ToStructure, so later tree mutations are not seen. Any other value is stored
// unchanged. nil clears the content.
func (d *Document) SetContentBlock(slot Slot, value any) error {
	if err := d.checkSlot(slot); err != nil {
		return err
	}
	b := d.block(slot)
	switch v := value.(type) {
	case nil:
		b.value, b.hasValue = nil, false
	case *pom.Tree:
		if v == nil {
			b.value, b.hasValue = nil, false
			break
		}
		b.value, b.hasValue = v.ToStructure(), true
	default:
		b.value, b.hasValue = value, true
	}
	d.settle(slot)
	return nil
}

// SetPhaseParams replaces the options (temperature, top_p, ...) of a slot.
func (d *Document) SetPhaseParams(slot Slot, params *ordered.Map) error {
	if err := d.checkSlot(slot); err != nil {
		return err
	}
	d.block(slot).params = params
	d.settle(slot)
	return nil
}

// SetPostPromptURL sets where the post-prompt summary is delivered.
func (d *Document) SetPostPromptURL(url string) {
	d.postPromptURL = url
	d.touch(KeyPostPromptURL)
}

// Activate names the application section that hosts the AI configuration.
// The name is not checked here; a section that never received actions is
// reported when the document is projected or validated.
func (d *Document) Activate(section string) {
	d.activate = section
	d.touch(KeyActivate)
}

// Set stores an unrecognized top-level key verbatim.
func (d *Document) Set(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("passthrough key is empty")
	}
	if IsReserved(key) {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	if _, ok := d.blocks[Slot(key)]; ok {
		return fmt.Errorf("%w: %q is a content slot", ErrReservedKey, key)
	}
	d.extras.Set(key, value)
	d.touch(key)
	return nil
}

// Version returns the version marker.
func (d *Document) Version() string { return d.version }

// Sections returns application section names in first-insertion order.
func (d *Document) Sections() []string { return slices.Clone(d.sections) }

// Applications returns the actions of a section.
func (d *Document) Applications(section string) []Action {
	return slices.Clone(d.actions[section])
}

// Include returns the include set, if any.
func (d *Document) Include() (Include, bool) {
	if d.include == nil {
		return Include{}, false
	}
	inc := *d.include
	inc.Capabilities = slices.Clone(inc.Capabilities)
	return inc, true
}

// Languages returns the language entries in order.
func (d *Document) Languages() []Language { return slices.Clone(d.languages) }

// SwaigDefaults returns the SWAIG defaults block.
func (d *Document) SwaigDefaults() *ordered.Map { return d.swaigDefaults }

// RuntimeParams returns the runtime parameter block.
func (d *Document) RuntimeParams() *ordered.Map { return d.params }

// ContentBlock returns the content bound to slot.
func (d *Document) ContentBlock(slot Slot) (any, bool) {
	b, ok := d.blocks[slot]
	if !ok || !b.hasValue {
		return nil, false
	}
	return b.value, true
}

// PhaseParams returns the options of slot.
func (d *Document) PhaseParams(slot Slot) *ordered.Map {
	if b, ok := d.blocks[slot]; ok {
		return b.params
	}
	return nil
}

// PostPromptURL returns the post-prompt delivery URL.
func (d *Document) PostPromptURL() string { return d.postPromptURL }

// Activation returns the activated section name.
func (d *Document) Activation() string { return d.activate }

// Extra returns a passthrough value.
func (d *Document) Extra(key string) (any, bool) { return d.extras.Get(key) }

// Keys returns the top-level keys in render order.
func (d *Document) Keys() []string { return slices.Clone(d.order) }
