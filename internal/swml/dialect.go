package swml

import (
	"errors"
	"fmt"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/render"
)

// ErrUnknownSection is wrapped when the activation names a section with no actions.
var ErrUnknownSection = errors.New("activated section has no applications")

// VerbAI is the verb appended to the activated section.
const VerbAI = "ai"

// Dialect selects the shape a document is rendered in.
type Dialect string

const (
	// Logical is the builder's own top-level layout.
	Logical Dialect = "logical"
	// Wire is the SWML layout a SignalWire runtime executes.
	Wire Dialect = "swml"
)

// ParseDialect accepts "logical" or "swml"; empty means Logical.
func ParseDialect(s string) (Dialect, error) {
	switch Dialect(s) {
	case "", Logical:
		return Logical, nil
	case Wire:
		return Wire, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", s)
}

// SWML projects the document onto the SWML wire layout:
//
//	{version, sections: {name: [{verb: params}, ..., {ai: {...}}]}}
//
// The ai verb is appended to the activated section and carries the SWAIG
// settings, languages, params, content slots and passthrough keys in the
// order they were first set.
func (d *Document) SWML() (*ordered.Map, error) {
	sections := ordered.New()
	for _, name := range d.sections {
		list := make([]any, 0, len(d.actions[name])+1)
		for _, a := range d.actions[name] {
			list = append(list, ordered.Of(a.Kind, mapOrEmpty(a.Options)))
		}
		sections.Set(name, list)
	}

	if d.activate != "" {
		if len(d.actions[d.activate]) == 0 {
			return nil, &render.Error{
				Key:  KeyActivate,
				Path: "$." + KeyActivate,
				Err:  fmt.Errorf("%w: %q", ErrUnknownSection, d.activate),
			}
		}
		ai, err := d.aiVerb()
		if err != nil {
			return nil, err
		}
		list, _ := sections.Get(d.activate)
		sections.Set(d.activate, append(list.([]any), ordered.Of(VerbAI, ai)))
	}

	out := ordered.New().Set(KeyVersion, d.version).Set("sections", sections)
	norm := ordered.New()
	for _, p := range out.Pairs() {
		v, err := render.Normalize(p.Key, p.Value)
		if err != nil {
			return nil, err
		}
		norm.Set(p.Key, v)
	}
	return norm, nil
}

// RenderSWML serializes the SWML wire layout.
func (d *Document) RenderSWML(f render.Format, opts ...render.Option) ([]byte, error) {
	m, err := d.SWML()
	if err != nil {
		return nil, err
	}
	return render.Encode(m, f, opts...)
}

// RenderAs serializes the document in the given dialect.
func (d *Document) RenderAs(dialect Dialect, f render.Format, opts ...render.Option) ([]byte, error) {
	if dialect == Wire {
		return d.RenderSWML(f, opts...)
	}
	return d.Render(f, opts...)
}

func (d *Document) aiVerb() (*ordered.Map, error) {
	ai := ordered.New()
	var swaig *ordered.Map
	for _, key := range d.order {
		switch key {
		case KeyVersion, KeyApplications, KeyActivate:
		case KeySwaigDefaults, KeyInclude:
			if swaig == nil {
				swaig = ordered.New()
				ai.Set("SWAIG", swaig)
			}
			if key == KeySwaigDefaults {
				swaig.Set("defaults", mapOrEmpty(d.swaigDefaults))
			} else {
				swaig.Set("includes", []any{ordered.Of(
					"url", d.include.URL,
					"functions", stringList(d.include.Capabilities),
				)})
			}
		case KeyLanguage:
			raw, _ := d.raw(key)
			ai.Set("languages", raw)
		default:
			if b, ok := d.blocks[Slot(key)]; ok {
				v, err := wireBlock(key, b)
				if err != nil {
					return nil, err
				}
				ai.Set(key, v)
				continue
			}
			raw, ok := d.raw(key)
			if ok {
				ai.Set(key, raw)
			}
		}
	}
	return ai, nil
}

// wireBlock renders tree content under "pom" and anything else under "text".
func wireBlock(key string, b *contentBlock) (*ordered.Map, error) {
	content, err := render.Normalize(key, b.value)
	if err != nil {
		return nil, err
	}
	contentKey := "text"
	if _, isTree := content.([]any); isTree {
		contentKey = "pom"
	}
	return blockValue(&contentBlock{params: b.params, value: content, hasValue: b.hasValue}, contentKey), nil
}
