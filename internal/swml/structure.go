package swml

import (
	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/render"
)

// ContentKey holds a slot's content inside its block.
const ContentKey = "content"

// Structure returns the logical document as normalized values, keys in
// first-insertion order. It does not modify the document.
func (d *Document) Structure() (*ordered.Map, error) {
	out := ordered.New()
	for _, key := range d.order {
		raw, ok := d.raw(key)
		if !ok {
			continue
		}
		v, err := render.Normalize(key, raw)
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
	}
	return out, nil
}

// Render serializes the logical document.
func (d *Document) Render(f render.Format, opts ...render.Option) ([]byte, error) {
	m, err := d.Structure()
	if err != nil {
		return nil, err
	}
	return render.Encode(m, f, opts...)
}

func (d *Document) raw(key string) (any, bool) {
	switch key {
	case KeyVersion:
		return d.version, true
	case KeyApplications:
		return d.applicationsValue(), true
	case KeySwaigDefaults:
		return mapOrEmpty(d.swaigDefaults), true
	case KeyInclude:
		if d.include == nil {
			return nil, false
		}
		return ordered.Of("url", d.include.URL, "capabilities", stringList(d.include.Capabilities)), true
	case KeyLanguage:
		list := make([]any, 0, len(d.languages))
		for _, l := range d.languages {
			list = append(list, ordered.Of("code", l.Code, "name", l.Name, "voice", l.Voice))
		}
		return list, true
	case KeyParams:
		return mapOrEmpty(d.params), true
	case KeyPostPromptURL:
		return d.postPromptURL, true
	case KeyActivate:
		return d.activate, true
	}
	if b, ok := d.blocks[Slot(key)]; ok {
		return blockValue(b, ContentKey), true
	}
	return d.extras.Get(key)
}

func (d *Document) applicationsValue() *ordered.Map {
	apps := ordered.New()
	for _, section := range d.sections {
		list := make([]any, 0, len(d.actions[section]))
		for _, a := range d.actions[section] {
			list = append(list, ordered.Of("kind", a.Kind, "options", mapOrEmpty(a.Options)))
		}
		apps.Set(section, list)
	}
	return apps
}

// blockValue lays out a content block: phase params in insertion order, then
// the content under contentKey.
func blockValue(b *contentBlock, contentKey string) *ordered.Map {
	out := ordered.New()
	for _, p := range b.params.Pairs() {
		if p.Key == contentKey {
			continue
		}
		out.Set(p.Key, p.Value)
	}
	if b.hasValue {
		out.Set(contentKey, b.value)
	}
	return out
}

func mapOrEmpty(m *ordered.Map) *ordered.Map {
	if m == nil {
		return ordered.New()
	}
	return m
}

func stringList(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
