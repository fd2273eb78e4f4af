package swml

import (
	"fmt"

	"github.com/dgallion1/swmlgen/internal/ordered"
)

// Parse decodes a rendered logical document (JSON or YAML) back into a
// Document. Recognized keys go through their setters, in source order, and
// everything else is kept as passthrough.
func Parse(data []byte) (*Document, error) {
	v, err := ordered.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	root, ok := v.(*ordered.Map)
	if !ok {
		return nil, fmt.Errorf("document must be a mapping, got %T", v)
	}

	d := New("")
	for _, p := range root.Pairs() {
		if err := d.load(p.Key, p.Value); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p.Key, err)
		}
	}
	return d, nil
}

func (d *Document) load(key string, v any) error {
	switch key {
	case KeyVersion:
		d.SetVersion(scalarString(v))
	case KeyApplications:
		apps, err := asMap(v)
		if err != nil {
			return err
		}
		if apps.Len() == 0 {
			d.touch(KeyApplications)
		}
		for _, sec := range apps.Pairs() {
			list, ok := sec.Value.([]any)
			if !ok {
				return fmt.Errorf("section %q must be a list", sec.Key)
			}
			for i, item := range list {
				m, err := asMap(item)
				if err != nil {
					return fmt.Errorf("section %q[%d]: %w", sec.Key, i, err)
				}
				kind, ok := stringField(m, "kind")
				if !ok {
					return fmt.Errorf("section %q[%d]: kind must be a string", sec.Key, i)
				}
				var opts *ordered.Map
				if raw, ok := m.Get("options"); ok && raw != nil {
					if opts, err = asMap(raw); err != nil {
						return fmt.Errorf("section %q[%d] options: %w", sec.Key, i, err)
					}
				}
				d.AddApplication(sec.Key, kind, opts)
			}
		}
	case KeySwaigDefaults, KeyParams:
		m, err := asMap(v)
		if err != nil {
			return err
		}
		if key == KeyParams {
			d.SetRuntimeParams(m)
		} else {
			d.SetSwaigDefaults(m)
		}
	case KeyInclude:
		m, err := asMap(v)
		if err != nil {
			return err
		}
		url, _ := stringField(m, "url")
		caps, err := stringSlice(m, "capabilities")
		if err != nil {
			return err
		}
		d.SetInclude(url, caps)
	case KeyLanguage:
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("must be a list")
		}
		if len(list) == 0 {
			d.touch(KeyLanguage)
		}
		for i, item := range list {
			m, err := asMap(item)
			if err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			code, _ := stringField(m, "code")
			name, _ := stringField(m, "name")
			voice, _ := stringField(m, "voice")
			d.SetLanguage(code, name, voice)
		}
	case KeyPrompt, KeyPostPrompt:
		m, err := asMap(v)
		if err != nil {
			return err
		}
		params := ordered.New()
		for _, p := range m.Pairs() {
			if p.Key != ContentKey {
				params.Set(p.Key, p.Value)
			}
		}
		slot := Slot(key)
		if err := d.SetPhaseParams(slot, params); err != nil {
			return err
		}
		if content, ok := m.Get(ContentKey); ok {
			if err := d.SetContentBlock(slot, content); err != nil {
				return err
			}
		}
	case KeyPostPromptURL:
		d.SetPostPromptURL(scalarString(v))
	case KeyActivate:
		d.Activate(scalarString(v))
	default:
		return d.Set(key, v)
	}
	return nil
}

func asMap(v any) (*ordered.Map, error) {
	if v == nil {
		return ordered.New(), nil
	}
	m, ok := v.(*ordered.Map)
	if !ok {
		return nil, fmt.Errorf("must be a mapping, got %T", v)
	}
	return m, nil
}

func stringField(m *ordered.Map, key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringSlice(m *ordered.Map, key string) ([]string, error) {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be a list", key)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must be strings", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// scalarString accepts YAML scalars that were written unquoted, such as a
// version of 1.0.
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	}
	return fmt.Sprint(v)
}
