package pom

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/swmlgen/internal/ordered"
)

// FromStructure rebuilds a tree from the shape produced by ToStructure.
// Sections may be *ordered.Map or map[string]any; unknown keys are rejected.
func FromStructure(sections []any) (*Tree, error) {
	t := New()
	for i, raw := range sections {
		if err := t.load(Section{}, raw, []string{"[" + strconv.Itoa(i) + "]"}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *Tree) load(parent Section, raw any, path []string) error {
	m, err := asMap(raw)
	if err != nil {
		return &InvalidContentError{Path: path, Reason: err.Error()}
	}

	titleVal, _ := m.Get("title")
	title, ok := titleVal.(string)
	if !ok {
		return &InvalidContentError{Path: path, Reason: "section title must be a string"}
	}

	var opts []SectionOption
	for _, p := range m.Pairs() {
		switch p.Key {
		case "title", "bullets", "subsections":
		case "body":
			s, ok := p.Value.(string)
			if !ok {
				return &InvalidContentError{Path: path, Reason: "body must be a string"}
			}
			opts = append(opts, WithBody(s))
		case "numbered", "numberedBullets":
			v, ok := p.Value.(bool)
			if !ok {
				return &InvalidContentError{Path: path, Reason: p.Key + " must be a boolean"}
			}
			if p.Key == "numbered" {
				opts = append(opts, WithNumbered(v))
			} else {
				opts = append(opts, WithNumberedBullets(v))
			}
		default:
			return &InvalidContentError{Path: path, Reason: fmt.Sprintf("unknown section key %q", p.Key)}
		}
	}

	var sec Section
	if parent.Valid() {
		sec, err = parent.AddSubsection(title, opts...)
	} else {
		sec, err = t.AddSection(title, opts...)
	}
	if err != nil {
		return err
	}
	path = sec.Path()

	if raw, ok := m.Get("bullets"); ok {
		list, ok := raw.([]any)
		if !ok {
			return &InvalidContentError{Path: path, Reason: "bullets must be a list"}
		}
		entries, err := loadBullets(list)
		if err != nil {
			return &InvalidContentError{Path: path, Reason: err.Error()}
		}
		sec.AddBullets(entries...)
	}

	if raw, ok := m.Get("subsections"); ok {
		list, ok := raw.([]any)
		if !ok {
			return &InvalidContentError{Path: path, Reason: "subsections must be a list"}
		}
		for _, c := range list {
			if err := t.load(sec, c, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadBullets(list []any) ([]Bullet, error) {
	out := make([]Bullet, 0, len(list))
	for _, v := range list {
		switch e := v.(type) {
		case string:
			out = append(out, Item(e))
		case []any:
			nested, err := loadBullets(e)
			if err != nil {
				return nil, err
			}
			out = append(out, Group(nested...))
		case nil:
			return nil, fmt.Errorf("bullet entries must not be null")
		default:
			// Scalars written unquoted in YAML (numbers, booleans) are kept as text.
			out = append(out, Item(fmt.Sprint(e)))
		}
	}
	return out, nil
}

func asMap(v any) (*ordered.Map, error) {
	switch m := v.(type) {
	case *ordered.Map:
		if m == nil {
			return nil, fmt.Errorf("section must be a mapping")
		}
		return m, nil
	case map[string]any:
		out := ordered.New()
		// Plain maps carry no order; only "title" ordering matters for loading.
		for _, k := range []string{"title", "body", "numbered", "numberedBullets", "bullets", "subsections"} {
			if val, ok := m[k]; ok {
				out.Set(k, val)
			}
		}
		for k, val := range m {
			if !out.Has(k) {
				out.Set(k, val)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("section must be a mapping, got %T", v)
}
