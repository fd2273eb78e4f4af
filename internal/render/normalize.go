package render

import (
	"encoding"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/swmlgen/internal/ordered"
)

// Structurer is implemented by values that project themselves onto plain
// structures, such as a prompt tree.
type Structurer interface {
	ToStructure() []any
}

// Normalize converts v into nil, bool, string, int64, float64, json.Number,
// []any or *ordered.Map. Plain Go maps get their keys sorted. key names the
// top-level document field and is only used for error reporting.
func Normalize(key string, v any) (any, error) {
	n := normalizer{key: key, active: make(map[visit]bool)}
	return n.value(v, JoinPath("$", key))
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type normalizer struct {
	key    string
	active map[visit]bool
}

func (n *normalizer) fail(path string, err error) error {
	return &Error{Key: n.key, Path: path, Err: err}
}

func (n *normalizer) value(v any, path string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, string, int64, json.Number:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return n.float(x, path)
	case float32:
		return n.float(float64(x), path)
	case []byte:
		return base64.StdEncoding.EncodeToString(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case *ordered.Map:
		return n.orderedMap(x, path)
	case Structurer:
		if isNilPointer(x) {
			return nil, nil
		}
		return n.value(x.ToStructure(), path)
	case json.Marshaler:
		return n.marshaler(x, path)
	case encoding.TextMarshaler:
		b, err := x.MarshalText()
		if err != nil {
			return nil, n.fail(path, err)
		}
		return string(b), nil
	}
	return n.reflectValue(reflect.ValueOf(v), path)
}

func (n *normalizer) float(f float64, path string) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, n.fail(path, fmt.Errorf("%w: non-finite number %v", ErrUnsupportedValue, f))
	}
	return f, nil
}

func (n *normalizer) enter(rv reflect.Value, path string) (visit, error) {
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if n.active[key] {
		return key, n.fail(path, ErrCycle)
	}
	n.active[key] = true
	return key, nil
}

func (n *normalizer) orderedMap(m *ordered.Map, path string) (any, error) {
	if m == nil {
		return nil, nil
	}
	key, err := n.enter(reflect.ValueOf(m), path)
	if err != nil {
		return nil, err
	}
	defer delete(n.active, key)

	out := ordered.New()
	for _, p := range m.Pairs() {
		v, err := n.value(p.Value, JoinPath(path, p.Key))
		if err != nil {
			return nil, err
		}
		out.Set(p.Key, v)
	}
	return out, nil
}

func (n *normalizer) marshaler(m json.Marshaler, path string) (any, error) {
	if isNilPointer(m) {
		return nil, nil
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, n.fail(path, err)
	}
	decoded, err := ordered.Decode(b)
	if err != nil {
		return nil, n.fail(path, err)
	}
	return n.value(decoded, path)
}

func (n *normalizer) reflectValue(rv reflect.Value, path string) (any, error) {
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Int:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return json.Number(strconv.FormatUint(u, 10)), nil
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return n.float(rv.Float(), path)
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Kind() == reflect.Pointer {
			key, err := n.enter(rv, path)
			if err != nil {
				return nil, err
			}
			defer delete(n.active, key)
		}
		return n.value(rv.Elem().Interface(), path)
	case reflect.Slice:
		if rv.IsNil() {
			return []any{}, nil
		}
		key, err := n.enter(rv, path)
		if err != nil {
			return nil, err
		}
		defer delete(n.active, key)
		return n.list(rv, path)
	case reflect.Array:
		return n.list(rv, path)
	case reflect.Map:
		return n.plainMap(rv, path)
	case reflect.Struct:
		return n.structValue(rv, path)
	}
	return nil, n.fail(path, fmt.Errorf("%w: %s", ErrUnsupportedValue, rv.Type()))
}

func (n *normalizer) list(rv reflect.Value, path string) (any, error) {
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		v, err := n.value(rv.Index(i).Interface(), path+"["+strconv.Itoa(i)+"]")
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (n *normalizer) plainMap(rv reflect.Value, path string) (any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, n.fail(path, fmt.Errorf("%w: map key type %s", ErrUnsupportedValue, rv.Type().Key()))
	}
	if rv.IsNil() {
		return nil, nil
	}
	key, err := n.enter(rv, path)
	if err != nil {
		return nil, err
	}
	defer delete(n.active, key)

	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	out := ordered.New()
	for _, k := range keys {
		v, err := n.value(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface(), JoinPath(path, k))
		if err != nil {
			return nil, err
		}
		out.Set(k, v)
	}
	return out, nil
}

// structValue goes through encoding/json so struct tags are honored, then
// re-reads the result in field order.
func (n *normalizer) structValue(rv reflect.Value, path string) (any, error) {
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, n.fail(path, fmt.Errorf("%w: %v", ErrUnsupportedValue, err))
	}
	decoded, err := ordered.Decode(b)
	if err != nil {
		return nil, n.fail(path, err)
	}
	return n.value(decoded, path)
}

var simpleKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var bracketEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// pathKey formats a mapping key as a JSONPath segment. Keys in bracket
// notation have quotes and backslashes escaped.
func pathKey(k string) string {
	if simpleKey.MatchString(k) {
		return k
	}
	return "['" + bracketEscaper.Replace(k) + "']"
}

// JoinPath appends a key to a JSONPath.
func JoinPath(base, key string) string {
	seg := pathKey(key)
	if seg[0] == '[' {
		return base + seg
	}
	return base + "." + seg
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
