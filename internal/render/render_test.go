package render

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleDoc() *ordered.Map {
	return ordered.Of(
		"version", "1.0.0",
		"zeta", ordered.Of("b", 1, "a", 2.5),
		"alpha", []any{"x", ordered.Of("url", "https://x/y?a=1&b=2")},
		"plain", map[string]any{"z": true, "a": nil},
	)
}

func TestEncode_JSONOrder(t *testing.T) {
	out, err := Encode(sampleDoc(), JSON)
	require.NoError(t, err)
	assert.Equal(t,
		`{"version":"1.0.0","zeta":{"b":1,"a":2.5},"alpha":["x",{"url":"https://x/y?a=1&b=2"}],"plain":{"a":null,"z":true}}`,
		string(out))
}

func TestEncode_JSONIndent(t *testing.T) {
	out, err := Encode(ordered.Of("a", 1, "b", []any{}), JSON, WithIndent("  "))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1,\n  \"b\": []\n}\n", string(out))
}

func TestEncode_YAMLOrder(t *testing.T) {
	out, err := Encode(sampleDoc(), YAML)
	require.NoError(t, err)
	text := string(out)

	assert.True(t, strings.HasPrefix(text, "version: 1.0.0\n"))
	last := -1
	for _, line := range []string{"zeta:", "b: 1", "a: 2.5", "alpha:", "- x", "url: https://x/y?a=1&b=2", "plain:", "a: null", "z: true"} {
		idx := strings.Index(text[last+1:], line)
		require.GreaterOrEqual(t, idx, 0, "missing %q in\n%s", line, text)
		last += idx + 1
	}
	assert.NotContains(t, text, "\t")
}

func TestEncode_FormatsAgree(t *testing.T) {
	doc := sampleDoc()
	j, err := Encode(doc, JSON)
	require.NoError(t, err)
	y, err := Encode(doc, YAML)
	require.NoError(t, err)

	fromJSON, err := ordered.Decode(j)
	require.NoError(t, err)
	fromYAML, err := ordered.Decode(y)
	require.NoError(t, err)

	a, _ := json.Marshal(fromJSON)
	b, _ := json.Marshal(fromYAML)
	assert.Equal(t, string(a), string(b))
}

func TestEncode_Idempotent(t *testing.T) {
	doc := sampleDoc()
	for _, f := range []Format{JSON, YAML} {
		first, err := Encode(doc, f)
		require.NoError(t, err)
		second, err := Encode(doc, f)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second), f)
	}
}

func TestEncode_YAMLQuotesAmbiguousStrings(t *testing.T) {
	out, err := Encode(ordered.Of("flag", "true", "num", "1.0"), YAML)
	require.NoError(t, err)

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, "true", back["flag"])
	assert.Equal(t, "1.0", back["num"])
}

func TestEncode_UnknownFormat(t *testing.T) {
	_, err := Encode(ordered.New(), Format("toml"))
	assert.Error(t, err)
}

func TestNormalize_Types(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	type opts struct {
		Format string `json:"format"`
		Stereo bool   `json:"stereo"`
	}
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"int", 3, int64(3)},
		{"int32", int32(4), int64(4)},
		{"uint8", uint8(5), int64(5)},
		{"float32", float32(0.5), 0.5},
		{"time", ts, "2024-05-01T12:00:00Z"},
		{"number", json.Number("1.50"), json.Number("1.50")},
		{"string slice", []string{"a", "b"}, []any{"a", "b"}},
		{"nil slice", []string(nil), []any{}},
		{"nil ptr", (*int)(nil), nil},
		{"struct", opts{Format: "wav", Stereo: true}, ordered.Of("format", "wav", "stereo", true)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize("k", tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

type fakeTree struct{}

func (fakeTree) ToStructure() []any {
	return []any{ordered.Of("title", "T")}
}

func TestNormalize_Structurer(t *testing.T) {
	got, err := Normalize("prompt", fakeTree{})
	require.NoError(t, err)
	assert.Equal(t, []any{ordered.Of("title", "T")}, got)
}

func TestNormalize_Errors(t *testing.T) {
	cyclicMap := map[string]any{}
	cyclicMap["self"] = cyclicMap

	cyclicOrdered := ordered.New()
	cyclicOrdered.Set("inner", ordered.Of("back", cyclicOrdered))

	cyclicSlice := make([]any, 1)
	cyclicSlice[0] = cyclicSlice

	cases := []struct {
		name     string
		in       any
		path     string
		sentinel error
	}{
		{"func", ordered.Of("cb", func() {}), "$.params.cb", ErrUnsupportedValue},
		{"chan", []any{1, make(chan int)}, "$.params[1]", ErrUnsupportedValue},
		{"complex", complex(1, 2), "$.params", ErrUnsupportedValue},
		{"nan", math.NaN(), "$.params", ErrUnsupportedValue},
		{"inf", ordered.Of("t", math.Inf(1)), "$.params.t", ErrUnsupportedValue},
		{"int keys", map[int]string{1: "a"}, "$.params", ErrUnsupportedValue},
		{"cyclic map", cyclicMap, "$.params.self", ErrCycle},
		{"cyclic ordered", cyclicOrdered, "$.params.inner.back", ErrCycle},
		{"cyclic slice", cyclicSlice, "$.params[0]", ErrCycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize("params", tc.in)
			var re *Error
			require.True(t, errors.As(err, &re), "got %v", err)
			assert.Equal(t, "params", re.Key)
			assert.Equal(t, tc.path, re.Path)
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestNormalize_SharedValueIsNotACycle(t *testing.T) {
	shared := ordered.Of("x", 1)
	_, err := Normalize("k", []any{shared, shared})
	assert.NoError(t, err)
}

func TestEncode_ReportsTopLevelKey(t *testing.T) {
	_, err := Encode(ordered.Of("version", "1", "params", ordered.Of("bad", func() {})), JSON)
	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "params", re.Key)
	assert.Contains(t, err.Error(), "$.params.bad")
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "$.a", JoinPath("$", "a"))
	assert.Equal(t, "$['en-US']", JoinPath("$", "en-US"))
	assert.Equal(t, `$['it\'s']`, JoinPath("$", "it's"))
	assert.Equal(t, `$.a['x\\y']`, JoinPath("$.a", `x\y`))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, YAML, f)
	assert.Equal(t, "application/yaml", f.ContentType())
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}
