// Package schema validates rendered documents against a JSON Schema.
//
// Validation outcomes are data: a Result is always returned, with a status of
// skipped (no schema available), passed or failed. Only a schema that exists
// but cannot be loaded is reported as an error.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgallion1/swmlgen/internal/logger"
	"github.com/dgallion1/swmlgen/internal/ordered"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/swml"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Status is the three-valued validation outcome.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Issue is one schema violation.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Result is the outcome of a validation call.
type Result struct {
	Status Status  `json:"status"`
	Errors []Issue `json:"errors,omitempty"`
	Schema string  `json:"schema,omitempty"`
}

// OK reports whether the instance was checked and satisfied the schema.
func (r Result) OK() bool { return r.Status == StatusPassed }

// SchemaLoadError reports a schema that exists but cannot be parsed or compiled.
type SchemaLoadError struct {
	Source string
	Err    error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("load schema %s: %v", e.Source, e.Err)
}

func (e *SchemaLoadError) Unwrap() error { return e.Err }

// Validator checks instances against schemas, sharing compiled schemas
// process-wide.
type Validator struct {
	log   *logger.Logger
	cache *cache
}

// NewValidator returns a validator that logs through log.
func NewValidator(log *logger.Logger) *Validator {
	if log == nil {
		log = logger.Nop()
	}
	return &Validator{log: log, cache: shared}
}

// Validate checks a JSON or YAML instance against the schema from src.
func (v *Validator) Validate(instance []byte, src Source) (Result, error) {
	sch, err := v.cache.get(src)
	if err != nil {
		if errors.Is(err, errNotFound) {
			v.log.Warn("schema not found, skipping validation", "schema", src.URL())
			return Result{Status: StatusSkipped, Schema: src.URL()}, nil
		}
		return Result{}, err
	}

	doc, err := decodeInstance(instance)
	if err != nil {
		return Result{}, fmt.Errorf("decode instance: %w", err)
	}

	res := Result{Status: StatusPassed, Schema: src.URL()}
	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return Result{}, fmt.Errorf("validate: %w", err)
		}
		res.Status = StatusFailed
		res.Errors = issues(ve)
	}
	v.log.Debug("validated", "schema", src.URL(), "status", res.Status, "issues", len(res.Errors))
	return res, nil
}

// ValidateDocument renders doc as JSON and validates it.
func (v *Validator) ValidateDocument(doc *swml.Document, src Source) (Result, error) {
	out, err := doc.Render(render.JSON)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(out, src)
}

// Check loads and compiles src without validating anything.
func (v *Validator) Check(src Source) error {
	_, err := v.cache.get(src)
	return err
}

// toJSON accepts JSON as is and converts YAML, keeping mapping order.
func toJSON(data []byte) ([]byte, error) {
	if json.Valid(data) {
		return data, nil
	}
	doc, err := ordered.Decode(data)
	if err != nil {
		return nil, err
	}
	norm, err := render.Normalize("", doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

func decodeInstance(data []byte) (any, error) {
	raw, err := toJSON(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

var quoted = regexp.MustCompile(`'([^']*)'`)

// issues flattens the validation tree into its leaf errors. A required
// failure naming several properties becomes one issue per property.
func issues(root *jsonschema.ValidationError) []Issue {
	var out []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(ve *jsonschema.ValidationError) {
		if len(ve.Causes) > 0 {
			for _, c := range ve.Causes {
				walk(c)
			}
			return
		}
		path := pointerToPath(ve.InstanceLocation)
		if strings.HasSuffix(ve.KeywordLocation, "/required") {
			if names := quoted.FindAllStringSubmatch(ve.Message, -1); len(names) > 0 {
				for _, n := range names {
					out = append(out, Issue{Path: render.JoinPath(path, n[1]), Message: "missing required property"})
				}
				return
			}
		}
		out = append(out, Issue{Path: path, Message: ve.Message})
	}
	walk(root)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// pointerToPath turns a JSON pointer ("/a/0/b") into a JSONPath ("$.a[0].b").
func pointerToPath(ptr string) string {
	path := "$"
	if ptr == "" {
		return path
	}
	for _, tok := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(tok); err == nil {
			path += "[" + tok + "]"
			continue
		}
		path = render.JoinPath(path, tok)
	}
	return path
}

type cache struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var shared = newCache()

func newCache() *cache {
	return &cache{entries: make(map[string]*entry)}
}

// get compiles src at most once per key. Failed loads are evicted so a schema
// that appears or gets fixed later is picked up.
func (c *cache) get(src Source) (*jsonschema.Schema, error) {
	key := src.Key()
	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.schema, e.err = compile(src)
	})
	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return e.schema, e.err
}

func compile(src Source) (*jsonschema.Schema, error) {
	data, err := src.Load()
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, err
		}
		return nil, &SchemaLoadError{Source: src.URL(), Err: err}
	}
	raw, err := toJSON(data)
	if err != nil {
		return nil, &SchemaLoadError{Source: src.URL(), Err: err}
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(src.URL(), bytes.NewReader(raw)); err != nil {
		return nil, &SchemaLoadError{Source: src.URL(), Err: err}
	}
	sch, err := c.Compile(src.URL())
	if err != nil {
		return nil, &SchemaLoadError{Source: src.URL(), Err: err}
	}
	return sch, nil
}
