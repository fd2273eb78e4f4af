package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// errNotFound marks a schema source that does not exist.
var errNotFound = errors.New("schema not found")

// Source supplies schema bytes.
type Source interface {
	// Key identifies the source in the compiled schema cache.
	Key() string
	// URL is the resource location handed to the compiler; relative $refs resolve against it.
	URL() string
	// Load returns the raw schema document. A missing schema wraps errNotFound.
	Load() ([]byte, error)
}

// FileSource reads a schema from disk.
type FileSource struct {
	Path string
}

// NewFileSource returns a source for path.
func NewFileSource(path string) FileSource {
	return FileSource{Path: path}
}

func (s FileSource) abs() string {
	if p, err := filepath.Abs(s.Path); err == nil {
		return p
	}
	return s.Path
}

func (s FileSource) Key() string { return "file:" + s.abs() }

func (s FileSource) URL() string { return s.abs() }

func (s FileSource) Load() ([]byte, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errNotFound, s.Path)
		}
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", s.Path, err)
	}
	return data, nil
}

// BytesSource serves an in-memory schema, such as an uploaded or embedded one.
type BytesSource struct {
	Name string
	Data []byte
}

func (s BytesSource) Key() string {
	sum := sha256.Sum256(s.Data)
	return "bytes:" + s.Name + ":" + hex.EncodeToString(sum[:8])
}

func (s BytesSource) URL() string {
	if s.Name == "" {
		return "inline.schema.json"
	}
	return s.Name
}

func (s BytesSource) Load() ([]byte, error) {
	if len(s.Data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", errNotFound, s.URL())
	}
	return s.Data, nil
}
