package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/swmlgen/internal/manifest"
	"github.com/dgallion1/swmlgen/internal/parser"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/dgallion1/swmlgen/internal/swml"
)

// handleRender builds the manifest in the request body and writes the
// rendered document synchronously.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, ok := s.renderRequest(w, r)
	if !ok {
		return
	}

	out, err := s.orchestrator.Worker().Render(r.Context(), req, nil)
	if err != nil {
		var sle *schema.SchemaLoadError
		if errors.As(err, &sle) {
			s.log.Error("schema load failed", "schema", sle.Source, "error", sle.Err)
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	etag := strconv.Quote(out.ContentHash)
	w.Header().Set("ETag", etag)
	w.Header().Set("X-Validation-Status", string(out.Validation.Status))
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", out.Format.ContentType())
	w.Write(out.Document)
}

// renderRequest reads the manifest body and the format, dialect and pretty
// query parameters. Manifests sent over HTTP may not import files.
func (s *Server) renderRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	q := r.URL.Query()
	req, ok := s.queryOptions(w, q.Get("format"), q.Get("dialect"), q.Get("pretty"))
	if !ok {
		return pipeline.Request{}, false
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return pipeline.Request{}, false
	}
	m, err := manifest.Load(body)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return pipeline.Request{}, false
	}
	if files := m.Files(); len(files) > 0 {
		jsonError(w, fmt.Sprintf("content files are not allowed over http: %s", strings.Join(files, ", ")), http.StatusBadRequest)
		return pipeline.Request{}, false
	}
	req.Manifest = body
	return req, true
}

// queryOptions parses the output options shared by render and job requests.
func (s *Server) queryOptions(w http.ResponseWriter, format, dialect, pretty string) (pipeline.Request, bool) {
	req := pipeline.Request{Format: s.cfg.DefaultFormat}
	if format != "" {
		f, err := render.ParseFormat(format)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return req, false
		}
		req.Format = f
	}
	if req.Format == "" {
		req.Format = render.JSON
	}
	d, err := swml.ParseDialect(dialect)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return req, false
	}
	req.Dialect = d
	req.Indent, _ = strconv.ParseBool(pretty)
	return req, true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read body", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("body exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		jsonError(w, "request body is empty", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

// handleValidate checks a rendered document against the configured schema.
// Failed validation is a 200 response carrying the issues.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	res := schema.Result{Status: schema.StatusSkipped}
	if s.schema != nil {
		var err error
		res, err = s.validator.Validate(body, s.schema)
		if err != nil {
			var sle *schema.SchemaLoadError
			if errors.As(err, &sle) {
				jsonError(w, err.Error(), http.StatusInternalServerError)
				return
			}
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Validation-Status", string(res.Status))
	json.NewEncoder(w).Encode(res)
}

// handleImport converts an uploaded document into a section tree.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	p, err := parser.ForFile(filename, parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tree, err := p.Parse(file, filename)
	if err != nil {
		s.log.Warn("import failed", "filename", filename, "error", err)
		jsonError(w, "parse: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"filename":  filename,
		"sections":  tree.Len(),
		"structure": tree.ToStructure(),
		"markdown":  tree.Markdown(),
		"tokens":    tree.EstimateTokens(),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
