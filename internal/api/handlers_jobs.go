package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dgallion1/swmlgen/internal/manifest"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, ok := s.renderRequest(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "manifest"
	}

	job := newJob(name, req)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(jobAccepted(job))
}

func newJob(name string, req pipeline.Request) *pipeline.Job {
	job := pipeline.NewJob(name, req.Manifest, req.Format, req.Dialect)
	job.Indent = req.Indent
	return job
}

// jobAccepted reads the job through a snapshot; a worker may already own it.
func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":   snap.ID,
		"name":     snap.Name,
		"status":   snap.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s", snap.ID),
	}
}

// handleBatchJobs queues one job per uploaded manifest. Format and dialect
// come from the query string and apply to every file.
func (s *Server) handleBatchJobs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	base, ok := s.queryOptions(w, q.Get("format"), q.Get("dialect"), q.Get("pretty"))
	if !ok {
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}

		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}
		m, err := manifest.Load(data)
		if err == nil && len(m.Files()) > 0 {
			err = fmt.Errorf("content files are not allowed over http")
		}
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		req := base
		req.Manifest = data
		job := newJob(filename, req)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}
		entry := jobAccepted(job)
		entry["filename"] = filename
		results = append(results, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

// handleJobOutput serves the rendered document of a finished job. Invalid
// jobs still have output; failed ones do not.
func (s *Server) handleJobOutput(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	out := job.Output()
	if !snap.Status.Done() || out == nil {
		jsonError(w, fmt.Sprintf("job has no output (status %s)", snap.Status), http.StatusConflict)
		return
	}
	w.Header().Set("ETag", strconv.Quote(snap.ContentHash))
	if snap.Validation != nil {
		w.Header().Set("X-Validation-Status", string(snap.Validation.Status))
	}
	w.Header().Set("Content-Type", snap.Format.ContentType())
	w.Write(out)
}
