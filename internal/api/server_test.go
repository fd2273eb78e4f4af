package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/swmlgen/internal/config"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/dgallion1/swmlgen/internal/render"
	"github.com/dgallion1/swmlgen/internal/swml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey      = "test-key"
	testManifest = "applications: [{section: main, kind: answer}]\nprompt: {text: Be helpful.}\nactivate: main\n"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Config{
		APIKey:         testKey,
		SchemaPath:     filepath.Join("..", "..", "schemas", "swml-document.schema.json"),
		WorkerCount:    2,
		MaxQueueSize:   8,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
		DefaultFormat:  render.JSON,
	}
	orch := pipeline.NewOrchestrator(cfg, nil, nil)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)
	return NewServer(orch, nil, nil, cfg)
}

func do(t *testing.T, s *Server, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testKey)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/render", strings.NewReader(testManifest)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/render", []byte(testManifest), map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid api key")
}

func TestRender(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/render", []byte(testManifest), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "passed", rec.Header().Get("X-Validation-Status"))
	assert.Equal(t,
		`{"version":"1.0.0","applications":{"main":[{"kind":"answer","options":{}}]},"prompt":{"content":"Be helpful."},"activate":"main"}`,
		rec.Body.String())

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = do(t, s, http.MethodPost, "/api/render", []byte(testManifest), map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestRender_WireYAML(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/api/render?format=yaml&dialect=swml", []byte(testManifest), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, render.YAML.ContentType(), rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "version: 1.0.0\nsections:\n"), body)
	assert.Less(t, strings.Index(body, "answer"), strings.Index(body, "ai:"))
}

func TestRender_Errors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"bad format", "/api/render?format=xml", testManifest, http.StatusBadRequest},
		{"bad dialect", "/api/render?dialect=v2", testManifest, http.StatusBadRequest},
		{"empty body", "/api/render", "  ", http.StatusBadRequest},
		{"bad manifest", "/api/render", "applications: [{kind: answer}]\n", http.StatusBadRequest},
		{"file content", "/api/render", "prompt: {file: /etc/passwd}\n", http.StatusBadRequest},
		{"dangling activation", "/api/render?dialect=swml", "activate: main\n", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tc.target, []byte(tc.body), nil)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestValidate(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/validate", []byte(`{"version":"1.0.0","applications":{"main":[]}}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "passed", rec.Header().Get("X-Validation-Status"))

	rec = do(t, s, http.MethodPost, "/api/validate", []byte("activate: main\n"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Status string `json:"status"`
		Errors []struct {
			Path string `json:"path"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "failed", res.Status)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "$.applications", res.Errors[0].Path)
	assert.Equal(t, "$.version", res.Errors[1].Path)
}

func TestImport(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "prompt.md")
	require.NoError(t, err)
	fw.Write([]byte("## Rules\n\n- Be accurate.\n- Be brief.\n"))
	require.NoError(t, mw.Close())

	rec := do(t, s, http.MethodPost, "/api/import", buf.Bytes(), map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Filename  string            `json:"filename"`
		Sections  int               `json:"sections"`
		Structure []json.RawMessage `json:"structure"`
		Markdown  string            `json:"markdown"`
		Tokens    int               `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "prompt.md", out.Filename)
	assert.Equal(t, 1, out.Sections)
	require.Len(t, out.Structure, 1)
	assert.JSONEq(t, `{"title":"Rules","bullets":["Be accurate.","Be brief."]}`, string(out.Structure[0]))
	assert.Contains(t, out.Markdown, "## Rules")
	assert.Positive(t, out.Tokens)
}

func TestImport_Unsupported(t *testing.T) {
	s := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "tool.exe")
	fw.Write([]byte("MZ"))
	mw.Close()

	rec := do(t, s, http.MethodPost, "/api/import", buf.Bytes(), map[string]string{"Content-Type": mw.FormDataContentType()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func waitForJob(t *testing.T, s *Server, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, s, http.MethodGet, "/api/jobs/"+id, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap pipeline.JobSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		if snap.Status.Done() {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s did not finish, status %s", id, snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestJobs(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/jobs?name=moviebot&pretty=true", []byte(testManifest), nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted struct {
		JobID   string `json:"job_id"`
		PollURL string `json:"poll_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))
	assert.Equal(t, "/api/jobs/"+accepted.JobID, accepted.PollURL)

	snap := waitForJob(t, s, accepted.JobID)
	assert.Equal(t, pipeline.StatusCompleted, snap.Status)
	assert.Equal(t, "moviebot", snap.Name)

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/output", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "{\n  \"version\": \"1.0.0\""), rec.Body.String())
	assert.Equal(t, `"`+snap.ContentHash+`"`, rec.Header().Get("ETag"))

	rec = do(t, s, http.MethodGet, "/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"build"`)
}

func TestJobs_Invalid(t *testing.T) {
	s := newTestServer(t)
	body := testManifest + "include: {url: \"\", capabilities: [a]}\n"
	rec := do(t, s, http.MethodPost, "/api/jobs", []byte(body), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accepted))

	snap := waitForJob(t, s, accepted.JobID)
	assert.Equal(t, pipeline.StatusInvalid, snap.Status)
	require.NotNil(t, snap.Validation)
	assert.Equal(t, "failed", string(snap.Validation.Status))

	rec = do(t, s, http.MethodGet, "/api/jobs/"+accepted.JobID+"/output", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", rec.Header().Get("X-Validation-Status"))
}

func TestJobAccepted_WhileWorkerUpdates(t *testing.T) {
	job := pipeline.NewJob("m", []byte(testManifest), render.JSON, swml.Logical)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			job.SetStatus(pipeline.StatusBuilding, pipeline.PhaseBuild)
		}
	}()
	for i := 0; i < 100; i++ {
		resp := jobAccepted(job)
		assert.Equal(t, job.ID, resp["job_id"])
		assert.Equal(t, "/api/jobs/"+job.ID, resp["poll_url"])
	}
	<-done
	assert.Equal(t, pipeline.StatusBuilding, jobAccepted(job)["status"])
}

func TestJobs_NotFound(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/jobs/nope", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/jobs/nope/output", nil, nil).Code)
}

func TestBatchJobs(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, body := range map[string]string{"a.yaml": testManifest, "b.yaml": "prompt: {file: x.md}\n"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		fw.Write([]byte(body))
	}
	require.NoError(t, mw.Close())

	rec := do(t, s, http.MethodPost, "/api/jobs/batch?format=yaml", buf.Bytes(), map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Jobs, 2)

	var queued, rejected int
	for _, j := range out.Jobs {
		if _, ok := j["job_id"]; ok {
			queued++
			snap := waitForJob(t, s, j["job_id"].(string))
			assert.Equal(t, render.YAML, snap.Format)
		}
		if _, ok := j["error"]; ok {
			rejected++
		}
	}
	assert.Equal(t, 1, queued)
	assert.Equal(t, 1, rejected)
}
