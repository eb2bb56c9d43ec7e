package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resumeflow-backend/internal/cache"
	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/resumes"
	"resumeflow-backend/internal/shared/server/respond"
	"resumeflow-backend/internal/workers"
)

type testEnv struct {
	router  *gin.Engine
	parseQ  *queue.MemoryQueue
	pdfQ    *queue.MemoryQueue
	resumes *resumes.Service
	dir     string
}

func newTestEnv(t *testing.T, userID string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		parseQ:  queue.NewMemoryQueue("parse-resume", queue.DefaultOptions()),
		pdfQ:    queue.NewMemoryQueue("generate-pdf", queue.DefaultOptions()),
		resumes: resumes.NewService(resumes.NewMemoryRepo(), cache.NewMemoryCache(), zap.NewNop()),
		dir:     t.TempDir(),
	}

	h := NewHandler(env.parseQ, env.pdfQ, env.resumes, env.dir, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Set("userToken", "token-"+userID)
		c.Next()
	})
	api := router.Group("/api/v1")
	h.RegisterRoutes(api)
	env.router = router
	return env
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()
	return body, w.FormDataContentType()
}

func TestEnqueueParseReturns202(t *testing.T) {
	env := newTestEnv(t, "u1")

	body, contentType := multipartUpload(t, "resume", "my resume.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/parse", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", resp.Code, resp.Body.String())
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil || out.JobID == "" {
		t.Fatalf("body = %s, want jobId", resp.Body.String())
	}

	job, err := env.parseQ.Job(context.Background(), out.JobID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.State != queue.StateWaiting {
		t.Errorf("state = %s, want waiting", job.State)
	}

	var payload workers.ParsePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.UserID != "u1" || payload.UserToken != "token-u1" {
		t.Errorf("payload = %+v, want u1 identity", payload)
	}
	if !strings.HasPrefix(payload.FilePath, env.dir) {
		t.Errorf("filePath = %q, want under upload dir", payload.FilePath)
	}
	if _, err := os.Stat(payload.FilePath); err != nil {
		t.Errorf("uploaded file not persisted: %v", err)
	}
	if strings.Contains(filepath.Base(payload.FilePath), " ") {
		t.Errorf("stored name %q should not contain spaces", payload.FilePath)
	}
}

func TestEnqueueParseRejectsMissingFile(t *testing.T) {
	env := newTestEnv(t, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/parse", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestEnqueueParseRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t, "u1")

	body, contentType := multipartUpload(t, "resume", "resume.docx", []byte("zip"))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/parse", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestEnqueuePDFChecksResumeExists(t *testing.T) {
	env := newTestEnv(t, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/pdf", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 before any upload", resp.Code)
	}

	if _, err := env.resumes.Upsert(context.Background(), "u1", resumes.Data{Name: resumes.Ptr("Ada")}, resumes.UpsertOptions{IsOriginal: true}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/resumes/pdf", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%s)", resp.Code, resp.Body.String())
	}
}

func TestJobStatusUnknownIDIs404(t *testing.T) {
	env := newTestEnv(t, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/parse/nope", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestJobStatusReportsFailure(t *testing.T) {
	env := newTestEnv(t, "u1")
	ctx := context.Background()

	payload, _ := json.Marshal(workers.PDFPayload{UserID: "u1"})
	job, _ := env.pdfQ.Enqueue(ctx, payload)
	if _, err := env.pdfQ.Claim(ctx, time.Second); err != nil {
		t.Fatalf("claim: %v", err)
	}
	for i := 0; i < queue.DefaultOptions().MaxAttempts-1; i++ {
		if _, err := env.pdfQ.Fail(ctx, job.ID, "render crashed"); err != nil {
			t.Fatalf("fail: %v", err)
		}
		if _, err := env.pdfQ.PromoteDelayed(ctx, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("promote: %v", err)
		}
		if _, err := env.pdfQ.Claim(ctx, time.Second); err != nil {
			t.Fatalf("reclaim: %v", err)
		}
	}
	if _, err := env.pdfQ.Fail(ctx, job.ID, "render crashed"); err != nil {
		t.Fatalf("final fail: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/pdf/"+job.ID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want a failed job surfaced as an error", resp.Code)
	}

	var out respond.ErrorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error.Code != "job_failed" || out.Error.Message != "render crashed" {
		t.Errorf("error = %+v, want job_failed with the pipeline reason", out.Error)
	}
}

func TestJobStatusForbiddenForOtherUser(t *testing.T) {
	env := newTestEnv(t, "u1")

	payload, _ := json.Marshal(workers.PDFPayload{UserID: "u2"})
	job, _ := env.pdfQ.Enqueue(context.Background(), payload)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/pdf/"+job.ID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 for another user's job", resp.Code)
	}
}

func TestJobStatusIncludesReturnValue(t *testing.T) {
	env := newTestEnv(t, "u1")
	ctx := context.Background()

	payload, _ := json.Marshal(workers.ParsePayload{UserID: "u1", FilePath: "/tmp/x.pdf"})
	job, _ := env.parseQ.Enqueue(ctx, payload)
	env.parseQ.Claim(ctx, time.Second)
	env.parseQ.SetProgress(ctx, job.ID, 100)
	env.parseQ.Complete(ctx, job.ID, []byte(`{"resumeId":"r1","name":"Ada"}`))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/parse/"+job.ID, nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}

	var out statusResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != queue.StateCompleted || out.Progress != 100 {
		t.Errorf("out = %+v, want completed at 100", out)
	}

	var result struct {
		ResumeID string  `json:"resumeId"`
		Name     *string `json:"name"`
	}
	if err := json.Unmarshal(out.ReturnValue, &result); err != nil {
		t.Fatalf("decode returnValue: %v", err)
	}
	if result.ResumeID != "r1" {
		t.Errorf("returnValue resumeId = %q, want r1", result.ResumeID)
	}
	if result.Name == nil || *result.Name != "Ada" {
		t.Errorf("returnValue name = %v, want Ada", result.Name)
	}
}
