package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"resumeflow-backend/internal/cache"
	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/resumes"
	"resumeflow-backend/internal/shared/util"
)

type stubParser struct {
	data resumes.Data
	err  error
}

func (s *stubParser) ParseResume(_ context.Context, _ []byte) (resumes.Data, error) {
	return s.data, s.err
}

type stubRenderer struct {
	pdf []byte
	err error
}

func (s *stubRenderer) RenderHTMLToPDF(_ context.Context, _ string) ([]byte, error) {
	return s.pdf, s.err
}

type fakeStore struct {
	objects map[string][]byte
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Upload(_ context.Context, key, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.objects[key] = data
	return int64(len(data)), nil
}

func (s *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *fakeStore) Remove(_ context.Context, keys []string) error {
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *fakeStore) PublicURL(key string) string {
	return "http://files.test/" + key
}

func newResumeService() *resumes.Service {
	return resumes.NewService(resumes.NewMemoryRepo(), cache.NewMemoryCache(), zap.NewNop())
}

func enqueue(t *testing.T, q queue.Queue, payload any) *queue.Job {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	job, err := q.Enqueue(context.Background(), body)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := q.Claim(context.Background(), time.Second)
	if err != nil || claimed == nil {
		t.Fatalf("claim: job=%v err=%v", claimed, err)
	}
	return job
}

func writeUpload(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return path
}

func TestParseWorkerStoresOriginalAndCleansUp(t *testing.T) {
	q := queue.NewMemoryQueue("parse-resume", queue.DefaultOptions())
	svc := newResumeService()
	path := writeUpload(t, "pdf bytes")

	w := &ParseWorker{
		Queue:     q,
		Extractor: &stubParser{data: resumes.Data{Name: resumes.Ptr("Ada")}},
		Resumes:   svc,
		Log:       zap.NewNop(),
	}
	job := enqueue(t, q, ParsePayload{UserID: "u1", FilePath: path})

	out, err := w.Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var result ParseResult
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.IsOriginal || result.Updated {
		t.Errorf("result = %+v, want fresh original", result)
	}
	if result.Name == nil || *result.Name != "Ada" {
		t.Errorf("result name = %v, want Ada", result.Name)
	}

	// The parsed fields sit at the top level of the return value, next to
	// the record identity.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(out, &raw); err != nil {
		t.Fatalf("decode raw result: %v", err)
	}
	if string(raw["name"]) != `"Ada"` {
		t.Errorf("returnValue name = %s, want \"Ada\"", raw["name"])
	}

	rec, err := svc.OriginalResume(context.Background(), "u1")
	if err != nil || rec == nil {
		t.Fatalf("original resume: rec=%v err=%v", rec, err)
	}
	if *rec.Data.Name != "Ada" {
		t.Errorf("stored name = %q, want Ada", *rec.Data.Name)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file should be removed after success")
	}

	stored, err := q.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	if stored.Progress != 100 {
		t.Errorf("progress = %d, want 100", stored.Progress)
	}
}

func TestParseWorkerCleansUpOnFailure(t *testing.T) {
	q := queue.NewMemoryQueue("parse-resume", queue.DefaultOptions())
	path := writeUpload(t, "pdf bytes")

	w := &ParseWorker{
		Queue:     q,
		Extractor: &stubParser{err: errors.New("no extractable text found in document")},
		Resumes:   newResumeService(),
		Log:       zap.NewNop(),
	}
	job := enqueue(t, q, ParsePayload{UserID: "u1", FilePath: path})

	if _, err := w.Handle(context.Background(), job); err == nil {
		t.Fatal("Handle should fail when extraction fails")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file should be removed even on failure")
	}
}

func TestParseWorkerRejectsBadPayload(t *testing.T) {
	q := queue.NewMemoryQueue("parse-resume", queue.DefaultOptions())
	w := &ParseWorker{Queue: q, Extractor: &stubParser{}, Resumes: newResumeService(), Log: zap.NewNop()}

	job := enqueue(t, q, map[string]string{"userId": "u1"})
	if _, err := w.Handle(context.Background(), job); err == nil {
		t.Fatal("Handle should reject a payload without filePath")
	}
}

func TestPDFWorkerGeneratesAndReplaces(t *testing.T) {
	q := queue.NewMemoryQueue("generate-pdf", queue.DefaultOptions())
	svc := newResumeService()
	store := newFakeStore()

	if _, err := svc.Upsert(context.Background(), "u1", resumes.Data{Name: resumes.Ptr("Ada Lovelace")}, resumes.UpsertOptions{IsOriginal: true}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}
	prefix := util.HashUserKey("u1") + "/"
	store.objects[prefix+"stale_1.pdf"] = []byte("old")

	w := &PDFWorker{
		Queue:    q,
		Resumes:  svc,
		Renderer: &stubRenderer{pdf: []byte("%PDF-1.4 fresh")},
		Store:    store,
		Log:      zap.NewNop(),
	}
	job := enqueue(t, q, PDFPayload{UserID: "u1"})

	out, err := w.Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	var result PDFResult
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !strings.HasPrefix(result.FileName, "Ada_Lovelace_") || !strings.HasSuffix(result.FileName, ".pdf") {
		t.Errorf("fileName = %q, want Ada_Lovelace_<ts>.pdf", result.FileName)
	}
	if !strings.HasPrefix(result.PDFURL, "http://files.test/"+prefix) {
		t.Errorf("pdfUrl = %q, want under user prefix", result.PDFURL)
	}
	if result.GeneratedAt.IsZero() {
		t.Error("generatedAt should be set")
	}

	if _, ok := store.objects[prefix+"stale_1.pdf"]; ok {
		t.Error("previous pdf should be purged")
	}
	if len(store.objects) != 1 {
		t.Errorf("store holds %d objects, want exactly the new pdf", len(store.objects))
	}
}

func TestPDFWorkerFailsOnMissingResume(t *testing.T) {
	q := queue.NewMemoryQueue("generate-pdf", queue.DefaultOptions())
	w := &PDFWorker{
		Queue:    q,
		Resumes:  newResumeService(),
		Renderer: &stubRenderer{pdf: []byte("pdf")},
		Store:    newFakeStore(),
		Log:      zap.NewNop(),
	}
	job := enqueue(t, q, PDFPayload{UserID: "u1", ResumeID: "missing"})

	_, err := w.Handle(context.Background(), job)
	if !errors.Is(err, resumes.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPDFWorkerPurgeIsBestEffort(t *testing.T) {
	q := queue.NewMemoryQueue("generate-pdf", queue.DefaultOptions())
	svc := newResumeService()
	store := newFakeStore()
	store.listErr = errors.New("list unavailable")

	if _, err := svc.Upsert(context.Background(), "u1", resumes.Data{Name: resumes.Ptr("Ada")}, resumes.UpsertOptions{IsOriginal: true}); err != nil {
		t.Fatalf("seed resume: %v", err)
	}

	w := &PDFWorker{
		Queue:    q,
		Resumes:  svc,
		Renderer: &stubRenderer{pdf: []byte("pdf")},
		Store:    store,
		Log:      zap.NewNop(),
	}
	job := enqueue(t, q, PDFPayload{UserID: "u1"})

	if _, err := w.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle should succeed despite purge failure: %v", err)
	}
}

func TestPoolProcessesAndRetries(t *testing.T) {
	opts := queue.DefaultOptions()
	opts.BackoffBase = 5 * time.Millisecond
	q := queue.NewMemoryQueue("parse-resume", opts)

	attempts := 0
	h := handlerFunc(func(_ context.Context, _ *queue.Job) ([]byte, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient")
		}
		return []byte(`{"ok":true}`), nil
	})

	job, err := q.Enqueue(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(q, h, 2, zap.NewNop())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		stored, err := q.Job(context.Background(), job.ID)
		if err == nil && stored.State == queue.StateCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, attempts=%d", attempts)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain after cancel")
	}

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one failure, one retry)", attempts)
	}
}

type handlerFunc func(ctx context.Context, job *queue.Job) ([]byte, error)

func (f handlerFunc) Handle(ctx context.Context, job *queue.Job) ([]byte, error) {
	return f(ctx, job)
}
