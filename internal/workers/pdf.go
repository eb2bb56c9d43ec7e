package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/render"
	"resumeflow-backend/internal/resumes"
	"resumeflow-backend/internal/shared/storage/object"
	"resumeflow-backend/internal/shared/util"
)

// PDFPayload is the body of a generate-pdf job. An empty ResumeID targets
// the user's original resume.
type PDFPayload struct {
	UserID    string `json:"userId"`
	ResumeID  string `json:"resumeId"`
	UserToken string `json:"userToken"`
}

// PDFResult is the completed job's return value.
type PDFResult struct {
	PDFURL      string    `json:"pdfUrl"`
	FileName    string    `json:"fileName"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// HTMLRenderer prints an HTML document to PDF bytes.
type HTMLRenderer interface {
	RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// PDFWorker renders a stored resume to PDF and uploads it to the object
// store, keeping at most one PDF per user.
type PDFWorker struct {
	Queue         queue.Queue
	Resumes       *resumes.Service
	Renderer      HTMLRenderer
	Store         object.Store
	RenderTimeout time.Duration
	Log           *zap.Logger
}

func (w *PDFWorker) Handle(ctx context.Context, job *queue.Job) ([]byte, error) {
	var payload PDFPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode pdf payload: %w", err)
	}
	if payload.UserID == "" {
		return nil, errors.New("pdf payload requires userId")
	}
	w.progress(ctx, job.ID, 5)

	rec, err := w.resolveResume(ctx, payload)
	if err != nil {
		return nil, err
	}
	w.progress(ctx, job.ID, 10)

	html, err := render.HTML(rec)
	if err != nil {
		return nil, err
	}
	w.progress(ctx, job.ID, 20)
	w.progress(ctx, job.ID, 30)

	renderCtx, cancel := context.WithTimeout(ctx, w.renderTimeout())
	defer cancel()
	pdf, err := w.Renderer.RenderHTMLToPDF(renderCtx, html)
	if err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	w.progress(ctx, job.ID, 60)

	prefix := util.HashUserKey(payload.UserID) + "/"
	w.purgeExisting(ctx, prefix)
	w.progress(ctx, job.ID, 80)

	fileName, err := w.pdfFileName(rec)
	if err != nil {
		return nil, err
	}
	key := prefix + fileName
	if _, err := w.Store.Upload(ctx, key, "application/pdf", bytes.NewReader(pdf)); err != nil {
		return nil, fmt.Errorf("upload pdf: %w", err)
	}

	out, err := json.Marshal(PDFResult{
		PDFURL:      w.Store.PublicURL(key),
		FileName:    fileName,
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	w.progress(ctx, job.ID, 100)
	return out, nil
}

func (w *PDFWorker) resolveResume(ctx context.Context, payload PDFPayload) (*resumes.Record, error) {
	var (
		rec *resumes.Record
		err error
	)
	if payload.ResumeID == "" || payload.ResumeID == "original" {
		rec, err = w.Resumes.OriginalResume(ctx, payload.UserID)
	} else {
		rec, err = w.Resumes.ResumeByID(ctx, payload.ResumeID, payload.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load resume: %w", err)
	}
	if rec == nil {
		return nil, resumes.ErrNotFound
	}
	return rec, nil
}

// purgeExisting deletes the user's previous PDFs. Failures are logged and
// ignored; a stale file is preferable to a failed generation.
func (w *PDFWorker) purgeExisting(ctx context.Context, prefix string) {
	keys, err := w.Store.List(ctx, prefix)
	if err != nil {
		w.Log.Warn("list existing pdfs", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := w.Store.Remove(ctx, keys); err != nil {
		w.Log.Warn("remove existing pdfs", zap.String("prefix", prefix), zap.Error(err))
	}
}

func (w *PDFWorker) pdfFileName(rec *resumes.Record) (string, error) {
	base := resumes.StringOr(rec.Data.Name, "resume")
	sanitized, err := util.SanitizeFileName(base)
	if err != nil {
		return "", fmt.Errorf("build pdf file name: %w", err)
	}
	return fmt.Sprintf("%s_%d.pdf", sanitized, time.Now().UnixNano()), nil
}

func (w *PDFWorker) renderTimeout() time.Duration {
	if w.RenderTimeout > 0 {
		return w.RenderTimeout
	}
	return 30 * time.Second
}

func (w *PDFWorker) progress(ctx context.Context, jobID string, value int) {
	if err := w.Queue.SetProgress(ctx, jobID, value); err != nil {
		w.Log.Warn("set job progress", zap.String("jobId", jobID), zap.Int("progress", value), zap.Error(err))
	}
}
