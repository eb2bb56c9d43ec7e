package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/resumes"
)

// ParsePayload is the body of a parse-resume job: the uploaded document
// sits at FilePath until the worker consumes it.
type ParsePayload struct {
	UserID    string `json:"userId"`
	FilePath  string `json:"filePath"`
	UserToken string `json:"userToken"`
}

// ParseResult is the completed job's return value: the parsed resume data
// flattened alongside the record identity, so polling clients read fields
// like name straight off returnValue.
type ParseResult struct {
	ResumeID   string `json:"resumeId"`
	Updated    bool   `json:"updated"`
	IsOriginal bool   `json:"isOriginal"`
	resumes.Data
}

// ResumeParser extracts structured data from a raw resume document.
type ResumeParser interface {
	ParseResume(ctx context.Context, document []byte) (resumes.Data, error)
}

// ParseWorker turns an uploaded resume document into the user's stored
// original resume record.
type ParseWorker struct {
	Queue     queue.Queue
	Extractor ResumeParser
	Resumes   *resumes.Service
	Log       *zap.Logger
}

func (w *ParseWorker) Handle(ctx context.Context, job *queue.Job) ([]byte, error) {
	var payload ParsePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode parse payload: %w", err)
	}
	if payload.UserID == "" || payload.FilePath == "" {
		return nil, errors.New("parse payload requires userId and filePath")
	}
	// The uploaded file is removed whether or not the parse succeeds. A
	// retry of this job will fail on the missing file rather than leak
	// temp uploads.
	defer func() {
		if err := os.Remove(payload.FilePath); err != nil && !os.IsNotExist(err) {
			w.Log.Warn("remove uploaded file", zap.String("path", payload.FilePath), zap.Error(err))
		}
	}()
	w.progress(ctx, job.ID, 5)

	document, err := os.ReadFile(payload.FilePath)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	w.progress(ctx, job.ID, 10)
	w.progress(ctx, job.ID, 20)

	data, err := w.Extractor.ParseResume(ctx, document)
	if err != nil {
		return nil, err
	}
	w.progress(ctx, job.ID, 70)

	result, err := w.Resumes.Upsert(ctx, payload.UserID, data, resumes.UpsertOptions{IsOriginal: true})
	if err != nil {
		return nil, fmt.Errorf("store parsed resume: %w", err)
	}
	w.progress(ctx, job.ID, 90)

	out, err := json.Marshal(ParseResult{ResumeID: result.ID, Updated: result.Updated, IsOriginal: result.IsOriginal, Data: data})
	if err != nil {
		return nil, err
	}
	w.progress(ctx, job.ID, 100)
	return out, nil
}

func (w *ParseWorker) progress(ctx context.Context, jobID string, value int) {
	if err := w.Queue.SetProgress(ctx, jobID, value); err != nil {
		w.Log.Warn("set job progress", zap.String("jobId", jobID), zap.Int("progress", value), zap.Error(err))
	}
}
