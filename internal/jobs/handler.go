package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"resumeflow-backend/internal/queue"
	"resumeflow-backend/internal/resumes"
	"resumeflow-backend/internal/shared/metrics"
	"resumeflow-backend/internal/shared/server/middleware"
	"resumeflow-backend/internal/shared/server/respond"
	"resumeflow-backend/internal/shared/util"
	"resumeflow-backend/internal/workers"
)

const maxUploadBytes = 10 << 20

// Handler enqueues parse and pdf jobs and serves their status.
type Handler struct {
	ParseQueue queue.Queue
	PDFQueue   queue.Queue
	Resumes    *resumes.Service
	UploadDir  string
	Log        *zap.Logger
}

func NewHandler(parseQ, pdfQ queue.Queue, svc *resumes.Service, uploadDir string, log *zap.Logger) *Handler {
	return &Handler{ParseQueue: parseQ, PDFQueue: pdfQ, Resumes: svc, UploadDir: uploadDir, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes/parse", h.enqueueParse)
	rg.POST("/resumes/pdf", h.enqueuePDF)
	rg.GET("/jobs/parse/:id", h.status(func() queue.Queue { return h.ParseQueue }))
	rg.GET("/jobs/pdf/:id", h.status(func() queue.Queue { return h.PDFQueue }))
}

func (h *Handler) enqueueParse(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	file, err := c.FormFile("resume")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart field 'resume' is required", nil)
		return
	}
	if file.Size <= 0 || file.Size > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file size exceeds limit", nil)
		return
	}
	if !strings.EqualFold(filepath.Ext(file.Filename), ".pdf") {
		respond.Error(c, http.StatusBadRequest, "validation_error", "only pdf uploads are supported", nil)
		return
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		h.Log.Error("create upload dir", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
		return
	}
	dest := filepath.Join(h.UploadDir, fmt.Sprintf("%s_%s.pdf", util.HashUserKey(userID), uuid.NewString()))
	if err := c.SaveUploadedFile(file, dest); err != nil {
		h.Log.Error("save upload", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
		return
	}

	payload, err := json.Marshal(workers.ParsePayload{
		UserID:    userID,
		FilePath:  dest,
		UserToken: middleware.UserTokenFromContext(c),
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue job", nil)
		return
	}

	job, err := h.ParseQueue.Enqueue(c.Request.Context(), payload)
	if err != nil {
		// The upload is orphaned if the enqueue fails; remove it here
		// since no worker will.
		if rmErr := os.Remove(dest); rmErr != nil {
			h.Log.Warn("remove orphaned upload", zap.String("path", dest), zap.Error(rmErr))
		}
		h.Log.Error("enqueue parse job", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue job", nil)
		return
	}
	metrics.IncJobsEnqueued()
	respond.Accepted(c, gin.H{"jobId": job.ID})
}

type pdfRequest struct {
	ResumeID string `json:"resumeId"`
}

func (h *Handler) enqueuePDF(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	// An empty body targets the original resume.
	var req pdfRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	// Reject before enqueueing so a missing resume surfaces as a 404 on
	// this request, not as a failed job later.
	var (
		rec *resumes.Record
		err error
	)
	if req.ResumeID == "" {
		rec, err = h.Resumes.OriginalResume(c.Request.Context(), userID)
	} else {
		rec, err = h.Resumes.ResumeByID(c.Request.Context(), req.ResumeID, userID)
	}
	if err != nil {
		h.Log.Error("check resume before enqueue", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load resume", nil)
		return
	}
	if rec == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
		return
	}

	payload, err := json.Marshal(workers.PDFPayload{
		UserID:    userID,
		ResumeID:  req.ResumeID,
		UserToken: middleware.UserTokenFromContext(c),
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue job", nil)
		return
	}

	job, err := h.PDFQueue.Enqueue(c.Request.Context(), payload)
	if err != nil {
		h.Log.Error("enqueue pdf job", zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue job", nil)
		return
	}
	metrics.IncJobsEnqueued()
	respond.Accepted(c, gin.H{"jobId": job.ID})
}

// statusResponse is the poll payload for both job kinds while the job is
// pending or completed. returnValue is only present once the job
// completed; a failed job is surfaced as an error response instead.
type statusResponse struct {
	JobID       string          `json:"jobId"`
	Status      queue.State     `json:"status"`
	Progress    int             `json:"progress"`
	ReturnValue json.RawMessage `json:"returnValue,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	FinishedAt  time.Time       `json:"finishedAt,omitzero"`
}

func (h *Handler) status(q func() queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)

		job, err := q().Job(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, queue.ErrJobNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "job not found", nil)
				return
			}
			h.Log.Error("load job", zap.Error(err))
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load job", nil)
			return
		}

		// Jobs are only visible to the user that enqueued them.
		var owner struct {
			UserID string `json:"userId"`
		}
		if err := json.Unmarshal(job.Payload, &owner); err != nil || owner.UserID != userID {
			respond.Error(c, http.StatusForbidden, "forbidden", "job belongs to another user", nil)
			return
		}

		// A job that ran and failed is an error to the caller, with the
		// pipeline's reason passed through verbatim. Distinct from the 404
		// above: that means the queue has no record of the job at all.
		if job.State == queue.StateFailed {
			respond.Error(c, http.StatusInternalServerError, "job_failed", job.FailedReason, nil)
			return
		}

		respond.OK(c, statusResponse{
			JobID:       job.ID,
			Status:      job.State,
			Progress:    job.Progress,
			ReturnValue: job.ReturnValue,
			CreatedAt:   job.CreatedAt,
			FinishedAt:  job.FinishedAt,
		})
	}
}
