package resumes

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resumeflow-backend/internal/shared/server/middleware"
	"resumeflow-backend/internal/shared/server/respond"
)

// ImproveFunc tailors resume sections to a job description. It matches
// ai.Improver's ImproveResume method.
type ImproveFunc func(ctx context.Context, summary *string, projects []Project, skills Skills, jobDescription string) (ImprovedSections, error)

// ImprovedSections is what the improver hands back: rewritten sections
// plus the parsed job metadata.
type ImprovedSections struct {
	Summary  *string
	Projects []Project
	Skills   Skills
	Job      JobDescription
}

// Handler exposes the resume CRUD and improvement endpoints.
type Handler struct {
	Service *Service
	Improve ImproveFunc
	Log     *zap.Logger
}

func NewHandler(svc *Service, improve ImproveFunc, log *zap.Logger) *Handler {
	return &Handler{Service: svc, Improve: improve, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/original", h.original)
	rg.GET("/resumes/:id", h.get)
	rg.PUT("/resumes/:id", h.update)
	rg.DELETE("/resumes/:id", h.remove)
	rg.POST("/resumes/improve", h.improve)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	records, err := h.Service.UserResumes(c.Request.Context(), userID)
	if err != nil {
		h.Log.Error("list resumes", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list resumes", nil)
		return
	}
	respond.OK(c, gin.H{"resumes": records})
}

func (h *Handler) original(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Service.OriginalResume(c.Request.Context(), userID)
	if err != nil {
		h.Log.Error("load original resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load resume", nil)
		return
	}
	if rec == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "no original resume uploaded yet", nil)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	rec, err := h.Service.ResumeByID(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.Log.Error("load resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load resume", nil)
		return
	}
	if rec == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
		return
	}
	respond.OK(c, rec)
}

func (h *Handler) update(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var data Data
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid resume body", nil)
		return
	}

	result, err := h.Service.Upsert(c.Request.Context(), userID, data, UpsertOptions{ResumeID: c.Param("id")})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
			return
		}
		h.Log.Error("update resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update resume", nil)
		return
	}
	respond.OK(c, result)
}

func (h *Handler) remove(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if err := h.Service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.Log.Error("delete resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete resume", nil)
		return
	}
	// Deleting an absent or already-deleted resume reads as success.
	respond.OK(c, gin.H{"deleted": true})
}

type improveRequest struct {
	ResumeID       string `json:"resumeId"`
	JobDescription string `json:"jobDescription"`
}

func (h *Handler) improve(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req improveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobDescription is required", nil)
		return
	}

	var (
		base *Record
		err  error
	)
	if req.ResumeID == "" {
		base, err = h.Service.OriginalResume(c.Request.Context(), userID)
	} else {
		base, err = h.Service.ResumeByID(c.Request.Context(), req.ResumeID, userID)
	}
	if err != nil {
		h.Log.Error("load resume for improve", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load resume", nil)
		return
	}
	if base == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
		return
	}

	improved, err := h.Improve(c.Request.Context(), base.Data.Summary, base.Data.Projects, base.Data.Skills, req.JobDescription)
	if err != nil {
		h.Log.Error("improve resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusBadGateway, "upstream_error", "resume improvement failed", nil)
		return
	}

	data := base.Data
	data.Summary = improved.Summary
	data.Projects = improved.Projects
	data.Skills = improved.Skills

	created, err := h.Service.CreateImproved(c.Request.Context(), userID, data, improved.Job)
	if err != nil {
		h.Log.Error("store improved resume", zap.String("userId", userID), zap.Error(err))
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store improved resume", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, created)
}
