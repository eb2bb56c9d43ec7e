package resumes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resumeflow-backend/internal/cache"
)

func newHandlerEnv(t *testing.T, userID string, improve ImproveFunc) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := NewService(NewMemoryRepo(), cache.NewMemoryCache(), zap.NewNop())
	h := NewHandler(svc, improve, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", userID)
		c.Next()
	})
	api := router.Group("/api/v1")
	h.RegisterRoutes(api)
	return router, svc
}

func noImprove(context.Context, *string, []Project, Skills, string) (ImprovedSections, error) {
	return ImprovedSections{}, errors.New("improver should not be called")
}

func TestGetOriginalBeforeUploadIs404(t *testing.T) {
	router, _ := newHandlerEnv(t, "u1", noImprove)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resumes/original", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestResumeCRUD(t *testing.T) {
	router, svc := newHandlerEnv(t, "u1", noImprove)
	ctx := context.Background()

	created, err := svc.Upsert(ctx, "u1", Data{Name: Ptr("v1")}, UpsertOptions{})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+created.ID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("get status = %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"name":"v1"`) {
		t.Errorf("get body = %s", resp.Body.String())
	}

	update := `{"name":"v2","skills":{"languages":[],"frameworks":[],"others":[]}}`
	req = httptest.NewRequest(http.MethodPut, "/api/v1/resumes/"+created.ID, strings.NewReader(update))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("put status = %d (%s)", resp.Code, resp.Body.String())
	}

	rec, _ := svc.ResumeByID(ctx, created.ID, "u1")
	if *rec.Data.Name != "v2" {
		t.Errorf("name after update = %q, want v2", *rec.Data.Name)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/resumes/"+created.ID, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("delete status = %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/resumes/"+created.ID, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.Code)
	}
}

func TestUpdateUnknownResumeIs404(t *testing.T) {
	router, _ := newHandlerEnv(t, "u1", noImprove)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/resumes/nope", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}

func TestListReturnsOnlyDerivedResumes(t *testing.T) {
	router, svc := newHandlerEnv(t, "u1", noImprove)
	ctx := context.Background()

	svc.Upsert(ctx, "u1", Data{Name: Ptr("orig")}, UpsertOptions{IsOriginal: true})
	svc.Upsert(ctx, "u1", Data{Name: Ptr("derived")}, UpsertOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/resumes", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}

	var out struct {
		Resumes []Record `json:"resumes"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Resumes) != 1 || *out.Resumes[0].Data.Name != "derived" {
		t.Errorf("resumes = %+v, want only derived", out.Resumes)
	}
}

func TestImproveRejectsEmptyJobDescription(t *testing.T) {
	router, svc := newHandlerEnv(t, "u1", noImprove)
	svc.Upsert(context.Background(), "u1", Data{Name: Ptr("Ada")}, UpsertOptions{IsOriginal: true})

	for _, body := range []string{`{}`, `{"jobDescription":"   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/improve", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400 before the model is called", body, resp.Code)
		}
	}
}

func TestImproveCreatesDerivedRecord(t *testing.T) {
	improve := func(_ context.Context, summary *string, projects []Project, skills Skills, jobDescription string) (ImprovedSections, error) {
		if jobDescription != "Backend role at Acme" {
			return ImprovedSections{}, errors.New("unexpected job description")
		}
		return ImprovedSections{
			Summary: Ptr("Tailored summary"),
			Skills:  Skills{Languages: []string{"Go"}, Frameworks: []string{}, Others: []string{}},
			Job: JobDescription{
				JobTitle:                  Ptr("Backend Engineer"),
				MatchScore:                77,
				Skills:                    []string{"Go"},
				ImprovementsORSuggestions: []string{"learn k8s"},
			},
		}, nil
	}
	router, svc := newHandlerEnv(t, "u1", improve)
	ctx := context.Background()
	svc.Upsert(ctx, "u1", Data{Name: Ptr("Ada"), Summary: Ptr("Old summary")}, UpsertOptions{IsOriginal: true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/improve",
		strings.NewReader(`{"jobDescription":"Backend role at Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d (%s)", resp.Code, resp.Body.String())
	}

	var rec Record
	if err := json.Unmarshal(resp.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.IsOriginal {
		t.Error("improved record must not be original")
	}
	if *rec.Data.Summary != "Tailored summary" {
		t.Errorf("summary = %q", *rec.Data.Summary)
	}
	if *rec.Data.Name != "Ada" {
		t.Error("untouched sections must carry over from the base record")
	}
	if rec.JobDesc == nil || rec.JobDesc.MatchScore != 77 {
		t.Errorf("jobDesc = %+v, want matchScore 77", rec.JobDesc)
	}

	list, _ := svc.UserResumes(ctx, "u1")
	if len(list) != 1 {
		t.Errorf("derived list has %d records, want 1", len(list))
	}
}

func TestImproveWithoutResumeIs404(t *testing.T) {
	router, _ := newHandlerEnv(t, "u1", noImprove)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/improve",
		strings.NewReader(`{"jobDescription":"a real job"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}
}
