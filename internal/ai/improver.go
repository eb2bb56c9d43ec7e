package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"resumeflow-backend/internal/resumes"
)

// PartialResume is the slice of a resume the improver is allowed to rewrite.
type PartialResume struct {
	Summary  *string           `json:"summary"`
	Projects []resumes.Project `json:"projects"`
	Skills   resumes.Skills    `json:"skills"`
}

// ImproveResult pairs the rewritten resume sections with the parsed job
// metadata and its match score.
type ImproveResult struct {
	Improved PartialResume          `json:"improvedResume"`
	Job      resumes.JobDescription `json:"job"`
}

// Improver tailors resume sections toward a job description.
type Improver struct {
	gen Generator
}

func NewImprover(gen Generator) *Improver {
	return &Improver{gen: gen}
}

// ImproveResume rewrites summary, projects and skills against the job
// description and scores the match. The model output must satisfy the
// response schema or the call fails outright.
func (im *Improver) ImproveResume(ctx context.Context, partial PartialResume, jobDescription string) (ImproveResult, error) {
	resumeJSON, err := json.Marshal(partial)
	if err != nil {
		return ImproveResult{}, fmt.Errorf("marshal resume: %w", err)
	}

	raw, err := im.gen.GenerateJSON(ctx, buildImprovePrompt(string(resumeJSON), jobDescription))
	if err != nil {
		return ImproveResult{}, fmt.Errorf("generate improvement: %w", err)
	}

	if err := validateAgainst(improveResponseSchema, raw); err != nil {
		return ImproveResult{}, err
	}

	var result ImproveResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return ImproveResult{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	result.normalize()
	return result, nil
}

func (r *ImproveResult) normalize() {
	r.Improved.Summary = normalizeResultField(r.Improved.Summary)
	if r.Improved.Projects == nil {
		r.Improved.Projects = []resumes.Project{}
	}
	for i := range r.Improved.Projects {
		p := &r.Improved.Projects[i]
		p.Name = normalizeResultField(p.Name)
		p.Description = normalizeResultField(p.Description)
		p.TechStack = normalizeResultField(p.TechStack)
		p.Link = normalizeResultField(p.Link)
	}
	r.Improved.Skills.Normalize()
	r.Job.Normalize()
}

func normalizeResultField(s *string) *string {
	if s == nil || *s == "" || *s == "null" {
		return nil
	}
	return s
}
