package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"resumeflow-backend/internal/extract"
	"resumeflow-backend/internal/resumes"
)

// Extractor turns a raw resume document into structured resume data.
type Extractor struct {
	gen Generator
}

func NewExtractor(gen Generator) *Extractor {
	return &Extractor{gen: gen}
}

// ParseResume extracts text from the document, asks the model for a
// structured rendition and validates the result. Any schema violation
// fails the whole parse; nothing partial is returned.
func (e *Extractor) ParseResume(ctx context.Context, document []byte) (resumes.Data, error) {
	text, err := extract.Text(ctx, document)
	if err != nil {
		return resumes.Data{}, err
	}
	return e.parseText(ctx, text)
}

func (e *Extractor) parseText(ctx context.Context, text string) (resumes.Data, error) {
	raw, err := e.gen.GenerateJSON(ctx, buildParsePrompt(text))
	if err != nil {
		return resumes.Data{}, fmt.Errorf("generate resume data: %w", err)
	}

	if err := validateAgainst(resumeDataSchema, raw); err != nil {
		return resumes.Data{}, err
	}

	var data resumes.Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return resumes.Data{}, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	data.Normalize()
	return data, nil
}
