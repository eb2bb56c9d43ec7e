package ai

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaMismatch wraps any model output that fails schema validation.
// Callers treat it as a hard failure: no partial merge is ever persisted.
var ErrSchemaMismatch = errors.New("model output does not match schema")

const nullableString = `{"type": ["string", "null"]}`

const stringArray = `{"type": "array", "items": {"type": "string"}}`

// resumeDataSchema is the contract the extractor output must satisfy. Every
// scalar may be a string or null (the model is instructed to emit literal
// null for unknowns); arrays must be present, possibly empty.
var resumeDataSchema = `{
	"type": "object",
	"required": ["name", "summary", "contactInfo", "skills", "education", "projects", "experience"],
	"properties": {
		"name": ` + nullableString + `,
		"summary": ` + nullableString + `,
		"contactInfo": {
			"type": "object",
			"required": ["linkedin", "github", "email", "phone"],
			"properties": {
				"linkedin": ` + nullableString + `,
				"github": ` + nullableString + `,
				"email": ` + nullableString + `,
				"phone": ` + nullableString + `
			}
		},
		"skills": {
			"type": "object",
			"required": ["languages", "frameworks", "others"],
			"properties": {
				"languages": ` + stringArray + `,
				"frameworks": ` + stringArray + `,
				"others": ` + stringArray + `
			}
		},
		"education": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"institution": ` + nullableString + `,
					"degree": ` + nullableString + `,
					"field": ` + nullableString + `,
					"startDate": ` + nullableString + `,
					"endDate": ` + nullableString + `,
					"grade": ` + nullableString + `
				}
			}
		},
		"projects": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": ` + nullableString + `,
					"description": ` + nullableString + `,
					"techStack": ` + nullableString + `,
					"link": ` + nullableString + `
				}
			}
		},
		"experience": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"company": ` + nullableString + `,
					"role": ` + nullableString + `,
					"location": ` + nullableString + `,
					"startDate": ` + nullableString + `,
					"endDate": ` + nullableString + `,
					"description": ` + nullableString + `
				}
			}
		}
	}
}`

// improveResponseSchema validates the improve-for-job-description output:
// the rewritten partial resume plus the parsed job metadata with its
// 0-100 match score.
var improveResponseSchema = `{
	"type": "object",
	"required": ["improvedResume", "job"],
	"properties": {
		"improvedResume": {
			"type": "object",
			"required": ["summary", "projects", "skills"],
			"properties": {
				"summary": ` + nullableString + `,
				"projects": {"type": "array", "items": {"type": "object"}},
				"skills": {
					"type": "object",
					"required": ["languages", "frameworks", "others"],
					"properties": {
						"languages": ` + stringArray + `,
						"frameworks": ` + stringArray + `,
						"others": ` + stringArray + `
					}
				}
			}
		},
		"job": {
			"type": "object",
			"required": ["jobTitle", "company", "matchScore", "improvementsORSuggestions"],
			"properties": {
				"jobTitle": ` + nullableString + `,
				"company": ` + nullableString + `,
				"location": ` + nullableString + `,
				"type": ` + nullableString + `,
				"skills": ` + stringArray + `,
				"stipend": ` + nullableString + `,
				"matchScore": {"type": "integer", "minimum": 0, "maximum": 100},
				"improvementsORSuggestions": ` + stringArray + `
			}
		}
	}
}`

// validateAgainst checks a raw JSON document against a schema and reports
// every violation in one error.
func validateAgainst(schema, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(issues, "; "))
}
