package ai

import "fmt"

const parsePromptTemplate = `You are a resume parser. Extract structured data from the resume text below.

Return ONLY a JSON object with exactly these fields:
{
  "name": string or null,
  "summary": string or null,
  "contactInfo": {"linkedin": string or null, "github": string or null, "email": string or null, "phone": string or null},
  "skills": {"languages": [string], "frameworks": [string], "others": [string]},
  "education": [{"institution", "degree", "field", "startDate", "endDate", "grade"}],
  "projects": [{"name", "description", "techStack", "link"}],
  "experience": [{"company", "role", "location", "startDate", "endDate", "description"}]
}

Rules:
- If a value is not present in the resume, use the JSON literal null. Never invent data.
- Arrays must always be present. Use [] when the section is absent.
- Dates stay as written in the resume, do not reformat them.
- Do not wrap the output in markdown fences or add commentary.

Resume text:
%s`

const improvePromptTemplate = `You are a resume coach. Rewrite parts of the candidate's resume to target the job description below, and score how well the candidate fits.

The match score is out of 100, weighted as: skills overlap 50, relevant project experience 30, summary alignment 20.

Return ONLY a JSON object:
{
  "improvedResume": {
    "summary": string or null,
    "projects": [{"name", "description", "techStack", "link"}],
    "skills": {"languages": [string], "frameworks": [string], "others": [string]}
  },
  "job": {
    "jobTitle": string or null,
    "company": string or null,
    "location": string or null,
    "type": string or null,
    "skills": [string],
    "stipend": string or null,
    "matchScore": integer 0-100,
    "improvementsORSuggestions": [string]
  }
}

Rules:
- Rewrite the summary and project descriptions to emphasize genuinely relevant experience. Never fabricate skills or projects the candidate does not have.
- Reorder and trim skills toward the job's needs without inventing new ones.
- Unknown job fields are the JSON literal null. Arrays are always present, [] when empty.
- improvementsORSuggestions lists concrete, actionable gaps the candidate should address.
- Do not wrap the output in markdown fences or add commentary.

Candidate resume (JSON):
%s

Job description:
%s`

func buildParsePrompt(resumeText string) string {
	return fmt.Sprintf(parsePromptTemplate, resumeText)
}

func buildImprovePrompt(resumeJSON, jobDescription string) string {
	return fmt.Sprintf(improvePromptTemplate, resumeJSON, jobDescription)
}
