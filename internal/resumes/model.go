package resumes

import (
	"strings"
	"time"
)

// Record is a persisted resume, scoped by user. At most one record per user
// carries IsOriginal=true; derived copies created from the improve flow keep
// the job description they were tailored to.
type Record struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	IsOriginal bool            `json:"isOriginal"`
	Data       Data            `json:"data"`
	JobDesc    *JobDescription `json:"jobDesc,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Data is the structured resume payload. Scalar fields are pointers so a
// missing value round-trips as the literal JSON null rather than being
// omitted; the client rendering code depends on that. Arrays are never null.
type Data struct {
	Name       *string      `json:"name"`
	Summary    *string      `json:"summary"`
	Contact    ContactInfo  `json:"contactInfo"`
	Skills     Skills       `json:"skills"`
	Education  []Education  `json:"education"`
	Projects   []Project    `json:"projects"`
	Experience []Experience `json:"experience"`
}

// ContactInfo holds the candidate's contact links.
type ContactInfo struct {
	Linkedin *string `json:"linkedin"`
	Github   *string `json:"github"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

// Skills groups skill names by kind.
type Skills struct {
	Languages  []string `json:"languages"`
	Frameworks []string `json:"frameworks"`
	Others     []string `json:"others"`
}

// Education is a single education entry.
type Education struct {
	Institution *string `json:"institution"`
	Degree      *string `json:"degree"`
	Field       *string `json:"field"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Grade       *string `json:"grade"`
}

// Project is a single project entry.
type Project struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	TechStack   *string `json:"techStack"`
	Link        *string `json:"link"`
}

// Experience is a single work-experience entry.
type Experience struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	Location    *string `json:"location"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Description *string `json:"description"`
}

// JobDescription is attached to records created by the improve flow. The
// improvementsORSuggestions key spelling is part of the client contract.
type JobDescription struct {
	JobTitle                  *string  `json:"jobTitle"`
	Company                   *string  `json:"company"`
	Location                  *string  `json:"location"`
	Type                      *string  `json:"type"`
	Skills                    []string `json:"skills"`
	Stipend                   *string  `json:"stipend"`
	MatchScore                int      `json:"matchScore"`
	ImprovementsORSuggestions []string `json:"improvementsORSuggestions"`
}

// Normalize rewrites the dual "missing" representations into one canonical
// form: pointer fields holding the string "null" (or blank) become nil, and
// nil arrays become empty slices. The external model is instructed to emit
// the literal value "null" for unknown fields, so both the string sentinel
// and actual absence must read as missing downstream.
func (d *Data) Normalize() {
	d.Name = normalizeField(d.Name)
	d.Summary = normalizeField(d.Summary)

	d.Contact.Linkedin = normalizeField(d.Contact.Linkedin)
	d.Contact.Github = normalizeField(d.Contact.Github)
	d.Contact.Email = normalizeField(d.Contact.Email)
	d.Contact.Phone = normalizeField(d.Contact.Phone)

	d.Skills.Normalize()

	if d.Education == nil {
		d.Education = []Education{}
	}
	for i := range d.Education {
		e := &d.Education[i]
		e.Institution = normalizeField(e.Institution)
		e.Degree = normalizeField(e.Degree)
		e.Field = normalizeField(e.Field)
		e.StartDate = normalizeField(e.StartDate)
		e.EndDate = normalizeField(e.EndDate)
		e.Grade = normalizeField(e.Grade)
	}

	if d.Projects == nil {
		d.Projects = []Project{}
	}
	for i := range d.Projects {
		p := &d.Projects[i]
		p.Name = normalizeField(p.Name)
		p.Description = normalizeField(p.Description)
		p.TechStack = normalizeField(p.TechStack)
		p.Link = normalizeField(p.Link)
	}

	if d.Experience == nil {
		d.Experience = []Experience{}
	}
	for i := range d.Experience {
		e := &d.Experience[i]
		e.Company = normalizeField(e.Company)
		e.Role = normalizeField(e.Role)
		e.Location = normalizeField(e.Location)
		e.StartDate = normalizeField(e.StartDate)
		e.EndDate = normalizeField(e.EndDate)
		e.Description = normalizeField(e.Description)
	}
}

// Normalize guarantees all three skill buckets are non-nil slices.
func (s *Skills) Normalize() {
	s.Languages = normalizeList(s.Languages)
	s.Frameworks = normalizeList(s.Frameworks)
	s.Others = normalizeList(s.Others)
}

// Normalize applies the same sentinel handling to a job description.
func (j *JobDescription) Normalize() {
	j.JobTitle = normalizeField(j.JobTitle)
	j.Company = normalizeField(j.Company)
	j.Location = normalizeField(j.Location)
	j.Type = normalizeField(j.Type)
	j.Stipend = normalizeField(j.Stipend)
	j.Skills = normalizeList(j.Skills)
	if j.ImprovementsORSuggestions == nil {
		j.ImprovementsORSuggestions = []string{}
	}
	if j.MatchScore < 0 {
		j.MatchScore = 0
	}
	if j.MatchScore > 100 {
		j.MatchScore = 100
	}
}

// IsMissing reports whether a scalar value counts as absent under the dual
// representation: nil, blank, or the string sentinel "null".
func IsMissing(s *string) bool {
	if s == nil {
		return true
	}
	trimmed := strings.TrimSpace(*s)
	return trimmed == "" || strings.EqualFold(trimmed, "null")
}

// StringOr returns the value or a fallback when the field is missing.
func StringOr(s *string, fallback string) string {
	if IsMissing(s) {
		return fallback
	}
	return *s
}

// Ptr returns a pointer to s, or nil when s is a missing value. Convenience
// for building test fixtures and templates.
func Ptr(s string) *string {
	if strings.TrimSpace(s) == "" || strings.EqualFold(strings.TrimSpace(s), "null") {
		return nil
	}
	return &s
}

func normalizeField(s *string) *string {
	if IsMissing(s) {
		return nil
	}
	return s
}

func normalizeList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" || strings.EqualFold(trimmed, "null") {
			continue
		}
		out = append(out, item)
	}
	return out
}
