package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"resumeflow-backend/internal/resumes"
)

//go:embed template.html
var templateHTML string

var resumeTemplate = template.Must(template.New("resume").Parse(templateHTML))

// view flattens a resume record into plain strings so the template never
// has to deal with nil pointers or the "null" sentinel.
type view struct {
	Name       string
	Summary    string
	Contacts   []contactView
	Skills     []skillGroupView
	Education  []educationView
	Projects   []projectView
	Experience []experienceView
}

type contactView struct {
	Label string
	Value string
}

type skillGroupView struct {
	Label string
	Items string
}

type educationView struct {
	Institution string
	Degree      string
	Dates       string
	Grade       string
}

type projectView struct {
	Name        string
	Description string
	TechStack   string
	Link        string
}

type experienceView struct {
	Company     string
	Role        string
	Location    string
	Dates       string
	Description string
}

// HTML renders a resume record into a self-contained A4 document.
func HTML(rec *resumes.Record) (string, error) {
	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, buildView(&rec.Data)); err != nil {
		return "", fmt.Errorf("render resume template: %w", err)
	}
	return buf.String(), nil
}

func buildView(d *resumes.Data) view {
	v := view{
		Name:    resumes.StringOr(d.Name, "Resume"),
		Summary: resumes.StringOr(d.Summary, ""),
	}

	for _, c := range []struct {
		label string
		val   *string
	}{
		{"Email", d.Contact.Email},
		{"Phone", d.Contact.Phone},
		{"LinkedIn", d.Contact.Linkedin},
		{"GitHub", d.Contact.Github},
	} {
		if !resumes.IsMissing(c.val) {
			v.Contacts = append(v.Contacts, contactView{Label: c.label, Value: *c.val})
		}
	}

	for _, g := range []struct {
		label string
		items []string
	}{
		{"Languages", d.Skills.Languages},
		{"Frameworks", d.Skills.Frameworks},
		{"Others", d.Skills.Others},
	} {
		if len(g.items) > 0 {
			v.Skills = append(v.Skills, skillGroupView{Label: g.label, Items: strings.Join(g.items, ", ")})
		}
	}

	for _, e := range d.Education {
		v.Education = append(v.Education, educationView{
			Institution: resumes.StringOr(e.Institution, ""),
			Degree:      joinNonEmpty(" in ", resumes.StringOr(e.Degree, ""), resumes.StringOr(e.Field, "")),
			Dates:       dateRange(e.StartDate, e.EndDate),
			Grade:       resumes.StringOr(e.Grade, ""),
		})
	}

	for _, p := range d.Projects {
		v.Projects = append(v.Projects, projectView{
			Name:        resumes.StringOr(p.Name, "Project"),
			Description: resumes.StringOr(p.Description, ""),
			TechStack:   resumes.StringOr(p.TechStack, ""),
			Link:        resumes.StringOr(p.Link, ""),
		})
	}

	for _, e := range d.Experience {
		v.Experience = append(v.Experience, experienceView{
			Company:     resumes.StringOr(e.Company, ""),
			Role:        resumes.StringOr(e.Role, ""),
			Location:    resumes.StringOr(e.Location, ""),
			Dates:       dateRange(e.StartDate, e.EndDate),
			Description: resumes.StringOr(e.Description, ""),
		})
	}

	return v
}

func dateRange(start, end *string) string {
	s := resumes.StringOr(start, "")
	e := resumes.StringOr(end, "")
	switch {
	case s == "" && e == "":
		return ""
	case e == "":
		return s + " - Present"
	case s == "":
		return e
	default:
		return s + " - " + e
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
