package resumes

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNormalizeTreatsSentinelAndNullTheSame(t *testing.T) {
	sentinel := "null"
	blank := "  "
	d := Data{
		Name:    &sentinel,
		Summary: nil,
		Contact: ContactInfo{Email: &blank},
	}
	d.Normalize()

	if d.Name != nil {
		t.Errorf(`Name = %q, want nil for sentinel "null"`, *d.Name)
	}
	if d.Summary != nil {
		t.Error("Summary should stay nil")
	}
	if d.Contact.Email != nil {
		t.Errorf("Email = %q, want nil for blank", *d.Contact.Email)
	}
}

func TestNormalizeMakesArraysNonNil(t *testing.T) {
	var d Data
	d.Normalize()

	if d.Skills.Languages == nil || d.Skills.Frameworks == nil || d.Skills.Others == nil {
		t.Error("skills buckets should be empty slices")
	}
	if d.Education == nil || d.Projects == nil || d.Experience == nil {
		t.Error("sections should be empty slices")
	}
}

func TestDataMarshalsMissingAsLiteralNull(t *testing.T) {
	var d Data
	d.Normalize()

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(out)

	if !strings.Contains(body, `"name":null`) {
		t.Errorf("missing name should marshal as literal null, got %s", body)
	}
	if !strings.Contains(body, `"languages":[]`) {
		t.Errorf("empty skills should marshal as [], got %s", body)
	}
	if strings.Contains(body, `:"null"`) {
		t.Errorf("sentinel string must never be emitted, got %s", body)
	}
}

func TestJobDescriptionNormalizeClampsScore(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}
	for _, tc := range cases {
		j := JobDescription{MatchScore: tc.in}
		j.Normalize()
		if j.MatchScore != tc.want {
			t.Errorf("Normalize(%d) score = %d, want %d", tc.in, j.MatchScore, tc.want)
		}
	}
}

func TestJobDescriptionSuggestionsJSONKey(t *testing.T) {
	j := JobDescription{ImprovementsORSuggestions: []string{"add metrics"}}
	out, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"improvementsORSuggestions"`) {
		t.Errorf("wrong json key in %s", out)
	}
}

func TestIsMissing(t *testing.T) {
	val := "hello"
	sentinel := "NULL"
	blank := ""
	if IsMissing(&val) {
		t.Error("real value reported missing")
	}
	if !IsMissing(nil) || !IsMissing(&sentinel) || !IsMissing(&blank) {
		t.Error("nil, sentinel and blank should all read as missing")
	}
}
