// Package model defines the shared data structures of the digest pipeline.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Experience tiers assigned by the profiler.
const (
	LevelJunior    = "Junior"
	LevelMid       = "Mid"
	LevelSenior    = "Senior"
	LevelLead      = "Lead"
	LevelExecutive = "Executive"
)

// Education completion states.
const (
	EducationCompleted  = "completed"
	EducationInProgress = "in_progress"
	EducationDropped    = "dropped"
)

// WorkEntry is a single work-experience entry, most recent first in
// CandidateProfile.WorkHistory.
type WorkEntry struct {
	Title          string   `json:"title"`
	Company        string   `json:"company"`
	StartDate      string   `json:"start_date"`
	EndDate        *string  `json:"end_date"` // nil means current role
	DurationMonths *int     `json:"duration_months,omitempty"`
	SkillsUsed     []string `json:"skills_used,omitempty"`
	Description    string   `json:"description,omitempty"`
}

// EducationEntry is a degree with its completion status.
type EducationEntry struct {
	Degree      string  `json:"degree"`
	Institution string  `json:"institution,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      string  `json:"status"` // completed / in_progress / dropped
}

// CandidateProfile is the structured extraction of one CV. It is immutable
// once computed; its identity is the hash of the source CV text.
type CandidateProfile struct {
	Skills            []string         `json:"skills"`
	ExperienceLevel   string           `json:"experience_level"`
	YearsOfExperience int              `json:"years_of_experience"`
	Roles             []string         `json:"roles"`
	Languages         []string         `json:"languages"`
	DomainExpertise   []string         `json:"domain_expertise"`
	Certifications    []string         `json:"certifications,omitempty"`
	Education         []string         `json:"education,omitempty"`
	Summary           string           `json:"summary,omitempty"`
	WorkHistory       []WorkEntry      `json:"work_history,omitempty"`
	EducationHistory  []EducationEntry `json:"education_history,omitempty"`
}

// ApplyOption is one actionable application path for a listing.
type ApplyOption struct {
	Source string `json:"source"`
	URL    string `json:"url"`
}

// JobListing is a normalised offer returned by a search provider.
// Its identity is the canonical URL (see URL).
type JobListing struct {
	Title        string        `json:"title"`
	CompanyName  string        `json:"company_name"`
	Location     string        `json:"location"`
	Description  string        `json:"description,omitempty"`
	Link         string        `json:"link,omitempty"`
	PostedAt     string        `json:"posted_at,omitempty"`
	Source       string        `json:"source,omitempty"`
	ApplyOptions []ApplyOption `json:"apply_options,omitempty"`
}

// URL returns the canonical identity of the listing: the first apply option's
// URL when present, otherwise the share link.
func (j JobListing) URL() string {
	if len(j.ApplyOptions) > 0 && j.ApplyOptions[0].URL != "" {
		return j.ApplyOptions[0].URL
	}
	return j.Link
}

// Evaluation is the scoring outcome for one (profile, listing) pair.
type Evaluation struct {
	Score         int      `json:"score"` // closed interval [0,100]
	Reasoning     string   `json:"reasoning"`
	MissingSkills []string `json:"missing_skills,omitempty"`
}

// EvaluatedJob pairs a listing with its evaluation.
type EvaluatedJob struct {
	Job        JobListing `json:"job"`
	Evaluation Evaluation `json:"evaluation"`
}

// Hash returns a short stable content hash used as a cache identity.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// ProfileHash returns the stable identity of a profile, derived from its
// canonical JSON form. Used to detect CV changes between runs.
func ProfileHash(p *CandidateProfile) string {
	raw, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	return Hash(string(raw))
}
