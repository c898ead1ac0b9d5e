package catalog

import (
	"fmt"
	"strings"
)

const (
	// UnitHour and UnitDay are the canonical rate units.
	UnitHour = "hour"
	UnitDay  = "day"

	PriorityHigh     = "High"
	PriorityStandard = "Standard"

	fallbackURLBase = "https://jobs.locum-chat.dev/postings/"
)

// Posting is a single job opening. The catalog is loaded once at startup and
// postings are never mutated afterwards; callers always receive references
// into the loaded set.
type Posting struct {
	JobID       string  `json:"jobId" yaml:"jobId"`
	Title       string  `json:"title" yaml:"title"`
	City        string  `json:"city" yaml:"city"`
	State       string  `json:"state" yaml:"state"`
	Profession  string  `json:"profession" yaml:"profession"`
	Specialty   string  `json:"specialty" yaml:"specialty"`
	RateNumeric float64 `json:"rateNumeric" yaml:"rateNumeric"`
	RateUnit    string  `json:"rateUnit" yaml:"rateUnit"`
	Priority    string  `json:"priority" yaml:"priority"`
	MetaLine    string  `json:"metaLine,omitempty" yaml:"metaLine"`
	URL         string  `json:"url,omitempty" yaml:"url"`
}

// FallbackURL builds the deterministic posting URL used when the source record
// carries none.
func FallbackURL(jobID string) string {
	return fallbackURLBase + jobID
}

// Label returns a short human-readable line for prompts and console output.
func (p *Posting) Label() string {
	rate := fmt.Sprintf("$%.0f/%s", p.RateNumeric, p.RateUnit)
	return fmt.Sprintf("%s [%s] %s, %s / %s / %s", p.JobID, p.Title, p.City, p.State, p.Specialty, rate)
}

// normalize cleans up a decoded posting in place and reports whether the
// record is usable at all.
func (p *Posting) normalize() bool {
	p.JobID = strings.TrimSpace(p.JobID)
	if p.JobID == "" {
		return false
	}

	p.State = strings.ToUpper(strings.TrimSpace(p.State))
	p.Profession = strings.TrimSpace(p.Profession)
	p.Specialty = strings.TrimSpace(p.Specialty)

	if p.RateNumeric < 0 {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(p.RateUnit)) {
	case UnitDay, "daily":
		p.RateUnit = UnitDay
	default:
		p.RateUnit = UnitHour
	}

	if !strings.EqualFold(p.Priority, PriorityHigh) {
		p.Priority = PriorityStandard
	} else {
		p.Priority = PriorityHigh
	}

	if strings.TrimSpace(p.URL) == "" {
		p.URL = FallbackURL(p.JobID)
	}

	return true
}
