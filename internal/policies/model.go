// Package policies tracks immigration policy announcements scraped
// from official news sources and analyzed by the AI provider.
package policies

import "time"

// PolicyUpdate is one analyzed policy announcement.
type PolicyUpdate struct {
	ID            string
	Title         string
	Summary       string
	ImpactLevel   string
	AffectedVisas []string
	ActionItems   []string
	SourceURL     string
	PublishedAt   time.Time
	CreatedAt     time.Time
}

// AllowedVisaTypes lists the visa filters the list endpoint accepts.
var AllowedVisaTypes = []string{"F-1", "OPT", "H-1B", "L-1", "O-1"}

// AllowedImpactLevels lists the impact filters the list endpoint accepts.
var AllowedImpactLevels = []string{"High", "Medium", "Low"}

// analysisImpactLevels additionally includes Critical, which the model
// may assign to deadline-sensitive announcements.
var analysisImpactLevels = []string{"Critical", "High", "Medium", "Low"}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
