package models

import (
	"math"
	"sort"
	"time"
)

// CaseSummary is the list/search projection of a case
type CaseSummary struct {
	CaseID         string     `json:"caseId"`
	Title          string     `json:"title"`
	Status         CaseStatus `json:"status"`
	Country        string     `json:"country"`
	CaseType       CaseType   `json:"caseType"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	HasVerdict     bool       `json:"hasVerdict"`
	TotalArguments int        `json:"totalArguments"`
	LastActivity   time.Time  `json:"lastActivity"`
}

// SearchCriteria filters case summaries. Zero values are ignored.
type SearchCriteria struct {
	Status       CaseStatus
	Country      string
	CaseType     CaseType
	Title        string
	Query        string
	HasVerdict   *bool
	ActiveAfter  *time.Time
	ActiveBefore *time.Time
	Limit        int
	Offset       int
}

// Statistics aggregates counters over all stored cases
type Statistics struct {
	TotalCases              int            `json:"totalCases"`
	StatusBreakdown         map[string]int `json:"statusBreakdown"`
	CountryBreakdown        map[string]int `json:"countryBreakdown"`
	TypeBreakdown           map[string]int `json:"typeBreakdown"`
	AverageArgumentsPerCase float64        `json:"averageArgumentsPerCase"`
	CasesWithVerdict        int            `json:"casesWithVerdict"`
	RecentActivity          []CaseSummary  `json:"recentActivity"`
}

// RecentActivityLimit is how many summaries Statistics reports as recent
const RecentActivityLimit = 5

// SortByActivity orders summaries by last activity, most recent first
func SortByActivity(summaries []CaseSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastActivity.After(summaries[j].LastActivity)
	})
}

// BuildStatistics computes Statistics from case summaries
func BuildStatistics(summaries []CaseSummary) Statistics {
	stats := Statistics{
		TotalCases:       len(summaries),
		StatusBreakdown:  map[string]int{},
		CountryBreakdown: map[string]int{},
		TypeBreakdown:    map[string]int{},
		RecentActivity:   []CaseSummary{},
	}
	totalArguments := 0
	for _, s := range summaries {
		stats.StatusBreakdown[string(s.Status)]++
		stats.CountryBreakdown[s.Country]++
		stats.TypeBreakdown[string(s.CaseType)]++
		totalArguments += s.TotalArguments
		if s.HasVerdict {
			stats.CasesWithVerdict++
		}
	}
	if len(summaries) > 0 {
		avg := float64(totalArguments) / float64(len(summaries))
		stats.AverageArgumentsPerCase = math.Round(avg*100) / 100
	}

	recent := append([]CaseSummary{}, summaries...)
	SortByActivity(recent)
	if len(recent) > RecentActivityLimit {
		recent = recent[:RecentActivityLimit]
	}
	stats.RecentActivity = recent
	return stats
}
