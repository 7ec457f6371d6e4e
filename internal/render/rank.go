// Package render turns a site's cleaned observations into a standalone
// interactive HTML viewer: one timeline figure per household, navigated
// entirely client-side against pre-built figure data.
package render

import (
	"sort"

	"prismview/internal/cohort"
)

// HouseholdSummary ranks a household for display.
type HouseholdSummary struct {
	ID        string
	Members   int // distinct participants with at least one visit
	Positives int // microscopy-positive visits across the household
}

// RankHouseholds groups observations by household and returns the households
// worth showing: those with at least one microscopy-positive visit, ordered
// by positive count descending. Ties break on household id ascending so the
// page order is deterministic.
func RankHouseholds(obs []cohort.Observation) []HouseholdSummary {
	members := make(map[string]map[string]struct{})
	positives := make(map[string]int)
	for _, o := range obs {
		m, ok := members[o.HouseholdID]
		if !ok {
			m = make(map[string]struct{})
			members[o.HouseholdID] = m
		}
		m[o.ParticipantID] = struct{}{}
		if o.MicroscopyPositive() {
			positives[o.HouseholdID]++
		}
	}

	out := make([]HouseholdSummary, 0, len(members))
	for id, m := range members {
		s := HouseholdSummary{ID: id, Members: len(m), Positives: positives[id]}
		if s.Positives > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Positives != out[j].Positives {
			return out[i].Positives > out[j].Positives
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// byHousehold splits observations per household preserving input order.
func byHousehold(obs []cohort.Observation) map[string][]cohort.Observation {
	out := make(map[string][]cohort.Observation)
	for _, o := range obs {
		out[o.HouseholdID] = append(out[o.HouseholdID], o)
	}
	return out
}
