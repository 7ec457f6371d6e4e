// Package reshape joins the raw PRISM tables into denormalized per-visit
// observations and splits them by study site. One deterministic pass, whole
// dataset in memory; any unresolvable join key aborts the build.
package reshape

import (
	"fmt"
	"sort"
	"time"

	"prismview/internal/cohort"
	"prismview/internal/source"
)

// SiteDataset is the reshaped output for one site: observations grouped by
// household, then participant, then visit date ascending.
type SiteDataset struct {
	Site         string
	Observations []cohort.Observation
	Stats        SiteStats
}

// SiteStats summarizes a site's reshaped dataset.
type SiteStats struct {
	Households         int
	Participants       int
	Observations       int
	MicroscopyPositive int
	DateMin            time.Time
	DateMax            time.Time
}

// Build joins the raw tables and returns one dataset per requested site, in
// the order the sites were requested. Sites absent from the data yield empty
// datasets rather than errors, so a configured site list stays stable across
// partial data drops.
func Build(tables *source.Tables, sites []string) ([]SiteDataset, error) {
	households := make(map[string]cohort.Household, len(tables.Households))
	for _, hh := range tables.Households {
		if _, dup := households[hh.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate household id %s", source.HouseholdsFile, hh.ID)
		}
		households[hh.ID] = hh
	}

	participants := make(map[string]cohort.Participant, len(tables.Participants))
	byHousehold := make(map[string][]cohort.Participant)
	for _, p := range tables.Participants {
		if _, dup := participants[p.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate participant id %s", source.ParticipantsFile, p.ID)
		}
		if _, ok := households[p.HouseholdID]; !ok {
			return nil, fmt.Errorf("%s: participant %s references unknown household %s", source.ParticipantsFile, p.ID, p.HouseholdID)
		}
		participants[p.ID] = p
		byHousehold[p.HouseholdID] = append(byHousehold[p.HouseholdID], p)
	}

	samples := make(map[string]cohort.Sample, len(tables.Samples))
	for _, s := range tables.Samples {
		if _, dup := samples[s.VisitID]; dup {
			return nil, fmt.Errorf("%s: duplicate sample for repeated measure %s", source.SamplesFile, s.VisitID)
		}
		samples[s.VisitID] = s
	}

	byParticipant := make(map[string][]cohort.Visit)
	for _, v := range tables.Visits {
		if _, ok := participants[v.ParticipantID]; !ok {
			return nil, fmt.Errorf("%s: visit %s references unknown participant %s", source.VisitsFile, v.ID, v.ParticipantID)
		}
		byParticipant[v.ParticipantID] = append(byParticipant[v.ParticipantID], v)
	}
	// Samples join against the full visit set, so a sample for a visit that
	// does not exist anywhere is a broken key, not a site-filter effect.
	visitIDs := make(map[string]struct{}, len(tables.Visits))
	for _, v := range tables.Visits {
		visitIDs[v.ID] = struct{}{}
	}
	for _, s := range tables.Samples {
		if _, ok := visitIDs[s.VisitID]; !ok {
			return nil, fmt.Errorf("%s: sample references unknown repeated measure %s", source.SamplesFile, s.VisitID)
		}
	}

	siteHouseholds := make(map[string][]cohort.Household)
	for _, hh := range tables.Households {
		siteHouseholds[hh.Site] = append(siteHouseholds[hh.Site], hh)
	}

	out := make([]SiteDataset, 0, len(sites))
	for _, site := range sites {
		ds := buildSite(site, siteHouseholds[site], byHousehold, byParticipant, samples)
		out = append(out, ds)
	}
	return out, nil
}

func buildSite(site string, hhs []cohort.Household, byHousehold map[string][]cohort.Participant, byParticipant map[string][]cohort.Visit, samples map[string]cohort.Sample) SiteDataset {
	sort.Slice(hhs, func(i, j int) bool { return hhs[i].ID < hhs[j].ID })

	var obs []cohort.Observation
	stats := SiteStats{}
	seenParticipants := 0

	for _, hh := range hhs {
		members := append([]cohort.Participant(nil), byHousehold[hh.ID]...)
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		householdHasVisits := false
		for _, p := range members {
			visits := append([]cohort.Visit(nil), byParticipant[p.ID]...)
			sort.Slice(visits, func(i, j int) bool {
				if !visits[i].Date.Equal(visits[j].Date) {
					return visits[i].Date.Before(visits[j].Date)
				}
				return visits[i].ID < visits[j].ID
			})
			if len(visits) > 0 {
				householdHasVisits = true
				seenParticipants++
			}
			for _, v := range visits {
				o := flatten(hh, p, v, samples)
				if o.MicroscopyPositive() {
					stats.MicroscopyPositive++
				}
				if stats.DateMin.IsZero() || v.Date.Before(stats.DateMin) {
					stats.DateMin = v.Date
				}
				if v.Date.After(stats.DateMax) {
					stats.DateMax = v.Date
				}
				obs = append(obs, o)
			}
		}
		if householdHasVisits {
			stats.Households++
		}
	}

	stats.Participants = seenParticipants
	stats.Observations = len(obs)
	return SiteDataset{Site: site, Observations: obs, Stats: stats}
}

// flatten joins one visit with its participant, household and (optional)
// sample. A missing sample leaves the lab fields in their no-data states
// rather than inventing zeros.
func flatten(hh cohort.Household, p cohort.Participant, v cohort.Visit, samples map[string]cohort.Sample) cohort.Observation {
	o := cohort.Observation{
		Site:             hh.Site,
		HouseholdID:      hh.ID,
		ParticipantID:    p.ID,
		Date:             v.Date,
		Age:              v.Age,
		AgeAtEnrollment:  p.AgeAtEnrollment,
		Sex:              p.Sex,
		TemperatureC:     v.TemperatureC,
		Fever:            v.Fever,
		VisitType:        v.Type,
		MalariaDiagnosis: v.MalariaDiagnosis,
		Antimalarial:     v.Antimalarial,
	}
	if s, ok := samples[v.ID]; ok {
		o.ParasiteDensity = s.ParasiteDensity
		o.Gametocytes = s.Gametocytes
		o.LAMP = s.LAMP
		o.Hemoglobin = s.Hemoglobin
	}
	return o
}
