package source

import (
	"path/filepath"

	"go.uber.org/zap"

	"prismview/internal/cohort"
)

// Fixed file names of the PRISM cohort release.
const (
	HouseholdsFile   = "PRISM_cohort_Households.txt"
	ParticipantsFile = "PRISM_cohort_Participants.txt"
	VisitsFile       = "PRISM_cohort_Participant_repeated_measures.txt"
	SamplesFile      = "PRISM_cohort_Samples.txt"
)

// Tables is the full raw dataset held in memory for a single pipeline pass.
type Tables struct {
	Households   []cohort.Household
	Participants []cohort.Participant
	Visits       []cohort.Visit
	Samples      []cohort.Sample
}

// Load reads the four raw tables from dir. Any schema or parse error aborts
// the load; there is no partial result.
func Load(dir string, log *zap.Logger) (*Tables, error) {
	households, err := ReadHouseholds(filepath.Join(dir, HouseholdsFile))
	if err != nil {
		return nil, err
	}
	logShape(log, HouseholdsFile, len(households))

	participants, err := ReadParticipants(filepath.Join(dir, ParticipantsFile))
	if err != nil {
		return nil, err
	}
	logShape(log, ParticipantsFile, len(participants))

	visits, err := ReadVisits(filepath.Join(dir, VisitsFile))
	if err != nil {
		return nil, err
	}
	logShape(log, VisitsFile, len(visits))

	samples, err := ReadSamples(filepath.Join(dir, SamplesFile))
	if err != nil {
		return nil, err
	}
	logShape(log, SamplesFile, len(samples))

	return &Tables{
		Households:   households,
		Participants: participants,
		Visits:       visits,
		Samples:      samples,
	}, nil
}

// ReadHouseholds parses the household table.
func ReadHouseholds(path string) ([]cohort.Household, error) {
	t, err := readTable(path, []string{colHouseholdID, colSubCounty})
	if err != nil {
		return nil, err
	}
	out := make([]cohort.Household, 0, len(t.rows))
	for i := range t.rows {
		id := t.field(i, colHouseholdID)
		if id == "" {
			return nil, t.rowErr(i, "empty household id")
		}
		out = append(out, cohort.Household{
			ID:   id,
			Site: t.field(i, colSubCounty),
		})
	}
	return out, nil
}

// ReadParticipants parses the participant table.
func ReadParticipants(path string) ([]cohort.Participant, error) {
	t, err := readTable(path, []string{colParticipantID, colHouseholdID})
	if err != nil {
		return nil, err
	}
	out := make([]cohort.Participant, 0, len(t.rows))
	for i := range t.rows {
		id := t.field(i, colParticipantID)
		if id == "" {
			return nil, t.rowErr(i, "empty participant id")
		}
		hh := t.field(i, colHouseholdID)
		if hh == "" {
			return nil, t.rowErr(i, "participant %s: empty household id", id)
		}
		age, err := parseOptionalFloat(t.field(i, colAgeAtEnrollment))
		if err != nil {
			return nil, t.rowErr(i, "participant %s: %v", id, err)
		}
		enrolled, err := parseOptionalDate(t.field(i, colEnrollmentDate))
		if err != nil {
			return nil, t.rowErr(i, "participant %s: %v", id, err)
		}
		out = append(out, cohort.Participant{
			ID:              id,
			HouseholdID:     hh,
			Sex:             t.field(i, colSex),
			AgeAtEnrollment: age,
			EnrollmentDate:  enrolled,
		})
	}
	return out, nil
}

// ReadVisits parses the participant repeated-measures table.
func ReadVisits(path string) ([]cohort.Visit, error) {
	t, err := readTable(path, []string{colVisitID, colParticipantID, colObservationDate})
	if err != nil {
		return nil, err
	}
	out := make([]cohort.Visit, 0, len(t.rows))
	for i := range t.rows {
		id := t.field(i, colVisitID)
		if id == "" {
			return nil, t.rowErr(i, "empty repeated-measure id")
		}
		pid := t.field(i, colParticipantID)
		if pid == "" {
			return nil, t.rowErr(i, "visit %s: empty participant id", id)
		}
		date, err := parseDate(t.field(i, colObservationDate))
		if err != nil {
			return nil, t.rowErr(i, "visit %s: %v", id, err)
		}
		age, err := parseOptionalFloat(t.field(i, colAge))
		if err != nil {
			return nil, t.rowErr(i, "visit %s: %v", id, err)
		}
		temp, err := parseOptionalFloat(t.field(i, colTemperature))
		if err != nil {
			return nil, t.rowErr(i, "visit %s: %v", id, err)
		}
		fever, err := cohort.ParseFlag(t.field(i, colFebrile))
		if err != nil {
			return nil, t.rowErr(i, "visit %s: %v", id, err)
		}
		out = append(out, cohort.Visit{
			ID:               id,
			ParticipantID:    pid,
			Date:             date,
			Age:              age,
			TemperatureC:     temp,
			Fever:            fever,
			Type:             t.field(i, colObservationType),
			MalariaDiagnosis: t.field(i, colMalariaDiagnosis),
			Antimalarial:     t.field(i, colAntimalarial),
		})
	}
	return out, nil
}

// ReadSamples parses the sample table.
func ReadSamples(path string) ([]cohort.Sample, error) {
	t, err := readTable(path, []string{colVisitID})
	if err != nil {
		return nil, err
	}
	out := make([]cohort.Sample, 0, len(t.rows))
	for i := range t.rows {
		vid := t.field(i, colVisitID)
		if vid == "" {
			return nil, t.rowErr(i, "empty repeated-measure id")
		}
		density, err := parseOptionalFloat(t.field(i, colParasiteDensity))
		if err != nil {
			return nil, t.rowErr(i, "sample for visit %s: %v", vid, err)
		}
		gam, err := cohort.ParseFlag(t.field(i, colGametocytes))
		if err != nil {
			return nil, t.rowErr(i, "sample for visit %s: %v", vid, err)
		}
		lamp, err := cohort.ParseTestResult(t.field(i, colLAMP))
		if err != nil {
			return nil, t.rowErr(i, "sample for visit %s: %v", vid, err)
		}
		hb, err := parseOptionalFloat(t.field(i, colHemoglobin))
		if err != nil {
			return nil, t.rowErr(i, "sample for visit %s: %v", vid, err)
		}
		out = append(out, cohort.Sample{
			VisitID:         vid,
			ParasiteDensity: density,
			Gametocytes:     gam,
			LAMP:            lamp,
			Hemoglobin:      hb,
		})
	}
	return out, nil
}
