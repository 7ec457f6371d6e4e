// Package cohort defines the domain model for the PRISM household
// surveillance dataset: the raw relational records (household, participant,
// visit, sample) and the denormalized per-visit observation the pipeline
// produces and renders.
package cohort

import "time"

// Household is a surveyed dwelling. Read once from the source table, never
// mutated afterwards.
type Household struct {
	ID   string
	Site string // sub-county name, e.g. "Nagongera"
}

// Participant is an enrolled cohort member belonging to exactly one household.
type Participant struct {
	ID              string
	HouseholdID     string
	Sex             string // "Male" / "Female" / ""
	AgeAtEnrollment *float64
	EnrollmentDate  *time.Time
}

// Visit is one repeated measure for a participant: a clinic or routine
// observation at a point in time.
type Visit struct {
	ID               string // repeated-measure identifier, join key for samples
	ParticipantID    string
	Date             time.Time
	Age              *float64
	TemperatureC     *float64
	Fever            Flag
	Type             string
	MalariaDiagnosis string
	Antimalarial     string
}

// Sample carries the lab results drawn at a visit. At most one per visit.
type Sample struct {
	VisitID         string
	ParasiteDensity *float64 // asexual stages by microscopy, parasites/uL
	Gametocytes     Flag
	LAMP            TestResult
	Hemoglobin      *float64
}

// Observation is the denormalized (household x participant x visit) row: the
// sole output of the reshaper and sole input of the renderer.
type Observation struct {
	Site            string
	HouseholdID     string
	ParticipantID   string
	Date            time.Time
	Age             *float64
	AgeAtEnrollment *float64
	Sex             string
	TemperatureC    *float64
	Fever           Flag
	ParasiteDensity *float64
	Gametocytes     Flag
	LAMP            TestResult
	VisitType       string
	Hemoglobin      *float64

	MalariaDiagnosis string
	Antimalarial     string
}

// MicroscopyPositive reports whether blood-smear microscopy detected any
// asexual parasites. False when no density was measured.
func (o Observation) MicroscopyPositive() bool {
	return o.ParasiteDensity != nil && *o.ParasiteDensity > 0
}

// MicroscopyNegative reports a measured density of exactly zero. Distinct
// from "no data": an absent measurement is neither positive nor negative.
func (o Observation) MicroscopyNegative() bool {
	return o.ParasiteDensity != nil && *o.ParasiteDensity == 0
}

// Febrile reports whether the visit recorded a fever.
func (o Observation) Febrile() bool { return o.Fever == FlagYes }

// Submicroscopic reports a LAMP-positive visit without microscopy positivity,
// i.e. an infection below the microscopy detection threshold.
func (o Observation) Submicroscopic() bool {
	return o.LAMP == ResultPositive && !o.MicroscopyPositive()
}
