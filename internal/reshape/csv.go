package reshape

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"prismview/internal/cohort"
)

// Columns of the cleaned per-site CSV, in emit order. This is the schema of
// the Denormalized Row: the reshaper's only output and the renderer's only
// input. Missing measurements are empty fields, never zeros; the derived
// boolean columns are likewise empty when the underlying measurement is
// absent.
var Columns = []string{
	"site",
	"household_id",
	"participant_id",
	"date",
	"age",
	"age_at_enrollment",
	"sex",
	"temperature_c",
	"fever",
	"parasite_density",
	"gametocytes",
	"lamp",
	"visit_type",
	"hemoglobin",
	"malaria_diagnosis",
	"antimalarial",
	"is_positive",
	"is_fever",
	"density_bucket",
}

// WriteObservations emits the cleaned CSV for one site. Output is
// deterministic: identical observations produce byte-identical CSV.
func WriteObservations(w io.Writer, obs []cohort.Observation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, o := range obs {
		record := []string{
			o.Site,
			o.HouseholdID,
			o.ParticipantID,
			o.Date.Format(time.DateOnly),
			formatFloat(o.Age),
			formatFloat(o.AgeAtEnrollment),
			o.Sex,
			formatFloat(o.TemperatureC),
			o.Fever.String(),
			formatFloat(o.ParasiteDensity),
			o.Gametocytes.String(),
			o.LAMP.String(),
			o.VisitType,
			formatFloat(o.Hemoglobin),
			o.MalariaDiagnosis,
			o.Antimalarial,
			formatDerivedBool(o.ParasiteDensity != nil, o.MicroscopyPositive()),
			formatDerivedBool(o.Fever != cohort.FlagUnknown, o.Febrile()),
			string(o.DensityBucket()),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadObservations parses a cleaned CSV back into observations, verifying
// the header matches the emit schema.
func ReadObservations(r io.Reader) ([]cohort.Observation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Columns {
		if header[i] != col {
			return nil, fmt.Errorf("column %d: expected %q, found %q", i, col, header[i])
		}
	}

	var out []cohort.Observation
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseRecord(record []string) (cohort.Observation, error) {
	date, err := time.Parse(time.DateOnly, record[3])
	if err != nil {
		return cohort.Observation{}, fmt.Errorf("invalid date %q", record[3])
	}
	age, err := parseFloatField("age", record[4])
	if err != nil {
		return cohort.Observation{}, err
	}
	ageEnroll, err := parseFloatField("age_at_enrollment", record[5])
	if err != nil {
		return cohort.Observation{}, err
	}
	temp, err := parseFloatField("temperature_c", record[7])
	if err != nil {
		return cohort.Observation{}, err
	}
	fever, err := cohort.ParseFlag(record[8])
	if err != nil {
		return cohort.Observation{}, err
	}
	density, err := parseFloatField("parasite_density", record[9])
	if err != nil {
		return cohort.Observation{}, err
	}
	gam, err := cohort.ParseFlag(record[10])
	if err != nil {
		return cohort.Observation{}, err
	}
	lamp, err := cohort.ParseTestResult(record[11])
	if err != nil {
		return cohort.Observation{}, err
	}
	hb, err := parseFloatField("hemoglobin", record[13])
	if err != nil {
		return cohort.Observation{}, err
	}
	return cohort.Observation{
		Site:             record[0],
		HouseholdID:      record[1],
		ParticipantID:    record[2],
		Date:             date,
		Age:              age,
		AgeAtEnrollment:  ageEnroll,
		Sex:              record[6],
		TemperatureC:     temp,
		Fever:            fever,
		ParasiteDensity:  density,
		Gametocytes:      gam,
		LAMP:             lamp,
		VisitType:        record[12],
		Hemoglobin:       hb,
		MalariaDiagnosis: record[14],
		Antimalarial:     record[15],
	}, nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// formatDerivedBool emits "" for no data, else "true"/"false".
func formatDerivedBool(measured, value bool) string {
	if !measured {
		return ""
	}
	return strconv.FormatBool(value)
}

func parseFloatField(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, s)
	}
	return &v, nil
}
