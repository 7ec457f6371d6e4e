// Package source reads the raw PRISM flat-file tables. Column names and
// types are an external contract set by the data provider: headers carry
// ontology tags (e.g. "Sex [PATO_0000047]") and are matched exactly.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Source-table column headers. These are the provider's names, ontology tags
// included; renaming to short names happens when rows are mapped onto the
// domain model.
const (
	colHouseholdID      = "Household_Id"
	colSubCounty        = "Sub-county in Uganda [EUPATH_0000054]"
	colParticipantID    = "Participant_Id"
	colSex              = "Sex [PATO_0000047]"
	colAgeAtEnrollment  = "Age at enrollment (years) [EUPATH_0000120]"
	colEnrollmentDate   = "Enrollment date [EUPATH_0000151]"
	colVisitID          = "Participant_repeated_measure_Id"
	colObservationDate  = "Observation date [EUPATH_0004991]"
	colAge              = "Age (years) [OBI_0001169]"
	colTemperature      = "Temperature (C) [EUPATH_0000110]"
	colFebrile          = "Febrile [EUPATH_0000097]"
	colObservationType  = "Observation type [BFO_0000015]"
	colMalariaDiagnosis = "Malaria diagnosis [EUPATH_0000090]"
	colAntimalarial     = "Antimalarial medication [EUPATH_0000058]"
	colParasiteDensity  = "Plasmodium asexual stages, by microscopy result (/uL) [EUPATH_0000092]"
	colGametocytes      = "Plasmodium gametocytes, by microscopy [EUPATH_0000207]"
	colLAMP             = "Plasmodium, by LAMP [EUPATH_0000487]"
	colHemoglobin       = "Hemoglobin (g/dL) [EUPATH_0000047]"
)

// table holds one parsed tab-separated file with a header index.
type table struct {
	name   string
	header map[string]int
	rows   [][]string
}

// readTable parses a tab-separated file and verifies the required columns
// are present. A missing required column is a schema error naming the file.
func readTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return parseTable(f, filepath.Base(path), required)
}

func parseTable(r io.Reader, name string, required []string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty table", name)
	}

	header := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		header[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", name, col)
		}
	}
	return &table{name: name, header: header, rows: records[1:]}, nil
}

// field returns the trimmed cell value for col in the i-th data row, or ""
// when the column is absent from this file or the row is short.
func (t *table) field(i int, col string) string {
	idx, ok := t.header[col]
	if !ok || idx >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][idx])
}

// line is the 1-based file line of the i-th data row, for diagnostics.
func (t *table) line(i int) int { return i + 2 }

func (t *table) rowErr(i int, format string, args ...any) error {
	prefix := fmt.Sprintf("%s line %d: ", t.name, t.line(i))
	return fmt.Errorf(prefix+format, args...)
}

func parseOptionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return &v, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// logShape mirrors the load-time shape reporting the pipeline has always
// done, one structured line per table.
func logShape(log *zap.Logger, name string, rows int) {
	if log != nil {
		log.Info("loaded table", zap.String("table", name), zap.Int("rows", rows))
	}
}
