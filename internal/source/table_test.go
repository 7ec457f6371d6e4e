package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prismview/internal/cohort"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func tsv(rows ...[]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

func TestReadHouseholds(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, HouseholdsFile, tsv(
		[]string{colHouseholdID, colSubCounty, "Extra column"},
		[]string{"HH-1", "Nagongera", "ignored"},
		[]string{"HH-2", "Walukuba", ""},
	))
	hhs, err := ReadHouseholds(path)
	if err != nil {
		t.Fatalf("ReadHouseholds: %v", err)
	}
	if len(hhs) != 2 {
		t.Fatalf("got %d households, want 2", len(hhs))
	}
	if hhs[0].ID != "HH-1" || hhs[0].Site != "Nagongera" {
		t.Fatalf("unexpected first household: %+v", hhs[0])
	}
}

func TestReadHouseholdsMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, HouseholdsFile, tsv(
		[]string{colHouseholdID},
		[]string{"HH-1"},
	))
	_, err := ReadHouseholds(path)
	if err == nil {
		t.Fatal("expected schema error for missing sub-county column")
	}
	if !strings.Contains(err.Error(), "missing required column") {
		t.Fatalf("error should name the missing column, got: %v", err)
	}
	if !strings.Contains(err.Error(), HouseholdsFile) {
		t.Fatalf("error should name the file, got: %v", err)
	}
}

func TestReadParticipants(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, ParticipantsFile, tsv(
		[]string{colParticipantID, colHouseholdID, colSex, colAgeAtEnrollment, colEnrollmentDate},
		[]string{"P-1", "HH-1", "Female", "34.2", "2011-08-05"},
		[]string{"P-2", "HH-1", "Male", "", ""},
	))
	ps, err := ReadParticipants(path)
	if err != nil {
		t.Fatalf("ReadParticipants: %v", err)
	}
	if len(ps) != 2 {
		t.Fatalf("got %d participants, want 2", len(ps))
	}
	if ps[0].AgeAtEnrollment == nil || *ps[0].AgeAtEnrollment != 34.2 {
		t.Fatalf("age at enrollment not parsed: %+v", ps[0])
	}
	if ps[1].AgeAtEnrollment != nil {
		t.Fatal("blank age must stay absent, not zero")
	}
	if ps[1].EnrollmentDate != nil {
		t.Fatal("blank enrollment date must stay absent")
	}
}

func TestReadVisitsBadDate(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, VisitsFile, tsv(
		[]string{colVisitID, colParticipantID, colObservationDate},
		[]string{"V-1", "P-1", "05/08/2011"},
	))
	_, err := ReadVisits(path)
	if err == nil {
		t.Fatal("expected error for non-ISO date")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should carry the file line, got: %v", err)
	}
}

func TestReadSamples(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, SamplesFile, tsv(
		[]string{colVisitID, colParasiteDensity, colGametocytes, colLAMP, colHemoglobin},
		[]string{"V-1", "5200", "Yes", "", "11.9"},
		[]string{"V-2", "0", "No", "Positive", ""},
		[]string{"V-3", "", "", "No result", ""},
	))
	ss, err := ReadSamples(path)
	if err != nil {
		t.Fatalf("ReadSamples: %v", err)
	}
	if len(ss) != 3 {
		t.Fatalf("got %d samples, want 3", len(ss))
	}
	if ss[0].Gametocytes != cohort.FlagYes {
		t.Fatalf("gametocytes not parsed: %+v", ss[0])
	}
	if ss[1].LAMP != cohort.ResultPositive {
		t.Fatalf("LAMP not parsed: %+v", ss[1])
	}
	if ss[2].ParasiteDensity != nil {
		t.Fatal("blank density must stay absent")
	}
	if ss[2].LAMP != cohort.ResultNoResult {
		t.Fatalf(`"No result" must parse as its own state, got %v`, ss[2].LAMP)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected error when source tables are absent")
	}
}

func TestFieldShortRow(t *testing.T) {
	tbl, err := parseTable(strings.NewReader(tsv(
		[]string{"A", "B", "C"},
		[]string{"1"},
	)), "short.txt", []string{"A"})
	if err != nil {
		t.Fatalf("parseTable: %v", err)
	}
	if got := tbl.field(0, "C"); got != "" {
		t.Fatalf("short row must read as blank, got %q", got)
	}
}
