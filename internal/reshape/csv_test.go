package reshape

import (
	"bytes"
	"strings"
	"testing"

	"prismview/internal/cohort"
)

func buildObservations(t *testing.T) []cohort.Observation {
	t.Helper()
	datasets, err := Build(fixture(), []string{"Nagongera"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return datasets[0].Observations
}

func TestWriteObservationsDeterministic(t *testing.T) {
	obs := buildObservations(t)
	var a, b bytes.Buffer
	if err := WriteObservations(&a, obs); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	if err := WriteObservations(&b, obs); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("identical observations must produce byte-identical CSV")
	}
}

func TestWriteObservationsNoDataFields(t *testing.T) {
	obs := buildObservations(t)
	var buf bytes.Buffer
	if err := WriteObservations(&buf, obs); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 1+len(obs) {
		t.Fatalf("got %d lines, want header plus %d rows", len(lines), len(obs))
	}
	if lines[0] != strings.Join(Columns, ",") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	// Row 2 is the unsampled visit: density and derived columns must be
	// empty, never zero or false.
	fields := strings.Split(lines[2], ",")
	if fields[9] != "" {
		t.Fatalf("unsampled density must be empty, got %q", fields[9])
	}
	if fields[16] != "" {
		t.Fatalf("is_positive without measurement must be empty, got %q", fields[16])
	}
	if fields[18] != "" {
		t.Fatalf("density_bucket without measurement must be empty, got %q", fields[18])
	}
}

func TestReadObservationsRoundTrip(t *testing.T) {
	obs := buildObservations(t)
	var buf bytes.Buffer
	if err := WriteObservations(&buf, obs); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	got, err := ReadObservations(&buf)
	if err != nil {
		t.Fatalf("ReadObservations: %v", err)
	}
	if len(got) != len(obs) {
		t.Fatalf("round trip lost rows: got %d, want %d", len(got), len(obs))
	}
	for i := range obs {
		w, g := obs[i], got[i]
		if g.Site != w.Site || g.HouseholdID != w.HouseholdID || g.ParticipantID != w.ParticipantID {
			t.Fatalf("row %d identity mismatch: %+v vs %+v", i, g, w)
		}
		if !g.Date.Equal(w.Date) || g.Fever != w.Fever || g.LAMP != w.LAMP || g.Gametocytes != w.Gametocytes {
			t.Fatalf("row %d field mismatch: %+v vs %+v", i, g, w)
		}
		if (g.ParasiteDensity == nil) != (w.ParasiteDensity == nil) {
			t.Fatalf("row %d density presence mismatch", i)
		}
		if g.ParasiteDensity != nil && *g.ParasiteDensity != *w.ParasiteDensity {
			t.Fatalf("row %d density %v, want %v", i, *g.ParasiteDensity, *w.ParasiteDensity)
		}
	}
}

func TestReadObservationsBadHeader(t *testing.T) {
	in := "site,household_id\nNagongera,HH-1\n"
	_, err := ReadObservations(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected error for truncated header")
	}
}

func TestReadObservationsBadField(t *testing.T) {
	obs := buildObservations(t)[:1]
	var buf bytes.Buffer
	if err := WriteObservations(&buf, obs); err != nil {
		t.Fatalf("WriteObservations: %v", err)
	}
	corrupted := strings.Replace(buf.String(), "2012-01-15", "not-a-date", 1)
	_, err := ReadObservations(strings.NewReader(corrupted))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("want line-numbered date error, got %v", err)
	}
}
