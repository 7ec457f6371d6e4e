package reshape

import (
	"strings"
	"testing"
	"time"

	"prismview/internal/cohort"
	"prismview/internal/source"
)

func fptr(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fixture returns a small two-site dataset: two households in Nagongera and
// one in Walukuba.
func fixture() *source.Tables {
	return &source.Tables{
		Households: []cohort.Household{
			{ID: "HH-1", Site: "Nagongera"},
			{ID: "HH-2", Site: "Nagongera"},
			{ID: "HH-3", Site: "Walukuba"},
		},
		Participants: []cohort.Participant{
			{ID: "P-1", HouseholdID: "HH-1", Sex: "Female", AgeAtEnrollment: fptr(30)},
			{ID: "P-2", HouseholdID: "HH-1", Sex: "Male", AgeAtEnrollment: fptr(4)},
			{ID: "P-3", HouseholdID: "HH-2", Sex: "Female", AgeAtEnrollment: fptr(25)},
			{ID: "P-4", HouseholdID: "HH-3", Sex: "Male", AgeAtEnrollment: fptr(50)},
		},
		Visits: []cohort.Visit{
			{ID: "V-2", ParticipantID: "P-1", Date: day("2012-03-01")},
			{ID: "V-1", ParticipantID: "P-1", Date: day("2012-01-15")},
			{ID: "V-3", ParticipantID: "P-2", Date: day("2012-02-10"), Fever: cohort.FlagYes},
			{ID: "V-4", ParticipantID: "P-3", Date: day("2012-01-20")},
			{ID: "V-5", ParticipantID: "P-4", Date: day("2012-04-01")},
		},
		Samples: []cohort.Sample{
			{VisitID: "V-1", ParasiteDensity: fptr(0)},
			{VisitID: "V-3", ParasiteDensity: fptr(5200), Gametocytes: cohort.FlagYes},
			{VisitID: "V-4", LAMP: cohort.ResultPositive},
		},
	}
}

func TestBuildRowCount(t *testing.T) {
	// One output row per visit of a participant in a household of the site,
	// no more, no less, samples joined or not.
	datasets, err := Build(fixture(), []string{"Nagongera", "Walukuba"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("got %d datasets, want 2", len(datasets))
	}
	if n := len(datasets[0].Observations); n != 4 {
		t.Fatalf("Nagongera: got %d observations, want 4", n)
	}
	if n := len(datasets[1].Observations); n != 1 {
		t.Fatalf("Walukuba: got %d observations, want 1", n)
	}
}

func TestBuildOrdering(t *testing.T) {
	datasets, err := Build(fixture(), []string{"Nagongera"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	obs := datasets[0].Observations
	// Household, then participant, then visit date. V-1 precedes V-2 even
	// though the input lists them reversed.
	wantVisitOrder := []string{"2012-01-15", "2012-03-01", "2012-02-10", "2012-01-20"}
	for i, o := range obs {
		if got := o.Date.Format(time.DateOnly); got != wantVisitOrder[i] {
			t.Fatalf("row %d: date %s, want %s", i, got, wantVisitOrder[i])
		}
	}
	if obs[0].ParticipantID != "P-1" || obs[2].ParticipantID != "P-2" || obs[3].ParticipantID != "P-3" {
		t.Fatalf("participant order wrong: %v", []string{obs[0].ParticipantID, obs[1].ParticipantID, obs[2].ParticipantID, obs[3].ParticipantID})
	}
}

func TestBuildJoin(t *testing.T) {
	datasets, err := Build(fixture(), []string{"Nagongera"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	obs := datasets[0].Observations

	// V-1: sample with zero density.
	if !obs[0].MicroscopyNegative() {
		t.Fatalf("V-1 should be microscopy negative: %+v", obs[0])
	}
	// V-2: no sample row at all; lab fields stay absent.
	if obs[1].ParasiteDensity != nil || obs[1].LAMP != cohort.ResultUnknown {
		t.Fatalf("unsampled visit must carry no lab data: %+v", obs[1])
	}
	// V-3: positive with gametocytes, participant fields joined in.
	if !obs[2].MicroscopyPositive() || obs[2].Gametocytes != cohort.FlagYes {
		t.Fatalf("V-3 sample not joined: %+v", obs[2])
	}
	if obs[2].Sex != "Male" || obs[2].HouseholdID != "HH-1" || obs[2].Site != "Nagongera" {
		t.Fatalf("participant/household fields not joined: %+v", obs[2])
	}
}

func TestBuildStats(t *testing.T) {
	datasets, err := Build(fixture(), []string{"Nagongera"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s := datasets[0].Stats
	if s.Households != 2 || s.Participants != 3 || s.Observations != 4 || s.MicroscopyPositive != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if !s.DateMin.Equal(day("2012-01-15")) || !s.DateMax.Equal(day("2012-03-01")) {
		t.Fatalf("unexpected date range: %v .. %v", s.DateMin, s.DateMax)
	}
}

func TestBuildUnknownSiteIsEmpty(t *testing.T) {
	datasets, err := Build(fixture(), []string{"Kihihi"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(datasets) != 1 || len(datasets[0].Observations) != 0 {
		t.Fatalf("unknown site must yield an empty dataset, got %+v", datasets)
	}
}

func TestBuildBrokenReferences(t *testing.T) {
	t.Run("participant without household", func(t *testing.T) {
		tables := fixture()
		tables.Participants = append(tables.Participants, cohort.Participant{ID: "P-9", HouseholdID: "HH-9"})
		_, err := Build(tables, []string{"Nagongera"})
		if err == nil || !strings.Contains(err.Error(), "unknown household") {
			t.Fatalf("want unknown-household error, got %v", err)
		}
	})
	t.Run("visit without participant", func(t *testing.T) {
		tables := fixture()
		tables.Visits = append(tables.Visits, cohort.Visit{ID: "V-9", ParticipantID: "P-9", Date: day("2012-01-01")})
		_, err := Build(tables, []string{"Nagongera"})
		if err == nil || !strings.Contains(err.Error(), "unknown participant") {
			t.Fatalf("want unknown-participant error, got %v", err)
		}
	})
	t.Run("sample without visit", func(t *testing.T) {
		tables := fixture()
		tables.Samples = append(tables.Samples, cohort.Sample{VisitID: "V-9"})
		_, err := Build(tables, []string{"Nagongera"})
		if err == nil || !strings.Contains(err.Error(), "unknown repeated measure") {
			t.Fatalf("want unknown-visit error, got %v", err)
		}
	})
	t.Run("duplicate sample", func(t *testing.T) {
		tables := fixture()
		tables.Samples = append(tables.Samples, cohort.Sample{VisitID: "V-1"})
		_, err := Build(tables, []string{"Nagongera"})
		if err == nil || !strings.Contains(err.Error(), "duplicate sample") {
			t.Fatalf("want duplicate-sample error, got %v", err)
		}
	})
	t.Run("duplicate household", func(t *testing.T) {
		tables := fixture()
		tables.Households = append(tables.Households, cohort.Household{ID: "HH-1", Site: "Nagongera"})
		_, err := Build(tables, []string{"Nagongera"})
		if err == nil || !strings.Contains(err.Error(), "duplicate household") {
			t.Fatalf("want duplicate-household error, got %v", err)
		}
	})
}
