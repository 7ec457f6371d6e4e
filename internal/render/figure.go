package render

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"prismview/internal/cohort"
)

// Plotly scatter trace and styling fragments. Only the fields the viewer
// uses are modelled; everything marshals straight into the JSON plotly.js
// consumes in the browser.

type markerLine struct {
	Color string  `json:"color,omitempty"`
	Width float64 `json:"width,omitempty"`
}

type colorBar struct {
	Title    string    `json:"title,omitempty"`
	TickVals []float64 `json:"tickvals,omitempty"`
	TickText []string  `json:"ticktext,omitempty"`
	Len      float64   `json:"len,omitempty"`
	Y        float64   `json:"y,omitempty"`
	YAnchor  string    `json:"yanchor,omitempty"`
}

type marker struct {
	Size       any         `json:"size,omitempty"` // single size or per-point sizes
	Color      any         `json:"color,omitempty"`
	ColorScale string      `json:"colorscale,omitempty"`
	CMin       *float64    `json:"cmin,omitempty"`
	CMax       *float64    `json:"cmax,omitempty"`
	Line       *markerLine `json:"line,omitempty"`
	ColorBar   *colorBar   `json:"colorbar,omitempty"`
}

type trace struct {
	X           []string `json:"x"`
	Y           []int    `json:"y"`
	Mode        string   `json:"mode"`
	Name        string   `json:"name"`
	Marker      *marker  `json:"marker,omitempty"`
	HoverInfo   string   `json:"hoverinfo,omitempty"`
	HoverText   []string `json:"hovertext,omitempty"`
	LegendGroup string   `json:"legendgroup,omitempty"`
	ShowLegend  bool     `json:"showlegend"`
}

// Figure is the pre-baked payload for one household: traces plus the y-axis
// labelling the navigation script applies when the household is selected.
type Figure struct {
	HouseholdID string   `json:"household_id"`
	Members     int      `json:"members"`
	Positives   int      `json:"positives"`
	Title       string   `json:"title"`
	Rows        int      `json:"rows"`
	TickVals    []int    `json:"tickvals"`
	TickText    []string `json:"ticktext"`
	Traces      []trace  `json:"traces"`
}

// Density color scale bounds: log10 space, 10/uL .. ~300K/uL.
const (
	densityCMin = 1.0
	densityCMax = 5.5
)

// markerSize maps a parasite density onto a marker diameter. Log-scaled with
// a floor so low densities stay visible.
func markerSize(density float64) float64 {
	s := 50 * math.Log10(density)
	if s < 10 {
		s = 10
	}
	return s / 4.5
}

// track assigns each participant a row on the household timeline, ordered by
// age at enrollment (unknown ages last), ties broken by participant id.
type track struct {
	participantID string
	label         string
	row           int
}

func assignTracks(obs []cohort.Observation) []track {
	type member struct {
		id  string
		age *float64
		sex string
	}
	seen := make(map[string]struct{})
	var ms []member
	for _, o := range obs {
		if _, ok := seen[o.ParticipantID]; ok {
			continue
		}
		seen[o.ParticipantID] = struct{}{}
		ms = append(ms, member{id: o.ParticipantID, age: o.AgeAtEnrollment, sex: o.Sex})
	}
	sort.Slice(ms, func(i, j int) bool {
		ai, aj := ms[i].age, ms[j].age
		switch {
		case ai != nil && aj != nil && *ai != *aj:
			return *ai < *aj
		case ai != nil && aj == nil:
			return true
		case ai == nil && aj != nil:
			return false
		default:
			return ms[i].id < ms[j].id
		}
	})
	tracks := make([]track, len(ms))
	for i, m := range ms {
		tracks[i] = track{participantID: m.id, label: trackLabel(m.age, m.sex), row: i}
	}
	return tracks
}

func trackLabel(age *float64, sex string) string {
	a := "?"
	if age != nil {
		a = fmt.Sprintf("%d", int(*age))
	}
	s := "?"
	if sex != "" {
		s = sex[:1]
	}
	return a + " " + s
}

// BuildFigure constructs the plotly figure payload for one household. Trace
// layers follow the cohort marker rule table: every rule contributes one
// trace, drawn bottom-up, so the gametocyte ring always sits on top of the
// parasite disc it annotates.
func BuildFigure(summary HouseholdSummary, obs []cohort.Observation) Figure {
	tracks := assignTracks(obs)
	rowOf := make(map[string]int, len(tracks))
	for _, t := range tracks {
		rowOf[t.participantID] = t.row
	}

	layers := make(map[cohort.MarkerKind][]cohort.Observation)
	for _, o := range obs {
		for _, kind := range cohort.MarkersFor(o) {
			layers[kind] = append(layers[kind], o)
		}
	}

	var traces []trace
	for _, rule := range cohort.MarkerRules {
		traces = append(traces, buildTrace(rule.Kind, layers[rule.Kind], rowOf))
	}

	tickVals := make([]int, len(tracks))
	tickText := make([]string, len(tracks))
	for i, t := range tracks {
		tickVals[i] = t.row
		tickText[i] = t.label
	}

	return Figure{
		HouseholdID: summary.ID,
		Members:     summary.Members,
		Positives:   summary.Positives,
		Title: fmt.Sprintf("Household %s - %d members, %d microscopy-positive visits",
			summary.ID, summary.Members, summary.Positives),
		Rows:     len(tracks),
		TickVals: tickVals,
		TickText: tickText,
		Traces:   traces,
	}
}

func buildTrace(kind cohort.MarkerKind, obs []cohort.Observation, rowOf map[string]int) trace {
	x := make([]string, len(obs))
	y := make([]int, len(obs))
	for i, o := range obs {
		x[i] = o.Date.Format(time.DateOnly)
		y[i] = rowOf[o.ParticipantID]
	}
	// Empty layers keep their slot in the trace list but stay out of the
	// legend.
	t := trace{X: x, Y: y, Mode: "markers", LegendGroup: string(kind), ShowLegend: len(obs) > 0}

	switch kind {
	case cohort.MarkerVisit:
		t.Name = "All visits"
		t.Marker = &marker{Size: 3, Color: "darkgray"}
		t.HoverInfo = "skip"
	case cohort.MarkerFever:
		t.Name = "Fever"
		t.Marker = &marker{Size: 5, Color: "firebrick"}
		t.HoverInfo = "skip"
	case cohort.MarkerLAMPNegative:
		t.Name = "LAMP negative"
		t.Marker = &marker{Size: 8, Color: "rgba(0,0,0,0)", Line: &markerLine{Color: "darkgray", Width: 1}}
		t.HoverInfo = "text"
		t.HoverText = hoverLines("LAMP Negative", obs)
	case cohort.MarkerLAMPPositive:
		t.Name = "LAMP positive (submicroscopic)"
		t.Marker = &marker{Size: 10, Color: "rgba(255, 237, 160, 0.6)", Line: &markerLine{Color: "darkgray", Width: 1}}
		t.HoverInfo = "text"
		t.HoverText = hoverLines("LAMP Positive", obs)
	case cohort.MarkerMicroscopyNegative:
		t.Name = "Microscopy negative"
		t.Marker = &marker{Size: 10, Color: "rgba(0,0,0,0)", Line: &markerLine{Color: "darkgray", Width: 1}}
		t.HoverInfo = "text"
		t.HoverText = hoverLines("Microscopy Negative", obs)
	case cohort.MarkerParasitePositive:
		t.Name = "Parasite positive"
		sizes := make([]float64, len(obs))
		colors := make([]float64, len(obs))
		text := make([]string, len(obs))
		for i, o := range obs {
			d := *o.ParasiteDensity
			sizes[i] = markerSize(d)
			colors[i] = math.Log10(d)
			text[i] = positiveHover(o)
		}
		cmin, cmax := densityCMin, densityCMax
		t.Marker = &marker{
			Size:       sizes,
			Color:      colors,
			ColorScale: "YlOrRd",
			CMin:       &cmin,
			CMax:       &cmax,
			Line:       &markerLine{Color: "darkgray", Width: 0.5},
			ColorBar: &colorBar{
				Title:    "Parasite<br>Density<br>(log10)",
				TickVals: []float64{1, 2, 3, 4, 5},
				TickText: []string{"10", "100", "1K", "10K", "100K"},
				Len:      0.4,
				Y:        0.4,
				YAnchor:  "top",
			},
		}
		t.HoverInfo = "text"
		t.HoverText = text
	case cohort.MarkerGametocytes:
		t.Name = "Gametocytes detected"
		sizes := make([]float64, len(obs))
		for i, o := range obs {
			sizes[i] = markerSize(*o.ParasiteDensity) + 2
		}
		t.Marker = &marker{Size: sizes, Color: "rgba(0,0,0,0)", Line: &markerLine{Color: "olive", Width: 2}}
		t.HoverInfo = "skip"
	}
	return t
}

func hoverLines(label string, obs []cohort.Observation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = fmt.Sprintf("<b>%s</b><br>Date: %s<br>ID: %s", label, o.Date.Format(time.DateOnly), o.ParticipantID)
	}
	return out
}

func positiveHover(o cohort.Observation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Parasite Positive</b><br>Density: %s /uL<br>Date: %s<br>ID: %s",
		cohort.FormatDensity(*o.ParasiteDensity), o.Date.Format(time.DateOnly), o.ParticipantID)
	if o.Febrile() {
		b.WriteString("<br>Fever: Yes")
	}
	if o.Gametocytes == cohort.FlagYes {
		b.WriteString("<br>Gametocytes: Yes")
	}
	if tr := shortTreatment(o.Antimalarial); tr != "" {
		b.WriteString("<br>Treatment: " + tr)
	}
	return b.String()
}

// shortTreatment condenses the provider's long antimalarial descriptions
// into labels that fit in hover text. Unrecognized treatments pass through
// untouched.
func shortTreatment(treatment string) string {
	switch {
	case treatment == "" || treatment == "No malaria medications given":
		return ""
	case strings.Contains(treatment, "Artmether-lumefantrine"):
		return "AL treatment"
	case strings.Contains(treatment, "Quinine") && strings.Contains(treatment, "complicated"):
		return "Quinine (complicated)"
	case strings.Contains(treatment, "Quinine") && strings.Contains(treatment, "14 days"):
		return "Quinine (repeat)"
	case strings.Contains(treatment, "Quinine") && strings.Contains(treatment, "pregnancy"):
		return "Quinine (pregnancy)"
	case strings.Contains(treatment, "Artesunate"):
		return "Artesunate (complicated)"
	default:
		return treatment
	}
}
