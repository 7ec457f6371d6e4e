package render

import (
	"strings"
	"testing"

	"prismview/internal/cohort"
)

func TestBuildSitePage(t *testing.T) {
	in := []cohort.Observation{
		obs("HH-1", "P-1", "2012-01-15", fptr(100)),
		obs("HH-1", "P-2", "2012-06-01", nil),
	}
	figures := []Figure{BuildFigure(HouseholdSummary{ID: "HH-1", Members: 2, Positives: 1}, in)}
	page, err := BuildSitePage("Nagongera", figures, in)
	if err != nil {
		t.Fatalf("BuildSitePage: %v", err)
	}
	html := string(page)

	for _, want := range []string{
		"cdn.plot.ly/plotly",
		"Nagongera",
		"const FIGURES =",
		`"household_id":"HH-1"`,
		`id="householdSelect"`,
		`id="prevBtn"`,
		`id="nextBtn"`,
		"ArrowRight",
		"Plotly.react",
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("page missing %q", want)
		}
	}

	// x-axis range is the observed span padded by four months either side.
	if !strings.Contains(html, `["2011-09-15", "2012-10-01"]`) {
		t.Fatalf("page missing padded x range: %s", html[:200])
	}
}

func TestBuildSitePageNoHouseholds(t *testing.T) {
	page, err := BuildSitePage("Walukuba", nil, nil)
	if err != nil {
		t.Fatalf("BuildSitePage: %v", err)
	}
	if !strings.Contains(string(page), "No households to display") {
		t.Fatal("empty site page must say there is nothing to show")
	}
}

func TestRenderSiteOrder(t *testing.T) {
	in := []cohort.Observation{
		obs("HH-A", "P-1", "2012-01-01", fptr(100)),
		obs("HH-A", "P-2", "2012-01-02", nil),
		obs("HH-B", "P-3", "2012-01-01", fptr(200)),
		obs("HH-B", "P-3", "2012-02-01", fptr(300)),
		obs("HH-B", "P-4", "2012-01-10", nil),
	}
	page, summaries, err := RenderSite("Nagongera", in)
	if err != nil {
		t.Fatalf("RenderSite: %v", err)
	}
	if len(summaries) != 2 || summaries[0].ID != "HH-B" {
		t.Fatalf("household order wrong: %+v", summaries)
	}
	html := string(page)
	if strings.Index(html, `"household_id":"HH-B"`) > strings.Index(html, `"household_id":"HH-A"`) {
		t.Fatal("figures must embed in ranked order")
	}
}

func TestBuildIndexPage(t *testing.T) {
	page, err := BuildIndexPage([]IndexEntry{
		{Site: "Nagongera", Href: "viewers/nagongera.html", Households: 12, Observations: 3400, Positives: 210},
		{Site: "Walukuba", Href: "viewers/walukuba.html"},
	})
	if err != nil {
		t.Fatalf("BuildIndexPage: %v", err)
	}
	html := string(page)
	for _, want := range []string{"Nagongera", "viewers/nagongera.html", "Walukuba", "3400"} {
		if !strings.Contains(html, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}
