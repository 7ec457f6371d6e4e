package render

import (
	"prismview/internal/cohort"
)

// RenderSite ranks the site's households, builds one figure per household and
// assembles the standalone viewer document. The returned summaries mirror the
// figure order on the page.
func RenderSite(site string, obs []cohort.Observation) ([]byte, []HouseholdSummary, error) {
	summaries := RankHouseholds(obs)
	grouped := byHousehold(obs)

	figures := make([]Figure, 0, len(summaries))
	for _, s := range summaries {
		figures = append(figures, BuildFigure(s, grouped[s.ID]))
	}

	page, err := BuildSitePage(site, figures, obs)
	if err != nil {
		return nil, nil, err
	}
	return page, summaries, nil
}
