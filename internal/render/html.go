package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"prismview/internal/cohort"
)

// How far the locked x-axis extends past the observed date range.
const xAxisPadMonths = 4

// sitePage is the template payload for one site's viewer document.
type sitePage struct {
	Site        string
	Households  int
	FiguresJSON template.JS
	XMin        string
	XMax        string
}

var siteTemplate = template.Must(template.New("site").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PRISM Household Viewer - {{.Site}}</title>
<script src="https://cdn.plot.ly/plotly-2.35.2.min.js" charset="utf-8"></script>
<style>
body { font-family: sans-serif; margin: 0; padding: 0 12px; background: white; }
#nav { display: flex; align-items: center; gap: 10px; padding: 10px 0; }
#nav select { max-width: 340px; padding: 4px; background: lightblue; border: 1px solid black; }
#nav button { padding: 5px 15px; cursor: pointer; font-size: 14px; }
#counter { font-size: 14px; min-width: 60px; text-align: center; }
#hint { font-size: 11px; color: #666; }
#chart { height: 800px; }
</style>
</head>
<body>
<h2>PRISM Household Viewer - {{.Site}} ({{.Households}} households)</h2>
<div id="nav">
  <select id="householdSelect"></select>
  <button id="prevBtn">&larr; Previous</button>
  <span id="counter"></span>
  <button id="nextBtn">Next &rarr;</button>
  <span id="hint">Use &larr; &rarr; arrow keys</span>
</div>
<div id="chart"></div>
<script>
const FIGURES = {{.FiguresJSON}};
const X_RANGE = ["{{.XMin}}", "{{.XMax}}"];
let current = 0;

function layoutFor(fig) {
  return {
    title: { text: fig.title, font: { size: 16 }, x: 0.5, xanchor: "center" },
    xaxis: { title: "Date", gridcolor: "lightgray", gridwidth: 0.5, range: X_RANGE },
    yaxis: {
      title: "Age (years) & Sex",
      tickmode: "array",
      tickvals: fig.tickvals,
      ticktext: fig.ticktext,
      gridcolor: "lightgray",
      gridwidth: 0.5,
      range: [-0.5, fig.rows - 0.5],
      showgrid: true,
      zeroline: true,
      zerolinecolor: "lightgray",
      zerolinewidth: 0.5
    },
    plot_bgcolor: "white",
    hovermode: "closest",
    height: 800,
    showlegend: true,
    legend: {
      orientation: "v", yanchor: "top", y: 0.98, xanchor: "left", x: 1.02,
      bgcolor: "rgba(255,255,255,0.8)", bordercolor: "black", borderwidth: 1
    }
  };
}

function show(index) {
  if (index < 0 || index >= FIGURES.length) return;
  current = index;
  const fig = FIGURES[index];
  Plotly.react("chart", fig.traces, layoutFor(fig), {
    displayModeBar: true,
    displaylogo: false,
    modeBarButtonsToRemove: ["lasso2d", "select2d"]
  });
  document.getElementById("householdSelect").value = index;
  document.getElementById("counter").textContent = (index + 1) + " / " + FIGURES.length;
  document.getElementById("prevBtn").disabled = index === 0;
  document.getElementById("nextBtn").disabled = index === FIGURES.length - 1;
}

document.getElementById("prevBtn").addEventListener("click", () => show(current - 1));
document.getElementById("nextBtn").addEventListener("click", () => show(current + 1));
document.getElementById("householdSelect").addEventListener("change", e => show(Number(e.target.value)));
document.addEventListener("keydown", e => {
  if (e.key === "ArrowRight" || e.key === "ArrowDown") { show(current + 1); e.preventDefault(); }
  else if (e.key === "ArrowLeft" || e.key === "ArrowUp") { show(current - 1); e.preventDefault(); }
});

const select = document.getElementById("householdSelect");
FIGURES.forEach((fig, i) => {
  const opt = document.createElement("option");
  opt.value = i;
  opt.textContent = "HH " + fig.household_id + " (" + fig.members + "m, " + fig.positives + "i)";
  select.appendChild(opt);
});
if (FIGURES.length > 0) {
  show(0);
} else {
  document.getElementById("chart").textContent = "No households to display.";
}
</script>
</body>
</html>
`))

// BuildSitePage renders the self-contained viewer HTML for one site. The
// figures arrive pre-ranked; the page preserves their order.
func BuildSitePage(site string, figures []Figure, obs []cohort.Observation) ([]byte, error) {
	payload, err := json.Marshal(figures)
	if err != nil {
		return nil, fmt.Errorf("marshal figures: %w", err)
	}
	xmin, xmax := dateRange(obs)
	page := sitePage{
		Site:        site,
		Households:  len(figures),
		FiguresJSON: template.JS(payload),
		XMin:        xmin,
		XMax:        xmax,
	}
	var buf bytes.Buffer
	if err := siteTemplate.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("render site page: %w", err)
	}
	return buf.Bytes(), nil
}

// dateRange returns the padded x-axis bounds covering every observation.
func dateRange(obs []cohort.Observation) (string, string) {
	if len(obs) == 0 {
		return "", ""
	}
	min, max := obs[0].Date, obs[0].Date
	for _, o := range obs[1:] {
		if o.Date.Before(min) {
			min = o.Date
		}
		if o.Date.After(max) {
			max = o.Date
		}
	}
	return min.AddDate(0, -xAxisPadMonths, 0).Format(time.DateOnly),
		max.AddDate(0, xAxisPadMonths, 0).Format(time.DateOnly)
}
