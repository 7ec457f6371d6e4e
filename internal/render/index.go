package render

import (
	"bytes"
	"fmt"
	"html/template"
)

// IndexEntry is one site row on the landing page.
type IndexEntry struct {
	Site         string
	Href         string
	Households   int
	Observations int
	Positives    int
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PRISM Household Viewers</title>
<style>
body { font-family: sans-serif; margin: 40px auto; max-width: 720px; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 8px 12px; text-align: left; }
th { background: #f0f0f0; }
td.num { text-align: right; }
</style>
</head>
<body>
<h1>PRISM Household Viewers</h1>
<p>Household malaria timelines per study site. Each viewer is a standalone page.</p>
<table>
<tr><th>Site</th><th>Households shown</th><th>Observations</th><th>Microscopy-positive visits</th></tr>
{{range .}}<tr>
<td><a href="{{.Href}}">{{.Site}}</a></td>
<td class="num">{{.Households}}</td>
<td class="num">{{.Observations}}</td>
<td class="num">{{.Positives}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

// BuildIndexPage renders the landing page linking each site's viewer.
func BuildIndexPage(entries []IndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, entries); err != nil {
		return nil, fmt.Errorf("render index page: %w", err)
	}
	return buf.Bytes(), nil
}
