package report

import (
	"embed"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/geclass/geclass/internal/app/models"
	"github.com/geclass/geclass/internal/app/survey"
)

//go:embed templates/report.tex.tmpl
var templates embed.FS

var reportTemplate = template.Must(
	template.New("report.tex.tmpl").
		Delims("<<", ">>").
		Funcs(template.FuncMap{
			"percent": func(v float64) string { return fmt.Sprintf("%.0f\\,\\%%", v*100) },
			"value": func(v survey.Value) string {
				if !v.Defined {
					return "--"
				}
				return fmt.Sprintf("%.2f", v.Value)
			},
		}).
		ParseFS(templates, "templates/report.tex.tmpl"),
)

// OverallRow is one line of the summary table.
type OverallRow struct {
	Label   string
	Course  survey.Value
	Similar survey.Value
}

// Data is what a course report is rendered from.
type Data struct {
	RunID       string
	Identifier  string
	Name        string
	GeneratedAt time.Time
	Statistics  *models.ReportStatistics
}

type templateData struct {
	CourseName string
	Date       string
	Counts     models.ReportCounts
	Confidence float64
	Overall    []OverallRow
}

var overallLabels = []struct {
	key, label string
}{
	{"you_pre", "Eigene Sicht (prä)"},
	{"you_post", "Eigene Sicht (post)"},
	{"expert_pre", "Expertensicht (prä)"},
	{"expert_post", "Expertensicht (post)"},
	{"mark", "Bedeutung für die Note"},
}

// WriteTeX renders the LaTeX source of a report.
func WriteTeX(w io.Writer, d Data) error {
	td := templateData{
		CourseName: Escape(d.Name),
		Date:       d.GeneratedAt.Format("02.01.2006"),
	}
	if s := d.Statistics; s != nil {
		td.Counts = s.Counts
		td.Confidence = 1 - s.Significance
		for _, l := range overallLabels {
			o := s.Overall[l.key]
			td.Overall = append(td.Overall, OverallRow{Label: l.label, Course: o.CourseMean, Similar: o.SimilarMean})
		}
	}
	return reportTemplate.Execute(w, td)
}
