package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"orNA": func(s string) string {
			if s == "" {
				return "N/A"
			}
			return s
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderReportHTML renders the submission report template.
func RenderReportHTML(info SubmissionInfo) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, info); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>SI/PI Review {{.ID}}</title>
</head>
<body>
  <h1>SI/PI Review Submission</h1>
  <p>{{.ID}} | {{.Name}} | {{.Email}}</p>
  <p>{{.ProjectDescription}}</p>
</body>
</html>`
