// Package templates holds the embedded HTML templates and their helper functions.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html.tmpl
var templateFS embed.FS

// ResultsTemplate is the per-run HTML results page
const ResultsTemplate = "results.html.tmpl"

// GetHTMLTemplate parses the embedded template with the shared template functions
func GetHTMLTemplate(name string) (*template.Template, error) {
	return template.New(name).Funcs(GetTemplateFunc()).ParseFS(templateFS, name)
}
