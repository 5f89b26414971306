package render

import (
	"embed"
	htmltemplate "html/template"
	"io"
	"strings"
	texttemplate "text/template"
)

const (
	dashboardTemplatePath = "templates/dashboard.html"
	markdownTemplatePath  = "templates/report.md"
)

//go:embed templates/dashboard.html templates/report.md
var templateFS embed.FS

var (
	markdownTemplateFuncs = texttemplate.FuncMap{
		"tags":   markdownTags,
		"blocks": markdownBlocks,
		"cell":   markdownCell,
	}

	dashboardTemplate = htmltemplate.Must(
		htmltemplate.New("dashboard.html").ParseFS(templateFS, dashboardTemplatePath),
	)
	markdownTemplate = texttemplate.Must(
		texttemplate.New("report.md").Funcs(markdownTemplateFuncs).ParseFS(templateFS, markdownTemplatePath),
	)
)

// Page is the view model of the dashboard.
type Page struct {
	Title      string
	State      string
	URL        string
	Error      string
	Analyzing  bool
	SubmitPath string
	ExportPath string
	PDFPath    string
	Sections   Sections
}

// HTML writes the dashboard page.
func HTML(w io.Writer, p Page) error {
	if p.Title == "" {
		p.Title = "Gatespy"
	}
	return dashboardTemplate.Execute(w, p)
}

// Markdown writes s as a markdown document.
func Markdown(w io.Writer, s Sections) error {
	return markdownTemplate.Execute(w, s)
}

func markdownTags(t TagList) string {
	if t.Empty() {
		return "_" + t.Placeholder + "_"
	}
	out := make([]string, len(t.Items))
	for i, item := range t.Items {
		out[i] = "`" + item + "`"
	}
	return strings.Join(out, " ")
}

func markdownBlocks(b Blocks) string {
	if b.Empty() {
		return "\n_" + b.Placeholder + "_"
	}
	var sb strings.Builder
	for _, block := range b.Items {
		parts := make([]string, len(block.Fields))
		for i, f := range block.Fields {
			parts[i] = f.Label + ": " + f.Value
		}
		sb.WriteString("\n- ")
		sb.WriteString(strings.Join(parts, ", "))
	}
	return sb.String()
}

func markdownCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
