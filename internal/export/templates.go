package export

import (
	"bytes"
	"html/template"
	"time"
)

var documentTemplate = template.Must(template.New("document").Parse(documentTemplateHTML))

// TemplateData holds data for document template rendering.
type TemplateData struct {
	Title       string
	Preview     string
	ContentHTML template.HTML
	Author      string
	UpdatedAt   time.Time
}

// RenderDocumentHTML renders the printable document page.
func RenderDocumentHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const documentTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Georgia, serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    pre { background: #f5f5f5; padding: 1rem; overflow-x: auto; }
    code { font-family: Menlo, monospace; font-size: 0.9em; }
    blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #444; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}}{{if not .UpdatedAt.IsZero}} | {{.UpdatedAt.Format "Jan 2, 2006"}}{{end}}</div>
  <div>{{.ContentHTML}}</div>
</body>
</html>`
