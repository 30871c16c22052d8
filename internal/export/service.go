package export

import (
	"context"
	"fmt"
	"html/template"

	"scribe/api/internal/markdown"
	"scribe/api/internal/store"
)

// Service renders stored documents to downloadable formats. The document's
// markdown is converted to HTML and printed through the page template.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) DocumentPDF(ctx context.Context, document store.Document) (*Result, error) {
	html, err := renderDocument(document)
	if err != nil {
		return nil, err
	}
	return exportPDF(ctx, html, document.Title)
}

func (s *Service) DocumentDOCX(ctx context.Context, document store.Document) (*Result, error) {
	html, err := renderDocument(document)
	if err != nil {
		return nil, err
	}
	return exportDOCX(html, document.Title)
}

func renderDocument(document store.Document) (string, error) {
	html, err := RenderDocumentHTML(TemplateData{
		Title:       document.Title,
		Preview:     document.Preview,
		ContentHTML: template.HTML(markdown.ToHTML(document.Text)),
		Author:      document.LastModifiedByID,
		UpdatedAt:   document.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return html, nil
}
