package search

import (
	"context"
	"log"

	"scribe/api/internal/store"
)

// Service is the facade the rest of the app talks to. It tries Meilisearch
// first and falls back to Postgres full-text search when it is unhealthy.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil when Meilisearch is
// not configured; pgfts then carries every query.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

func (s *Service) Search(ctx context.Context, teamID, query string, limit int) ([]Hit, error) {
	if s.meili != nil && s.meili.Healthy() {
		hits, err := s.meili.Search(teamID, query, limit)
		if err == nil {
			return nonNil(hits), nil
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}
	hits, err := s.pgfts.Search(ctx, teamID, query, limit)
	if err != nil {
		return nil, err
	}
	return nonNil(hits), nil
}

func (s *Service) IndexDocument(ctx context.Context, document store.Document) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	return s.meili.IndexDocument(recordFor(document))
}

func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	if s.meili == nil || !s.meili.Healthy() {
		return nil
	}
	return s.meili.DeleteDocument(documentID)
}

// Reindex pushes every stored document into Meilisearch. Called at startup
// so the index catches up after downtime; fts queries need no reindex.
func (s *Service) Reindex(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	records, err := s.pgfts.loadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		log.Printf("search: reindex documents: %v", err)
	}
}

func recordFor(document store.Document) documentRecord {
	record := documentRecord{
		ID:      document.ID,
		Title:   document.Title,
		Text:    document.Text,
		Preview: document.Preview,
		TeamID:  document.TeamID,
	}
	if document.CollectionID != nil {
		record.CollectionID = *document.CollectionID
	}
	return record
}

func nonNil(hits []Hit) []Hit {
	if hits == nil {
		return []Hit{}
	}
	return hits
}
