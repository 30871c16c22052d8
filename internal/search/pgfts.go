package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS is the PostgreSQL full-text fallback, used when Meilisearch is
// unreachable. It ranks against the generated fts column on documents.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

func (p *PgFTS) Search(ctx context.Context, teamID, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title,
			ts_headline('english', coalesce(preview, ''), plainto_tsquery('english', $2), 'MaxFragments=1,MaxWords=30') AS snippet,
			coalesce(collection_id, '')
		FROM documents
		WHERE team_id = $1 AND fts @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(fts, plainto_tsquery('english', $2)) DESC
		LIMIT $3
	`, teamID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	hits := make([]Hit, 0)
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.ID, &hit.Title, &hit.Snippet, &hit.CollectionID); err != nil {
			return nil, fmt.Errorf("pgfts scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// loadAllRecords returns every document projection for full reindexing.
func (p *PgFTS) loadAllRecords(ctx context.Context) ([]documentRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, text, preview, team_id, coalesce(collection_id, '')
		FROM documents
	`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	records := make([]documentRecord, 0)
	for rows.Next() {
		var record documentRecord
		if err := rows.Scan(&record.ID, &record.Title, &record.Text, &record.Preview,
			&record.TeamID, &record.CollectionID); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
