package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const idxDocuments = "scribe_documents"

// Meili is the primary search backend.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the documents index.
// The client keeps polling an unavailable server and recovers on its own.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxDocuments,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxDocuments, err)
	}

	index := m.client.Index(idxDocuments)
	filterable := []interface{}{"teamId", "collectionId"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxDocuments, err)
	}
	searchable := []string{"title", "text", "preview"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxDocuments, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the documents index scoped to one team.
func (m *Meili) Search(teamID, query string, limit int) ([]Hit, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxDocuments).Search(query, &meili.SearchRequest{
		Limit:                 int64(limit),
		Filter:                fmt.Sprintf("teamId = %q", teamID),
		AttributesToHighlight: []string{"preview", "title"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		hits = append(hits, Hit{
			ID:           decodeString(hit, "id"),
			Title:        firstNonBlank(decodeFormattedString(hit, "title"), decodeString(hit, "title")),
			Snippet:      firstNonBlank(decodeFormattedString(hit, "preview"), decodeString(hit, "preview")),
			CollectionID: decodeString(hit, "collectionId"),
		})
	}
	return hits, nil
}

// IndexDocument adds or updates one document in the index.
func (m *Meili) IndexDocument(record documentRecord) error {
	_, err := m.client.Index(idxDocuments).AddDocuments([]documentRecord{record}, nil)
	return err
}

// IndexDocuments bulk-indexes documents, used for reindexing at startup.
func (m *Meili) IndexDocuments(records []documentRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxDocuments).AddDocuments(records, nil)
	return err
}

// DeleteDocument removes a document from the index.
func (m *Meili) DeleteDocument(id string) error {
	_, err := m.client.Index(idxDocuments).DeleteDocument(id, nil)
	return err
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return strings.TrimSpace(formatted[key])
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
