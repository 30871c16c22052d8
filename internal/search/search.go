package search

// Hit is a single search result returned to the caller.
type Hit struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	CollectionID string `json:"collectionId,omitempty"`
}

// documentRecord is the projection of a document pushed into the index.
// Text is indexed but never returned in hits; the snippet comes from the
// preview.
type documentRecord struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Text         string `json:"text"`
	Preview      string `json:"preview"`
	TeamID       string `json:"teamId"`
	CollectionID string `json:"collectionId"`
}
