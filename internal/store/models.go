package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	TeamID       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type Collection struct {
	ID          string
	TeamID      string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Document is the persisted wiki document. Text is the markdown source of
// truth; Preview is derived from it on every text change. A nil CollectionID
// on a non-template document means the document is a private draft.
type Document struct {
	ID               string
	Title            string
	Text             string
	Preview          string
	Icon             *string
	Color            *string
	CoverImg         *string
	CoverImgPosX     float64
	CoverImgPosY     float64
	EditorVersion    string
	TemplateID       *string
	FullWidth        bool
	InsightsEnabled  bool
	CollectionID     *string
	TeamID           string
	CreatedByID      string
	LastModifiedByID string
	IsTemplate       bool
	PublishedAt      *time.Time
	ArchivedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Attributes returns the comparable mutable state of the document. Two
// snapshots compare equal exactly when no persisted attribute differs, which
// is how the update command decides whether anything actually changed.
func (d Document) Attributes() DocumentAttributes {
	return DocumentAttributes{
		Title:           d.Title,
		Text:            d.Text,
		Preview:         d.Preview,
		Icon:            deref(d.Icon),
		HasIcon:         d.Icon != nil,
		Color:           deref(d.Color),
		HasColor:        d.Color != nil,
		CoverImg:        deref(d.CoverImg),
		HasCoverImg:     d.CoverImg != nil,
		CoverImgPosX:    d.CoverImgPosX,
		CoverImgPosY:    d.CoverImgPosY,
		EditorVersion:   d.EditorVersion,
		TemplateID:      deref(d.TemplateID),
		HasTemplateID:   d.TemplateID != nil,
		FullWidth:       d.FullWidth,
		InsightsEnabled: d.InsightsEnabled,
		CollectionID:    deref(d.CollectionID),
		HasCollectionID: d.CollectionID != nil,
	}
}

// DocumentAttributes is a value-type snapshot of Document's mutable columns.
// Pointer fields are flattened so the struct stays comparable with ==.
type DocumentAttributes struct {
	Title           string
	Text            string
	Preview         string
	Icon            string
	HasIcon         bool
	Color           string
	HasColor        bool
	CoverImg        string
	HasCoverImg     bool
	CoverImgPosX    float64
	CoverImgPosY    float64
	EditorVersion   string
	TemplateID      string
	HasTemplateID   bool
	FullWidth       bool
	InsightsEnabled bool
	CollectionID    string
	HasCollectionID bool
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// Comment is a threaded comment on a document. A nil ParentCommentID marks a
// thread root. Data is the opaque rich-content value; resolution state lives
// in ResolvedAt/ResolvedByID. ResolvedBy carries the actor reference for the
// most recent resolve or reopen and is loaded from resolved_by_id when that
// column is set; after a reopen it is populated in memory only, since the
// column is cleared.
type Comment struct {
	ID              string
	DocumentID      string
	ParentCommentID *string
	Data            json.RawMessage
	CreatedByID     string
	ResolvedAt      *time.Time
	ResolvedByID    *string
	ResolvedBy      *User
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Resolved reports whether the comment is currently in the resolved state.
func (c Comment) Resolved() bool {
	return c.ResolvedByID != nil
}

// Event is an append-only record of a domain occurrence. Immediate events are
// inserted inside the triggering transaction; scheduled events travel through
// the Redis queue and are never guaranteed durable.
type Event struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ModelID      string         `json:"modelId"`
	DocumentID   string         `json:"documentId"`
	CollectionID *string        `json:"collectionId"`
	TeamID       string         `json:"teamId"`
	ActorID      string         `json:"actorId"`
	IP           string         `json:"ip"`
	Data         map[string]any `json:"data"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type Revision struct {
	Hash      string
	Title     string
	Author    string
	CreatedAt time.Time
}
