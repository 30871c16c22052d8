package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"scribe/api/internal/auth"
	"scribe/api/internal/authpw"
	"scribe/api/internal/config"
	"scribe/api/internal/events"
	"scribe/api/internal/markdown"
	"scribe/api/internal/mentions"
	"scribe/api/internal/search"
	"scribe/api/internal/store"
	"scribe/api/internal/util"
)

type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	TeamID    string    `json:"teamId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CreateDocumentInput struct {
	Title        string  `json:"title"`
	Text         string  `json:"text"`
	CollectionID *string `json:"collectionId"`
	IsTemplate   bool    `json:"template"`
	Publish      bool    `json:"publish"`
}

type CreateCommentInput struct {
	DocumentID      string          `json:"documentId"`
	ParentCommentID *string         `json:"parentCommentId"`
	Data            json.RawMessage `json:"data"`
}

type dataStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Ping(ctx context.Context) error
	EnsureTeam(ctx context.Context, name string) (store.Team, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]store.User, error)
	InsertCollection(ctx context.Context, item store.Collection) error
	GetCollection(ctx context.Context, collectionID string) (store.Collection, error)
	ListCollections(ctx context.Context, teamID string) ([]store.Collection, error)
	InsertDocument(ctx context.Context, item store.Document) error
	GetDocument(ctx context.Context, documentID string) (store.Document, error)
	GetDocumentForUser(ctx context.Context, tx *sql.Tx, documentID, userID string) (store.Document, error)
	ListDocuments(ctx context.Context, teamID string) ([]store.Document, error)
	UpdateDocument(ctx context.Context, tx *sql.Tx, item store.Document) error
	InsertComment(ctx context.Context, item store.Comment) error
	GetComment(ctx context.Context, commentID string) (store.Comment, error)
	ListComments(ctx context.Context, documentID string) ([]store.Comment, error)
	ListChildComments(ctx context.Context, tx *sql.Tx, parentCommentID string) ([]store.Comment, error)
	UpdateComment(ctx context.Context, tx *sql.Tx, item store.Comment) error
	ListEvents(ctx context.Context, documentID string, limit int) ([]store.Event, error)
}

type searchIndex interface {
	IndexDocument(ctx context.Context, document store.Document) error
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, teamID, query string, limit int) ([]search.Hit, error)
}

type revisionStore interface {
	Commit(document store.Document, author store.User) (store.Revision, error)
	History(documentID string, limit int) ([]store.Revision, error)
}

type mentionNotifier interface {
	SendMentionNotification(to, actor store.User, document store.Document) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	recorder  events.Recorder
	accounts  *authpw.Service
	search    searchIndex
	revisions revisionStore
	notifier  mentionNotifier
}

// New wires the service. The search, revisions, and notifier collaborators
// are optional; a nil value disables that side effect.
func New(cfg config.Config, dataStore *store.PostgresStore, recorder events.Recorder, index searchIndex, revisions revisionStore, notifier mentionNotifier) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		recorder:  recorder,
		accounts:  authpw.NewService(dataStore),
		search:    index,
		revisions: revisions,
		notifier:  notifier,
	}
}

// Bootstrap ensures the workspace team and a default collection exist.
func (s *Service) Bootstrap(ctx context.Context) (store.Team, error) {
	team, err := s.store.EnsureTeam(ctx, "Scribe")
	if err != nil {
		return store.Team{}, err
	}
	collections, err := s.store.ListCollections(ctx, team.ID)
	if err != nil {
		return store.Team{}, err
	}
	if len(collections) == 0 {
		if err := s.store.InsertCollection(ctx, store.Collection{
			ID:          util.NewID("col"),
			TeamID:      team.ID,
			Name:        "General",
			Description: "Default collection",
		}); err != nil {
			return store.Team{}, err
		}
	}
	return team, nil
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest) (Session, error) {
	user, err := s.accounts.SignUp(ctx, req)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(user)
}

func (s *Service) issueSession(user store.User) (Session, error) {
	expiresAt := time.Now().Add(s.cfg.AccessTTL)
	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		Sub:    user.ID,
		Name:   user.DisplayName,
		TeamID: user.TeamID,
		Exp:    expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		TeamID:    user.TeamID,
		ExpiresAt: expiresAt,
	}, nil
}

// UserFromToken validates a session token and loads the acting user.
func (s *Service) UserFromToken(ctx context.Context, token string) (store.User, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return store.User{}, err
	}
	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return store.User{}, auth.ErrInvalidToken
	}
	return user, nil
}

func (s *Service) ListCollections(ctx context.Context, actor store.User) ([]store.Collection, error) {
	return s.store.ListCollections(ctx, actor.TeamID)
}

func (s *Service) ListDocuments(ctx context.Context, actor store.User) ([]store.Document, error) {
	return s.store.ListDocuments(ctx, actor.TeamID)
}

func (s *Service) GetDocument(ctx context.Context, actor store.User, documentID string) (store.Document, error) {
	document, err := s.store.GetDocumentForUser(ctx, nil, documentID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
		}
		return store.Document{}, err
	}
	if document.TeamID != actor.TeamID {
		return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
	}
	return document, nil
}

func (s *Service) CreateDocument(ctx context.Context, actor store.User, input CreateDocumentInput, ip string) (store.Document, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Untitled"
	}
	if input.CollectionID != nil {
		collection, err := s.store.GetCollection(ctx, *input.CollectionID)
		if err != nil {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "collection not found", nil)
		}
		if collection.TeamID != actor.TeamID {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "collection not found", nil)
		}
	}

	document := store.Document{
		ID:               util.NewID("doc"),
		Title:            title,
		TeamID:           actor.TeamID,
		CreatedByID:      actor.ID,
		LastModifiedByID: actor.ID,
		IsTemplate:       input.IsTemplate,
		CollectionID:     input.CollectionID,
	}
	document = markdown.Apply(document, input.Text, false)
	if input.Publish && (input.IsTemplate || input.CollectionID != nil) {
		now := time.Now().UTC()
		document.PublishedAt = &now
	}
	if err := s.store.InsertDocument(ctx, document); err != nil {
		return store.Document{}, err
	}
	s.afterDocumentWrite(ctx, document, actor)
	return document, nil
}

// UpdateDocument applies a batch of optional field assignments, decides
// whether to persist, and records the matching audit events. Publish wins
// over a plain change; a no-op update with done set still produces a
// scheduled collaboration-ended event. A title change always produces a
// scheduled title event, persisted or not.
func (s *Service) UpdateDocument(ctx context.Context, actor store.User, documentID string, input DocumentUpdateInput, ip string) (store.Document, error) {
	document, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
		}
		return store.Document{}, err
	}
	if document.TeamID != actor.TeamID {
		return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
	}

	previousTitle := document.Title
	collectionID := document.CollectionID
	if input.CollectionID != nil {
		collectionID = input.CollectionID
	}

	before := document.Attributes()

	if input.Title != nil {
		document.Title = strings.TrimSpace(*input.Title)
	}
	if input.Icon.Set {
		document.Icon = input.Icon.Pointer()
	}
	if input.Color.Set {
		document.Color = input.Color.Pointer()
	}
	if input.CoverImg != nil {
		if *input.CoverImg == "" {
			document.CoverImg = nil
		} else {
			img := *input.CoverImg
			document.CoverImg = &img
		}
	}
	if input.CoverImgPosX != nil {
		document.CoverImgPosX = float64(*input.CoverImgPosX)
	}
	if input.CoverImgPosY != nil {
		document.CoverImgPosY = float64(*input.CoverImgPosY)
	}
	if input.EditorVersion != "" {
		document.EditorVersion = input.EditorVersion
	}
	if input.TemplateID != "" {
		templateID := input.TemplateID
		document.TemplateID = &templateID
	}
	if input.FullWidth != nil {
		document.FullWidth = *input.FullWidth
	}
	if input.InsightsEnabled != nil {
		document.InsightsEnabled = *input.InsightsEnabled
	}
	if input.Text != nil {
		document = markdown.Apply(document, *input.Text, input.Append)
	}

	changed := document.Attributes() != before

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return store.Document{}, err
	}
	defer tx.Rollback()

	persisted := false
	var scheduled []store.Event

	switch {
	case input.Publish && (document.IsTemplate || collectionID != nil):
		if document.CollectionID == nil {
			document.CollectionID = collectionID
		}
		now := time.Now().UTC()
		document.PublishedAt = &now
		document.LastModifiedByID = actor.ID
		if err := s.store.UpdateDocument(ctx, tx, document); err != nil {
			return store.Document{}, err
		}
		persisted = true
		if err := s.recorder.Insert(ctx, tx, s.documentEvent(events.DocumentPublish, document, collectionID, actor, ip, map[string]any{
			"title": document.Title,
			"done":  input.Done,
		})); err != nil {
			return store.Document{}, err
		}
	case changed:
		document.LastModifiedByID = actor.ID
		if err := s.store.UpdateDocument(ctx, tx, document); err != nil {
			return store.Document{}, err
		}
		persisted = true
		if err := s.recorder.Insert(ctx, tx, s.documentEvent(events.DocumentUpdate, document, collectionID, actor, ip, map[string]any{
			"title": document.Title,
			"done":  input.Done,
		})); err != nil {
			return store.Document{}, err
		}
	case input.Done:
		scheduled = append(scheduled, s.documentEvent(events.DocumentUpdate, document, collectionID, actor, ip, map[string]any{
			"title": document.Title,
			"done":  true,
		}))
	}

	if document.Title != previousTitle {
		scheduled = append(scheduled, s.documentEvent(events.DocumentTitleChange, document, collectionID, actor, ip, map[string]any{
			"previousTitle": previousTitle,
			"title":         document.Title,
		}))
	}

	refetched, err := s.store.GetDocumentForUser(ctx, tx, document.ID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "document not found", nil)
		}
		return store.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Document{}, err
	}

	for _, event := range scheduled {
		if err := s.recorder.Schedule(ctx, event); err != nil {
			log.Printf("schedule %s for %s: %v", event.Name, event.DocumentID, err)
		}
	}
	if persisted {
		s.afterDocumentWrite(ctx, refetched, actor)
	}
	return refetched, nil
}

// documentEvent stamps the shared event shape. collectionID is the resolved
// destination collection, which can differ from the document's stored one
// when the caller passed collectionId without publishing.
func (s *Service) documentEvent(name string, document store.Document, collectionID *string, actor store.User, ip string, data map[string]any) store.Event {
	return store.Event{
		Name:         name,
		ModelID:      document.ID,
		DocumentID:   document.ID,
		CollectionID: collectionID,
		TeamID:       document.TeamID,
		ActorID:      actor.ID,
		IP:           ip,
		Data:         data,
	}
}

func (s *Service) afterDocumentWrite(ctx context.Context, document store.Document, actor store.User) {
	if s.search != nil {
		if err := s.search.IndexDocument(ctx, document); err != nil {
			log.Printf("index document %s: %v", document.ID, err)
		}
	}
	if s.revisions != nil {
		if _, err := s.revisions.Commit(document, actor); err != nil {
			log.Printf("record revision for %s: %v", document.ID, err)
		}
	}
}

func (s *Service) CreateComment(ctx context.Context, actor store.User, input CreateCommentInput, ip string) (store.Comment, error) {
	if len(input.Data) == 0 {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data is required", nil)
	}
	document, err := s.GetDocument(ctx, actor, input.DocumentID)
	if err != nil {
		return store.Comment{}, err
	}
	if input.ParentCommentID != nil {
		parent, err := s.store.GetComment(ctx, *input.ParentCommentID)
		if err != nil || parent.DocumentID != document.ID {
			return store.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "parent comment not found", nil)
		}
	}
	comment := store.Comment{
		ID:              util.NewID("cmt"),
		DocumentID:      document.ID,
		ParentCommentID: input.ParentCommentID,
		Data:            input.Data,
		CreatedByID:     actor.ID,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}
	if mentioned := mentions.Parse(comment.Data); len(mentioned) > 0 {
		s.notifyMentions(ctx, document, actor, mentioned)
	}
	return comment, nil
}

func (s *Service) ListComments(ctx context.Context, actor store.User, documentID string) ([]store.Comment, error) {
	if _, err := s.GetDocument(ctx, actor, documentID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, documentID)
}

// UpdateComment edits a comment's content or changes its resolution state.
// A resolved flag with no data resolves; a resolved flag with a reopen
// directive in the data reopens, discarding the rest of that data; any other
// data replaces the content. Exactly one comments.update event is recorded
// per call, carrying the users newly mentioned by the edit.
func (s *Service) UpdateComment(ctx context.Context, actor store.User, commentID string, input CommentUpdateInput, ip string) (store.Comment, error) {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
		}
		return store.Comment{}, err
	}
	document, err := s.store.GetDocument(ctx, comment.DocumentID)
	if err != nil {
		return store.Comment{}, err
	}
	if document.TeamID != actor.TeamID {
		return store.Comment{}, domainError(http.StatusNotFound, "NOT_FOUND", "comment not found", nil)
	}
	if input.Data == nil && !input.Resolved {
		return store.Comment{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "data or resolved is required", nil)
	}

	mentionsBefore := mentions.Parse(comment.Data)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return store.Comment{}, err
	}
	defer tx.Rollback()

	switch {
	case input.Resolved && input.Data == nil:
		if err := s.resolveComment(ctx, tx, &comment, actor); err != nil {
			return store.Comment{}, err
		}
	case input.Resolved && mentions.HasReopenDirective(input.Data):
		if err := s.reopenComment(ctx, tx, &comment, actor); err != nil {
			return store.Comment{}, err
		}
	default:
		comment.Data = input.Data
	}

	newMentionIDs := mentions.Diff(mentionsBefore, mentions.Parse(comment.Data))

	if err := s.store.UpdateComment(ctx, tx, comment); err != nil {
		return store.Comment{}, err
	}
	if err := s.recorder.Insert(ctx, tx, store.Event{
		Name:         events.CommentUpdate,
		ModelID:      comment.ID,
		DocumentID:   comment.DocumentID,
		CollectionID: document.CollectionID,
		TeamID:       document.TeamID,
		ActorID:      actor.ID,
		IP:           ip,
		Data:         map[string]any{"newMentionIds": newMentionIDs},
	}); err != nil {
		return store.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return store.Comment{}, err
	}

	if len(newMentionIDs) > 0 {
		s.notifyMentions(ctx, document, actor, newMentionIDs)
	}
	return comment, nil
}

// resolveComment marks the comment resolved and cascades the same
// assignment to every direct child, overwriting any earlier resolution so
// the whole thread carries one resolver and one timestamp. The cascade
// never recurses: a grandchild stays untouched.
func (s *Service) resolveComment(ctx context.Context, tx *sql.Tx, comment *store.Comment, actor store.User) error {
	if comment.Resolved() {
		return domainError(http.StatusBadRequest, "ALREADY_RESOLVED", "comment is already resolved", nil)
	}
	now := time.Now().UTC()
	resolvedByID := actor.ID
	comment.ResolvedAt = &now
	comment.ResolvedByID = &resolvedByID
	comment.ResolvedBy = &actor

	children, err := s.store.ListChildComments(ctx, tx, comment.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		childResolvedAt := now
		childResolvedByID := actor.ID
		child.ResolvedAt = &childResolvedAt
		child.ResolvedByID = &childResolvedByID
		child.ResolvedBy = &actor
		if err := s.store.UpdateComment(ctx, tx, child); err != nil {
			return err
		}
	}
	return nil
}

// reopenComment clears the resolver on the comment and its direct children.
// ResolvedAt is left in place as a record of the last resolution; only the
// resolver id is cleared, while ResolvedBy tracks who reopened in memory.
func (s *Service) reopenComment(ctx context.Context, tx *sql.Tx, comment *store.Comment, actor store.User) error {
	if !comment.Resolved() {
		return domainError(http.StatusBadRequest, "NOT_RESOLVED", "comment is not resolved", nil)
	}
	comment.ResolvedByID = nil
	comment.ResolvedBy = &actor

	children, err := s.store.ListChildComments(ctx, tx, comment.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		child.ResolvedByID = nil
		child.ResolvedBy = &actor
		if err := s.store.UpdateComment(ctx, tx, child); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) notifyMentions(ctx context.Context, document store.Document, actor store.User, userIDs []string) {
	if s.notifier == nil {
		return
	}
	users, err := s.store.ListUsersByIDs(ctx, userIDs)
	if err != nil {
		log.Printf("load mentioned users: %v", err)
		return
	}
	for _, user := range users {
		if user.ID == actor.ID || user.TeamID != actor.TeamID {
			continue
		}
		if err := s.notifier.SendMentionNotification(user, actor, document); err != nil {
			log.Printf("mention notification to %s: %v", user.Email, err)
		}
	}
}

func (s *Service) DocumentEvents(ctx context.Context, actor store.User, documentID string, limit int) ([]store.Event, error) {
	if _, err := s.GetDocument(ctx, actor, documentID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, documentID, limit)
}

func (s *Service) SearchDocuments(ctx context.Context, actor store.User, query string, limit int) ([]search.Hit, error) {
	if s.search == nil {
		return nil, domainError(http.StatusNotImplemented, "SEARCH_DISABLED", "search is not configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "query is required", nil)
	}
	return s.search.Search(ctx, actor.TeamID, query, limit)
}

func (s *Service) DocumentHistory(ctx context.Context, actor store.User, documentID string, limit int) ([]store.Revision, error) {
	if s.revisions == nil {
		return nil, domainError(http.StatusNotImplemented, "HISTORY_DISABLED", "revision history is not configured", nil)
	}
	if _, err := s.GetDocument(ctx, actor, documentID); err != nil {
		return nil, err
	}
	return s.revisions.History(documentID, limit)
}

func (s *Service) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}
