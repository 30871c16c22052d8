package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx so read helpers can run
// inside or outside a command transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// BeginTx opens the transactional scope a command runs inside. The store
// never opens transactions on its own behalf; callers own commit/rollback.
func (s *PostgresStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) EnsureTeam(ctx context.Context, name string) (Team, error) {
	var team Team
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE name=$1`, name).
		Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err == nil {
		return team, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Team{}, fmt.Errorf("lookup team: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO teams (name) VALUES ($1)
		RETURNING id, name, created_at
	`, name).Scan(&team.ID, &team.Name, &team.CreatedAt)
	if err != nil {
		return Team{}, fmt.Errorf("insert team: %w", err)
	}
	return team, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, team_id)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.DisplayName, strings.ToLower(user.Email), user.PasswordHash, user.TeamID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, team_id, created_at, updated_at
		FROM users WHERE email=$1
	`, strings.ToLower(email)))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, team_id, created_at, updated_at
		FROM users WHERE id=$1
	`, userID))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
		&user.TeamID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListUsersByIDs preserves the order of the requested ids in its result and
// silently skips ids with no matching row.
func (s *PostgresStore) ListUsersByIDs(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, display_name, email, password_hash, team_id, created_at, updated_at
		FROM users WHERE id IN (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]User, len(ids))
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash,
			&user.TeamID, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		byID[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	items := make([]User, 0, len(byID))
	for _, id := range ids {
		if user, ok := byID[id]; ok {
			items = append(items, user)
		}
	}
	return items, nil
}

func (s *PostgresStore) InsertCollection(ctx context.Context, item Collection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO collections (id, team_id, name, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, item.ID, item.TeamID, item.Name, item.Description)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCollection(ctx context.Context, collectionID string) (Collection, error) {
	var item Collection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, team_id, name, description, created_at, updated_at
		FROM collections WHERE id=$1
	`, collectionID).Scan(&item.ID, &item.TeamID, &item.Name, &item.Description,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Collection{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListCollections(ctx context.Context, teamID string) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, team_id, name, description, created_at, updated_at
		FROM collections WHERE team_id=$1
		ORDER BY name ASC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	items := make([]Collection, 0)
	for rows.Next() {
		var item Collection
		if err := rows.Scan(&item.ID, &item.TeamID, &item.Name, &item.Description,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return items, nil
}

const documentColumns = `
	id, title, text, preview, icon, color,
	cover_img, cover_img_position_x, cover_img_position_y,
	editor_version, template_id, full_width, insights_enabled,
	collection_id, team_id, created_by_id, last_modified_by_id,
	is_template, published_at, archived_at, created_at, updated_at
`

func scanDocument(row interface{ Scan(dest ...any) error }) (Document, error) {
	var item Document
	err := row.Scan(
		&item.ID, &item.Title, &item.Text, &item.Preview, &item.Icon, &item.Color,
		&item.CoverImg, &item.CoverImgPosX, &item.CoverImgPosY,
		&item.EditorVersion, &item.TemplateID, &item.FullWidth, &item.InsightsEnabled,
		&item.CollectionID, &item.TeamID, &item.CreatedByID, &item.LastModifiedByID,
		&item.IsTemplate, &item.PublishedAt, &item.ArchivedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, title, text, preview, icon, color,
			cover_img, cover_img_position_x, cover_img_position_y,
			editor_version, template_id, full_width, insights_enabled,
			collection_id, team_id, created_by_id, last_modified_by_id,
			is_template, published_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, item.ID, item.Title, item.Text, item.Preview, item.Icon, item.Color,
		item.CoverImg, item.CoverImgPosX, item.CoverImgPosY,
		item.EditorVersion, item.TemplateID, item.FullWidth, item.InsightsEnabled,
		item.CollectionID, item.TeamID, item.CreatedByID, item.LastModifiedByID,
		item.IsTemplate, item.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id=$1`, documentID))
}

// GetDocumentForUser re-reads a document inside the given transaction, scoped
// to what the user may see: published documents, templates, and the user's
// own drafts.
func (s *PostgresStore) GetDocumentForUser(ctx context.Context, tx *sql.Tx, documentID, userID string) (Document, error) {
	var q querier = s.db
	if tx != nil {
		q = tx
	}
	return scanDocument(q.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id=$1
			AND (published_at IS NOT NULL
				OR is_template
				OR created_by_id=$2
				OR last_modified_by_id=$2)
	`, documentID, userID))
}

func (s *PostgresStore) ListDocuments(ctx context.Context, teamID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE team_id=$1 AND archived_at IS NULL
		ORDER BY updated_at DESC
	`, teamID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		item, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

// UpdateDocument persists every mutable column inside the caller's
// transaction. Last-writer-wins at the field level; no version check.
func (s *PostgresStore) UpdateDocument(ctx context.Context, tx *sql.Tx, item Document) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE documents SET
			title=$2, text=$3, preview=$4, icon=$5, color=$6,
			cover_img=$7, cover_img_position_x=$8, cover_img_position_y=$9,
			editor_version=$10, template_id=$11, full_width=$12, insights_enabled=$13,
			collection_id=$14, last_modified_by_id=$15, published_at=$16,
			updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Text, item.Preview, item.Icon, item.Color,
		item.CoverImg, item.CoverImgPosX, item.CoverImgPosY,
		item.EditorVersion, item.TemplateID, item.FullWidth, item.InsightsEnabled,
		item.CollectionID, item.LastModifiedByID, item.PublishedAt)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

const commentColumns = `
	id, document_id, parent_comment_id, data, created_by_id,
	resolved_at, resolved_by_id, created_at, updated_at
`

func scanComment(row interface{ Scan(dest ...any) error }) (Comment, error) {
	var item Comment
	var data []byte
	err := row.Scan(
		&item.ID, &item.DocumentID, &item.ParentCommentID, &data, &item.CreatedByID,
		&item.ResolvedAt, &item.ResolvedByID, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return Comment{}, err
	}
	item.Data = json.RawMessage(data)
	return item, nil
}

func (s *PostgresStore) InsertComment(ctx context.Context, item Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, document_id, parent_comment_id, data, created_by_id)
		VALUES ($1, $2, $3, $4, $5)
	`, item.ID, item.DocumentID, item.ParentCommentID, []byte(item.Data), item.CreatedByID)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	return scanComment(s.db.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID))
}

// ListComments returns every comment on a document, oldest first. Threads
// are reassembled by the caller from ParentCommentID.
func (s *PostgresStore) ListComments(ctx context.Context, documentID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE document_id=$1
		ORDER BY created_at ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ListChildComments returns the direct children of a comment, oldest first.
// Grandchildren are never included; the resolution cascade is one level deep.
func (s *PostgresStore) ListChildComments(ctx context.Context, tx *sql.Tx, parentCommentID string) ([]Comment, error) {
	var q querier = s.db
	if tx != nil {
		q = tx
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments
		WHERE parent_comment_id=$1
		ORDER BY created_at ASC
	`, parentCommentID)
	if err != nil {
		return nil, fmt.Errorf("list child comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		item, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateComment(ctx context.Context, tx *sql.Tx, item Comment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE comments SET
			data=$2, resolved_at=$3, resolved_by_id=$4, updated_at=NOW()
		WHERE id=$1
	`, item.ID, []byte(item.Data), item.ResolvedAt, item.ResolvedByID)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	return nil
}

// InsertEvent appends an immediate event inside the caller's transaction so
// the event is durable exactly when the triggering mutation is.
func (s *PostgresStore) InsertEvent(ctx context.Context, tx *sql.Tx, event Event) error {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (id, name, model_id, document_id, collection_id, team_id, actor_id, ip, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, event.ID, event.Name, event.ModelID, event.DocumentID, event.CollectionID,
		event.TeamID, event.ActorID, event.IP, payload, createdAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, documentID string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, model_id, document_id, collection_id, team_id, actor_id, ip, data, created_at
		FROM events
		WHERE document_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	items := make([]Event, 0)
	for rows.Next() {
		var item Event
		var payload []byte
		if err := rows.Scan(&item.ID, &item.Name, &item.ModelID, &item.DocumentID,
			&item.CollectionID, &item.TeamID, &item.ActorID, &item.IP, &payload, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Data); err != nil {
				return nil, fmt.Errorf("unmarshal event data: %w", err)
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return items, nil
}
