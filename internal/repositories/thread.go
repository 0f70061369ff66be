package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

// ThreadRepository implements [models.Repository] for [models.Thread] drafts,
// storing items and attachments alongside the thread row.
type ThreadRepository struct {
	db *sql.DB
}

// NewThreadRepository creates a new [ThreadRepository] with the given database connection
func NewThreadRepository(db *sql.DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Create inserts a thread with its items and attachments and assigns its sequence.
func (r *ThreadRepository) Create(thread *models.Thread) error {
	if err := thread.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(tx, "threads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}
	if thread.ID() == "" {
		thread.SetID(shared.GenerateID())
	}

	query := `
		INSERT INTO threads (id, sequence, status, failure_message, thread_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query, thread.ID(), sequence, thread.Status().String(), nullString(thread.FailureMessage()),
		nullString(thread.GroupID()), thread.CreatedAt(), thread.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert thread: %w", err)
	}

	if err := insertChildren(tx, thread); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	thread.SetSequence(sequence)
	return nil
}

// Get retrieves a thread by ID with all of its items and attachments.
func (r *ThreadRepository) Get(id string) (*models.Thread, error) {
	query := `
		SELECT id, sequence, status, failure_message, thread_group_id, created_at, updated_at
		FROM threads
		WHERE id = ?
	`
	thread, err := scanThread(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}

	if err := r.loadItems(thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetBySequence retrieves a thread by its human-readable sequence number.
func (r *ThreadRepository) GetBySequence(sequence int) (*models.Thread, error) {
	var id string
	err := r.db.QueryRow("SELECT id FROM threads WHERE sequence = ?", sequence).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", shared.ErrThreadNotFound, sequence)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query thread: %w", err)
	}
	return r.Get(id)
}

// Update writes the thread row and replaces its items and attachments.
func (r *ThreadRepository) Update(thread *models.Thread) error {
	if err := thread.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	thread.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE threads
		SET status = ?, failure_message = ?, thread_group_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := tx.Exec(query, thread.Status().String(), nullString(thread.FailureMessage()),
		nullString(thread.GroupID()), now, thread.ID())
	if err != nil {
		return fmt.Errorf("failed to update thread: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrThreadNotFound, thread.ID())
	}

	if err := deleteChildren(tx, thread.ID()); err != nil {
		return err
	}
	if err := insertChildren(tx, thread); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit thread: %w", err)
	}
	return nil
}

// Delete removes a thread, walking its attachments and items first.
func (r *ThreadRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChildren(tx, id); err != nil {
		return err
	}

	result, err := tx.Exec("DELETE FROM threads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrThreadNotFound, id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// List retrieves threads ordered by sequence. Supported criteria: "status" (string or [models.Status]).
func (r *ThreadRepository) List(criteria map[string]any) ([]*models.Thread, error) {
	query := `
		SELECT id, sequence, status, failure_message, thread_group_id, created_at, updated_at
		FROM threads
		WHERE 1 = 1
	`
	args := []any{}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.Status:
		query += " AND status = ?"
		args = append(args, status.String())
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query threads: %w", err)
	}

	var threads []*models.Thread
	for rows.Next() {
		thread, err := scanThread(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, thread)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, thread := range threads {
		if err := r.loadItems(thread); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*models.Thread, error) {
	var (
		id        string
		sequence  int
		status    string
		failure   sql.NullString
		groupID   sql.NullString
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &sequence, &status, &failure, &groupID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	st, err := models.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	thread := models.NewThread()
	thread.SetID(id)
	thread.SetSequence(sequence)
	thread.SetStatus(st)
	thread.SetFailureMessage(failure.String)
	thread.SetGroupID(groupID.String)
	thread.SetCreatedAt(createdAt)
	thread.SetUpdatedAt(updatedAt)
	return thread, nil
}

func (r *ThreadRepository) loadItems(thread *models.Thread) error {
	query := `
		SELECT id, sort_order, text, status, post_id, created_at, updated_at
		FROM thread_items
		WHERE thread_id = ?
		ORDER BY sort_order ASC
	`
	rows, err := r.db.Query(query, thread.ID())
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}

	var items []*models.ThreadItem
	for rows.Next() {
		var (
			id        string
			sortOrder int
			text      string
			status    string
			postID    sql.NullString
			createdAt time.Time
			updatedAt time.Time
		)
		if err := rows.Scan(&id, &sortOrder, &text, &status, &postID, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan item: %w", err)
		}
		st, err := models.ParseStatus(status)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan item: %w", err)
		}

		item := models.NewThreadItem(text)
		item.SetID(id)
		item.SetSortOrder(sortOrder)
		item.SetStatus(st)
		item.SetPostID(postID.String)
		item.SetCreatedAt(createdAt)
		item.SetUpdatedAt(updatedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if len(items) == 0 {
		return fmt.Errorf("%w: thread %s has no items", shared.ErrUnexpectedFailure, thread.ID())
	}

	for _, item := range items {
		attachments, err := r.loadAttachments(item.ID())
		if err != nil {
			return err
		}
		if err := item.SetAttachments(attachments); err != nil {
			return err
		}
	}

	thread.SetItems(items)
	return nil
}

func (r *ThreadRepository) loadAttachments(itemID string) ([]*models.Attachment, error) {
	query := `
		SELECT id, sort_order, media_type, alt_text, data, thumbnail, media_id, created_at
		FROM attachments
		WHERE item_id = ?
		ORDER BY sort_order ASC
	`
	rows, err := r.db.Query(query, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var (
			id        string
			sortOrder int
			mediaType string
			altText   sql.NullString
			data      []byte
			thumbnail []byte
			mediaID   sql.NullString
			createdAt time.Time
		)
		if err := rows.Scan(&id, &sortOrder, &mediaType, &altText, &data, &thumbnail, &mediaID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}

		a := models.NewAttachment(data, thumbnail, mediaType, altText.String)
		a.SetID(id)
		a.SetSortOrder(sortOrder)
		a.SetMediaID(mediaID.String)
		a.SetCreatedAt(createdAt)
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return attachments, nil
}

func insertChildren(tx *sql.Tx, thread *models.Thread) error {
	itemQuery := `
		INSERT INTO thread_items (id, thread_id, sort_order, text, status, post_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	attachmentQuery := `
		INSERT INTO attachments (id, item_id, sort_order, media_type, alt_text, data, thumbnail, media_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, item := range thread.Items() {
		_, err := tx.Exec(itemQuery, item.ID(), thread.ID(), item.SortOrder(), item.Text(), item.Status().String(),
			nullString(item.PostID()), item.CreatedAt(), item.UpdatedAt())
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for _, a := range item.Attachments() {
			_, err := tx.Exec(attachmentQuery, a.ID(), item.ID(), a.SortOrder(), a.MediaType(), nullString(a.AltText()),
				a.Data(), a.Thumbnail(), nullString(a.MediaID()), a.CreatedAt())
			if err != nil {
				return fmt.Errorf("failed to insert attachment: %w", err)
			}
		}
	}
	return nil
}

// deleteChildren removes attachments, then items, of a thread.
func deleteChildren(tx *sql.Tx, threadID string) error {
	_, err := tx.Exec(`DELETE FROM attachments WHERE item_id IN (SELECT id FROM thread_items WHERE thread_id = ?)`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM thread_items WHERE thread_id = ?", threadID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
