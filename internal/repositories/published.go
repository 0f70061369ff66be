package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

// PublishedPostRepository implements [models.Repository] for the publish history.
// Records are immutable once written.
type PublishedPostRepository struct {
	db *sql.DB
}

// NewPublishedPostRepository creates a new [PublishedPostRepository] with the given database connection
func NewPublishedPostRepository(db *sql.DB) *PublishedPostRepository {
	return &PublishedPostRepository{db: db}
}

const publishedColumns = `id, post_id, text, attachment_count, view_url, thread_group_id, position_in_thread, published_at`

// Create inserts a published post record.
func (r *PublishedPostRepository) Create(post *models.PublishedPost) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO published_posts (` + publishedColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, post.ID(), post.PostID(), post.Text(), post.AttachmentCount(), post.ViewURL(),
		nullString(post.GroupID()), post.Position(), post.PublishedAt())
	if err != nil {
		return fmt.Errorf("failed to insert published post: %w", err)
	}
	return nil
}

// Record implements the composer's history sink.
func (r *PublishedPostRepository) Record(post *models.PublishedPost) error {
	return r.Create(post)
}

// Get retrieves a published post by its local ID.
func (r *PublishedPostRepository) Get(id string) (*models.PublishedPost, error) {
	query := `SELECT ` + publishedColumns + ` FROM published_posts WHERE id = ?`
	post, err := scanPublished(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: published post %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query published post: %w", err)
	}
	return post, nil
}

// GetByPostID retrieves a published post by its platform id.
func (r *PublishedPostRepository) GetByPostID(postID string) (*models.PublishedPost, error) {
	query := `SELECT ` + publishedColumns + ` FROM published_posts WHERE post_id = ?`
	post, err := scanPublished(r.db.QueryRow(query, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: post %s", shared.ErrNotFound, postID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query published post: %w", err)
	}
	return post, nil
}

// Update always fails: published posts are append-only.
func (r *PublishedPostRepository) Update(post *models.PublishedPost) error {
	return fmt.Errorf("%w: published post %s is immutable", shared.ErrInvalidState, post.ID())
}

// Delete removes a record from the history.
func (r *PublishedPostRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM published_posts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete published post: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: published post %s", shared.ErrNotFound, id)
	}
	return nil
}

// List returns history in publish order, oldest first. Supported criteria:
//   - "thread_group_id" (string): only posts of one thread
//   - "limit" (int): only the most recent n posts
func (r *PublishedPostRepository) List(criteria map[string]any) ([]*models.PublishedPost, error) {
	query := `SELECT ` + publishedColumns + ` FROM published_posts WHERE 1 = 1`
	args := []any{}

	if groupID, ok := criteria["thread_group_id"].(string); ok && groupID != "" {
		query += " AND thread_group_id = ?"
		args = append(args, groupID)
	}

	query += " ORDER BY published_at DESC, position_in_thread DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query published posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.PublishedPost
	for rows.Next() {
		post, err := scanPublished(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	slices.Reverse(posts)
	return posts, nil
}

// ListByGroup returns the posts of one thread group ordered by position.
func (r *PublishedPostRepository) ListByGroup(groupID string) ([]*models.PublishedPost, error) {
	query := `SELECT ` + publishedColumns + ` FROM published_posts WHERE thread_group_id = ? ORDER BY position_in_thread ASC`
	rows, err := r.db.Query(query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query thread group: %w", err)
	}
	defer rows.Close()

	var posts []*models.PublishedPost
	for rows.Next() {
		post, err := scanPublished(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return posts, nil
}

func scanPublished(row rowScanner) (*models.PublishedPost, error) {
	var (
		id, postID, text, viewURL string
		count, position           int
		groupID                   sql.NullString
		publishedAt               time.Time
	)
	if err := row.Scan(&id, &postID, &text, &count, &viewURL, &groupID, &position, &publishedAt); err != nil {
		return nil, err
	}
	return models.RestorePublishedPost(id, postID, text, count, viewURL, groupID.String, position, publishedAt), nil
}
