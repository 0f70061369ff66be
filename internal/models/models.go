// package models defines the draft and publishing data model
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include Thread and PublishedPost.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// Status is the lifecycle state shared by threads and their items.
type Status string

const (
	StatusEditing Status = "editing"
	StatusReady   Status = "ready"
	StatusPosting Status = "posting"
	StatusPosted  Status = "posted"
	StatusFailed  Status = "failed"
)

func (s Status) String() string {
	return string(s)
}

// IsEditable reports whether content in this state may still change or be posted.
func (s Status) IsEditable() bool {
	switch s {
	case StatusEditing, StatusReady, StatusFailed:
		return true
	default:
		return false
	}
}

// ParseStatus converts a stored value back into a [Status].
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusEditing, StatusReady, StatusPosting, StatusPosted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// ViewURLPrefix is prepended to a post id to build its public URL.
const ViewURLPrefix = "https://x.com/i/web/status/"

// ViewURL returns the public URL of a post.
func ViewURL(postID string) string {
	return ViewURLPrefix + postID
}

// AuthenticatedUser is the signed-in account. It is held in memory only.
type AuthenticatedUser struct {
	ID        string
	Username  string
	Name      string
	AvatarURL string
}

// Handle returns the username prefixed with @.
func (u AuthenticatedUser) Handle() string {
	return "@" + u.Username
}
