package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/threadx/internal/shared"
)

// PublishedPost is the immutable record of one item that reached the platform.
// It is independent of the draft it came from.
type PublishedPost struct {
	id              string
	postID          string
	text            string
	attachmentCount int
	viewURL         string
	groupID         string
	position        int
	publishedAt     time.Time
}

// NewPublishedPost records postID. groupID is empty for a standalone post.
func NewPublishedPost(postID, text string, attachmentCount int, groupID string, position int, publishedAt time.Time) *PublishedPost {
	return &PublishedPost{
		id:              shared.GenerateID(),
		postID:          postID,
		text:            text,
		attachmentCount: attachmentCount,
		viewURL:         ViewURL(postID),
		groupID:         groupID,
		position:        position,
		publishedAt:     publishedAt,
	}
}

// RestorePublishedPost rebuilds a stored record.
func RestorePublishedPost(id, postID, text string, attachmentCount int, viewURL, groupID string, position int, publishedAt time.Time) *PublishedPost {
	return &PublishedPost{
		id:              id,
		postID:          postID,
		text:            text,
		attachmentCount: attachmentCount,
		viewURL:         viewURL,
		groupID:         groupID,
		position:        position,
		publishedAt:     publishedAt,
	}
}

func (p *PublishedPost) ID() string             { return p.id }
func (p *PublishedPost) PostID() string         { return p.postID }
func (p *PublishedPost) Text() string           { return p.text }
func (p *PublishedPost) AttachmentCount() int   { return p.attachmentCount }
func (p *PublishedPost) ViewURL() string        { return p.viewURL }
func (p *PublishedPost) GroupID() string        { return p.groupID }
func (p *PublishedPost) Position() int          { return p.position }
func (p *PublishedPost) PublishedAt() time.Time { return p.publishedAt }
func (p *PublishedPost) CreatedAt() time.Time   { return p.publishedAt }
func (p *PublishedPost) UpdatedAt() time.Time   { return p.publishedAt }

// IsThreaded reports whether the post belongs to a thread group.
func (p *PublishedPost) IsThreaded() bool {
	return p.groupID != ""
}

func (p *PublishedPost) Validate() error {
	if p.postID == "" {
		return fmt.Errorf("%w: post id is required", shared.ErrInvalidInput)
	}
	if p.position < 0 {
		return fmt.Errorf("%w: negative position %d", shared.ErrInvalidInput, p.position)
	}
	if p.groupID == "" && p.position != 0 {
		return fmt.Errorf("%w: standalone post at position %d", shared.ErrInvalidInput, p.position)
	}
	return nil
}
