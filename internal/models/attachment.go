package models

import (
	"time"

	"github.com/desertthunder/threadx/internal/shared"
)

// MaxAttachments is the most media a single item may carry.
const MaxAttachments = 4

// Attachment is an image owned by a [ThreadItem].
type Attachment struct {
	id        string
	itemID    string
	data      []byte
	thumbnail []byte
	mediaType string
	altText   string
	sortOrder int
	mediaID   string
	createdAt time.Time
}

// NewAttachment creates an [Attachment] from prepared full-size and thumbnail buffers.
func NewAttachment(data, thumbnail []byte, mediaType, altText string) *Attachment {
	return &Attachment{
		id:        shared.GenerateID(),
		data:      data,
		thumbnail: thumbnail,
		mediaType: mediaType,
		altText:   altText,
		createdAt: time.Now(),
	}
}

func (a *Attachment) ID() string           { return a.id }
func (a *Attachment) ItemID() string       { return a.itemID }
func (a *Attachment) Data() []byte         { return a.data }
func (a *Attachment) Thumbnail() []byte    { return a.thumbnail }
func (a *Attachment) MediaType() string    { return a.mediaType }
func (a *Attachment) AltText() string      { return a.altText }
func (a *Attachment) SortOrder() int       { return a.sortOrder }
func (a *Attachment) CreatedAt() time.Time { return a.createdAt }
func (a *Attachment) Size() int            { return len(a.data) }

// MediaID is the uploaded media id, empty until an upload succeeds.
func (a *Attachment) MediaID() string { return a.mediaID }

func (a *Attachment) SetID(id string)          { a.id = id }
func (a *Attachment) SetItemID(id string)      { a.itemID = id }
func (a *Attachment) SetAltText(alt string)    { a.altText = alt }
func (a *Attachment) SetMediaID(id string)     { a.mediaID = id }
func (a *Attachment) SetSortOrder(n int)       { a.sortOrder = n }
func (a *Attachment) SetCreatedAt(t time.Time) { a.createdAt = t }
func (a *Attachment) IsUploaded() bool         { return a.mediaID != "" }
func (a *Attachment) ClearMediaID()            { a.mediaID = "" }
