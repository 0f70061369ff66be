package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/threadx/internal/shared"
)

// ThreadItem is one post of a [Thread]. It owns up to [MaxAttachments] attachments.
type ThreadItem struct {
	id          string
	threadID    string
	text        string
	attachments []*Attachment
	status      Status
	postID      string
	sortOrder   int
	createdAt   time.Time
	updatedAt   time.Time
}

// NewThreadItem creates an editing [ThreadItem] with text.
func NewThreadItem(text string) *ThreadItem {
	now := time.Now()
	return &ThreadItem{
		id:        shared.GenerateID(),
		text:      text,
		status:    StatusEditing,
		createdAt: now,
		updatedAt: now,
	}
}

func (i *ThreadItem) ID() string           { return i.id }
func (i *ThreadItem) ThreadID() string     { return i.threadID }
func (i *ThreadItem) Text() string         { return i.text }
func (i *ThreadItem) Status() Status       { return i.status }
func (i *ThreadItem) PostID() string       { return i.postID }
func (i *ThreadItem) SortOrder() int       { return i.sortOrder }
func (i *ThreadItem) CreatedAt() time.Time { return i.createdAt }
func (i *ThreadItem) UpdatedAt() time.Time { return i.updatedAt }

func (i *ThreadItem) SetID(id string) {
	i.id = id
	for _, a := range i.attachments {
		a.SetItemID(id)
	}
}

func (i *ThreadItem) SetThreadID(id string)    { i.threadID = id }
func (i *ThreadItem) SetStatus(s Status)       { i.status = s }
func (i *ThreadItem) SetPostID(id string)      { i.postID = id }
func (i *ThreadItem) SetSortOrder(n int)       { i.sortOrder = n }
func (i *ThreadItem) SetUpdatedAt(t time.Time) { i.updatedAt = t }

func (i *ThreadItem) SetCreatedAt(t time.Time) {
	i.createdAt = t
}

// SetText replaces the body text.
func (i *ThreadItem) SetText(text string) {
	i.text = text
	i.updatedAt = time.Now()
}

// HasContent reports whether the item has non-blank text or at least one attachment.
func (i *ThreadItem) HasContent() bool {
	return strings.TrimSpace(i.text) != "" || len(i.attachments) > 0
}

// Attachments returns the attachments in sort order.
func (i *ThreadItem) Attachments() []*Attachment {
	return slices.Clone(i.attachments)
}

// AddAttachment appends a, failing with [shared.ErrTooManyMedia] past [MaxAttachments].
func (i *ThreadItem) AddAttachment(a *Attachment) error {
	if len(i.attachments) >= MaxAttachments {
		return fmt.Errorf("%w: an item holds at most %d attachments", shared.ErrTooManyMedia, MaxAttachments)
	}
	a.SetItemID(i.id)
	i.attachments = append(i.attachments, a)
	i.renumberAttachments()
	i.updatedAt = time.Now()
	return nil
}

// RemoveAttachment drops the attachment with id.
func (i *ThreadItem) RemoveAttachment(id string) error {
	idx := slices.IndexFunc(i.attachments, func(a *Attachment) bool { return a.ID() == id })
	if idx < 0 {
		return fmt.Errorf("%w: attachment %s", shared.ErrNotFound, id)
	}
	i.attachments = slices.Delete(i.attachments, idx, idx+1)
	i.renumberAttachments()
	i.updatedAt = time.Now()
	return nil
}

// SetAttachments replaces the attachments, ordered by their stored sort order.
func (i *ThreadItem) SetAttachments(list []*Attachment) error {
	if len(list) > MaxAttachments {
		return fmt.Errorf("%w: %d attachments", shared.ErrTooManyMedia, len(list))
	}
	i.attachments = slices.Clone(list)
	slices.SortStableFunc(i.attachments, func(a, b *Attachment) int { return a.SortOrder() - b.SortOrder() })
	for _, a := range i.attachments {
		a.SetItemID(i.id)
	}
	i.renumberAttachments()
	return nil
}

// MediaIDs returns the uploaded media ids in attachment order.
func (i *ThreadItem) MediaIDs() []string {
	ids := make([]string, 0, len(i.attachments))
	for _, a := range i.attachments {
		if a.IsUploaded() {
			ids = append(ids, a.MediaID())
		}
	}
	return ids
}

func (i *ThreadItem) renumberAttachments() {
	for n, a := range i.attachments {
		a.SetSortOrder(n)
	}
}

// Thread is a draft: an ordered, non-empty list of items posted as a reply chain.
type Thread struct {
	id             string
	sequence       int
	items          []*ThreadItem
	status         Status
	failureMessage string
	groupID        string
	createdAt      time.Time
	updatedAt      time.Time
}

// NewThread creates an editing [Thread] with one item per text, or a single empty
// item when no text is given.
func NewThread(texts ...string) *Thread {
	now := time.Now()
	t := &Thread{
		id:        shared.GenerateID(),
		status:    StatusEditing,
		createdAt: now,
		updatedAt: now,
	}
	if len(texts) == 0 {
		texts = []string{""}
	}
	for _, text := range texts {
		t.AddItem(text)
	}
	return t
}

func (t *Thread) ID() string             { return t.id }
func (t *Thread) Sequence() int          { return t.sequence }
func (t *Thread) Status() Status         { return t.status }
func (t *Thread) FailureMessage() string { return t.failureMessage }
func (t *Thread) CreatedAt() time.Time   { return t.createdAt }
func (t *Thread) UpdatedAt() time.Time   { return t.updatedAt }

// GroupID is the thread group id shared by the published posts of this thread.
func (t *Thread) GroupID() string { return t.groupID }

func (t *Thread) SetID(id string) {
	t.id = id
	for _, item := range t.items {
		item.SetThreadID(id)
	}
}

func (t *Thread) SetSequence(n int)          { t.sequence = n }
func (t *Thread) SetStatus(s Status)         { t.status = s }
func (t *Thread) SetFailureMessage(m string) { t.failureMessage = m }
func (t *Thread) SetGroupID(id string)       { t.groupID = id }
func (t *Thread) SetCreatedAt(at time.Time)  { t.createdAt = at }
func (t *Thread) SetUpdatedAt(at time.Time)  { t.updatedAt = at }

// Touch bumps the update timestamp.
func (t *Thread) Touch() {
	t.updatedAt = time.Now()
}

// Items returns the items in sort order.
func (t *Thread) Items() []*ThreadItem {
	return slices.Clone(t.items)
}

// Item returns the item with id.
func (t *Thread) Item(id string) (*ThreadItem, error) {
	for _, item := range t.items {
		if item.ID() == id {
			return item, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
}

// ItemAt returns the item at a 0-based position.
func (t *Thread) ItemAt(index int) (*ThreadItem, error) {
	if index < 0 || index >= len(t.items) {
		return nil, fmt.Errorf("%w: position %d of %d", shared.ErrItemNotFound, index, len(t.items))
	}
	return t.items[index], nil
}

// AddItem appends a new item with text and returns it.
func (t *Thread) AddItem(text string) *ThreadItem {
	item := NewThreadItem(text)
	item.SetThreadID(t.id)
	t.items = append(t.items, item)
	t.renumber()
	t.Touch()
	return item
}

// RemoveItem deletes the item with id. The last remaining item cannot be removed.
func (t *Thread) RemoveItem(id string) error {
	idx := slices.IndexFunc(t.items, func(i *ThreadItem) bool { return i.ID() == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	if len(t.items) == 1 {
		return shared.ErrLastItemRequired
	}
	t.items = slices.Delete(t.items, idx, idx+1)
	t.renumber()
	t.Touch()
	return nil
}

// MoveItem moves the item with id to position to, clamped to the valid range.
func (t *Thread) MoveItem(id string, to int) error {
	idx := slices.IndexFunc(t.items, func(i *ThreadItem) bool { return i.ID() == id })
	if idx < 0 {
		return fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	to = max(0, min(to, len(t.items)-1))

	item := t.items[idx]
	t.items = slices.Delete(t.items, idx, idx+1)
	t.items = slices.Insert(t.items, to, item)
	t.renumber()
	t.Touch()
	return nil
}

// SetItems replaces the items, ordered by their stored sort order.
func (t *Thread) SetItems(items []*ThreadItem) {
	t.items = slices.Clone(items)
	slices.SortStableFunc(t.items, func(a, b *ThreadItem) int { return a.SortOrder() - b.SortOrder() })
	for _, item := range t.items {
		item.SetThreadID(t.id)
	}
	t.renumber()
}

// ContentItems returns the items that have content, in sort order.
func (t *Thread) ContentItems() []*ThreadItem {
	var out []*ThreadItem
	for _, item := range t.items {
		if item.HasContent() {
			out = append(out, item)
		}
	}
	return out
}

// AttachmentCount returns the number of attachments across all items.
func (t *Thread) AttachmentCount() int {
	n := 0
	for _, item := range t.items {
		n += len(item.attachments)
	}
	return n
}

// IsEditable reports whether the thread is in editing, ready, or failed.
func (t *Thread) IsEditable() bool {
	return t.status.IsEditable()
}

// CanPost reports whether the thread is editable and has at least one item with content.
func (t *Thread) CanPost() bool {
	if !t.IsEditable() {
		return false
	}
	return slices.ContainsFunc(t.items, (*ThreadItem).HasContent)
}

// Title returns a one-line preview built from the first item with text.
func (t *Thread) Title(n int) string {
	for _, item := range t.items {
		if text := strings.TrimSpace(item.Text()); text != "" {
			return shared.Truncate(strings.Join(strings.Fields(text), " "), n)
		}
	}
	return "(untitled)"
}

// Validate checks the ownership invariants: at least one item, contiguous 0-based
// sort orders, and the attachment limit.
func (t *Thread) Validate() error {
	if len(t.items) == 0 {
		return fmt.Errorf("%w: a thread needs at least one item", shared.ErrInvalidInput)
	}
	for n, item := range t.items {
		if item.SortOrder() != n {
			return fmt.Errorf("%w: item %s has sort order %d at position %d", shared.ErrInvalidInput, item.ID(), item.SortOrder(), n)
		}
		if len(item.attachments) > MaxAttachments {
			return fmt.Errorf("%w: item %s", shared.ErrTooManyMedia, item.ID())
		}
	}
	if _, err := ParseStatus(string(t.status)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func (t *Thread) renumber() {
	for n, item := range t.items {
		item.SetSortOrder(n)
	}
}
