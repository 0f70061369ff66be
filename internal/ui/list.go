package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/threadx/internal/counter"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/dustin/go-humanize"
)

var (
	_ list.Item = threadItem{}
	_ list.Item = postItem{}
)

// threadItem wraps [models.Thread] to implement [list.Item].
type threadItem struct {
	thread *models.Thread
}

func (i threadItem) FilterValue() string { return i.thread.Title(80) }
func (i threadItem) Title() string {
	return fmt.Sprintf("#%d %s", i.thread.Sequence(), i.thread.Title(60))
}
func (i threadItem) Description() string {
	desc := fmt.Sprintf("%s • %d items", i.thread.Status(), len(i.thread.Items()))
	if n := i.thread.AttachmentCount(); n > 0 {
		desc = fmt.Sprintf("%s • %d images", desc, n)
	}
	return fmt.Sprintf("%s • edited %s", desc, humanize.Time(i.thread.UpdatedAt()))
}

// postItem wraps [models.ThreadItem] to implement [list.Item].
type postItem struct {
	item  *models.ThreadItem
	limit int
}

func (i postItem) FilterValue() string { return i.item.Text() }
func (i postItem) Title() string {
	text := strings.Join(strings.Fields(i.item.Text()), " ")
	if text == "" {
		text = "(no text)"
	}
	return fmt.Sprintf("%d. %s", i.item.SortOrder()+1, text)
}
func (i postItem) Description() string {
	s := counter.Summarize(i.item.Text(), i.limit)
	desc := fmt.Sprintf("%d/%d • %s", s.Count, s.Limit, i.item.Status())
	if !s.IsWithinLimit() {
		desc = fmt.Sprintf("%s • over by %d", desc, -s.Remaining)
	}
	if n := len(i.item.Attachments()); n > 0 {
		desc = fmt.Sprintf("%s • %d images", desc, n)
	}
	return desc
}
