// package formatter renders drafts and publish history as text, CSV, Markdown or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/threadx/internal/counter"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
	"github.com/dustin/go-humanize"
)

// Supported export formats.
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatJSON     = "json"
)

// Formats lists the values accepted by [Export].
var Formats = []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// Group is a run of published posts that belong together: every post of one thread,
// or a single standalone post.
type Group struct {
	ID    string
	Posts []*models.PublishedPost
}

// IsThread reports whether the group came from a multi-post thread.
func (g Group) IsThread() bool { return g.ID != "" }

// PublishedAt is the publish time of the first post.
func (g Group) PublishedAt() time.Time {
	if len(g.Posts) == 0 {
		return time.Time{}
	}
	return g.Posts[0].PublishedAt()
}

// GroupPosts groups posts by thread group id, keeping the order in which groups first appear.
// Posts inside a group are ordered by position.
func GroupPosts(posts []*models.PublishedPost) []Group {
	var groups []Group
	index := make(map[string]int)

	for _, p := range posts {
		if !p.IsThreaded() {
			groups = append(groups, Group{Posts: []*models.PublishedPost{p}})
			continue
		}
		if i, ok := index[p.GroupID()]; ok {
			groups[i].Posts = insertByPosition(groups[i].Posts, p)
			continue
		}
		index[p.GroupID()] = len(groups)
		groups = append(groups, Group{ID: p.GroupID(), Posts: []*models.PublishedPost{p}})
	}
	return groups
}

func insertByPosition(posts []*models.PublishedPost, p *models.PublishedPost) []*models.PublishedPost {
	i := len(posts)
	for i > 0 && posts[i-1].Position() > p.Position() {
		i--
	}
	posts = append(posts, nil)
	copy(posts[i+1:], posts[i:])
	posts[i] = p
	return posts
}

// ExportToCSV writes one row per post with columns: post_id, published_at, thread_group_id, position, attachments, url, text
func ExportToCSV(posts []*models.PublishedPost) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"post_id", "published_at", "thread_group_id", "position", "attachments", "url", "text"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range posts {
		record := []string{
			p.PostID(),
			p.PublishedAt().UTC().Format(time.RFC3339),
			p.GroupID(),
			strconv.Itoa(p.Position()),
			strconv.Itoa(p.AttachmentCount()),
			p.ViewURL(),
			p.Text(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the history with one section per thread or standalone post.
func ExportToMarkdown(posts []*models.PublishedPost) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Publish History\n\n")
	buf.WriteString(fmt.Sprintf("**Posts**: %d\n\n", len(posts)))

	for _, g := range GroupPosts(posts) {
		date := g.PublishedAt().UTC().Format("2006-01-02 15:04")
		if g.IsThread() {
			buf.WriteString(fmt.Sprintf("## Thread (%d posts) %s\n\n", len(g.Posts), date))
		} else {
			buf.WriteString(fmt.Sprintf("## Post %s\n\n", date))
		}

		for i, p := range g.Posts {
			media := ""
			if p.AttachmentCount() > 0 {
				media = fmt.Sprintf(" (%d images)", p.AttachmentCount())
			}
			buf.WriteString(fmt.Sprintf("%d. %s%s [view](%s)\n", i+1, oneLine(p.Text()), media, p.ViewURL()))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders the history as plain text with ages relative to now.
func ExportToText(posts []*models.PublishedPost, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Published posts: %d\n\n", len(posts)))

	for _, g := range GroupPosts(posts) {
		age := humanize.RelTime(g.PublishedAt(), now, "ago", "from now")
		if g.IsThread() {
			buf.WriteString(fmt.Sprintf("Thread, %d posts, %s\n", len(g.Posts), age))
		} else {
			buf.WriteString(fmt.Sprintf("Post, %s\n", age))
		}
		for _, p := range g.Posts {
			buf.WriteString(fmt.Sprintf("  %d. %s\n     %s\n", p.Position()+1, shared.Truncate(oneLine(p.Text()), 72), p.ViewURL()))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

type postJSON struct {
	PostID          string    `json:"post_id"`
	Text            string    `json:"text"`
	AttachmentCount int       `json:"attachment_count"`
	ViewURL         string    `json:"view_url"`
	Position        int       `json:"position_in_thread"`
	PublishedAt     time.Time `json:"published_at"`
}

type groupJSON struct {
	ThreadGroupID string     `json:"thread_group_id,omitempty"`
	Posts         []postJSON `json:"posts"`
}

// ExportToJSON renders the history as an indented array of groups.
func ExportToJSON(posts []*models.PublishedPost) ([]byte, error) {
	groups := GroupPosts(posts)
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		entry := groupJSON{ThreadGroupID: g.ID, Posts: make([]postJSON, 0, len(g.Posts))}
		for _, p := range g.Posts {
			entry.Posts = append(entry.Posts, postJSON{
				PostID:          p.PostID(),
				Text:            p.Text(),
				AttachmentCount: p.AttachmentCount(),
				ViewURL:         p.ViewURL(),
				Position:        p.Position(),
				PublishedAt:     p.PublishedAt().UTC(),
			})
		}
		out = append(out, entry)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders posts in format, one of [Formats].
func Export(posts []*models.PublishedPost, format string, now time.Time) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatText, "txt", "":
		return ExportToText(posts, now)
	case FormatCSV:
		return ExportToCSV(posts)
	case FormatMarkdown, "markdown":
		return ExportToMarkdown(posts)
	case FormatJSON:
		return ExportToJSON(posts)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders posts in format and writes them to path.
//
// Defaults to history.{format} as the filename.
func WriteExport(posts []*models.PublishedPost, format, path string, now time.Time) (string, error) {
	data, err := Export(posts, format, now)
	if err != nil {
		return "", err
	}
	if path == "" {
		ext := strings.ToLower(format)
		if ext == "" || ext == FormatText {
			ext = "txt"
		}
		path = "history." + ext
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// ThreadToText renders a draft with per-item weighted counts against limit.
func ThreadToText(thread *models.Thread, limit int) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("Thread #%d [%s] %s\n", thread.Sequence(), thread.Status(), thread.Title(48)))
	if thread.FailureMessage() != "" {
		buf.WriteString(fmt.Sprintf("Failure: %s\n", thread.FailureMessage()))
	}

	for i, item := range thread.Items() {
		s := counter.Summarize(item.Text(), limit)
		marker := " "
		if !s.IsWithinLimit() {
			marker = "!"
		}
		buf.WriteString(fmt.Sprintf("\n%s%d. (%d/%d) [%s]", marker, i+1, s.Count, s.Limit, item.Status()))
		if item.PostID() != "" {
			buf.WriteString(" " + models.ViewURL(item.PostID()))
		}
		buf.WriteString("\n")

		for _, line := range strings.Split(item.Text(), "\n") {
			buf.WriteString("   " + line + "\n")
		}
		for _, a := range item.Attachments() {
			alt := ""
			if a.AltText() != "" {
				alt = fmt.Sprintf(" %q", a.AltText())
			}
			buf.WriteString(fmt.Sprintf("   + %s %s%s\n", a.MediaType(), humanize.IBytes(uint64(a.Size())), alt))
		}
	}

	return buf.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
