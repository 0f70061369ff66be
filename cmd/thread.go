package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/threadx/internal/counter"
	"github.com/desertthunder/threadx/internal/formatter"
	"github.com/desertthunder/threadx/internal/media"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
	"github.com/desertthunder/threadx/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Count prints the weighted length of the arguments or of --file.
func (r *Runner) Count(ctx context.Context, cmd *cli.Command) error {
	text := strings.Join(cmd.Args().Slice(), " ")
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		text = strings.TrimRight(string(data), "\n")
	}
	if text == "" {
		return fmt.Errorf("%w: text or --file", shared.ErrMissingArgument)
	}

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.limit()
	}

	s := counter.Summarize(text, limit)
	if s.IsWithinLimit() {
		return r.writePlain("✓ %d/%d characters, %d remaining (%.0f%%)\n", s.Count, s.Limit, s.Remaining, s.PercentageUsed*100)
	}
	return r.writePlain("✗ %d/%d characters, over by %d (%.0f%%)\n", s.Count, s.Limit, -s.Remaining, s.PercentageUsed*100)
}

// ThreadNew creates a draft with one item per argument.
func (r *Runner) ThreadNew(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.threadRepository()
	if err != nil {
		return err
	}

	thread := models.NewThread(cmd.Args().Slice()...)
	if err := repo.Create(thread); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	r.logger.Debug("thread created", "id", thread.ID(), "sequence", thread.Sequence())
	return r.writePlain("✓ Created thread #%d with %d item(s)\n", thread.Sequence(), len(thread.Items()))
}

// ThreadAdd appends an item with optional images to a draft. A draft whose only item
// is still blank gets that item filled instead.
func (r *Runner) ThreadAdd(ctx context.Context, cmd *cli.Command) error {
	thread, err := r.threadArg(cmd)
	if err != nil {
		return err
	}
	if !thread.IsEditable() {
		return fmt.Errorf("%w: thread #%d is %s", shared.ErrInvalidState, thread.Sequence(), thread.Status())
	}

	text := strings.Join(cmd.Args().Tail(), " ")
	images := cmd.StringSlice("image")
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return fmt.Errorf("%w: text or --image", shared.ErrMissingArgument)
	}

	var item *models.ThreadItem
	if items := thread.Items(); len(items) == 1 && !items[0].HasContent() {
		item = items[0]
		item.SetText(text)
	} else {
		item = thread.AddItem(text)
	}

	alts := cmd.StringSlice("alt")
	for i, path := range images {
		alt := ""
		if i < len(alts) {
			alt = alts[i]
		}
		a, err := r.loadImage(path, alt)
		if err != nil {
			return err
		}
		if err := item.AddAttachment(a); err != nil {
			return err
		}
	}

	if s := counter.Summarize(item.Text(), r.limit()); !s.IsWithinLimit() {
		r.logger.Warn("item is over the character limit", "count", s.Count, "limit", s.Limit)
	}

	thread.Touch()
	repo, err := r.threadRepository()
	if err != nil {
		return err
	}
	if err := repo.Update(thread); err != nil {
		return fmt.Errorf("failed to save thread: %w", err)
	}

	return r.writePlain("✓ Thread #%d now has %d item(s)\n", thread.Sequence(), len(thread.Items()))
}

func (r *Runner) loadImage(path, alt string) (*models.Attachment, error) {
	a, err := media.LoadAttachment(media.PassthroughPreparer{}, path, alt)
	if err != nil {
		return nil, err
	}
	if maxBytes := r.config.Limits.MaxImageBytes; maxBytes > 0 && int64(a.Size()) > maxBytes {
		return nil, fmt.Errorf("%w: %s is %s, the limit is %s", shared.ErrImageTooLarge,
			path, humanize.IBytes(uint64(a.Size())), humanize.IBytes(uint64(maxBytes)))
	}
	return a, nil
}

type threadSummary struct {
	Number    int    `json:"number"`
	ID        string `json:"id"`
	Status    string `json:"status"`
	Items     int    `json:"items"`
	Images    int    `json:"images"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

// ThreadList prints every thread, optionally filtered by --status.
func (r *Runner) ThreadList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.threadRepository()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if s := cmd.String("status"); s != "" {
		status, err := models.ParseStatus(strings.ToLower(s))
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		criteria["status"] = status
	}

	threads, err := repo.List(criteria)
	if err != nil {
		return fmt.Errorf("failed to list threads: %w", err)
	}

	if cmd.Bool("json") {
		out := make([]threadSummary, len(threads))
		for i, t := range threads {
			out[i] = threadSummary{
				Number:    t.Sequence(),
				ID:        t.ID(),
				Status:    t.Status().String(),
				Items:     len(t.Items()),
				Images:    t.AttachmentCount(),
				Title:     t.Title(80),
				UpdatedAt: t.UpdatedAt().UTC().Format("2006-01-02T15:04:05Z"),
			}
		}
		return r.writeJSON(out, true)
	}

	if len(threads) == 0 {
		return r.writePlain("No threads. Create one with 'threadx thread new \"text\"'\n")
	}
	for _, t := range threads {
		r.writePlain("#%-4d %-8s %2d item(s)  %s  (edited %s)\n",
			t.Sequence(), t.Status(), len(t.Items()), t.Title(48), humanize.Time(t.UpdatedAt()))
	}
	return nil
}

// ThreadShow prints a thread with per-item weighted counts.
func (r *Runner) ThreadShow(ctx context.Context, cmd *cli.Command) error {
	thread, err := r.threadArg(cmd)
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.ThreadToText(thread, r.limit()))
}

// ThreadImport creates a draft from a TOML or YAML document.
func (r *Runner) ThreadImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: document path", shared.ErrMissingArgument)
	}

	thread, err := formatter.ImportThread(path, media.PassthroughPreparer{})
	if err != nil {
		return err
	}

	repo, err := r.threadRepository()
	if err != nil {
		return err
	}
	if err := repo.Create(thread); err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}

	r.logger.Info("thread imported", "path", path, "items", len(thread.Items()), "images", thread.AttachmentCount())
	return r.writePlain("✓ Imported thread #%d with %d item(s) and %d image(s)\n",
		thread.Sequence(), len(thread.Items()), thread.AttachmentCount())
}

// ThreadPost publishes a draft.
func (r *Runner) ThreadPost(ctx context.Context, cmd *cli.Command) error {
	return r.publish(ctx, cmd, false)
}

// ThreadRetry resumes a failed thread or one left posting by an interrupted run.
func (r *Runner) ThreadRetry(ctx context.Context, cmd *cli.Command) error {
	return r.publish(ctx, cmd, true)
}

func (r *Runner) publish(ctx context.Context, cmd *cli.Command, retry bool) error {
	thread, err := r.threadArg(cmd)
	if err != nil {
		return err
	}
	composer, err := r.postComposer()
	if err != nil {
		return err
	}

	for _, item := range thread.ContentItems() {
		if !counter.IsWithinLimit(item.Text(), r.limit()) {
			r.logger.Warn("item is over the character limit, the platform may reject it", "item", item.SortOrder()+1)
		}
	}

	before := postedCount(thread)
	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range progress {
			r.logger.Info(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
		}
	}()

	if retry {
		err = composer.Retry(ctx, thread, progress)
	} else {
		err = composer.Post(ctx, thread, progress)
	}
	close(progress)
	<-done

	if err != nil {
		if n := postedCount(thread) - before; n > 0 {
			r.writePlain("%d item(s) were published before the failure\n", n)
		}
		if thread.Status() == models.StatusFailed {
			r.writePlain("Run 'threadx thread retry %d' to resume\n", thread.Sequence())
		}
		return fmt.Errorf("failed to post thread #%d: %w", thread.Sequence(), err)
	}

	r.writePlain("✓ Posted thread #%d\n", thread.Sequence())
	for _, item := range thread.ContentItems() {
		r.writePlain("  %d. %s\n", item.SortOrder()+1, models.ViewURL(item.PostID()))
	}
	return nil
}

func postedCount(thread *models.Thread) int {
	n := 0
	for _, item := range thread.ContentItems() {
		if item.Status() == models.StatusPosted {
			n++
		}
	}
	return n
}

// ThreadDelete removes a thread with its items and images.
func (r *Runner) ThreadDelete(ctx context.Context, cmd *cli.Command) error {
	thread, err := r.threadArg(cmd)
	if err != nil {
		return err
	}
	if thread.Status() == models.StatusPosting {
		return fmt.Errorf("%w: thread #%d is being posted", shared.ErrInvalidState, thread.Sequence())
	}

	repo, err := r.threadRepository()
	if err != nil {
		return err
	}
	if err := repo.Delete(thread.ID()); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted thread #%d\n", thread.Sequence())
}

// threadArg loads the thread numbered by the first argument.
func (r *Runner) threadArg(cmd *cli.Command) (*models.Thread, error) {
	arg := cmd.Args().First()
	if arg == "" {
		return nil, fmt.Errorf("%w: thread number", shared.ErrMissingArgument)
	}
	n, err := parseSequence(arg)
	if err != nil {
		return nil, err
	}

	repo, err := r.threadRepository()
	if err != nil {
		return nil, err
	}
	return repo.GetBySequence(n)
}

// parseSequence accepts "7" or "#7".
func parseSequence(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q is not a thread number", shared.ErrInvalidArgument, s)
	}
	return n, nil
}
