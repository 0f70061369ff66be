package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/services"
	"github.com/desertthunder/threadx/internal/shared"
)

// Publisher creates one post, optionally as a reply.
// [services.APIClient] satisfies it.
type Publisher interface {
	PostItem(ctx context.Context, text string, mediaIDs []string, replyToID string) (*services.PostResult, error)
}

// Uploader turns an attachment into a usable media id.
// [media.Uploader] satisfies it.
type Uploader interface {
	Upload(ctx context.Context, a *models.Attachment) (string, error)
}

// PostRecorder appends to the publish history.
type PostRecorder interface {
	Record(post *models.PublishedPost) error
}

// ThreadSaver persists draft state as posting advances.
type ThreadSaver interface {
	Update(thread *models.Thread) error
}

// PostEngine defines the posting operations on a draft thread.
type PostEngine interface {
	// Post publishes every content item that is not yet posted as a reply chain.
	Post(ctx context.Context, thread *models.Thread, progress chan<- ProgressUpdate) error

	// Retry resets a failed or interrupted thread and posts it again.
	Retry(ctx context.Context, thread *models.Thread, progress chan<- ProgressUpdate) error

	// Progress reports the fraction of the current or last run that completed.
	Progress() float64
}

// Composer implements [PostEngine]. Runs are serialized: one thread is posted at a time.
type Composer struct {
	publisher Publisher
	uploader  Uploader
	recorder  PostRecorder
	saver     ThreadSaver
	metrics   *metrics.Metrics
	logger    *log.Logger
	now       func() time.Time

	run sync.Mutex

	mu       sync.RWMutex
	progress float64
}

// ComposerOption configures a [Composer].
type ComposerOption func(*Composer)

// WithThreadSaver persists the thread after every published item and at the end of a run.
func WithThreadSaver(s ThreadSaver) ComposerOption {
	return func(c *Composer) { c.saver = s }
}

func WithComposerMetrics(m *metrics.Metrics) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

func WithComposerLogger(l *log.Logger) ComposerOption {
	return func(c *Composer) { c.logger = shared.WithLogger(l, "component", "composer") }
}

// WithNow sets the clock used for publish timestamps.
func WithNow(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

// NewComposer creates a [Composer]. recorder may be nil when no history is kept.
func NewComposer(publisher Publisher, uploader Uploader, recorder PostRecorder, opts ...ComposerOption) *Composer {
	c := &Composer{
		publisher: publisher,
		uploader:  uploader,
		recorder:  recorder,
		logger:    shared.WithLogger(nil, "component", "composer"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sendProgress sends a progress update through the channel without blocking.
func (c *Composer) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	c.mu.Lock()
	c.progress = update.Fraction
	c.mu.Unlock()

	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Progress reports completed work units over the total of the current run.
func (c *Composer) Progress() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// Post publishes the content items of thread in order, each replying to the one before.
//
// Items already posted are skipped and the chain continues from the last of them.
// On failure the thread and the item in flight are marked failed and the error is returned.
func (c *Composer) Post(ctx context.Context, thread *models.Thread, progress chan<- ProgressUpdate) error {
	c.run.Lock()
	defer c.run.Unlock()
	return c.post(ctx, thread, progress)
}

// Retry requires a failed thread, or one left posting by an interrupted run. It clears
// the failure, returns unfinished items to editing, drops every uploaded media id and
// posts again.
func (c *Composer) Retry(ctx context.Context, thread *models.Thread, progress chan<- ProgressUpdate) error {
	c.run.Lock()
	defer c.run.Unlock()

	switch thread.Status() {
	case models.StatusFailed:
	case models.StatusPosting:
		// No run holds the lock, so this state was saved by a run that never finished.
		c.logger.Warn("resuming interrupted thread", "thread", thread.ID())
		thread.SetStatus(models.StatusFailed)
	default:
		return fmt.Errorf("%w: thread #%d is %s, only failed threads can be retried",
			shared.ErrInvalidState, thread.Sequence(), thread.Status())
	}

	thread.SetFailureMessage("")
	for _, item := range thread.Items() {
		if item.Status() == models.StatusFailed || item.Status() == models.StatusPosting {
			item.SetStatus(models.StatusEditing)
		}
		for _, a := range item.Attachments() {
			a.ClearMediaID()
		}
	}

	c.logger.Info("retrying thread", "thread", thread.ID())
	return c.post(ctx, thread, progress)
}

func (c *Composer) post(ctx context.Context, thread *models.Thread, progress chan<- ProgressUpdate) error {
	if !thread.IsEditable() {
		return fmt.Errorf("%w: thread #%d is %s", shared.ErrInvalidState, thread.Sequence(), thread.Status())
	}

	logger := c.logger.With("thread", thread.ID())
	thread.SetStatus(models.StatusPosting)
	thread.Touch()

	content := thread.ContentItems()
	if len(content) == 0 {
		return c.fail(thread, progress, 0, 0, shared.ErrEmptyContent)
	}

	groupID := ""
	if len(content) > 1 {
		if thread.GroupID() == "" {
			thread.SetGroupID(shared.GenerateID())
		}
		groupID = thread.GroupID()
	}

	total, pending := 0, 0
	for _, item := range content {
		if item.Status() != models.StatusPosted {
			total += len(item.Attachments()) + 1
			pending++
		}
	}

	done := 0
	c.sendProgress(progress, prepareUpdate(total, pending))
	logger.Info("posting thread", "items", pending, "units", total, "group", groupID)

	replyTo := ""
	for pos, item := range content {
		if item.Status() == models.StatusPosted {
			replyTo = item.PostID()
			continue
		}

		item.SetStatus(models.StatusPosting)

		attachments := item.Attachments()
		for n, a := range attachments {
			if !a.IsUploaded() {
				mediaID, err := c.uploader.Upload(ctx, a)
				if err != nil {
					return c.fail(thread, progress, done, total, fmt.Errorf("item %d: %w", pos+1, err))
				}
				a.SetMediaID(mediaID)
			}
			done++
			c.sendProgress(progress, uploadUpdate(done, total, pos, n+1, len(attachments)))
		}

		result, err := c.publisher.PostItem(ctx, item.Text(), item.MediaIDs(), replyTo)
		if err != nil {
			return c.fail(thread, progress, done, total, fmt.Errorf("item %d: %w", pos+1, err))
		}

		item.SetStatus(models.StatusPosted)
		item.SetPostID(result.ID)
		item.SetUpdatedAt(c.now())
		c.metrics.IncPostPublished()

		position := 0
		if groupID != "" {
			position = pos
		}
		record := models.NewPublishedPost(result.ID, item.Text(), len(attachments), groupID, position, c.now())
		if c.recorder != nil {
			if err := c.recorder.Record(record); err != nil {
				logger.Error("failed to record published post", "post_id", result.ID, "error", err)
			}
		}

		done++
		c.sendProgress(progress, publishUpdate(done, total, pos, record))
		logger.Debug("item posted", "position", pos, "post_id", result.ID, "reply_to", replyTo)

		replyTo = result.ID
		c.save(thread)
	}

	thread.SetStatus(models.StatusPosted)
	thread.Touch()
	c.save(thread)
	c.metrics.IncThreadPosted()
	c.sendProgress(progress, completeUpdate(total, thread))
	logger.Info("thread posted", "last_post_id", replyTo)
	return nil
}

// fail marks the thread and every item still posting as failed and resets progress.
func (c *Composer) fail(thread *models.Thread, progress chan<- ProgressUpdate, done, total int, err error) error {
	thread.SetStatus(models.StatusFailed)
	thread.SetFailureMessage(err.Error())
	thread.Touch()
	for _, item := range thread.Items() {
		if item.Status() == models.StatusPosting {
			item.SetStatus(models.StatusFailed)
		}
	}

	c.save(thread)
	c.metrics.IncThreadFailure()
	c.sendProgress(progress, failedUpdate(done, total, err))
	c.logger.Error("posting failed", "thread", thread.ID(), "error", err)
	return err
}

func (c *Composer) save(thread *models.Thread) {
	if c.saver == nil {
		return
	}
	if err := c.saver.Update(thread); err != nil {
		c.logger.Warn("failed to save thread state", "thread", thread.ID(), "error", err)
	}
}
