package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/services"
	"github.com/desertthunder/threadx/internal/shared"
	"github.com/dustin/go-humanize"
)

const (
	// DefaultUploadURL is the v1.1 chunked upload endpoint.
	DefaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	// DefaultMaxBytes is the platform image limit.
	DefaultMaxBytes int64 = 5 * 1024 * 1024
	// MaxStatusPolls bounds how often processing status is checked.
	MaxStatusPolls = 30

	defaultCheckAfter = time.Second
)

// Processing states reported by the upload endpoint.
const (
	StatePending    = "pending"
	StateInProgress = "in_progress"
	StateSucceeded  = "succeeded"
	StateFailed     = "failed"
)

// Sender performs an authenticated request without classifying the status.
// [services.APIClient] satisfies it.
type Sender interface {
	Send(ctx context.Context, method, fullURL string, body io.Reader, contentType string) (*services.APIResponse, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	ProgressPct    int    `json:"progress_percent"`
	Error          *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *processingInfo) pending() bool {
	return p != nil && (p.State == StatePending || p.State == StateInProgress)
}

func (p *processingInfo) wait() time.Duration {
	if p == nil || p.CheckAfterSecs <= 0 {
		return defaultCheckAfter
	}
	return time.Duration(p.CheckAfterSecs) * time.Second
}

type uploadResponse struct {
	MediaID        int64           `json:"media_id"`
	MediaIDString  string          `json:"media_id_string"`
	Size           int64           `json:"size,omitempty"`
	ExpiresAfter   int             `json:"expires_after_secs,omitempty"`
	ProcessingInfo *processingInfo `json:"processing_info,omitempty"`
}

// Uploader transfers one attachment through INIT, APPEND, FINALIZE and STATUS.
//
// Every attachment is sent as a single segment.
type Uploader struct {
	sender    Sender
	uploadURL string
	maxBytes  int64
	sleep     SleepFunc
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// Option configures an [Uploader].
type Option func(*Uploader)

// WithMaxBytes overrides the size limit. Zero or less keeps [DefaultMaxBytes].
func WithMaxBytes(n int64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.maxBytes = n
		}
	}
}

// WithSleep replaces the wait between status checks.
func WithSleep(fn SleepFunc) Option {
	return func(u *Uploader) { u.sleep = fn }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Uploader) { u.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(u *Uploader) { u.logger = shared.WithLogger(l, "component", "media") }
}

// NewUploader creates an [Uploader] that posts to uploadURL, or [DefaultUploadURL] when empty.
func NewUploader(sender Sender, uploadURL string, opts ...Option) *Uploader {
	if uploadURL == "" {
		uploadURL = DefaultUploadURL
	}
	u := &Uploader{
		sender:    sender,
		uploadURL: uploadURL,
		maxBytes:  DefaultMaxBytes,
		sleep:     sleepContext,
		logger:    shared.WithLogger(nil, "component", "media"),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload sends the full-size data of a and returns the media id once it is usable.
// The attachment itself is not modified.
func (u *Uploader) Upload(ctx context.Context, a *models.Attachment) (string, error) {
	return u.UploadData(ctx, a.Data(), a.MediaType())
}

// UploadData runs the upload sequence for data. An empty mediaType is sniffed.
func (u *Uploader) UploadData(ctx context.Context, data []byte, mediaType string) (string, error) {
	size := int64(len(data))
	if size > u.maxBytes {
		return "", fmt.Errorf("%w: %s exceeds the %s limit", shared.ErrImageTooLarge,
			humanize.IBytes(uint64(size)), humanize.IBytes(uint64(u.maxBytes)))
	}
	if mediaType == "" {
		mediaType = DetectContentType(data)
	}

	mediaID, err := u.initialize(ctx, size, mediaType)
	if err != nil {
		return "", err
	}
	logger := u.logger.With("media_id", mediaID)
	logger.Debug("upload initialized", "bytes", size, "type", mediaType)

	if err := u.appendSegment(ctx, mediaID, data); err != nil {
		return "", err
	}

	info, err := u.finalize(ctx, mediaID)
	if err != nil {
		return "", err
	}

	for polls := 0; info.pending(); polls++ {
		if polls >= MaxStatusPolls {
			return "", fmt.Errorf("%w: media %s still %s after %d status checks", shared.ErrTimeout, mediaID, info.State, polls)
		}
		logger.Debug("media processing", "state", info.State, "progress", info.ProgressPct)
		if err := u.sleep(ctx, info.wait()); err != nil {
			return "", err
		}
		if info, err = u.status(ctx, mediaID); err != nil {
			return "", err
		}
	}

	if info != nil && info.State == StateFailed {
		msg := "processing failed"
		if info.Error != nil && info.Error.Message != "" {
			msg = info.Error.Message
		}
		return "", fmt.Errorf("%w: media %s: %s", shared.ErrProcessingFailed, mediaID, msg)
	}

	u.metrics.IncMediaUploaded(len(data))
	logger.Info("media uploaded", "bytes", humanize.IBytes(uint64(size)))
	return mediaID, nil
}

func (u *Uploader) initialize(ctx context.Context, size int64, mediaType string) (string, error) {
	form := url.Values{
		"command":        {"INIT"},
		"total_bytes":    {strconv.FormatInt(size, 10)},
		"media_type":     {mediaType},
		"media_category": {Category(mediaType)},
	}
	resp, err := u.sendForm(ctx, form)
	if err != nil {
		return "", err
	}
	if err := expect("INIT", resp, http.StatusOK, http.StatusAccepted); err != nil {
		return "", err
	}

	body, err := decode(resp.Body)
	if err != nil {
		return "", err
	}
	if body.MediaIDString == "" {
		if body.MediaID == 0 {
			return "", fmt.Errorf("%w: INIT response has no media id", shared.ErrUploadFailed)
		}
		body.MediaIDString = strconv.FormatInt(body.MediaID, 10)
	}
	return body.MediaIDString, nil
}

func (u *Uploader) appendSegment(ctx context.Context, mediaID string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{{"command", "APPEND"}, {"media_id", mediaID}, {"segment_index", "0"}}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("%w: failed to build APPEND body: %v", shared.ErrUploadFailed, err)
		}
	}
	part, err := w.CreateFormFile("media", "media")
	if err != nil {
		return fmt.Errorf("%w: failed to build APPEND body: %v", shared.ErrUploadFailed, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("%w: failed to build APPEND body: %v", shared.ErrUploadFailed, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: failed to build APPEND body: %v", shared.ErrUploadFailed, err)
	}

	resp, err := u.sender.Send(ctx, http.MethodPost, u.uploadURL, &buf, w.FormDataContentType())
	if err != nil {
		return err
	}
	return expect("APPEND", resp, http.StatusOK, http.StatusNoContent)
}

func (u *Uploader) finalize(ctx context.Context, mediaID string) (*processingInfo, error) {
	resp, err := u.sendForm(ctx, url.Values{"command": {"FINALIZE"}, "media_id": {mediaID}})
	if err != nil {
		return nil, err
	}
	if err := expect("FINALIZE", resp, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	body, err := decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return body.ProcessingInfo, nil
}

func (u *Uploader) status(ctx context.Context, mediaID string) (*processingInfo, error) {
	q := url.Values{"command": {"STATUS"}, "media_id": {mediaID}}
	resp, err := u.sender.Send(ctx, http.MethodGet, u.uploadURL+"?"+q.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	if err := expect("STATUS", resp, http.StatusOK); err != nil {
		return nil, err
	}
	body, err := decode(resp.Body)
	if err != nil {
		return nil, err
	}
	return body.ProcessingInfo, nil
}

func (u *Uploader) sendForm(ctx context.Context, form url.Values) (*services.APIResponse, error) {
	return u.sender.Send(ctx, http.MethodPost, u.uploadURL, bytes.NewBufferString(form.Encode()),
		"application/x-www-form-urlencoded")
}

// expect accepts the listed statuses. Auth and rate limit failures keep their API
// classification, anything else is an upload failure.
func expect(step string, resp *services.APIResponse, ok ...int) error {
	if slices.Contains(ok, resp.StatusCode) {
		return nil
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusTooManyRequests:
		return services.Classify(resp.StatusCode, resp.Headers, resp.Body)
	}
	return fmt.Errorf("%w: %s returned status %d: %s", shared.ErrUploadFailed, step, resp.StatusCode,
		shared.Truncate(string(bytes.TrimSpace(resp.Body)), 200))
}

func decode(data []byte) (*uploadResponse, error) {
	var body uploadResponse
	if len(bytes.TrimSpace(data)) == 0 {
		return &body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrDecoding, err)
	}
	return &body, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
