package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/threadx/internal/metrics"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/services"
	"github.com/desertthunder/threadx/internal/shared"
	tu "github.com/desertthunder/threadx/internal/testing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testUploadURL = "https://upload.test/1.1/media/upload.json"

// uploadScript answers each upload command with a fixed status and body.
// STATUS bodies are consumed in order; the last one repeats.
type uploadScript struct {
	initStatus     int
	initBody       string
	appendStatus   int
	finalizeStatus int
	finalizeBody   string
	statusBodies   []string
	statusCalls    int
}

func newScript() *uploadScript {
	return &uploadScript{
		initStatus:     http.StatusAccepted,
		initBody:       `{"media_id":710511363345354753,"media_id_string":"710511363345354753"}`,
		appendStatus:   http.StatusNoContent,
		finalizeStatus: http.StatusCreated,
		finalizeBody:   `{"media_id_string":"710511363345354753"}`,
	}
}

func command(req *http.Request, body []byte) string {
	if req.Method == http.MethodGet {
		return req.URL.Query().Get("command")
	}
	if strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/") {
		return "APPEND"
	}
	form, _ := url.ParseQuery(string(body))
	return form.Get("command")
}

func (s *uploadScript) respond(req *http.Request, body []byte) (*http.Response, error) {
	switch command(req, body) {
	case "INIT":
		return tu.JSONResponse(s.initStatus, s.initBody), nil
	case "APPEND":
		return tu.JSONResponse(s.appendStatus, ""), nil
	case "FINALIZE":
		return tu.JSONResponse(s.finalizeStatus, s.finalizeBody), nil
	case "STATUS":
		idx := min(s.statusCalls, len(s.statusBodies)-1)
		s.statusCalls++
		return tu.JSONResponse(http.StatusOK, s.statusBodies[idx]), nil
	}
	return tu.JSONResponse(http.StatusBadRequest, `{"error":"unknown command"}`), nil
}

type recordedSleeps struct {
	waits []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func newTestUploader(s *uploadScript, opts ...Option) (*Uploader, *tu.RecordingTransport, *recordedSleeps) {
	rt := &tu.RecordingTransport{Respond: s.respond}
	client := services.NewAPIClient("", services.StaticToken("tok"), &http.Client{Transport: rt})
	sleeps := &recordedSleeps{}
	opts = append([]Option{WithSleep(sleeps.sleep)}, opts...)
	return NewUploader(client, testUploadURL, opts...), rt, sleeps
}

func TestUploader(t *testing.T) {
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n-image-bytes")

	t.Run("uploads without processing", func(t *testing.T) {
		m := metrics.New()
		u, rt, sleeps := newTestUploader(newScript(), WithMetrics(m))

		id, err := u.UploadData(ctx, png, "image/png")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if id != "710511363345354753" {
			t.Errorf("unexpected media id %s", id)
		}
		if rt.Calls() != 3 {
			t.Errorf("expected INIT, APPEND, FINALIZE, got %d calls", rt.Calls())
		}
		if len(sleeps.waits) != 0 {
			t.Errorf("expected no waits, got %v", sleeps.waits)
		}
		if got := testutil.ToFloat64(m.MediaUploaded); got != 1 {
			t.Errorf("expected one upload counted, got %v", got)
		}
	})

	t.Run("INIT form", func(t *testing.T) {
		u, rt, _ := newTestUploader(newScript())
		gif := []byte("GIF89a-animated")
		if _, err := u.UploadData(ctx, gif, ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		init := rt.Requests()[0]
		if init.Method != http.MethodPost || init.URL != testUploadURL {
			t.Errorf("unexpected INIT request %s %s", init.Method, init.URL)
		}
		if init.Header.Get("Authorization") != "Bearer tok" {
			t.Error("expected bearer token on upload")
		}
		form, err := url.ParseQuery(string(init.Body))
		if err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		want := map[string]string{
			"command":        "INIT",
			"total_bytes":    "15",
			"media_type":     "image/gif",
			"media_category": "tweet_gif",
		}
		for k, v := range want {
			if form.Get(k) != v {
				t.Errorf("expected %s=%s, got %s", k, v, form.Get(k))
			}
		}
	})

	t.Run("APPEND multipart", func(t *testing.T) {
		u, rt, _ := newTestUploader(newScript())
		if _, err := u.UploadData(ctx, png, "image/png"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		appendReq := rt.Requests()[1]
		_, params, err := mime.ParseMediaType(appendReq.Header.Get("Content-Type"))
		if err != nil {
			t.Fatalf("bad content type: %v", err)
		}
		reader := multipart.NewReader(bytes.NewReader(appendReq.Body), params["boundary"])
		fields := map[string]string{}
		var payload []byte
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("failed to read part: %v", err)
			}
			data, _ := io.ReadAll(part)
			if part.FormName() == "media" {
				payload = data
				continue
			}
			fields[part.FormName()] = string(data)
		}

		if fields["command"] != "APPEND" || fields["media_id"] != "710511363345354753" || fields["segment_index"] != "0" {
			t.Errorf("unexpected APPEND fields %v", fields)
		}
		if !bytes.Equal(payload, png) {
			t.Error("APPEND payload does not match the attachment")
		}

		finalize, _ := url.ParseQuery(string(rt.Requests()[2].Body))
		if finalize.Get("command") != "FINALIZE" || finalize.Get("media_id") != "710511363345354753" {
			t.Errorf("unexpected FINALIZE form %v", finalize)
		}
	})

	t.Run("too large makes no requests", func(t *testing.T) {
		u, rt, _ := newTestUploader(newScript(), WithMaxBytes(8))
		_, err := u.UploadData(ctx, png, "image/png")
		if !errors.Is(err, shared.ErrImageTooLarge) {
			t.Fatalf("expected ErrImageTooLarge, got %v", err)
		}
		if rt.Calls() != 0 {
			t.Errorf("expected no requests, got %d", rt.Calls())
		}
	})

	t.Run("default limit", func(t *testing.T) {
		u, rt, _ := newTestUploader(newScript())
		big := make([]byte, DefaultMaxBytes+1)
		if _, err := u.UploadData(ctx, big, "image/png"); !errors.Is(err, shared.ErrImageTooLarge) {
			t.Fatalf("expected ErrImageTooLarge, got %v", err)
		}
		if rt.Calls() != 0 {
			t.Errorf("expected no requests, got %d", rt.Calls())
		}
	})

	t.Run("polls until succeeded", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"media_id_string":"1","processing_info":{"state":"pending","check_after_secs":3}}`
		s.statusBodies = []string{
			`{"media_id_string":"1","processing_info":{"state":"in_progress","check_after_secs":2,"progress_percent":40}}`,
			`{"media_id_string":"1","processing_info":{"state":"succeeded","progress_percent":100}}`,
		}
		u, rt, sleeps := newTestUploader(s)

		if _, err := u.UploadData(ctx, png, "image/png"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if s.statusCalls != 2 || rt.Calls() != 5 {
			t.Errorf("expected 2 status polls, got %d (%d calls)", s.statusCalls, rt.Calls())
		}
		if len(sleeps.waits) != 2 || sleeps.waits[0] != 3*time.Second || sleeps.waits[1] != 2*time.Second {
			t.Errorf("unexpected waits %v", sleeps.waits)
		}

		status := rt.Requests()[3]
		if status.Method != http.MethodGet || !strings.Contains(status.URL, "command=STATUS") || !strings.Contains(status.URL, "media_id=710511363345354753") {
			t.Errorf("unexpected STATUS request %s %s", status.Method, status.URL)
		}
	})

	t.Run("status without processing info is done", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"processing_info":{"state":"pending"}}`
		s.statusBodies = []string{`{"media_id_string":"710511363345354753"}`}
		u, _, sleeps := newTestUploader(s)

		if _, err := u.UploadData(ctx, png, "image/png"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(sleeps.waits) != 1 || sleeps.waits[0] != time.Second {
			t.Errorf("expected one default wait, got %v", sleeps.waits)
		}
	})

	t.Run("processing failed", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"processing_info":{"state":"pending","check_after_secs":1}}`
		s.statusBodies = []string{`{"processing_info":{"state":"failed","error":{"name":"InvalidMedia","message":"Unsupported image"}}}`}
		u, _, _ := newTestUploader(s)

		_, err := u.UploadData(ctx, png, "image/png")
		if !errors.Is(err, shared.ErrProcessingFailed) {
			t.Fatalf("expected ErrProcessingFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "Unsupported image") {
			t.Errorf("expected server message in error, got %v", err)
		}
	})

	t.Run("failed at finalize", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"processing_info":{"state":"failed"}}`
		u, rt, _ := newTestUploader(s)

		if _, err := u.UploadData(ctx, png, "image/png"); !errors.Is(err, shared.ErrProcessingFailed) {
			t.Fatalf("expected ErrProcessingFailed, got %v", err)
		}
		if rt.Calls() != 3 {
			t.Errorf("expected no status polls, got %d calls", rt.Calls())
		}
	})

	t.Run("polling is bounded", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"processing_info":{"state":"pending"}}`
		s.statusBodies = []string{`{"processing_info":{"state":"in_progress"}}`}
		u, rt, sleeps := newTestUploader(s)

		_, err := u.UploadData(ctx, png, "image/png")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if s.statusCalls != MaxStatusPolls {
			t.Errorf("expected %d status polls, got %d", MaxStatusPolls, s.statusCalls)
		}
		if rt.Calls() != 3+MaxStatusPolls || len(sleeps.waits) != MaxStatusPolls {
			t.Errorf("unexpected calls %d / waits %d", rt.Calls(), len(sleeps.waits))
		}
	})

	t.Run("sleep honours cancellation", func(t *testing.T) {
		s := newScript()
		s.finalizeBody = `{"processing_info":{"state":"pending"}}`
		rt := &tu.RecordingTransport{Respond: s.respond}
		client := services.NewAPIClient("", services.StaticToken("tok"), &http.Client{Transport: rt})
		u := NewUploader(client, testUploadURL)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := u.UploadData(cctx, png, "image/png"); err == nil {
			t.Fatal("expected error for cancelled context")
		}
	})

	t.Run("unexpected statuses", func(t *testing.T) {
		tc := []struct {
			name  string
			setup func(s *uploadScript)
			want  error
		}{
			{"INIT rejected", func(s *uploadScript) { s.initStatus = http.StatusBadRequest; s.initBody = `{"error":"bad"}` }, shared.ErrUploadFailed},
			{"INIT without id", func(s *uploadScript) { s.initBody = `{}` }, shared.ErrUploadFailed},
			{"INIT garbage", func(s *uploadScript) { s.initBody = `not json` }, shared.ErrDecoding},
			{"APPEND server error", func(s *uploadScript) { s.appendStatus = http.StatusInternalServerError }, shared.ErrUploadFailed},
			{"FINALIZE wrong status", func(s *uploadScript) { s.finalizeStatus = http.StatusAccepted }, shared.ErrUploadFailed},
			{"INIT unauthorized", func(s *uploadScript) { s.initStatus = http.StatusUnauthorized }, shared.ErrUnauthorized},
			{"APPEND rate limited", func(s *uploadScript) { s.appendStatus = http.StatusTooManyRequests }, shared.ErrRateLimited},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				s := newScript()
				tt.setup(s)
				u, _, _ := newTestUploader(s)

				_, err := u.UploadData(ctx, png, "image/png")
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("Upload uses attachment data", func(t *testing.T) {
		u, rt, _ := newTestUploader(newScript())
		a := models.NewAttachment(png, []byte("thumb"), "image/png", "alt")

		id, err := u.Upload(ctx, a)
		if err != nil || id == "" {
			t.Fatalf("expected media id, got %q, %v", id, err)
		}
		if a.IsUploaded() {
			t.Error("Upload should not modify the attachment")
		}
		form, _ := url.ParseQuery(string(rt.Requests()[0].Body))
		if form.Get("total_bytes") != "20" || form.Get("media_category") != "tweet_image" {
			t.Errorf("unexpected INIT form %v", form)
		}
	})
}

func TestPreparer(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n-image-bytes")

	t.Run("passthrough", func(t *testing.T) {
		full, thumb, err := PassthroughPreparer{}.Prepare(png)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(full, png) || !bytes.Equal(thumb, png) {
			t.Error("expected unchanged buffers")
		}
		if _, _, err := (PassthroughPreparer{}).Prepare(nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DetectContentType", func(t *testing.T) {
		tc := map[string]string{
			string(png):        "image/png",
			"GIF89a-animated":  "image/gif",
			"\xff\xd8\xff\xe0": "image/jpeg",
			"plain words":      "text/plain",
		}
		for in, want := range tc {
			if got := DetectContentType([]byte(in)); got != want {
				t.Errorf("DetectContentType(%q) = %s, want %s", in, got, want)
			}
		}
	})

	t.Run("NewAttachment", func(t *testing.T) {
		a, err := NewAttachment(PassthroughPreparer{}, png, "a diagram")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if a.MediaType() != "image/png" || a.AltText() != "a diagram" || a.Size() != len(png) {
			t.Errorf("unexpected attachment %+v", a)
		}

		if _, err := NewAttachment(PassthroughPreparer{}, []byte("plain words"), ""); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("LoadAttachment", func(t *testing.T) {
		path := t.TempDir() + "/pic.png"
		tu.MustWriteFile(t, path, png)

		a, err := LoadAttachment(PassthroughPreparer{}, path, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !bytes.Equal(a.Data(), png) {
			t.Error("expected file contents")
		}
		if _, err := LoadAttachment(PassthroughPreparer{}, path+".missing", ""); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Category", func(t *testing.T) {
		if Category("image/gif") != "tweet_gif" || Category("image/jpeg") != "tweet_image" {
			t.Error("unexpected categories")
		}
	})
}
