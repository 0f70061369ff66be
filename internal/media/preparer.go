package media

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
)

// Preparer turns raw image bytes into the full-size payload and a thumbnail.
type Preparer interface {
	Prepare(data []byte) (full, thumbnail []byte, err error)
}

// PassthroughPreparer uses the input unchanged for both buffers.
type PassthroughPreparer struct{}

func (PassthroughPreparer) Prepare(data []byte) ([]byte, []byte, error) {
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}
	return data, data, nil
}

// Category returns the upload media category for mediaType.
func Category(mediaType string) string {
	if mediaType == "image/gif" {
		return "tweet_gif"
	}
	return "tweet_image"
}

// DetectContentType sniffs the media type of data.
func DetectContentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

// NewAttachment prepares data into an [models.Attachment]. Only image payloads are accepted.
func NewAttachment(p Preparer, data []byte, altText string) (*models.Attachment, error) {
	mediaType := DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: unsupported media type %s", shared.ErrInvalidInput, mediaType)
	}

	full, thumb, err := p.Prepare(data)
	if err != nil {
		return nil, err
	}
	return models.NewAttachment(full, thumb, mediaType, altText), nil
}

// LoadAttachment reads an image from path and prepares it.
func LoadAttachment(p Preparer, path, altText string) (*models.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return NewAttachment(p, data, altText)
}
