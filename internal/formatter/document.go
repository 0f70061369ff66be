package formatter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/threadx/internal/media"
	"github.com/desertthunder/threadx/internal/models"
	"github.com/desertthunder/threadx/internal/shared"
	"gopkg.in/yaml.v3"
)

// Document is a thread written by hand in TOML or YAML.
//
//	[[items]]
//	text = "first post"
//
//	[[items.images]]
//	path = "chart.png"
//	alt = "weekly numbers"
type Document struct {
	Items []DocumentItem `toml:"items" yaml:"items"`
}

// DocumentItem is one post of a [Document].
type DocumentItem struct {
	Text   string          `toml:"text" yaml:"text"`
	Images []DocumentImage `toml:"images" yaml:"images"`
}

// DocumentImage points at an image file. Relative paths resolve against the document.
type DocumentImage struct {
	Path string `toml:"path" yaml:"path"`
	Alt  string `toml:"alt" yaml:"alt"`
}

// ParseDocument decodes data by file extension: .toml, .yaml or .yml.
func ParseDocument(data []byte, ext string) (*Document, error) {
	var doc Document
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported document type %q", shared.ErrInvalidArgument, ext)
	}

	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("%w: document has no items", shared.ErrInvalidInput)
	}
	return &doc, nil
}

// Thread builds a draft from the document, loading images relative to dir.
func (d *Document) Thread(dir string, p media.Preparer) (*models.Thread, error) {
	texts := make([]string, len(d.Items))
	for i, item := range d.Items {
		texts[i] = strings.TrimSpace(item.Text)
	}
	thread := models.NewThread(texts...)

	for i, item := range d.Items {
		target := thread.Items()[i]
		for _, img := range item.Images {
			path := img.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			a, err := media.LoadAttachment(p, path, img.Alt)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
			if err := target.AddAttachment(a); err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
		}
	}
	return thread, nil
}

// ImportThread reads a TOML or YAML document from path and builds a draft from it.
func ImportThread(path string, p media.Preparer) (*models.Thread, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thread document: %w", err)
	}

	doc, err := ParseDocument(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return doc.Thread(filepath.Dir(path), p)
}
