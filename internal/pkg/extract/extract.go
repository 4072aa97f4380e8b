// Package extract turns stored version files into plain text for the
// comparison prompt. Raw bytes come from a Storage backend; extraction
// strategies are selected by file type.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kart-io/revdiff/internal/model"
)

// Storage reads raw version bytes by storage path.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Extractor produces plain text from a stored document version.
type Extractor interface {
	ExtractFromVersion(ctx context.Context, version *model.DocumentVersion) (string, error)
}

// FileStorage reads version files from a local directory root.
type FileStorage struct {
	root string
}

// NewFileStorage creates a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{root: dir}
}

// Read implements Storage.
func (s *FileStorage) Read(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// TextExtractor handles plain-text and markdown version files.
type TextExtractor struct {
	storage Storage
}

// NewTextExtractor creates a TextExtractor over the given storage.
func NewTextExtractor(storage Storage) *TextExtractor {
	return &TextExtractor{storage: storage}
}

var (
	mdHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasis  = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdLink      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdCodeFence = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?")
)

// ExtractFromVersion implements Extractor.
func (e *TextExtractor) ExtractFromVersion(ctx context.Context, version *model.DocumentVersion) (string, error) {
	data, err := e.storage.Read(ctx, version.StoragePath)
	if err != nil {
		return "", err
	}

	text := string(data)
	switch strings.ToLower(version.FileType) {
	case "md", "markdown":
		text = stripMarkdown(text)
	case "", "txt", "text":
		// already plain
	default:
		return "", fmt.Errorf("unsupported file type %q", version.FileType)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("version %s extracted to empty text", version.ID)
	}
	return text, nil
}

// stripMarkdown removes common markdown syntax, keeping the prose.
func stripMarkdown(text string) string {
	text = mdCodeFence.ReplaceAllString(text, "")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdEmphasis.ReplaceAllString(text, "$2")
	return text
}

var _ Extractor = (*TextExtractor)(nil)
var _ Storage = (*FileStorage)(nil)
