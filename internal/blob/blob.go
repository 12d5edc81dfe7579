// Package blob stores uploaded invoice files and hands out their public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buyerportal/internal/logger"
)

var ErrInvalidName = errors.New("invalid object name")

// FileStore is the storage port for original invoice files.
type FileStore interface {
	// Put writes data under name, replacing any existing object, and returns its public URL.
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

var whitespace = regexp.MustCompile(`\s`)

// ObjectName builds the stored name of an upload: the invoice number, or the
// upload time in unix milliseconds when the number is unknown, then the original
// file name with whitespace replaced by underscores.
func ObjectName(invoiceNumber string, filename string, now time.Time) string {
	prefix := invoiceNumber
	if prefix == "" {
		prefix = strconv.FormatInt(now.UnixMilli(), 10)
	}
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	return prefix + "-" + whitespace.ReplaceAllString(base, "_")
}

// DiskStore keeps files in a local directory served under BaseURL.
type DiskStore struct {
	dir     string
	baseURL string
	logger  zerolog.Logger
}

// NewDiskStore creates dir when missing.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create file store directory: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.WithComponent("file-store"),
	}, nil
}

// Dir returns the directory the files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}

	publicURL := s.URL(name)
	s.logger.Debug().
		Str("name", name).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("File stored")

	return publicURL, nil
}

// URL returns the public URL of name.
func (s *DiskStore) URL(name string) string {
	return s.baseURL + "/" + url.PathEscape(path.Base(name))
}
