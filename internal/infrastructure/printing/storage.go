package printing

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FileSystemStorageConfig contains configuration for the artifact directory
type FileSystemStorageConfig struct {
	// BasePath is the root directory for invoice documents
	// Default: invoices
	BasePath string
	// Extension replaces the extension of every file name handed to PathFor.
	// Default: .pdf
	Extension string
	// Logger for storage operations
	Logger *zap.Logger
}

// FileSystemStorage keeps rendered invoices in a local directory
type FileSystemStorage struct {
	basePath  string
	extension string
	logger    *zap.Logger
}

// NewFileSystemStorage creates the directory if needed and resolves it to an
// absolute path
func NewFileSystemStorage(config *FileSystemStorageConfig) (*FileSystemStorage, error) {
	if config == nil {
		config = &FileSystemStorageConfig{}
	}
	base := config.BasePath
	if base == "" {
		base = "invoices"
	}
	ext := config.Extension
	if ext == "" {
		ext = ".pdf"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	absBase, err := filepath.Abs(base)
	if err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to resolve artifact directory", err)
	}
	if err := os.MkdirAll(absBase, 0o755); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to create artifact directory", err)
	}

	return &FileSystemStorage{
		basePath:  absBase,
		extension: ext,
		logger:    logger,
	}, nil
}

// BasePath returns the absolute artifact directory
func (s *FileSystemStorage) BasePath() string {
	return s.basePath
}

// PathFor returns the full path for a document file name. Directory parts of
// name are dropped.
func (s *FileSystemStorage) PathFor(name string) string {
	base := filepath.Base(filepath.Clean("/" + filepath.ToSlash(name)))
	if base == "/" || base == "." {
		base = "unnamed"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base)) + s.extension
	return filepath.Join(s.basePath, base)
}

// Exists reports whether a non-empty regular file is at path. Paths recorded
// by older installs may live outside the artifact directory and are checked
// as they are.
func (s *FileSystemStorage) Exists(ctx context.Context, path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Open returns a reader for the document at path
func (s *FileSystemStorage) Open(ctx context.Context, path string) (io.ReadSeekCloser, error) {
	select {
	case <-ctx.Done():
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", ctx.Err())
	default:
	}

	if containsDotDot(path) {
		return nil, NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewRenderError(ErrCodeStorageFailed, "document not found", err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open document", err)
	}
	return f, nil
}

// Remove deletes a document inside the artifact directory. A missing file
// is not an error.
func (s *FileSystemStorage) Remove(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return NewRenderError(ErrCodeStorageFailed, "operation cancelled", ctx.Err())
	default:
	}

	if !s.within(path) {
		s.logger.Warn("refusing to remove file outside the artifact directory",
			zap.String("path", path),
			zap.String("base", s.basePath))
		return NewRenderError(ErrCodeStorageFailed, "invalid path", nil)
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete document", err)
	}

	s.logger.Debug("document deleted", zap.String("path", path))
	return nil
}

// within reports whether path resolves to a file under the artifact directory
func (s *FileSystemStorage) within(path string) bool {
	if containsDotDot(path) {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return strings.HasPrefix(absPath, s.basePath+string(filepath.Separator))
}

// CleanupOlderThan removes documents whose modification time is older than age
func (s *FileSystemStorage) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	deletedCount := 0

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() || filepath.Ext(path) != s.extension {
			return nil
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deletedCount++
				s.logger.Debug("deleted old document", zap.String("path", path))
			}
		}

		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return deletedCount, NewRenderError(ErrCodeStorageFailed, "cleanup walk failed", err)
	}

	s.logger.Info("artifact cleanup completed",
		zap.Int("deleted", deletedCount),
		zap.Duration("age", age))

	return deletedCount, nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(path string) bool {
	// Split by both forward and backward slashes before any normalization
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	return slices.Contains(parts, "..")
}
