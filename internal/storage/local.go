package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxCreateAttempts = 3

// StoredFile describes a document written to the upload directory.
type StoredFile struct {
	Name string
	Path string
	Size int64
}

// Local writes uploads below a single directory using timestamp-prefixed names.
type Local struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewLocal prepares the upload directory and returns a storage rooted at it.
func NewLocal(dir string, logger zerolog.Logger) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("upload directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	return &Local{
		dir:    dir,
		now:    time.Now,
		logger: logger.With().Str("component", "local_storage").Logger(),
	}, nil
}

// Dir returns the upload directory.
func (l *Local) Dir() string {
	return l.dir
}

// Save writes payload under a new name derived from originalName. Existing files are
// never overwritten.
func (l *Local) Save(ctx context.Context, originalName string, payload []byte) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}

	name := StoredName(l.now(), originalName)
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		path := filepath.Join(l.dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = withSuffix(name, uuid.NewString()[:8])
			continue
		}
		if err != nil {
			return StoredFile{}, fmt.Errorf("create upload file: %w", err)
		}

		written, writeErr := file.Write(payload)
		closeErr := file.Close()
		if writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			_ = os.Remove(path)
			return StoredFile{}, fmt.Errorf("write upload file: %w", writeErr)
		}

		l.logger.Debug().Str("file_name", name).Int("size", written).Msg("upload stored")
		return StoredFile{Name: name, Path: path, Size: int64(written)}, nil
	}

	return StoredFile{}, fmt.Errorf("create upload file: name collision for %s", originalName)
}

// Remove deletes a stored file by name. Missing files are ignored.
func (l *Local) Remove(name string) error {
	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid stored file name %q", name)
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveOlderThan deletes regular files whose modification time is older than age.
func (l *Local) RemoveOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload directory: %w", err)
	}

	cutoff := l.now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn().Err(err).Str("file_name", entry.Name()).Msg("failed to remove expired upload")
			continue
		}
		removed++
	}

	return removed, nil
}

// StoredName builds the on-disk name: YYYYMMDD_HHMMSS_ffffff_<sanitized original>.
func StoredName(at time.Time, originalName string) string {
	return fmt.Sprintf("%s_%06d_%s", at.Format("20060102_150405"), at.Nanosecond()/1000, SanitizeFileName(originalName))
}

// SanitizeFileName keeps ASCII letters, digits, dash, underscore and dot, and strips any
// directory component.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))

	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		default:
			return -1
		}
	}, base)
	base = strings.Trim(base, "_-")
	if base == "" {
		base = "document"
	}

	ext = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, ext)

	return base + ext
}

func withSuffix(name, suffix string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + suffix + ext
}
