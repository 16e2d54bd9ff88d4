// Package staging holds submitted photos on local disk until they are attached or discarded.
package staging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "github.com/Proton-105/homebox-bot/internal/errors"
)

const (
	// MaxDimension bounds width and height of JPEG and PNG photos.
	MaxDimension = 4096

	filePrefix = "photo_"
)

var allowed = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Photo is a staged file.
type Photo struct {
	Path string
	MIME string
	Size int64
}

// Name is the file name used for the attachment upload.
func (p Photo) Name() string {
	return filepath.Base(p.Path)
}

// Stager writes photos under dir.
type Stager struct {
	dir      string
	maxBytes int64
	log      *slog.Logger
	now      func() time.Time
}

// New creates dir if needed.
func New(dir string, maxBytes int64, log *slog.Logger) (*Stager, error) {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Stager{dir: dir, maxBytes: maxBytes, log: log, now: time.Now}, nil
}

// Validate checks format, size and dimensions and returns the detected MIME type.
func (s *Stager) Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.NewValidationError("empty image")
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperrors.NewValidationError(fmt.Sprintf("image is %d bytes, limit is %d", len(data), s.maxBytes))
	}

	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if _, ok := allowed[mime]; !ok {
		return "", apperrors.NewValidationError("unsupported image format " + mime)
	}

	if mime != "image/webp" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return "", apperrors.NewValidationError("unreadable image: " + err.Error())
		}
		if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
			return "", apperrors.NewValidationError(fmt.Sprintf("image is %dx%d, limit is %d px", cfg.Width, cfg.Height, MaxDimension))
		}
	}

	return mime, nil
}

// Stage validates data and writes it to a new file owned by userID.
func (s *Stager) Stage(userID int64, data []byte) (Photo, error) {
	mime, err := s.Validate(data)
	if err != nil {
		return Photo{}, err
	}

	name := fmt.Sprintf("%s%d_%s%s", filePrefix, userID, uuid.NewString(), allowed[mime])
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Photo{}, fmt.Errorf("stage photo: %w", err)
	}

	s.log.Debug("photo staged", slog.Int64("user_id", userID), slog.String("path", path), slog.Int("bytes", len(data)))

	return Photo{Path: path, MIME: mime, Size: int64(len(data))}, nil
}

// Read returns the staged bytes.
func (s *Stager) Read(p Photo) ([]byte, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("read staged photo: %w", err)
	}
	return data, nil
}

// Remove deletes the staged file. Removing a missing file is not an error.
func (s *Stager) Remove(p Photo) error {
	if p.Path == "" {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("staged photo not removed", slog.String("path", p.Path), slog.Any("error", err))
		return fmt.Errorf("remove staged photo: %w", err)
	}
	return nil
}

// List returns the paths of all staged files.
func (s *Stager) List() ([]string, error) {
	return filepath.Glob(filepath.Join(s.dir, filePrefix+"*"))
}

// SweepOlderThan removes staged files whose modification time is older than age.
func (s *Stager) SweepOlderThan(age time.Duration) (int, error) {
	paths, err := s.List()
	if err != nil {
		return 0, fmt.Errorf("list staged photos: %w", err)
	}

	cutoff := s.now().Add(-age)
	removed := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}

	if removed > 0 {
		s.log.Info("orphaned staged photos removed", slog.Int("count", removed), slog.Duration("older_than", age))
	}

	return removed, nil
}
