package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"creator_collab/internal/config"
	"creator_collab/internal/domain"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

const sniffBytes = 3072

// AllowedMIMETypes is the upload allowlist.
var AllowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,

	"video/mp4":        true,
	"video/avi":        true,
	"video/x-msvideo":  true,
	"video/mov":        true,
	"video/quicktime":  true,
	"video/wmv":        true,
	"video/x-ms-wmv":   true,
	"video/flv":        true,
	"video/x-flv":      true,
	"video/webm":       true,
	"video/mkv":        true,
	"video/x-matroska": true,

	"audio/mp3":    true,
	"audio/mpeg":   true,
	"audio/wav":    true,
	"audio/x-wav":  true,
	"audio/aac":    true,
	"audio/ogg":    true,
	"audio/flac":   true,
	"audio/x-flac": true,

	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   true,
	"application/vnd.ms-powerpoint":                                             true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,

	"text/plain":      true,
	"application/zip": true,
}

var categoryDirs = map[string]string{
	domain.FileCategoryImage:    "images",
	domain.FileCategoryVideo:    "videos",
	domain.FileCategoryAudio:    "audio",
	domain.FileCategoryDocument: "documents",
}

// LocalStore keeps uploads on the local filesystem, one directory per file
// category.
type LocalStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	log      logger.Logger
}

func NewLocalStore(cfg config.UploadConfig, log logger.Logger) (*LocalStore, error) {
	for _, sub := range categoryDirs {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create upload dir: %w", err)
		}
	}
	return &LocalStore{
		dir:      cfg.Dir,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		maxBytes: cfg.MaxBytes,
		log:      log,
	}, nil
}

func (s *LocalStore) Store(ctx context.Context, upload service.FileUpload) (*domain.StoredFile, error) {
	if upload.Size > s.maxBytes {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "file too large (max %d bytes)", s.maxBytes)
	}

	head := make([]byte, sniffBytes)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	mimeType := resolveMIME(upload.DeclaredMIME, head)
	if !AllowedMIMETypes[mimeType] {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "file type %s not allowed", mimeType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	category := domain.FileCategoryOf(mimeType)
	filename := uuid.NewString() + strings.ToLower(filepath.Ext(upload.OriginalName))
	target := filepath.Join(s.dir, categoryDirs[category], filename)

	size, err := s.write(target, io.MultiReader(bytes.NewReader(head), upload.Body))
	if err != nil {
		return nil, err
	}

	s.log.Info("File stored", "filename", filename, "mime_type", mimeType, "size", size)
	return &domain.StoredFile{
		Filename:  filename,
		URL:       path.Join(s.baseURL, categoryDirs[category], filename),
		MIMEType:  mimeType,
		Category:  category,
		SizeBytes: size,
	}, nil
}

// write copies into a temp file and renames it into place, so a partial
// upload never becomes visible.
func (s *LocalStore) write(target string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, io.LimitReader(body, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if size > s.maxBytes {
		return 0, apperrors.WithDetail(apperrors.ErrValidation, "file too large (max %d bytes)", s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, fmt.Errorf("failed to move upload into place: %w", err)
	}
	return size, nil
}

func (s *LocalStore) Remove(_ context.Context, filename, category string) error {
	sub, ok := categoryDirs[category]
	if !ok || filename == "" || filepath.Base(filename) != filename {
		return apperrors.WithDetail(apperrors.ErrValidation, "invalid file reference")
	}

	err := os.Remove(filepath.Join(s.dir, sub, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error("Failed to remove file", "filename", filename, "error", err)
		return err
	}
	return nil
}

// resolveMIME trusts a specific declared type and sniffs otherwise.
func resolveMIME(declared string, head []byte) string {
	declared = baseMIME(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return baseMIME(mimetype.Detect(head).String())
}

func baseMIME(v string) string {
	base, _, _ := strings.Cut(v, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
