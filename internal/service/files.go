package service

import (
	"context"
	"io"

	"creator_collab/internal/domain"
)

// FileUpload is one incoming file. DeclaredMIME may be empty; the store
// sniffs the content in that case.
type FileUpload struct {
	OriginalName string
	DeclaredMIME string
	Size         int64
	Body         io.Reader
}

//go:generate mockgen -source=files.go -destination=../mocks/mock_file_store.go -package=mocks

// FileStore persists uploaded bytes and hands back where they can be fetched.
type FileStore interface {
	Store(ctx context.Context, upload FileUpload) (*domain.StoredFile, error)
	Remove(ctx context.Context, filename, category string) error
}
