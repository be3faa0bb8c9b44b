package domain

import (
	"strings"
	"time"
)

// RoomFile is the metadata kept on a room for every uploaded file.
type RoomFile struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	FileURL      string    `json:"file_url"`
	FileType     string    `json:"file_type"`
	MIMEType     string    `json:"mime_type"`
	FileSize     int64     `json:"file_size"`
	UploadedBy   string    `json:"uploaded_by"`
	UploadedAt   time.Time `json:"uploaded_at"`
	IsPublic     bool      `json:"is_public"`
}

// StoredFile is what the file store returns after persisting bytes.
type StoredFile struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	MIMEType  string `json:"mime_type"`
	Category  string `json:"category"`
	SizeBytes int64  `json:"size_bytes"`
}

const (
	FileCategoryImage    = "image"
	FileCategoryVideo    = "video"
	FileCategoryAudio    = "audio"
	FileCategoryDocument = "document"
)

func FileCategoryOf(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileCategoryImage
	case strings.HasPrefix(mimeType, "video/"):
		return FileCategoryVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileCategoryAudio
	default:
		return FileCategoryDocument
	}
}

// MessageTypeForCategory maps a stored file category to the message type used
// to announce it.
func MessageTypeForCategory(category string) string {
	switch category {
	case FileCategoryImage:
		return MessageTypeImage
	case FileCategoryVideo:
		return MessageTypeVideo
	case FileCategoryAudio:
		return MessageTypeAudio
	default:
		return MessageTypeFile
	}
}

func (s StoredFile) Attachment(originalName string) *FileAttachment {
	return &FileAttachment{
		Filename:     s.Filename,
		OriginalName: originalName,
		FileURL:      s.URL,
		FileType:     s.Category,
		MIMEType:     s.MIMEType,
		FileSize:     s.SizeBytes,
	}
}

func (s StoredFile) RoomFile(originalName, uploadedBy string, isPublic bool, now time.Time) RoomFile {
	return RoomFile{
		Filename:     s.Filename,
		OriginalName: originalName,
		FileURL:      s.URL,
		FileType:     s.Category,
		MIMEType:     s.MIMEType,
		FileSize:     s.SizeBytes,
		UploadedBy:   uploadedBy,
		UploadedAt:   now,
		IsPublic:     isPublic,
	}
}
