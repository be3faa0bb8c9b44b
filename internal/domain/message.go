package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	apperrors "creator_collab/pkg/errors"
)

type Message struct {
	ID        uuid.UUID     `json:"id"`
	RoomKey   uuid.UUID     `json:"room_key"`
	RoomID    string        `json:"room_id"`
	Seq       int64         `json:"seq"`
	SenderID  string        `json:"sender_id"`
	Content   Content       `json:"content"`
	Type      string        `json:"message_type"`
	Mentions  []Mention     `json:"mentions"`
	Reactions []Reaction    `json:"reactions"`
	ReplyTo   *uuid.UUID    `json:"reply_to,omitempty"`
	Edited    Edited        `json:"edited"`
	Status    string        `json:"status"`
	ReadBy    []ReadReceipt `json:"read_by"`
	IsDeleted bool          `json:"is_deleted"`
	DeletedAt *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Content struct {
	Text string          `json:"text,omitempty"`
	File *FileAttachment `json:"file,omitempty"`
}

type FileAttachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name"`
	FileURL      string `json:"file_url"`
	FileType     string `json:"file_type"`
	MIMEType     string `json:"mime_type"`
	FileSize     int64  `json:"file_size"`
	Thumbnail    string `json:"thumbnail,omitempty"`
}

type Mention struct {
	UserID   string `json:"user_id" validate:"required"`
	Username string `json:"username,omitempty"`
}

type Reaction struct {
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type Edited struct {
	IsEdited        bool       `json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
	OriginalContent string     `json:"original_content,omitempty"`
}

const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeImage  = "image"
	MessageTypeVideo  = "video"
	MessageTypeAudio  = "audio"
	MessageTypeSystem = "system"
)

// Status is a coarse room-wide marker. ReadBy is what unread counts use.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

const (
	DeletedMessageText   = "[Message deleted]"
	MaxMessageTextLength = 5000
)

// MessageDraft is the caller-supplied part of a new message.
type MessageDraft struct {
	Text     string          `json:"text" validate:"max=5000"`
	File     *FileAttachment `json:"file"`
	Type     string          `json:"message_type" validate:"omitempty,oneof=text file image video audio system"`
	ReplyTo  *uuid.UUID      `json:"reply_to"`
	Mentions []Mention       `json:"mentions" validate:"max=50,dive"`
}

type MessageQuery struct {
	Text     string
	Type     string
	SenderID string
	From     *time.Time
	To       *time.Time
}

// ReplyPreview is the resolved target of a reply, tombstones included.
type ReplyPreview struct {
	ID          uuid.UUID `json:"id"`
	SenderID    string    `json:"sender_id"`
	Text        string    `json:"text"`
	MessageType string    `json:"message_type"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
}

type MessageView struct {
	Message
	ReplyPreview *ReplyPreview `json:"reply_preview,omitempty"`
}

type MessagePage struct {
	Messages   []MessageView `json:"messages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int           `json:"total_count"`
	TotalPages int           `json:"total_pages"`
	HasMore    bool          `json:"has_more"`
}

type SearchResult struct {
	Messages   []MessageView `json:"messages"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int           `json:"total_count"`
	TotalPages int           `json:"total_pages"`
}

func NewMessage(id uuid.UUID, room Room, senderID string, draft MessageDraft, now time.Time) Message {
	mentions := lo.UniqBy(draft.Mentions, func(m Mention) string { return m.UserID })
	if mentions == nil {
		mentions = []Mention{}
	}

	return Message{
		ID:       id,
		RoomKey:  room.ID,
		RoomID:   room.RoomID,
		SenderID: senderID,
		Content: Content{
			Text: strings.TrimSpace(draft.Text),
			File: draft.File,
		},
		Type:      lo.CoalesceOrEmpty(draft.Type, MessageTypeText),
		Mentions:  mentions,
		Reactions: []Reaction{},
		ReplyTo:   draft.ReplyTo,
		Status:    MessageStatusSent,
		ReadBy:    []ReadReceipt{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (m Message) clone() Message {
	m.Mentions = append([]Mention(nil), m.Mentions...)
	m.Reactions = append([]Reaction(nil), m.Reactions...)
	m.ReadBy = append([]ReadReceipt(nil), m.ReadBy...)
	if m.Content.File != nil {
		f := *m.Content.File
		m.Content.File = &f
	}
	return m
}

func (m Message) ReadByUser(userID string) bool {
	return lo.ContainsBy(m.ReadBy, func(r ReadReceipt) bool { return r.UserID == userID })
}

func (m Message) HasReaction(userID, emoji string) bool {
	return lo.ContainsBy(m.Reactions, func(r Reaction) bool { return r.UserID == userID && r.Emoji == emoji })
}

// IsUnreadFor reports whether the message counts toward userID's unread total.
func (m Message) IsUnreadFor(userID string) bool {
	return !m.IsDeleted && m.SenderID != userID && !m.ReadByUser(userID)
}

func (m Message) Preview() *ReplyPreview {
	return &ReplyPreview{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Text:        m.Content.Text,
		MessageType: m.Type,
		IsDeleted:   m.IsDeleted,
		CreatedAt:   m.CreatedAt,
	}
}

// EditMessage replaces the text. The first edit keeps the original text.
func EditMessage(m Message, byUserID, text string, now time.Time) (Message, Effects, error) {
	if m.IsDeleted {
		return m, nil, apperrors.ErrAlreadyDeleted
	}
	if m.SenderID != byUserID {
		return m, nil, apperrors.ErrNotSender
	}

	next := m.clone()
	if !next.Edited.IsEdited {
		next.Edited.OriginalContent = m.Content.Text
	}
	next.Content.Text = strings.TrimSpace(text)
	next.Edited.IsEdited = true
	next.Edited.EditedAt = &now
	next.UpdatedAt = now

	return next, persistAndBroadcast(), nil
}

// DeleteMessage soft-deletes. Senders may delete their own messages, room
// admins and moderators may delete any.
func DeleteMessage(m Message, byUserID, requesterRoomRole string, now time.Time) (Message, Effects, error) {
	if m.SenderID != byUserID && !IsModeratorRole(requesterRoomRole) {
		return m, nil, apperrors.WithDetail(apperrors.ErrForbidden, "only the sender or a room moderator can delete this message")
	}
	if m.IsDeleted {
		return m, nil, nil
	}

	next := m.clone()
	next.IsDeleted = true
	next.DeletedAt = &now
	next.Content = Content{Text: DeletedMessageText}
	next.UpdatedAt = now

	return next, persistAndBroadcast(), nil
}

func AddReaction(m Message, userID, emoji string, now time.Time) (Message, Effects) {
	if m.HasReaction(userID, emoji) {
		return m, nil
	}

	next := m.clone()
	next.Reactions = append(next.Reactions, Reaction{UserID: userID, Emoji: emoji, CreatedAt: now})
	next.UpdatedAt = now

	return next, persistAndBroadcast()
}

func RemoveReaction(m Message, userID, emoji string, now time.Time) (Message, Effects) {
	if !m.HasReaction(userID, emoji) {
		return m, nil
	}

	next := m.clone()
	next.Reactions = lo.Reject(next.Reactions, func(r Reaction, _ int) bool {
		return r.UserID == userID && r.Emoji == emoji
	})
	next.UpdatedAt = now

	return next, persistAndBroadcast()
}

// MarkRead records a receipt once per user. Receipts are persisted but not
// pushed to watchers.
func MarkRead(m Message, userID string, now time.Time) (Message, Effects) {
	if m.ReadByUser(userID) {
		return m, nil
	}

	next := m.clone()
	next.ReadBy = append(next.ReadBy, ReadReceipt{UserID: userID, ReadAt: now})
	next.Status = MessageStatusRead
	next.UpdatedAt = now

	return next, persist()
}

// Matches applies search filters conjunctively. Deleted messages never match.
func (q MessageQuery) Matches(m Message) bool {
	if m.IsDeleted {
		return false
	}
	if q.Text != "" && !strings.Contains(strings.ToLower(m.Content.Text), strings.ToLower(q.Text)) {
		return false
	}
	if q.Type != "" && m.Type != q.Type {
		return false
	}
	if q.SenderID != "" && m.SenderID != q.SenderID {
		return false
	}
	if q.From != nil && m.CreatedAt.Before(*q.From) {
		return false
	}
	if q.To != nil && m.CreatedAt.After(*q.To) {
		return false
	}
	return true
}

func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}
