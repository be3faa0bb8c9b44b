package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"creator_collab/internal/domain"
	"creator_collab/internal/repository"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

// UnreadService derives unread state from per-message read receipts.
type UnreadService interface {
	// UnreadCount totals messages across every room the user belongs to,
	// inactive rooms included.
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, who domain.Identity, roomID string) (int, error)
}

type unreadService struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	opTimeout   time.Duration
	log         logger.Logger
}

func NewUnreadService(roomRepo repository.RoomRepository, messageRepo repository.MessageRepository, opTimeout time.Duration, log logger.Logger) UnreadService {
	return &unreadService{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		opTimeout:   opTimeout,
		log:         log,
	}
}

func (s *unreadService) UnreadCount(ctx context.Context, userID string) (int, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	rooms, err := s.roomRepo.ListByMember(ctx, userID, true)
	if err != nil {
		return 0, storageFailure("unread.rooms", err)
	}
	if len(rooms) == 0 {
		return 0, nil
	}

	keys := lo.Map(rooms, func(r *domain.Room, _ int) uuid.UUID { return r.ID })
	count, err := s.messageRepo.CountUnread(ctx, keys, userID)
	if err != nil {
		return 0, storageFailure("unread.count", err)
	}
	return count, nil
}

func (s *unreadService) MarkAllRead(ctx context.Context, who domain.Identity, roomID string) (int, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	room, err := s.roomRepo.GetByRoomID(ctx, roomID)
	if err != nil {
		return 0, storageFailure("unread.room", err)
	}
	if !room.IsMember(who.UserID) {
		return 0, apperrors.ErrNotMember
	}

	marked, err := s.messageRepo.MarkAllRead(ctx, room.ID, who.UserID, now())
	if err != nil {
		return 0, storageFailure("unread.mark_all", err)
	}

	s.log.Debug("Marked room read", "room_id", roomID, "user_id", who.UserID, "marked", marked)
	return marked, nil
}
