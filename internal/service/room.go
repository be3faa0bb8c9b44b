package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"creator_collab/internal/domain"
	"creator_collab/internal/repository"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

const (
	roomIDAttempts     = 5
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// RoomService is the room directory. Mutations return the effects the
// caller still has to carry out (system messages).
type RoomService interface {
	Create(ctx context.Context, creator domain.Identity, spec domain.CreateRoomSpec) (*domain.Room, domain.Effects, error)
	// Get enforces read access: private rooms are hidden from non-members.
	Get(ctx context.Context, viewer domain.Identity, roomID string) (*domain.Room, error)
	Lookup(ctx context.Context, roomID string) (*domain.Room, error)
	ListMine(ctx context.Context, userID string) ([]*domain.Room, error)
	SearchPublic(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error)
	Join(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, domain.Effects, error)
	Leave(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, domain.Effects, error)
	UpdateSettings(ctx context.Context, by domain.Identity, roomID string, patch domain.SettingsPatch) (*domain.Room, error)
	SetMemberRole(ctx context.Context, by domain.Identity, roomID, targetUserID, role string) (*domain.Room, error)
	AttachFile(ctx context.Context, roomID string, file domain.RoomFile) (*domain.Room, error)
	DetachFile(ctx context.Context, by domain.Identity, roomID, filename string) (*domain.Room, *domain.RoomFile, error)
	Deactivate(ctx context.Context, roomID string) (*domain.Room, error)
}

type roomService struct {
	roomRepo  repository.RoomRepository
	opTimeout time.Duration
	log       logger.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, opTimeout time.Duration, log logger.Logger) RoomService {
	return &roomService{
		roomRepo:  roomRepo,
		opTimeout: opTimeout,
		log:       log,
	}
}

func (s *roomService) Create(ctx context.Context, creator domain.Identity, spec domain.CreateRoomSpec) (*domain.Room, domain.Effects, error) {
	if err := validateInput(spec); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(spec.Name) == "" {
		return nil, nil, apperrors.WithDetail(apperrors.ErrValidation, "name must not be blank")
	}

	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	for attempt := 1; attempt <= roomIDAttempts; attempt++ {
		room, effects := domain.NewRoom(uuid.New(), domain.NewRoomID(), creator, spec, now())

		err := s.roomRepo.Create(ctx, &room)
		if err == nil {
			s.log.Info("Room created", "room_id", room.RoomID, "creator_id", creator.UserID)
			return &room, effects, nil
		}
		if apperrors.KindOf(err) != apperrors.KindAlreadyExists {
			return nil, nil, storageFailure("room.create", err)
		}
		s.log.Warn("Room id collision, retrying", "room_id", room.RoomID, "attempt", attempt)
	}

	return nil, nil, apperrors.WithDetail(apperrors.ErrAlreadyExists, "could not allocate a unique room id")
}

func (s *roomService) Lookup(ctx context.Context, roomID string) (*domain.Room, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	room, err := s.roomRepo.GetByRoomID(ctx, roomID)
	if err != nil {
		return nil, storageFailure("room.get", err)
	}
	return room, nil
}

func (s *roomService) Get(ctx context.Context, viewer domain.Identity, roomID string) (*domain.Room, error) {
	room, err := s.Lookup(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.VisibleTo(viewer.UserID) {
		return nil, apperrors.WithDetail(apperrors.ErrForbidden, "room %s is private", roomID)
	}
	return room, nil
}

func (s *roomService) ListMine(ctx context.Context, userID string) ([]*domain.Room, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	rooms, err := s.roomRepo.ListByMember(ctx, userID, false)
	if err != nil {
		return nil, storageFailure("room.list", err)
	}
	return rooms, nil
}

func (s *roomService) SearchPublic(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	if filter.Role != "" && !domain.IsValidUserRole(filter.Role) {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "role must be one of %v", domain.UserRoles)
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultSearchLimit
	}
	if filter.Limit > MaxSearchLimit {
		filter.Limit = MaxSearchLimit
	}
	filter.Tag = strings.ToLower(strings.TrimSpace(filter.Tag))

	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	rooms, err := s.roomRepo.SearchPublic(ctx, filter)
	if err != nil {
		return nil, storageFailure("room.search", err)
	}
	return rooms, nil
}

func (s *roomService) mutate(ctx context.Context, op, roomID string, fn repository.RoomMutation) (*domain.Room, domain.Effects, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	room, effects, err := s.roomRepo.Mutate(ctx, roomID, fn)
	if err != nil {
		return nil, nil, storageFailure(op, err)
	}
	return room, effects, nil
}

func (s *roomService) Join(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, domain.Effects, error) {
	room, effects, err := s.mutate(ctx, "room.join", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.AddMember(r, who, now())
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("Member joined room", "room_id", roomID, "user_id", who.UserID)
	return room, effects, nil
}

func (s *roomService) Leave(ctx context.Context, who domain.Identity, roomID string) (*domain.Room, domain.Effects, error) {
	room, effects, err := s.mutate(ctx, "room.leave", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.RemoveMember(r, who, now())
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("Member left room", "room_id", roomID, "user_id", who.UserID)
	return room, effects, nil
}

func (s *roomService) UpdateSettings(ctx context.Context, by domain.Identity, roomID string, patch domain.SettingsPatch) (*domain.Room, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}

	room, _, err := s.mutate(ctx, "room.settings", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.ApplySettings(r, by.UserID, patch, now())
	})
	return room, err
}

func (s *roomService) SetMemberRole(ctx context.Context, by domain.Identity, roomID, targetUserID, role string) (*domain.Room, error) {
	room, _, err := s.mutate(ctx, "room.member_role", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.SetMemberRole(r, by.UserID, targetUserID, role, now())
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Member role changed", "room_id", roomID, "target_user_id", targetUserID, "role", role, "by", by.UserID)
	return room, nil
}

func (s *roomService) AttachFile(ctx context.Context, roomID string, file domain.RoomFile) (*domain.Room, error) {
	room, _, err := s.mutate(ctx, "room.attach_file", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.AttachFile(r, file, now())
	})
	return room, err
}

func (s *roomService) DetachFile(ctx context.Context, by domain.Identity, roomID, filename string) (*domain.Room, *domain.RoomFile, error) {
	var removed domain.RoomFile
	room, _, err := s.mutate(ctx, "room.detach_file", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		next, file, effects, err := domain.DetachFile(r, by.UserID, filename, now())
		removed = file
		return next, effects, err
	})
	if err != nil {
		return nil, nil, err
	}
	return room, &removed, nil
}

func (s *roomService) Deactivate(ctx context.Context, roomID string) (*domain.Room, error) {
	room, _, err := s.mutate(ctx, "room.deactivate", roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
		next, effects := domain.Deactivate(r, now())
		return next, effects, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Room deactivated", "room_id", roomID)
	return room, nil
}
