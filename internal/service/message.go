package service

import (
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"creator_collab/internal/domain"
	"creator_collab/internal/metrics"
	"creator_collab/internal/repository"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

const (
	DefaultPageSize       = 50
	DefaultSearchPageSize = 20
	MaxPageSize           = 100
	maxEmojiLength        = 32
)

// MessageService is the message store. Callers are responsible for room
// access checks; only sender and moderator rules live here.
type MessageService interface {
	Append(ctx context.Context, room *domain.Room, senderID string, draft domain.MessageDraft) (*domain.Message, error)
	AppendSystem(ctx context.Context, room *domain.Room, actorID, text string) (*domain.Message, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	Edit(ctx context.Context, id uuid.UUID, byUserID, text string) (*domain.Message, domain.Effects, error)
	Delete(ctx context.Context, id uuid.UUID, byUserID, requesterRoomRole string) (*domain.Message, domain.Effects, error)
	AddReaction(ctx context.Context, id uuid.UUID, userID, emoji string) (*domain.Message, domain.Effects, error)
	RemoveReaction(ctx context.Context, id uuid.UUID, userID, emoji string) (*domain.Message, domain.Effects, error)
	MarkRead(ctx context.Context, id uuid.UUID, userID string) (*domain.Message, domain.Effects, error)
	List(ctx context.Context, room *domain.Room, page, pageSize int) (*domain.MessagePage, error)
	Search(ctx context.Context, room *domain.Room, q domain.MessageQuery, page, pageSize int) (*domain.SearchResult, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	opTimeout   time.Duration
	log         logger.Logger
}

func NewMessageService(messageRepo repository.MessageRepository, opTimeout time.Duration, log logger.Logger) MessageService {
	return &messageService{
		messageRepo: messageRepo,
		opTimeout:   opTimeout,
		log:         log,
	}
}

func (s *messageService) Append(ctx context.Context, room *domain.Room, senderID string, draft domain.MessageDraft) (*domain.Message, error) {
	if draft.Type == domain.MessageTypeSystem {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "system messages cannot be sent by clients")
	}
	if err := validateInput(draft); err != nil {
		return nil, err
	}
	if strings.TrimSpace(draft.Text) == "" && draft.File == nil {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "message needs text or a file")
	}
	if draft.File != nil && (draft.Type == "" || draft.Type == domain.MessageTypeText) {
		draft.Type = domain.MessageTypeForCategory(draft.File.FileType)
	}

	if draft.ReplyTo != nil {
		if err := s.checkReplyTarget(ctx, room, *draft.ReplyTo); err != nil {
			return nil, err
		}
	}

	return s.append(ctx, domain.NewMessage(uuid.New(), *room, senderID, draft, now()))
}

func (s *messageService) AppendSystem(ctx context.Context, room *domain.Room, actorID, text string) (*domain.Message, error) {
	draft := domain.MessageDraft{Text: text, Type: domain.MessageTypeSystem}
	return s.append(ctx, domain.NewMessage(uuid.New(), *room, actorID, draft, now()))
}

func (s *messageService) append(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	if err := s.messageRepo.Append(ctx, &msg); err != nil {
		return nil, storageFailure("message.append", err)
	}

	metrics.MessagesAppended.WithLabelValues(msg.Type).Inc()
	return &msg, nil
}

// checkReplyTarget requires the target to exist in the same room. Deleted
// targets are fine.
func (s *messageService) checkReplyTarget(ctx context.Context, room *domain.Room, id uuid.UUID) error {
	target, err := s.Get(ctx, id)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindNotFound {
			return apperrors.WithDetail(apperrors.ErrValidation, "reply_to %s does not exist", id)
		}
		return err
	}
	if target.RoomKey != room.ID {
		return apperrors.WithDetail(apperrors.ErrValidation, "reply_to %s belongs to another room", id)
	}
	return nil
}

func (s *messageService) Get(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	msg, err := s.messageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storageFailure("message.get", err)
	}
	return msg, nil
}

func (s *messageService) mutate(ctx context.Context, op string, id uuid.UUID, fn repository.MessageMutation) (*domain.Message, domain.Effects, error) {
	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	msg, effects, err := s.messageRepo.Mutate(ctx, id, fn)
	if err != nil {
		return nil, nil, storageFailure(op, err)
	}
	return msg, effects, nil
}

func (s *messageService) Edit(ctx context.Context, id uuid.UUID, byUserID, text string) (*domain.Message, domain.Effects, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, apperrors.WithDetail(apperrors.ErrValidation, "text must not be empty")
	}
	if utf8.RuneCountInString(text) > domain.MaxMessageTextLength {
		return nil, nil, apperrors.WithDetail(apperrors.ErrValidation, "text exceeds %d characters", domain.MaxMessageTextLength)
	}

	return s.mutate(ctx, "message.edit", id, func(m domain.Message) (domain.Message, domain.Effects, error) {
		return domain.EditMessage(m, byUserID, text, now())
	})
}

func (s *messageService) Delete(ctx context.Context, id uuid.UUID, byUserID, requesterRoomRole string) (*domain.Message, domain.Effects, error) {
	msg, effects, err := s.mutate(ctx, "message.delete", id, func(m domain.Message) (domain.Message, domain.Effects, error) {
		return domain.DeleteMessage(m, byUserID, requesterRoomRole, now())
	})
	if err != nil {
		return nil, nil, err
	}

	if effects.Has(domain.EffectPersist) {
		s.log.Info("Message deleted", "message_id", id, "room_id", msg.RoomID, "by", byUserID)
	}
	return msg, effects, nil
}

func validEmoji(emoji string) error {
	if emoji == "" || utf8.RuneCountInString(emoji) > maxEmojiLength {
		return apperrors.WithDetail(apperrors.ErrValidation, "emoji must be 1 to %d characters", maxEmojiLength)
	}
	return nil
}

func (s *messageService) AddReaction(ctx context.Context, id uuid.UUID, userID, emoji string) (*domain.Message, domain.Effects, error) {
	if err := validEmoji(emoji); err != nil {
		return nil, nil, err
	}
	return s.mutate(ctx, "message.react", id, func(m domain.Message) (domain.Message, domain.Effects, error) {
		next, effects := domain.AddReaction(m, userID, emoji, now())
		return next, effects, nil
	})
}

func (s *messageService) RemoveReaction(ctx context.Context, id uuid.UUID, userID, emoji string) (*domain.Message, domain.Effects, error) {
	if err := validEmoji(emoji); err != nil {
		return nil, nil, err
	}
	return s.mutate(ctx, "message.unreact", id, func(m domain.Message) (domain.Message, domain.Effects, error) {
		next, effects := domain.RemoveReaction(m, userID, emoji, now())
		return next, effects, nil
	})
}

func (s *messageService) MarkRead(ctx context.Context, id uuid.UUID, userID string) (*domain.Message, domain.Effects, error) {
	return s.mutate(ctx, "message.read", id, func(m domain.Message) (domain.Message, domain.Effects, error) {
		next, effects := domain.MarkRead(m, userID, now())
		return next, effects, nil
	})
}

func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// List returns one page in chronological order. Pages are counted from the
// newest message backwards.
func (s *messageService) List(ctx context.Context, room *domain.Room, page, pageSize int) (*domain.MessagePage, error) {
	page, pageSize = normalizePage(page, pageSize, DefaultPageSize)

	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	messages, err := s.messageRepo.List(ctx, room.ID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storageFailure("message.list", err)
	}
	total, err := s.messageRepo.Count(ctx, room.ID)
	if err != nil {
		return nil, storageFailure("message.count", err)
	}

	slices.Reverse(messages)
	views, err := s.withReplyPreviews(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &domain.MessagePage{
		Messages:   views,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: domain.TotalPages(total, pageSize),
		HasMore:    page*pageSize < total,
	}, nil
}

func (s *messageService) Search(ctx context.Context, room *domain.Room, q domain.MessageQuery, page, pageSize int) (*domain.SearchResult, error) {
	if q.Type != "" && !slices.Contains([]string{
		domain.MessageTypeText, domain.MessageTypeFile, domain.MessageTypeImage,
		domain.MessageTypeVideo, domain.MessageTypeAudio, domain.MessageTypeSystem,
	}, q.Type) {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "unknown message type %q", q.Type)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, apperrors.WithDetail(apperrors.ErrValidation, "from must not be after to")
	}
	page, pageSize = normalizePage(page, pageSize, DefaultSearchPageSize)

	ctx, cancel := bounded(ctx, s.opTimeout)
	defer cancel()

	messages, total, err := s.messageRepo.Search(ctx, room.ID, q, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storageFailure("message.search", err)
	}

	views, err := s.withReplyPreviews(ctx, messages)
	if err != nil {
		return nil, err
	}

	return &domain.SearchResult{
		Messages:   views,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: domain.TotalPages(total, pageSize),
	}, nil
}

// withReplyPreviews resolves reply targets in one batch. Targets that no
// longer resolve are left without a preview.
func (s *messageService) withReplyPreviews(ctx context.Context, messages []*domain.Message) ([]domain.MessageView, error) {
	ids := lo.Uniq(lo.FilterMap(messages, func(m *domain.Message, _ int) (uuid.UUID, bool) {
		if m.ReplyTo == nil {
			return uuid.Nil, false
		}
		return *m.ReplyTo, true
	}))

	targets, err := s.messageRepo.GetMany(ctx, ids)
	if err != nil {
		return nil, storageFailure("message.replies", err)
	}

	return lo.Map(messages, func(m *domain.Message, _ int) domain.MessageView {
		view := domain.MessageView{Message: *m}
		if m.ReplyTo != nil {
			if target, ok := targets[*m.ReplyTo]; ok {
				view.ReplyPreview = target.Preview()
			}
		}
		return view
	}), nil
}
