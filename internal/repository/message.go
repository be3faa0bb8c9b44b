package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

// MessageMutation follows the same contract as RoomMutation.
type MessageMutation func(msg domain.Message) (domain.Message, domain.Effects, error)

// MessageRepository is the per-room append-only message log. Listing and
// search return newest first.
type MessageRepository interface {
	// Append assigns the next per-room Seq and bumps the room's last activity.
	Append(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Message, error)
	Mutate(ctx context.Context, id uuid.UUID, fn MessageMutation) (*domain.Message, domain.Effects, error)
	List(ctx context.Context, roomKey uuid.UUID, limit, offset int) ([]*domain.Message, error)
	Count(ctx context.Context, roomKey uuid.UUID) (int, error)
	Search(ctx context.Context, roomKey uuid.UUID, q domain.MessageQuery, limit, offset int) ([]*domain.Message, int, error)
	CountUnread(ctx context.Context, roomKeys []uuid.UUID, userID string) (int, error)
	MarkAllRead(ctx context.Context, roomKey uuid.UUID, userID string, at time.Time) (int, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `id, room_key, room_id, seq, sender_id, content, message_type, mentions, reactions,
	reply_to, edited, status, read_by, is_deleted, deleted_at, created_at, updated_at`

func scanMessage(row pgx.Row) (*domain.Message, error) {
	m := &domain.Message{}
	err := row.Scan(
		&m.ID, &m.RoomKey, &m.RoomID, &m.Seq, &m.SenderID, &m.Content, &m.Type, &m.Mentions, &m.Reactions,
		&m.ReplyTo, &m.Edited, &m.Status, &m.ReadBy, &m.IsDeleted, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// allocateSeqSQL never moves last_activity backwards: CreatedAt is stamped
// before the row lock is taken.
const allocateSeqSQL = `
	UPDATE rooms SET message_seq = message_seq + 1, last_activity = GREATEST(last_activity, $2)
	WHERE id = $1
	RETURNING message_seq
`

const unreadCondition = `NOT is_deleted AND sender_id <> $2
	AND NOT read_by @> jsonb_build_array(jsonb_build_object('user_id', $2::text))`

func (r *messageRepository) Append(ctx context.Context, msg *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	// The row lock on rooms serializes appends per room.
	err = tx.QueryRow(ctx, allocateSeqSQL, msg.RoomKey, msg.CreatedAt).Scan(&msg.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to allocate message seq", "error", err, "room_id", msg.RoomID)
		return err
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = tx.Exec(ctx, query,
		msg.ID, msg.RoomKey, msg.RoomID, msg.Seq, msg.SenderID, msg.Content, msg.Type, msg.Mentions, msg.Reactions,
		msg.ReplyTo, msg.Edited, msg.Status, msg.ReadBy, msg.IsDeleted, msg.DeletedAt, msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert message", "error", err, "room_id", msg.RoomID)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit message", "error", err, "room_id", msg.RoomID)
		return err
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to get message", "error", err, "message_id", id)
		return nil, err
	}
	return m, nil
}

func (r *messageRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Message, error) {
	out := make(map[uuid.UUID]*domain.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	messages, err := r.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		out[m.ID] = m
	}
	return out, nil
}

func (r *messageRepository) Mutate(ctx context.Context, id uuid.UUID, fn MessageMutation) (*domain.Message, domain.Effects, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanMessage(tx.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.ErrMessageNotFound
		}
		r.log.Error("Failed to lock message", "error", err, "message_id", id)
		return nil, nil, err
	}

	next, effects, err := fn(*current)
	if err != nil {
		return nil, nil, err
	}
	if !effects.Has(domain.EffectPersist) {
		return current, effects, nil
	}

	query := `
		UPDATE messages
		SET content = $2, reactions = $3, edited = $4, status = $5, read_by = $6,
		    is_deleted = $7, deleted_at = $8, updated_at = $9
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		next.ID, next.Content, next.Reactions, next.Edited, next.Status, next.ReadBy,
		next.IsDeleted, next.DeletedAt, next.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update message", "error", err, "message_id", id)
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit message update", "error", err, "message_id", id)
		return nil, nil, err
	}

	return &next, effects, nil
}

func (r *messageRepository) List(ctx context.Context, roomKey uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_key = $1 AND NOT is_deleted
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryMessages(ctx, query, roomKey, limit, offset)
}

func (r *messageRepository) Count(ctx context.Context, roomKey uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE room_key = $1 AND NOT is_deleted`, roomKey).Scan(&count)
	if err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) Search(ctx context.Context, roomKey uuid.UUID, q domain.MessageQuery, limit, offset int) ([]*domain.Message, int, error) {
	conds := []string{"room_key = $1", "NOT is_deleted"}
	args := []interface{}{roomKey}
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q.Text != "" {
		add("content->>'text' ILIKE $%d", "%"+escapeLike(q.Text)+"%")
	}
	if q.Type != "" {
		add("message_type = $%d", q.Type)
	}
	if q.SenderID != "" {
		add("sender_id = $%d", q.SenderID)
	}
	if q.From != nil {
		add("created_at >= $%d", *q.From)
	}
	if q.To != nil {
		add("created_at <= $%d", *q.To)
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE `+where, args...).Scan(&total); err != nil {
		r.log.Error("Failed to count search results", "error", err)
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM messages WHERE %s ORDER BY seq DESC LIMIT $%d OFFSET $%d`,
		messageColumns, where, len(args)+1, len(args)+2)
	messages, err := r.queryMessages(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, roomKeys []uuid.UUID, userID string) (int, error) {
	if len(roomKeys) == 0 {
		return 0, nil
	}

	var count int
	query := `SELECT COUNT(*) FROM messages WHERE room_key = ANY($1) AND ` + unreadCondition
	if err := r.db.QueryRow(ctx, query, roomKeys, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count unread messages", "error", err, "user_id", userID)
		return 0, err
	}
	return count, nil
}

func (r *messageRepository) MarkAllRead(ctx context.Context, roomKey uuid.UUID, userID string, at time.Time) (int, error) {
	query := `
		UPDATE messages
		SET read_by = read_by || jsonb_build_array(jsonb_build_object('user_id', $2::text, 'read_at', $3::timestamptz)),
		    status = 'read',
		    updated_at = $3
		WHERE room_key = $1 AND ` + unreadCondition

	tag, err := r.db.Exec(ctx, query, roomKey, userID, at)
	if err != nil {
		r.log.Error("Failed to mark messages read", "error", err, "user_id", userID)
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *messageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}
