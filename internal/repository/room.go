package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

// RoomMutation is applied to the current room inside the repository's
// critical section. A result without a persist effect is not written.
type RoomMutation func(room domain.Room) (domain.Room, domain.Effects, error)

//go:generate mockgen -source=room.go -destination=../mocks/mock_room_repository.go -package=mocks

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByRoomID(ctx context.Context, roomID string) (*domain.Room, error)
	ListByMember(ctx context.Context, userID string, includeInactive bool) ([]*domain.Room, error)
	SearchPublic(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error)
	Mutate(ctx context.Context, roomID string, fn RoomMutation) (*domain.Room, domain.Effects, error)
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

const roomColumns = `id, room_id, name, description, creator_id, members, settings, project, files,
	last_activity, is_active, created_at, updated_at`

func scanRoom(row pgx.Row) (*domain.Room, error) {
	room := &domain.Room{}
	err := row.Scan(
		&room.ID, &room.RoomID, &room.Name, &room.Description, &room.CreatorID,
		&room.Members, &room.Settings, &room.Project, &room.Files,
		&room.LastActivity, &room.IsActive, &room.CreatedAt, &room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	query := `
		INSERT INTO rooms (id, room_id, name, description, creator_id, members, settings, project, files,
		                   last_activity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(ctx, query,
		room.ID, room.RoomID, room.Name, room.Description, room.CreatorID,
		room.Members, room.Settings, room.Project, room.Files,
		room.LastActivity, room.IsActive, room.CreatedAt, room.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.WithDetail(apperrors.ErrAlreadyExists, "room id %s is taken", room.RoomID)
		}
		r.log.Error("Failed to create room", "error", err, "room_id", room.RoomID)
		return err
	}

	return nil
}

func (r *roomRepository) GetByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE room_id = $1`

	room, err := scanRoom(r.db.QueryRow(ctx, query, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room", "error", err, "room_id", roomID)
		return nil, err
	}

	return room, nil
}

func (r *roomRepository) ListByMember(ctx context.Context, userID string, includeInactive bool) ([]*domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE members @> jsonb_build_array(jsonb_build_object('user_id', $1::text))
		  AND (is_active OR $2)
		ORDER BY last_activity DESC
	`

	return r.queryRooms(ctx, query, userID, includeInactive)
}

func (r *roomRepository) SearchPublic(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE is_active
		  AND NOT (settings->>'is_private')::boolean
		  AND ($1 = '' OR name ILIKE $1 OR description ILIKE $1 OR project->>'name' ILIKE $1)
		  AND ($2 = '' OR jsonb_array_length(settings->'allowed_roles') = 0 OR settings->'allowed_roles' ? $2)
		  AND ($3 = '' OR project->'tags' ? $3)
		ORDER BY last_activity DESC
		LIMIT $4
	`

	pattern := ""
	if filter.Query != "" {
		pattern = "%" + escapeLike(filter.Query) + "%"
	}

	return r.queryRooms(ctx, query, pattern, filter.Role, filter.Tag, filter.Limit)
}

func (r *roomRepository) queryRooms(ctx context.Context, query string, args ...interface{}) ([]*domain.Room, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query rooms", "error", err)
		return nil, err
	}
	defer rows.Close()

	rooms := []*domain.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			r.log.Error("Failed to scan room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// Mutate locks the row for the duration of fn.
func (r *roomRepository) Mutate(ctx context.Context, roomID string, fn RoomMutation) (*domain.Room, domain.Effects, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		r.log.Error("Failed to begin transaction", "error", err)
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	current, err := scanRoom(tx.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = $1 FOR UPDATE`, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to lock room", "error", err, "room_id", roomID)
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
		UPDATE rooms
		SET name = $2, description = $3, members = $4, settings = $5, project = $6, files = $7,
		    last_activity = $8, is_active = $9, updated_at = $10
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		next.ID, next.Name, next.Description, next.Members, next.Settings, next.Project, next.Files,
		next.LastActivity, next.IsActive, next.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update room", "error", err, "room_id", roomID)
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("Failed to commit room update", "error", err, "room_id", roomID)
		return nil, nil, err
	}

	return &next, effects, nil
}
