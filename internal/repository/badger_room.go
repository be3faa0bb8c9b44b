package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

type badgerRoomRepository struct {
	db  *badger.DB
	log logger.Logger
}

func NewBadgerRoomRepository(db *badger.DB, log logger.Logger) RoomRepository {
	return &badgerRoomRepository{db: db, log: log}
}

func (r *badgerRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(roomKey(room.RoomID)); err == nil {
			return apperrors.WithDetail(apperrors.ErrAlreadyExists, "room id %s is taken", room.RoomID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setValue(txn, roomKey(room.RoomID), room); err != nil {
			return err
		}
		if err := txn.Set(roomKeyIndex(room.ID), []byte(room.RoomID)); err != nil {
			return err
		}
		return writeMemberIndex(txn, room.RoomID, nil, room.Members)
	})
	if err != nil && apperrors.KindOf(err) != apperrors.KindAlreadyExists {
		r.log.Error("Failed to create room", "error", err, "room_id", room.RoomID)
	}
	return err
}

func (r *badgerRoomRepository) GetByRoomID(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return getValue(txn, roomKey(roomID), &room)
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, apperrors.ErrRoomNotFound
		}
		r.log.Error("Failed to get room", "error", err, "room_id", roomID)
		return nil, err
	}
	return &room, nil
}

func (r *badgerRoomRepository) ListByMember(ctx context.Context, userID string, includeInactive bool) ([]*domain.Room, error) {
	rooms := []*domain.Room{}
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := memberPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			roomID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			var room domain.Room
			if err := getValue(txn, roomKey(roomID), &room); err != nil {
				return err
			}
			if room.IsActive || includeInactive {
				rooms = append(rooms, &room)
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to list rooms by member", "error", err, "user_id", userID)
		return nil, err
	}

	sortByActivity(rooms)
	return rooms, nil
}

func (r *badgerRoomRepository) SearchPublic(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error) {
	rooms := []*domain.Room{}
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		prefix := []byte(prefixRoom)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var room domain.Room
			if err := it.Item().Value(func(val []byte) error { return unmarshal(val, &room) }); err != nil {
				return err
			}
			if filter.Matches(room) {
				rooms = append(rooms, &room)
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to search rooms", "error", err)
		return nil, err
	}

	sortByActivity(rooms)
	if filter.Limit > 0 && len(rooms) > filter.Limit {
		rooms = rooms[:filter.Limit]
	}
	return rooms, nil
}

func (r *badgerRoomRepository) Mutate(ctx context.Context, roomID string, fn RoomMutation) (*domain.Room, domain.Effects, error) {
	var (
		result  domain.Room
		effects domain.Effects
	)

	err := update(ctx, r.db, func(txn *badger.Txn) error {
		var current domain.Room
		if err := getValue(txn, roomKey(roomID), &current); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrRoomNotFound
			}
			return err
		}

		next, eff, err := fn(current)
		if err != nil {
			return err
		}
		effects = eff
		if !eff.Has(domain.EffectPersist) {
			result = current
			return nil
		}

		if err := setValue(txn, roomKey(roomID), next); err != nil {
			return err
		}
		if err := writeMemberIndex(txn, roomID, current.Members, next.Members); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			r.log.Error("Failed to mutate room", "error", err, "room_id", roomID)
		}
		return nil, nil, err
	}

	return &result, effects, nil
}

// writeMemberIndex brings member/<user>/<room> keys in line with after.
func writeMemberIndex(txn *badger.Txn, roomID string, before, after []domain.Member) error {
	userIDs := func(members []domain.Member) []string {
		return lo.Map(members, func(m domain.Member, _ int) string { return m.UserID })
	}
	removed, added := lo.Difference(userIDs(before), userIDs(after))

	for _, userID := range removed {
		if err := txn.Delete(memberKey(userID, roomID)); err != nil {
			return err
		}
	}
	for _, userID := range added {
		if err := txn.Set(memberKey(userID, roomID), nil); err != nil {
			return err
		}
	}
	return nil
}

func sortByActivity(rooms []*domain.Room) {
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].LastActivity.After(rooms[j].LastActivity)
	})
}
