package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

type badgerMessageRepository struct {
	db  *badger.DB
	log logger.Logger
}

func NewBadgerMessageRepository(db *badger.DB, log logger.Logger) MessageRepository {
	return &badgerMessageRepository{db: db, log: log}
}

// Append reads and rewrites the room's seq key, so concurrent appends to one
// room conflict and are retried in order.
func (r *badgerMessageRepository) Append(ctx context.Context, msg *domain.Message) error {
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		item, err := txn.Get(roomKeyIndex(msg.RoomKey))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrRoomNotFound
			}
			return err
		}
		roomID, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		var room domain.Room
		if err := getValue(txn, roomKey(string(roomID)), &room); err != nil {
			return err
		}

		seq, err := lastSeq(txn, msg.RoomKey)
		if err != nil {
			return err
		}
		seq++

		if err := txn.Set(roomSeqKey(msg.RoomKey), binary.BigEndian.AppendUint64(nil, uint64(seq))); err != nil {
			return err
		}
		msg.Seq = seq
		if err := setValue(txn, messageKey(msg.ID), msg); err != nil {
			return err
		}
		if err := txn.Set(roomMessageKey(msg.RoomKey, seq), msg.ID[:]); err != nil {
			return err
		}

		if msg.CreatedAt.After(room.LastActivity) {
			room.LastActivity = msg.CreatedAt
			return setValue(txn, roomKey(room.RoomID), room)
		}
		return nil
	})
	if err != nil && apperrors.KindOf(err) == apperrors.KindInternal {
		r.log.Error("Failed to append message", "error", err, "room_id", msg.RoomID)
	}
	return err
}

func lastSeq(txn *badger.Txn, roomKey uuid.UUID) (int64, error) {
	item, err := txn.Get(roomSeqKey(roomKey))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var seq int64
	err = item.Value(func(val []byte) error {
		seq = int64(binary.BigEndian.Uint64(val))
		return nil
	})
	return seq, err
}

func loadMessage(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	var m domain.Message
	if err := getValue(txn, messageKey(id), &m); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return m, apperrors.ErrMessageNotFound
		}
		return m, err
	}
	return m, nil
}

func (r *badgerMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var m domain.Message
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		var err error
		m, err = loadMessage(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *badgerMessageRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Message, error) {
	out := make(map[uuid.UUID]*domain.Message, len(ids))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, id := range ids {
			m, err := loadMessage(txn, id)
			if errors.Is(err, apperrors.ErrMessageNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out[id] = &m
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to load messages", "error", err)
		return nil, err
	}
	return out, nil
}

func (r *badgerMessageRepository) Mutate(ctx context.Context, id uuid.UUID, fn MessageMutation) (*domain.Message, domain.Effects, error) {
	var (
		result  domain.Message
		effects domain.Effects
	)

	err := update(ctx, r.db, func(txn *badger.Txn) error {
		current, err := loadMessage(txn, id)
		if err != nil {
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

		result = next
		return setValue(txn, messageKey(id), next)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			r.log.Error("Failed to mutate message", "error", err, "message_id", id)
		}
		return nil, nil, err
	}

	return &result, effects, nil
}

// scanRoomMessages walks a room's messages newest first until visit returns false.
func scanRoomMessages(txn *badger.Txn, roomKey uuid.UUID, visit func(m domain.Message) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	prefix := roomMessagesPrefix(roomKey)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(seekLast(prefix)); it.ValidForPrefix(prefix); it.Next() {
		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return err
		}
		m, err := loadMessage(txn, id)
		if err != nil {
			return err
		}
		if !visit(m) {
			return nil
		}
	}
	return nil
}

func (r *badgerMessageRepository) List(ctx context.Context, roomKey uuid.UUID, limit, offset int) ([]*domain.Message, error) {
	messages := []*domain.Message{}
	skipped := 0
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanRoomMessages(txn, roomKey, func(m domain.Message) bool {
			if m.IsDeleted {
				return true
			}
			if skipped < offset {
				skipped++
				return true
			}
			messages = append(messages, &m)
			return len(messages) < limit
		})
	})
	if err != nil {
		r.log.Error("Failed to list messages", "error", err)
		return nil, err
	}
	return messages, nil
}

func (r *badgerMessageRepository) Count(ctx context.Context, roomKey uuid.UUID) (int, error) {
	count := 0
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanRoomMessages(txn, roomKey, func(m domain.Message) bool {
			if !m.IsDeleted {
				count++
			}
			return true
		})
	})
	if err != nil {
		r.log.Error("Failed to count messages", "error", err)
		return 0, err
	}
	return count, nil
}

func (r *badgerMessageRepository) Search(ctx context.Context, roomKey uuid.UUID, q domain.MessageQuery, limit, offset int) ([]*domain.Message, int, error) {
	messages := []*domain.Message{}
	total := 0
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanRoomMessages(txn, roomKey, func(m domain.Message) bool {
			if !q.Matches(m) {
				return true
			}
			if total >= offset && len(messages) < limit {
				messages = append(messages, &m)
			}
			total++
			return true
		})
	})
	if err != nil {
		r.log.Error("Failed to search messages", "error", err)
		return nil, 0, err
	}
	return messages, total, nil
}

func (r *badgerMessageRepository) CountUnread(ctx context.Context, roomKeys []uuid.UUID, userID string) (int, error) {
	count := 0
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, key := range roomKeys {
			err := scanRoomMessages(txn, key, func(m domain.Message) bool {
				if m.IsUnreadFor(userID) {
					count++
				}
				return true
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error("Failed to count unread messages", "error", err, "user_id", userID)
		return 0, err
	}
	return count, nil
}

// MarkAllRead commits in chunks of at most markReadChunk messages, cutting a
// chunk short when it hits the transaction size limit. Every chunk re-reads
// its messages before writing.
func (r *badgerMessageRepository) MarkAllRead(ctx context.Context, roomKey uuid.UUID, userID string, at time.Time) (int, error) {
	var pending []uuid.UUID
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		return scanRoomMessages(txn, roomKey, func(m domain.Message) bool {
			if m.IsUnreadFor(userID) {
				pending = append(pending, m.ID)
			}
			return true
		})
	})
	if err != nil {
		r.log.Error("Failed to collect unread messages", "error", err, "user_id", userID)
		return 0, err
	}

	marked := 0
	for len(pending) > 0 {
		chunk := pending[:min(len(pending), markReadChunk)]
		var done, changed int
		err := update(ctx, r.db, func(txn *badger.Txn) error {
			done, changed = 0, 0
			for _, id := range chunk {
				m, err := loadMessage(txn, id)
				if err != nil {
					return err
				}
				if m.IsUnreadFor(userID) {
					next, _ := domain.MarkRead(m, userID, at)
					if err := setValue(txn, messageKey(id), next); err != nil {
						if errors.Is(err, badger.ErrTxnTooBig) && done > 0 {
							return nil
						}
						return err
					}
					changed++
				}
				done++
			}
			return nil
		})
		if err != nil {
			if apperrors.KindOf(err) == apperrors.KindInternal {
				r.log.Error("Failed to mark messages read", "error", err, "user_id", userID, "marked", marked)
			}
			return 0, err
		}
		marked += changed
		pending = pending[done:]
	}
	return marked, nil
}
