package repository

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	apperrors "creator_collab/pkg/errors"
)

// Key layout:
//
//	room/<roomID>                       Room
//	roomkey/<key>                       roomID
//	member/<hex userID>/<roomID>        empty (membership index)
//	msg/<id>                            Message
//	roommsg/<roomKey>/<seq big-endian>  message id
//	roomseq/<roomKey>                   last assigned seq
const (
	prefixRoom     = "room/"
	prefixRoomKey  = "roomkey/"
	prefixMember   = "member/"
	prefixMessage  = "msg/"
	prefixRoomMsgs = "roommsg/"
	prefixRoomSeq  = "roomseq/"

	maxTxnRetries = 10
	markReadChunk = 256
)

// OpenBadger opens the embedded store. An empty path or inMemory keeps all
// data in memory.
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING)
	if inMemory || path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.WARNING)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// update runs fn in a read-write transaction, retrying on optimistic
// conflicts. fn may run more than once.
func update(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return apperrors.Transient(fmt.Errorf("transaction conflict after %d attempts", maxTxnRetries))
}

func view(ctx context.Context, db *badger.DB, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

func getValue(txn *badger.Txn, key []byte, v interface{}) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return unmarshal(val, v)
	})
}

func setValue(txn *badger.Txn, key []byte, v interface{}) error {
	data, err := marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func roomKey(roomID string) []byte {
	return []byte(prefixRoom + roomID)
}

func roomKeyIndex(key uuid.UUID) []byte {
	return []byte(prefixRoomKey + key.String())
}

// User IDs are hex encoded so one ID extending another past a "/" cannot
// share its prefix.
func memberKey(userID, roomID string) []byte {
	return append(memberPrefix(userID), roomID...)
}

func memberPrefix(userID string) []byte {
	return []byte(prefixMember + hex.EncodeToString([]byte(userID)) + "/")
}

func messageKey(id uuid.UUID) []byte {
	return []byte(prefixMessage + id.String())
}

func roomMessagesPrefix(roomKey uuid.UUID) []byte {
	return []byte(prefixRoomMsgs + roomKey.String() + "/")
}

func roomMessageKey(roomKey uuid.UUID, seq int64) []byte {
	key := roomMessagesPrefix(roomKey)
	return binary.BigEndian.AppendUint64(key, uint64(seq))
}

func roomSeqKey(roomKey uuid.UUID) []byte {
	return []byte(prefixRoomSeq + roomKey.String())
}

// seekLast positions a reverse iterator on the last key with prefix.
func seekLast(prefix []byte) []byte {
	return append(append([]byte{}, prefix...), 0xFF)
}
