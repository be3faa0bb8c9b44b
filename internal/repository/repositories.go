package repository

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"creator_collab/pkg/logger"
)

type Repositories struct {
	Room      RoomRepository
	Message   MessageRepository
	RateLimit RateLimitRepository
}

// NewRepositories wires the Postgres driver. rdb may be nil when rate
// limiting is disabled.
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Room:    NewRoomRepository(db, log),
		Message: NewMessageRepository(db, log),
	}
	if rdb != nil {
		repos.RateLimit = NewRateLimitRepository(rdb, log)
	}

	log.Info("Postgres repositories initialized")
	return repos
}

// NewBadgerRepositories wires the embedded driver.
func NewBadgerRepositories(db *badger.DB, rdb *redis.Client, log logger.Logger) *Repositories {
	repos := &Repositories{
		Room:    NewBadgerRoomRepository(db, log),
		Message: NewBadgerMessageRepository(db, log),
	}
	if rdb != nil {
		repos.RateLimit = NewRateLimitRepository(rdb, log)
	}

	log.Info("Badger repositories initialized")
	return repos
}
