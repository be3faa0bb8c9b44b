package service

import (
	"creator_collab/internal/config"
	"creator_collab/internal/repository"
	"creator_collab/pkg/logger"
)

type Services struct {
	Identity  IdentityGate
	Rooms     RoomService
	Messages  MessageService
	Unread    UnreadService
	Files     FileStore
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, files FileStore, cfg *config.Config, log logger.Logger) *Services {
	timeout := cfg.Storage.OpTimeout

	services := &Services{
		Identity:  NewIdentityGate(cfg.Identity, log),
		Rooms:     NewRoomService(repos.Room, timeout, log),
		Messages:  NewMessageService(repos.Message, timeout, log),
		Unread:    NewUnreadService(repos.Room, repos.Message, timeout, log),
		Files:     files,
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}

	if repos.RateLimit == nil {
		log.Warn("Redis is not configured, rate limiting disabled")
	}

	return services
}
