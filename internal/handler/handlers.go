package handler

import (
	"creator_collab/internal/config"
	"creator_collab/internal/hub"
	"creator_collab/internal/service"
	"creator_collab/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	Message   *MessageHandler
	File      *FileHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, router *hub.Router, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(router.Registry()),
		Room:      NewRoomHandler(router, services.Rooms, services.Unread, log),
		Message:   NewMessageHandler(router, services.Rooms, services.Messages, log),
		File:      NewFileHandler(router, cfg.Upload, log),
		WebSocket: NewWebSocketHandler(router, cfg.Socket, cfg.Server.AllowedOrigins, log),
	}
}
