package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"creator_collab/internal/domain"
	"creator_collab/internal/hub"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

type MessageHandler struct {
	router         *hub.Router
	roomService    service.RoomService
	messageService service.MessageService
	log            logger.Logger
}

func NewMessageHandler(router *hub.Router, roomService service.RoomService, messageService service.MessageService, log logger.Logger) *MessageHandler {
	return &MessageHandler{
		router:         router,
		roomService:    roomService,
		messageService: messageService,
		log:            log,
	}
}

func (h *MessageHandler) List(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	room, err := h.roomService.Get(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.messageService.List(c.Request.Context(), room, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *MessageHandler) Post(c *gin.Context) {
	var req domain.MessageDraft
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.router.PostMessage(c.Request.Context(), identity(c), c.Param("roomId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) Search(c *gin.Context) {
	page, ok := queryInt(c, "page")
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	from, ok := queryTime(c, "from")
	if !ok {
		return
	}
	to, ok := queryTime(c, "to")
	if !ok {
		return
	}

	room, err := h.roomService.Get(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	query := domain.MessageQuery{
		Text:     c.Query("q"),
		Type:     c.Query("type"),
		SenderID: c.Query("sender"),
		From:     from,
		To:       to,
	}
	result, err := h.messageService.Search(c.Request.Context(), room, query, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, apperrors.WithDetail(apperrors.ErrValidation, "%s must be an RFC 3339 timestamp", key))
		return nil, false
	}
	return &t, true
}

func (h *MessageHandler) Get(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}

	msg, err := h.router.GetMessage(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

type EditMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *MessageHandler) Edit(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.router.EditMessage(c.Request.Context(), identity(c), id, req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}

	if _, err := h.router.DeleteMessage(c.Request.Context(), identity(c), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *MessageHandler) React(c *gin.Context) {
	h.reaction(c, h.router.React)
}

func (h *MessageHandler) Unreact(c *gin.Context) {
	h.reaction(c, h.router.Unreact)
}

func (h *MessageHandler) reaction(c *gin.Context, apply func(ctx context.Context, who domain.Identity, id uuid.UUID, emoji string) (*domain.Message, error)) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}
	// DELETE clients may pass the emoji as a query parameter instead of a body.
	req := ReactionRequest{Emoji: c.Query("emoji")}
	if req.Emoji == "" {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	msg, err := apply(c.Request.Context(), identity(c), id, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := messageIDParam(c)
	if !ok {
		return
	}

	msg, err := h.router.MarkRead(c.Request.Context(), identity(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}
