package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"creator_collab/internal/domain"
	"creator_collab/internal/hub"
	"creator_collab/internal/service"
	"creator_collab/pkg/logger"
)

type RoomHandler struct {
	router      *hub.Router
	roomService service.RoomService
	unread      service.UnreadService
	log         logger.Logger
}

func NewRoomHandler(router *hub.Router, roomService service.RoomService, unread service.UnreadService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		router:      router,
		roomService: roomService,
		unread:      unread,
		log:         log,
	}
}

func (h *RoomHandler) Create(c *gin.Context) {
	var req domain.CreateRoomSpec
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	room, err := h.router.CreateRoom(c.Request.Context(), identity(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) Get(c *gin.Context) {
	room, err := h.roomService.Get(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) ListMine(c *gin.Context) {
	rooms, err := h.roomService.ListMine(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) Search(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}

	rooms, err := h.roomService.SearchPublic(c.Request.Context(), domain.RoomFilter{
		Query: c.Query("q"),
		Role:  c.Query("role"),
		Tag:   c.Query("tag"),
		Limit: limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *RoomHandler) Join(c *gin.Context) {
	room, err := h.router.JoinRoom(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Leave(c *gin.Context) {
	if _, err := h.router.LeaveRoom(c.Request.Context(), identity(c), c.Param("roomId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	var req domain.SettingsPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	room, err := h.roomService.UpdateSettings(c.Request.Context(), identity(c), c.Param("roomId"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type SetMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *RoomHandler) SetMemberRole(c *gin.Context) {
	var req SetMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	room, err := h.roomService.SetMemberRole(c.Request.Context(), identity(c), c.Param("roomId"), c.Param("userId"), req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) UnreadCount(c *gin.Context) {
	count, err := h.unread.UnreadCount(c.Request.Context(), identity(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

func (h *RoomHandler) MarkAllRead(c *gin.Context) {
	marked, err := h.unread.MarkAllRead(c.Request.Context(), identity(c), c.Param("roomId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": marked})
}
