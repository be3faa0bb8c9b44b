package handler

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"creator_collab/internal/config"
	"creator_collab/internal/hub"
	"creator_collab/internal/middleware"
	"creator_collab/pkg/logger"
)

type WebSocketHandler struct {
	router   *hub.Router
	cfg      config.SocketConfig
	upgrader websocket.Upgrader
	log      logger.Logger
}

func NewWebSocketHandler(router *hub.Router, cfg config.SocketConfig, allowedOrigins []string, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		router: router,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and origins on the allow list. "*" allows everything.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// Connect authenticates before upgrading so a bad credential gets a plain
// 401 instead of a socket that closes immediately.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		credential, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}

	conn, err := h.router.Connect(c.Request.Context(), credential)
	if err != nil {
		respondError(c, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err, "user_id", conn.Identity().UserID)
		h.router.Disconnect(conn)
		return
	}

	hub.NewClient(ws, conn, h.router, h.cfg, h.log).Serve(c.Request.Context())
}
