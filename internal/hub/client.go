package hub

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"creator_collab/internal/config"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

// Client pumps frames between a websocket and its Connection. Only the write
// pump writes to the socket.
type Client struct {
	ws     *websocket.Conn
	conn   *Connection
	router *Router
	cfg    config.SocketConfig
	log    logger.Logger
}

func NewClient(ws *websocket.Conn, conn *Connection, router *Router, cfg config.SocketConfig, log logger.Logger) *Client {
	return &Client{
		ws:     ws,
		conn:   conn,
		router: router,
		cfg:    cfg,
		log:    log.With("connection_id", conn.ID(), "user_id", conn.Identity().UserID),
	}
}

// Serve blocks until the socket closes, then unregisters the connection.
func (c *Client) Serve(ctx context.Context) {
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.router.Disconnect(c.conn)
		c.ws.Close()
		c.log.Info("Connection closed")
	}()

	c.ws.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("Unexpected websocket close", "error", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			c.router.Reject(c.conn, apperrors.WithDetail(apperrors.ErrValidation, "only text frames are accepted"))
			continue
		}

		ev, err := DecodeClientEvent(data)
		if err != nil {
			c.router.Reject(c.conn, err)
			continue
		}
		c.router.Handle(ctx, c.conn, ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.conn.Frames():
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Failed to write frame", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
