package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
)

type wireFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dial(t *testing.T, srv *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if ws != nil {
		t.Cleanup(func() { _ = ws.Close() })
	}
	return ws, resp, err
}

func readFrame(t *testing.T, ws *websocket.Conn) wireFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f wireFrame
	require.NoError(t, ws.ReadJSON(&f))
	return f
}

func TestWebSocket_RejectsMissingCredential(t *testing.T) {
	req := require.New(t)
	a := newAPI(t)
	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	_, resp, err := dial(t, srv, "")

	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocket_WatchAndSend(t *testing.T) {
	req := require.New(t)
	a := newAPI(t)
	room := a.createRoom(t, gin.H{})
	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	// Given a connected member
	ws, _, err := dial(t, srv, "?token="+token(maya))
	req.NoError(err)

	health := a.do(t, domain.Identity{}, http.MethodGet, "/health", nil)
	req.Equal(1, decodeBody[struct{ Connections int }](t, health).Connections)

	// When they watch the room
	req.NoError(ws.WriteJSON(gin.H{"type": "watch", "payload": gin.H{"room_id": room.RoomID}}))

	// Then they get the online list
	f := readFrame(t, ws)
	req.Equal("watching", f.Type)
	var watching domain.WatchingEvent
	req.NoError(json.Unmarshal(f.Payload, &watching))
	req.Equal([]domain.Identity{maya}, watching.Online)

	// When they send a message
	req.NoError(ws.WriteJSON(gin.H{"type": "send", "payload": gin.H{"room_id": room.RoomID, "text": "live from the socket"}}))

	// Then it comes back once as a message event
	f = readFrame(t, ws)
	req.Equal("message", f.Type)
	var ev domain.MessageEvent
	req.NoError(json.Unmarshal(f.Payload, &ev))
	req.Equal("live from the socket", ev.Message.Content.Text)
	req.Equal(maya.UserID, ev.Message.SenderID)

	// And a malformed frame is answered with an error, keeping the socket open
	req.NoError(ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	f = readFrame(t, ws)
	req.Equal("error", f.Type)
	var errEv domain.ErrorEvent
	req.NoError(json.Unmarshal(f.Payload, &errEv))
	req.Equal(string(apperrors.KindValidation), errEv.Kind)

	req.NoError(ws.WriteJSON(gin.H{"type": "unwatch", "payload": gin.H{"room_id": room.RoomID}}))
	req.NoError(ws.WriteJSON(gin.H{"type": "watch", "payload": gin.H{"room_id": room.RoomID}}))
	req.Equal("watching", readFrame(t, ws).Type)
}

func TestWebSocket_BearerHeaderAlsoWorks(t *testing.T) {
	req := require.New(t)
	a := newAPI(t)
	srv := httptest.NewServer(a.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + token(leo)}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	defer ws.Close()

	req.NoError(ws.WriteJSON(gin.H{"type": "watch", "payload": gin.H{"room_id": "nope1234"}}))
	f := readFrame(t, ws)
	req.Equal("error", f.Type)
	var errEv domain.ErrorEvent
	req.NoError(json.Unmarshal(f.Payload, &errEv))
	req.Equal(string(apperrors.KindNotFound), errEv.Kind)
}
