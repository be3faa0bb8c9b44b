package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"creator_collab/internal/config"
	"creator_collab/internal/domain"
	"creator_collab/internal/handler"
	"creator_collab/internal/hub"
	"creator_collab/internal/middleware"
	"creator_collab/internal/repository"
	"creator_collab/internal/service"
	"creator_collab/internal/storage"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	maya = domain.Identity{UserID: "u-maya", Role: domain.UserRoleYoutuber, Username: "maya"}
	leo  = domain.Identity{UserID: "u-leo", Role: domain.UserRoleVideoEditor, Username: "leo"}
	kim  = domain.Identity{UserID: "u-kim", Role: domain.UserRoleContentCreator, Username: "kim"}
)

type tokenGate map[string]domain.Identity

func (g tokenGate) Authenticate(_ context.Context, credential string) (*domain.Identity, error) {
	who, ok := g[credential]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return &who, nil
}

func token(who domain.Identity) string {
	return "tok-" + who.Username
}

type api struct {
	engine *gin.Engine
	router *hub.Router
	dir    string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logger.NewNop()

	db, err := repository.OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repos := repository.NewBadgerRepositories(db, nil, log)

	cfg := &config.Config{
		Server:  config.ServerConfig{AllowedOrigins: []string{"*"}},
		Storage: config.StorageConfig{Driver: config.StorageDriverBadger, OpTimeout: 2 * time.Second},
		Socket: config.SocketConfig{
			SendBuffer:      32,
			WriteWait:       time.Second,
			PongWait:        10 * time.Second,
			MaxMessageBytes: 64 * 1024,
		},
		Upload: config.UploadConfig{Dir: t.TempDir(), BaseURL: "/uploads", MaxBytes: 1 << 20, MaxFiles: 2},
	}

	files, err := storage.NewLocalStore(cfg.Upload, log)
	require.NoError(t, err)

	services := service.NewServices(repos, files, cfg, log)
	services.Identity = tokenGate{token(maya): maya, token(leo): leo, token(kim): kim}

	router := hub.NewRouter(hub.NewRegistry(log), services, hub.RouterConfig{
		SendBuffer: cfg.Socket.SendBuffer,
		OpTimeout:  cfg.Storage.OpTimeout,
	}, log)
	handlers := handler.NewHandlers(services, router, cfg, log)
	auth := middleware.NewAuthMiddleware(services.Identity, log)

	engine := gin.New()
	engine.Use(middleware.ErrorHandler(log))
	engine.GET("/health", handlers.Health.Check)
	engine.GET("/ws", handlers.WebSocket.Connect)

	v1 := engine.Group("/api/v1", auth.RequireAuth())
	v1.GET("/me/rooms", handlers.Room.ListMine)
	v1.GET("/me/unread-count", handlers.Room.UnreadCount)
	v1.GET("/search/rooms", handlers.Room.Search)
	v1.POST("/rooms", handlers.Room.Create)
	v1.GET("/rooms/:roomId", handlers.Room.Get)
	v1.POST("/rooms/:roomId/join", handlers.Room.Join)
	v1.POST("/rooms/:roomId/leave", handlers.Room.Leave)
	v1.PUT("/rooms/:roomId/settings", handlers.Room.UpdateSettings)
	v1.PUT("/rooms/:roomId/members/:userId/role", handlers.Room.SetMemberRole)
	v1.POST("/rooms/:roomId/read", handlers.Room.MarkAllRead)
	v1.GET("/rooms/:roomId/messages", handlers.Message.List)
	v1.POST("/rooms/:roomId/messages", handlers.Message.Post)
	v1.GET("/rooms/:roomId/messages/search", handlers.Message.Search)
	v1.POST("/rooms/:roomId/files", handlers.File.Upload)
	v1.GET("/rooms/:roomId/files", handlers.File.List)
	v1.DELETE("/rooms/:roomId/files/:filename", handlers.File.Delete)
	v1.GET("/messages/:messageId", handlers.Message.Get)
	v1.PUT("/messages/:messageId", handlers.Message.Edit)
	v1.DELETE("/messages/:messageId", handlers.Message.Delete)
	v1.POST("/messages/:messageId/reactions", handlers.Message.React)
	v1.DELETE("/messages/:messageId/reactions", handlers.Message.Unreact)
	v1.POST("/messages/:messageId/read", handlers.Message.MarkRead)

	return &api{engine: engine, router: router, dir: cfg.Upload.Dir}
}

// do sends body as JSON unless it is already a reader.
func (a *api) do(t *testing.T, who domain.Identity, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	r := httptest.NewRequest(method, path, reader)
	if reader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if who.UserID != "" {
		r.Header.Set("Authorization", "Bearer "+token(who))
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) apperrors.Kind {
	t.Helper()
	return decodeBody[apperrors.APIError](t, w).Kind
}

func (a *api) createRoom(t *testing.T, spec map[string]interface{}) domain.Room {
	t.Helper()
	if _, ok := spec["name"]; !ok {
		spec["name"] = "Launch video"
	}
	w := a.do(t, maya, http.MethodPost, "/api/v1/rooms", spec)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[domain.Room](t, w)
}

func (a *api) postMessage(t *testing.T, who domain.Identity, roomID, text string) domain.Message {
	t.Helper()
	w := a.do(t, who, http.MethodPost, "/api/v1/rooms/"+roomID+"/messages", map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[domain.Message](t, w)
}
