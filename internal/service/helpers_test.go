package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"creator_collab/internal/domain"
	"creator_collab/internal/repository"
	"creator_collab/internal/service"
	"creator_collab/pkg/logger"
)

const opTimeout = 2 * time.Second

var (
	owner  = domain.Identity{UserID: "u-owner", Role: domain.UserRoleYoutuber, Username: "maya"}
	editor = domain.Identity{UserID: "u-editor", Role: domain.UserRoleVideoEditor, Username: "leo"}
	writer = domain.Identity{UserID: "u-writer", Role: domain.UserRoleContentCreator, Username: "kim"}
)

type fixture struct {
	repos    *repository.Repositories
	rooms    service.RoomService
	messages service.MessageService
	unread   service.UnreadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logger.NewNop()
	repos := repository.NewBadgerRepositories(db, nil, log)
	return &fixture{
		repos:    repos,
		rooms:    service.NewRoomService(repos.Room, opTimeout, log),
		messages: service.NewMessageService(repos.Message, opTimeout, log),
		unread:   service.NewUnreadService(repos.Room, repos.Message, opTimeout, log),
	}
}

func (f *fixture) createRoom(t *testing.T, spec domain.CreateRoomSpec) *domain.Room {
	t.Helper()
	if spec.Name == "" {
		spec.Name = "Launch video"
	}
	room, _, err := f.rooms.Create(context.Background(), owner, spec)
	require.NoError(t, err)
	return room
}

func (f *fixture) join(t *testing.T, room *domain.Room, who domain.Identity) *domain.Room {
	t.Helper()
	joined, _, err := f.rooms.Join(context.Background(), who, room.RoomID)
	require.NoError(t, err)
	return joined
}

func (f *fixture) post(t *testing.T, room *domain.Room, sender domain.Identity, text string) *domain.Message {
	t.Helper()
	msg, err := f.messages.Append(context.Background(), room, sender.UserID, domain.MessageDraft{Text: text})
	require.NoError(t, err)
	return msg
}
