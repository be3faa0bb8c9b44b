package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"creator_collab/internal/domain"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	owner  = domain.Identity{UserID: "u-owner", Role: domain.UserRoleYoutuber, Username: "maya"}
	editor = domain.Identity{UserID: "u-editor", Role: domain.UserRoleVideoEditor}
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := OpenBadger("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createRoom(t *testing.T, repo RoomRepository, roomID string, spec domain.CreateRoomSpec) *domain.Room {
	t.Helper()
	if spec.Name == "" {
		spec.Name = "Room " + roomID
	}
	room, _ := domain.NewRoom(uuid.New(), roomID, owner, spec, t0)
	require.NoError(t, repo.Create(context.Background(), &room))
	return &room
}

func appendMessage(t *testing.T, repo MessageRepository, room *domain.Room, sender, text string, at time.Time) *domain.Message {
	t.Helper()
	msg := domain.NewMessage(uuid.New(), *room, sender, domain.MessageDraft{Text: text}, at)
	require.NoError(t, repo.Append(context.Background(), &msg))
	return &msg
}

func TestBadgerRoomRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	created := createRoom(t, repo, "abcd1234", domain.CreateRoomSpec{})

	// When
	got, err := repo.GetByRoomID(ctx, "abcd1234")

	// Then
	req.NoError(err)
	req.Equal(created.ID, got.ID)
	req.Equal(created.Name, got.Name)
	req.True(got.CreatedAt.Equal(created.CreatedAt))
	req.Equal(domain.MemberRoleAdmin, got.RoleOf(owner.UserID))

	dup, _ := domain.NewRoom(uuid.New(), "abcd1234", owner, domain.CreateRoomSpec{Name: "dup"}, t0)
	req.ErrorIs(repo.Create(ctx, &dup), apperrors.ErrAlreadyExists)

	_, err = repo.GetByRoomID(ctx, "missing1")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestBadgerRoomRepository_MutateMaintainsMemberIndex(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	createRoom(t, repo, "room0001", domain.CreateRoomSpec{})

	// When
	joined, effects, err := repo.Mutate(ctx, "room0001", func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.AddMember(r, editor, t0.Add(time.Minute))
	})

	// Then
	req.NoError(err)
	req.Len(effects.SystemMessages(), 1)
	req.True(joined.IsMember(editor.UserID))
	mine, err := repo.ListByMember(ctx, editor.UserID, false)
	req.NoError(err)
	req.Len(mine, 1)

	// When
	_, _, err = repo.Mutate(ctx, "room0001", func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.RemoveMember(r, editor, t0.Add(2*time.Minute))
	})

	// Then
	req.NoError(err)
	mine, err = repo.ListByMember(ctx, editor.UserID, false)
	req.NoError(err)
	req.Empty(mine)
}

func TestBadgerRoomRepository_ListByMemberWithNestedUserIDs(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given users whose IDs share a "/" separated prefix
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	short := domain.Identity{UserID: "a", Role: domain.UserRoleVideoEditor}
	nested := domain.Identity{UserID: "a/b", Role: domain.UserRoleVideoEditor}
	createRoom(t, repo, "room0001", domain.CreateRoomSpec{})
	createRoom(t, repo, "room0002", domain.CreateRoomSpec{})
	for roomID, who := range map[string]domain.Identity{"room0001": short, "room0002": nested} {
		_, _, err := repo.Mutate(ctx, roomID, func(r domain.Room) (domain.Room, domain.Effects, error) {
			return domain.AddMember(r, who, t0.Add(time.Minute))
		})
		req.NoError(err)
	}

	// When
	shortRooms, err := repo.ListByMember(ctx, short.UserID, false)
	req.NoError(err)
	nestedRooms, err := repo.ListByMember(ctx, nested.UserID, false)
	req.NoError(err)

	// Then
	roomIDs := func(rooms []*domain.Room) []string {
		return lo.Map(rooms, func(r *domain.Room, _ int) string { return r.RoomID })
	}
	req.Equal([]string{"room0001"}, roomIDs(shortRooms))
	req.Equal([]string{"room0002"}, roomIDs(nestedRooms))
}

func TestBadgerRoomRepository_MutateErrorLeavesRoomUntouched(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	createRoom(t, repo, "room0001", domain.CreateRoomSpec{MaxMembers: lo.ToPtr(1)})

	// When
	_, _, err := repo.Mutate(ctx, "room0001", func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.AddMember(r, editor, t0)
	})

	// Then
	req.ErrorIs(err, apperrors.ErrRoomFull)
	room, err := repo.GetByRoomID(ctx, "room0001")
	req.NoError(err)
	req.Len(room.Members, 1)

	_, _, err = repo.Mutate(ctx, "nothere1", func(r domain.Room) (domain.Room, domain.Effects, error) {
		return r, nil, nil
	})
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestBadgerRoomRepository_ConcurrentJoinsRespectCapacity(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	createRoom(t, repo, "room0001", domain.CreateRoomSpec{MaxMembers: lo.ToPtr(3)})

	// When
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		joined int
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := domain.Identity{UserID: fmt.Sprintf("u-%d", i), Role: domain.UserRoleVideoEditor}
			_, _, err := repo.Mutate(ctx, "room0001", func(r domain.Room) (domain.Room, domain.Effects, error) {
				return domain.AddMember(r, who, t0)
			})
			if err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Then
	req.Equal(2, joined)
	room, err := repo.GetByRoomID(ctx, "room0001")
	req.NoError(err)
	req.Len(room.Members, 3)
}

func TestBadgerRoomRepository_SearchPublic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	repo := NewBadgerRoomRepository(openTestBadger(t), logger.NewNop())
	createRoom(t, repo, "room0001", domain.CreateRoomSpec{Name: "Podcast cut", Project: domain.ProjectSpec{Tags: []string{"audio"}}})
	createRoom(t, repo, "room0002", domain.CreateRoomSpec{Name: "Podcast secret", IsPrivate: lo.ToPtr(true)})
	createRoom(t, repo, "room0003", domain.CreateRoomSpec{Name: "Vlog"})

	// When
	rooms, err := repo.SearchPublic(ctx, domain.RoomFilter{Query: "podcast", Limit: 10})

	// Then
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal("room0001", rooms[0].RoomID)

	rooms, err = repo.SearchPublic(ctx, domain.RoomFilter{Limit: 1})
	req.NoError(err)
	req.Len(rooms, 1)
}

func TestBadgerMessageRepository_AppendAssignsSeqAndListsNewestFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	db := openTestBadger(t)
	rooms := NewBadgerRoomRepository(db, logger.NewNop())
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	room := createRoom(t, rooms, "room0001", domain.CreateRoomSpec{})

	// When
	for i := 1; i <= 5; i++ {
		appendMessage(t, messages, room, owner.UserID, fmt.Sprintf("m%d", i), t0.Add(time.Duration(i)*time.Second))
	}

	// Then
	page, err := messages.List(ctx, room.ID, 2, 0)
	req.NoError(err)
	req.Equal([]string{"m5", "m4"}, texts(page))
	req.Equal(int64(5), page[0].Seq)

	page, err = messages.List(ctx, room.ID, 2, 4)
	req.NoError(err)
	req.Equal([]string{"m1"}, texts(page))

	count, err := messages.Count(ctx, room.ID)
	req.NoError(err)
	req.Equal(5, count)

	bumped, err := rooms.GetByRoomID(ctx, room.RoomID)
	req.NoError(err)
	req.True(bumped.LastActivity.Equal(t0.Add(5*time.Second)))
}

func TestBadgerMessageRepository_AppendNeverRewindsLastActivity(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a room touched after the message was stamped
	db := openTestBadger(t)
	rooms := NewBadgerRoomRepository(db, logger.NewNop())
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	room := createRoom(t, rooms, "room0001", domain.CreateRoomSpec{})
	joinedAt := t0.Add(time.Hour)
	_, _, err := rooms.Mutate(ctx, "room0001", func(r domain.Room) (domain.Room, domain.Effects, error) {
		return domain.AddMember(r, editor, joinedAt)
	})
	req.NoError(err)

	// When
	appendMessage(t, messages, room, owner.UserID, "late", t0.Add(time.Minute))

	// Then
	got, err := rooms.GetByRoomID(ctx, "room0001")
	req.NoError(err)
	req.True(got.LastActivity.Equal(joinedAt))
}

func TestBadgerMessageRepository_AppendToUnknownRoom(t *testing.T) {
	messages := NewBadgerMessageRepository(openTestBadger(t), logger.NewNop())
	room, _ := domain.NewRoom(uuid.New(), "ghost001", owner, domain.CreateRoomSpec{Name: "ghost"}, t0)
	msg := domain.NewMessage(uuid.New(), room, owner.UserID, domain.MessageDraft{Text: "hi"}, t0)

	err := messages.Append(context.Background(), &msg)

	require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestBadgerMessageRepository_ConcurrentAppendsGetDistinctSeq(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	db := openTestBadger(t)
	room := createRoom(t, NewBadgerRoomRepository(db, logger.NewNop()), "room0001", domain.CreateRoomSpec{})
	messages := NewBadgerMessageRepository(db, logger.NewNop())

	// When
	var wg sync.WaitGroup
	seqs := make(chan int64, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := domain.NewMessage(uuid.New(), *room, owner.UserID, domain.MessageDraft{Text: fmt.Sprint(i)}, t0)
			if err := messages.Append(ctx, &msg); err == nil {
				seqs <- msg.Seq
			}
		}(i)
	}
	wg.Wait()
	close(seqs)

	// Then
	var got []int64
	for s := range seqs {
		got = append(got, s)
	}
	req.Len(got, 8)
	req.ElementsMatch([]int64{1, 2, 3, 4, 5, 6, 7, 8}, got)
}

func TestBadgerMessageRepository_MutateAndDeletedFiltering(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	db := openTestBadger(t)
	room := createRoom(t, NewBadgerRoomRepository(db, logger.NewNop()), "room0001", domain.CreateRoomSpec{})
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	keep := appendMessage(t, messages, room, owner.UserID, "keep", t0)
	drop := appendMessage(t, messages, room, owner.UserID, "drop", t0.Add(time.Second))

	// When
	deleted, effects, err := messages.Mutate(ctx, drop.ID, func(m domain.Message) (domain.Message, domain.Effects, error) {
		return domain.DeleteMessage(m, owner.UserID, "", t0)
	})

	// Then
	req.NoError(err)
	req.True(effects.Has(domain.EffectBroadcast))
	req.True(deleted.IsDeleted)

	page, err := messages.List(ctx, room.ID, 10, 0)
	req.NoError(err)
	req.Equal([]string{"keep"}, texts(page))

	stored, err := messages.GetMany(ctx, []uuid.UUID{keep.ID, drop.ID, uuid.New()})
	req.NoError(err)
	req.Len(stored, 2)
	req.Equal(domain.DeletedMessageText, stored[drop.ID].Content.Text)

	_, err = messages.GetByID(ctx, uuid.New())
	req.ErrorIs(err, apperrors.ErrMessageNotFound)
}

func TestBadgerMessageRepository_Search(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	db := openTestBadger(t)
	room := createRoom(t, NewBadgerRoomRepository(db, logger.NewNop()), "room0001", domain.CreateRoomSpec{})
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	appendMessage(t, messages, room, owner.UserID, "render v1", t0)
	appendMessage(t, messages, room, editor.UserID, "render v2", t0.Add(time.Second))
	appendMessage(t, messages, room, editor.UserID, "lunch?", t0.Add(2*time.Second))

	// When
	found, total, err := messages.Search(ctx, room.ID, domain.MessageQuery{Text: "RENDER"}, 1, 0)

	// Then
	req.NoError(err)
	req.Equal(2, total)
	req.Equal([]string{"render v2"}, texts(found))

	found, total, err = messages.Search(ctx, room.ID, domain.MessageQuery{Text: "render", SenderID: owner.UserID}, 10, 0)
	req.NoError(err)
	req.Equal(1, total)
	req.Equal([]string{"render v1"}, texts(found))
}

func TestBadgerMessageRepository_UnreadAndMarkAllRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	db := openTestBadger(t)
	rooms := NewBadgerRoomRepository(db, logger.NewNop())
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	first := createRoom(t, rooms, "room0001", domain.CreateRoomSpec{})
	second := createRoom(t, rooms, "room0002", domain.CreateRoomSpec{})
	for i := 0; i < 3; i++ {
		appendMessage(t, messages, first, owner.UserID, "a", t0)
	}
	appendMessage(t, messages, second, owner.UserID, "b", t0)
	appendMessage(t, messages, second, editor.UserID, "own", t0)

	// When
	unread, err := messages.CountUnread(ctx, []uuid.UUID{first.ID, second.ID}, editor.UserID)

	// Then
	req.NoError(err)
	req.Equal(4, unread)

	// When
	marked, err := messages.MarkAllRead(ctx, first.ID, editor.UserID, t0)

	// Then
	req.NoError(err)
	req.Equal(3, marked)
	unread, err = messages.CountUnread(ctx, []uuid.UUID{first.ID, second.ID}, editor.UserID)
	req.NoError(err)
	req.Equal(1, unread)

	marked, err = messages.MarkAllRead(ctx, first.ID, editor.UserID, t0)
	req.NoError(err)
	req.Zero(marked)
}

func TestBadgerMessageRepository_MarkAllReadLargeBacklog(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given a store whose transactions hold roughly 150KB
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithMemTableSize(1 << 20).
		WithValueThreshold(1 << 10).
		WithLoggingLevel(badger.WARNING))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	rooms := NewBadgerRoomRepository(db, logger.NewNop())
	messages := NewBadgerMessageRepository(db, logger.NewNop())
	room := createRoom(t, rooms, "room0001", domain.CreateRoomSpec{})
	body := strings.Repeat("x", 800)
	const backlog = 1200
	for i := 0; i < backlog; i++ {
		appendMessage(t, messages, room, owner.UserID, body, t0.Add(time.Duration(i)*time.Second))
	}

	// When
	marked, err := messages.MarkAllRead(ctx, room.ID, editor.UserID, t0.Add(time.Hour))

	// Then
	req.NoError(err)
	req.Equal(backlog, marked)
	unread, err := messages.CountUnread(ctx, []uuid.UUID{room.ID}, editor.UserID)
	req.NoError(err)
	req.Zero(unread)

	marked, err = messages.MarkAllRead(ctx, room.ID, editor.UserID, t0.Add(2*time.Hour))
	req.NoError(err)
	req.Zero(marked)
}

func texts(messages []*domain.Message) []string {
	return lo.Map(messages, func(m *domain.Message, _ int) string { return m.Content.Text })
}
