package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"creator_collab/internal/domain"
	"creator_collab/internal/mocks"
	"creator_collab/internal/service"
	apperrors "creator_collab/pkg/errors"
	"creator_collab/pkg/logger"
)

func TestRoomService_Create(t *testing.T) {
	req := require.New(t)

	// Given
	f := newFixture(t)

	// When
	room, effects, err := f.rooms.Create(context.Background(), owner, domain.CreateRoomSpec{Name: "Launch video"})

	// Then
	req.NoError(err)
	req.Len(room.RoomID, domain.RoomIDLength)
	req.Equal(domain.MemberRoleAdmin, room.RoleOf(owner.UserID))
	req.Equal([]string{"maya created the room"}, effects.SystemMessages())

	stored, err := f.rooms.Lookup(context.Background(), room.RoomID)
	req.NoError(err)
	req.Equal(room.ID, stored.ID)
}

func TestRoomService_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		spec domain.CreateRoomSpec
	}{
		{name: "blank name", spec: domain.CreateRoomSpec{Name: "   "}},
		{name: "zero capacity", spec: domain.CreateRoomSpec{Name: "x", MaxMembers: lo.ToPtr(0)}},
		{name: "unknown role", spec: domain.CreateRoomSpec{Name: "x", AllowedRoles: []string{"astronaut"}}},
		{name: "unknown status", spec: domain.CreateRoomSpec{Name: "x", Project: domain.ProjectSpec{Status: "someday"}}},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.rooms.Create(context.Background(), owner, tt.spec)
			require.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestRoomService_JoinRespectsCapacity(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	room := f.createRoom(t, domain.CreateRoomSpec{MaxMembers: lo.ToPtr(2)})

	// When
	joined, effects, err := f.rooms.Join(ctx, editor, room.RoomID)

	// Then
	req.NoError(err)
	req.Len(joined.Members, 2)
	req.Equal([]string{"leo joined the room"}, effects.SystemMessages())

	_, _, err = f.rooms.Join(ctx, writer, room.RoomID)
	req.ErrorIs(err, apperrors.ErrRoomFull)

	_, _, err = f.rooms.Join(ctx, editor, room.RoomID)
	req.ErrorIs(err, apperrors.ErrAlreadyMember)

	_, _, err = f.rooms.Join(ctx, editor, "nothere1")
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func TestRoomService_LeaveAndListMine(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	room := f.createRoom(t, domain.CreateRoomSpec{})
	f.join(t, room, editor)

	mine, err := f.rooms.ListMine(ctx, editor.UserID)
	req.NoError(err)
	req.Len(mine, 1)

	// When
	_, effects, err := f.rooms.Leave(ctx, editor, room.RoomID)

	// Then
	req.NoError(err)
	req.Equal([]string{"leo left the room"}, effects.SystemMessages())
	mine, err = f.rooms.ListMine(ctx, editor.UserID)
	req.NoError(err)
	req.Empty(mine)

	_, _, err = f.rooms.Leave(ctx, editor, room.RoomID)
	req.ErrorIs(err, apperrors.ErrNotMember)
}

func TestRoomService_PrivateRoomsAreHidden(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	room := f.createRoom(t, domain.CreateRoomSpec{IsPrivate: lo.ToPtr(true)})

	// When
	_, err := f.rooms.Get(ctx, writer, room.RoomID)

	// Then
	req.ErrorIs(err, apperrors.ErrForbidden)

	got, err := f.rooms.Get(ctx, owner, room.RoomID)
	req.NoError(err)
	req.Equal(room.RoomID, got.RoomID)

	found, err := f.rooms.SearchPublic(ctx, domain.RoomFilter{})
	req.NoError(err)
	req.Empty(found)
}

func TestRoomService_SearchPublic(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	f.createRoom(t, domain.CreateRoomSpec{Name: "Color grading", Project: domain.ProjectSpec{Tags: []string{"Color"}}})
	f.createRoom(t, domain.CreateRoomSpec{Name: "Thumbnails"})

	// When
	found, err := f.rooms.SearchPublic(ctx, domain.RoomFilter{Tag: " COLOR "})

	// Then
	req.NoError(err)
	req.Len(found, 1)
	req.Equal("Color grading", found[0].Name)

	_, err = f.rooms.SearchPublic(ctx, domain.RoomFilter{Role: "astronaut"})
	req.ErrorIs(err, apperrors.ErrValidation)
}

func TestRoomService_UpdateSettingsAndRoles(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	room := f.createRoom(t, domain.CreateRoomSpec{})
	f.join(t, room, editor)

	// When
	_, err := f.rooms.UpdateSettings(ctx, editor, room.RoomID, domain.SettingsPatch{Name: lo.ToPtr("mine now")})

	// Then
	req.ErrorIs(err, apperrors.ErrForbidden)

	updated, err := f.rooms.UpdateSettings(ctx, owner, room.RoomID, domain.SettingsPatch{
		Name:             lo.ToPtr("Renamed"),
		AllowFileSharing: lo.ToPtr(false),
	})
	req.NoError(err)
	req.Equal("Renamed", updated.Name)
	req.False(updated.Settings.AllowFileSharing)

	promoted, err := f.rooms.SetMemberRole(ctx, owner, room.RoomID, editor.UserID, domain.MemberRoleModerator)
	req.NoError(err)
	req.True(promoted.CanModerate(editor.UserID))
}

func TestRoomService_Deactivate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	// Given
	f := newFixture(t)
	room := f.createRoom(t, domain.CreateRoomSpec{})

	// When
	deactivated, err := f.rooms.Deactivate(ctx, room.RoomID)

	// Then
	req.NoError(err)
	req.False(deactivated.IsActive)
	_, _, err = f.rooms.Join(ctx, editor, room.RoomID)
	req.ErrorIs(err, apperrors.ErrRoomInactive)

	mine, err := f.rooms.ListMine(ctx, owner.UserID)
	req.NoError(err)
	req.Empty(mine)
}

func TestRoomService_RetriesRoomIDCollision(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	// Given
	repo := mocks.NewMockRoomRepository(ctrl)
	gomock.InOrder(
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(apperrors.ErrAlreadyExists),
		repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil),
	)
	rooms := service.NewRoomService(repo, opTimeout, logger.NewNop())

	// When
	room, _, err := rooms.Create(context.Background(), owner, domain.CreateRoomSpec{Name: "x"})

	// Then
	req.NoError(err)
	req.NotNil(room)
}

func TestRoomService_StorageFailureIsTransient(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	// Given
	repo := mocks.NewMockRoomRepository(ctrl)
	repo.EXPECT().GetByRoomID(gomock.Any(), "abcd1234").Return(nil, errors.New("connection refused"))
	repo.EXPECT().Mutate(gomock.Any(), "abcd1234", gomock.Any()).Return(nil, nil, apperrors.ErrRoomFull)
	rooms := service.NewRoomService(repo, opTimeout, logger.NewNop())

	// When
	_, err := rooms.Lookup(context.Background(), "abcd1234")

	// Then
	req.True(apperrors.IsRetryable(err))
	req.Equal(apperrors.KindTransient, apperrors.KindOf(err))

	// Domain errors pass through unchanged.
	_, _, err = rooms.Join(context.Background(), editor, "abcd1234")
	req.ErrorIs(err, apperrors.ErrRoomFull)
}
