package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/internal/domain"
	"chatsync/internal/mocks"
	chatsync_errors "chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

var (
	me    = domain.ChatUser{ID: 1, Username: "me"}
	alice = domain.ChatUser{ID: 2, Username: "alice"}
)

func lastMsg(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, Body: "m", CreatedAt: at, SentBy: alice, Kind: domain.MessageKindText}
}

func roomIDs(rooms []domain.Room) []string {
	out := make([]string, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.ID)
	}
	return out
}

func TestLoadOrdersMostRecentConversationFirst(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	base := time.Now()
	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "old"}, {ID: "new"}, {ID: "mid"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "old").Return(lastMsg("m1", base.Add(-2*time.Hour)), nil).Once()
	api.On("LastMessage", mock.Anything, "mid").Return(lastMsg("m2", base.Add(-time.Hour)), nil).Once()
	api.On("LastMessage", mock.Anything, "new").Return(lastMsg("m3", base), nil).Once()
	api.On("ChunkCount", mock.Anything, mock.Anything).Return(4, nil)

	require.NoError(t, d.Load(context.Background()))

	assert.Equal(t, []string{"new", "mid", "old"}, roomIDs(d.Rooms()))
	api.AssertExpectations(t)
}

func TestSetLastMessageRestoresOrder(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	base := time.Now()
	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "a"}, {ID: "b"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "a").Return(lastMsg("m1", base), nil).Once()
	api.On("LastMessage", mock.Anything, "b").Return(lastMsg("m2", base.Add(-time.Hour)), nil).Once()
	api.On("ChunkCount", mock.Anything, mock.Anything).Return(1, nil)

	require.NoError(t, d.Load(context.Background()))
	require.Equal(t, []string{"a", "b"}, roomIDs(d.Rooms()))

	notified := 0
	d.OnChange(func() { notified++ })

	d.SetLastMessage("b", lastMsg("m3", base.Add(time.Minute)))

	assert.Equal(t, []string{"b", "a"}, roomIDs(d.Rooms()))
	assert.Equal(t, 1, notified)
}

func TestLoadKeepsDegradedRoomOnEnrichmentFailure(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "ok"}, {ID: "broken"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "ok").Return(lastMsg("m1", time.Now()), nil).Once()
	api.On("LastMessage", mock.Anything, "broken").Return(domain.Message{}, assert.AnError).Once()
	api.On("ChunkCount", mock.Anything, "ok").Return(2, nil).Once()

	require.NoError(t, d.Load(context.Background()))

	rooms := d.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, []string{"ok", "broken"}, roomIDs(rooms))
	assert.True(t, rooms[1].Degraded)
}

func TestLoadFailsWhenRoomListFails(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	api.On("Rooms", mock.Anything).Return(nil, assert.AnError).Once()

	require.Error(t, d.Load(context.Background()))
	assert.False(t, d.Loaded())
}

func TestApplyReadReceiptOnLastMessageIsIdempotent(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "a"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "a").Return(lastMsg("m1", time.Now()), nil).Once()
	api.On("ChunkCount", mock.Anything, "a").Return(1, nil).Once()
	require.NoError(t, d.Load(context.Background()))

	receipt := domain.ReadEvent{
		RoomID:     "a",
		ReadBy:     domain.ReadBy{Participant: me, ReadAt: time.Now()},
		MessageIDs: []string{"m1"},
	}
	d.ApplyReadReceipt("a", receipt)
	d.ApplyReadReceipt("a", receipt)

	rooms := d.Rooms()
	require.Len(t, rooms, 1)
	assert.Len(t, rooms[0].LastMessage.ReadBy, 1)
}

func TestApplyReadReceiptIgnoresOtherMessages(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "a"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "a").Return(lastMsg("m1", time.Now()), nil).Once()
	api.On("ChunkCount", mock.Anything, "a").Return(1, nil).Once()
	require.NoError(t, d.Load(context.Background()))

	d.ApplyReadReceipt("a", domain.ReadEvent{
		RoomID:     "a",
		ReadBy:     domain.ReadBy{Participant: me, ReadAt: time.Now()},
		MessageIDs: []string{"something-older"},
	})

	assert.Empty(t, d.Rooms()[0].LastMessage.ReadBy)
}

func TestPagingCursor(t *testing.T) {
	api := new(mocks.APIMock)
	d := New(api, logger.NewNop())

	api.On("Rooms", mock.Anything).Return([]domain.Room{{ID: "a"}}, nil).Once()
	api.On("LastMessage", mock.Anything, "a").Return(lastMsg("m1", time.Now()), nil).Once()
	api.On("ChunkCount", mock.Anything, "a").Return(7, nil).Once()
	require.NoError(t, d.Load(context.Background()))

	cursor, err := d.PagingCursor("a")
	require.NoError(t, err)
	assert.Equal(t, 7, cursor)

	_, err = d.PagingCursor("missing")
	assert.ErrorIs(t, err, chatsync_errors.ErrRoomNotFound)
}
