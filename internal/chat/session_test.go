package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chatsync/internal/domain"
	"chatsync/internal/mocks"
	"chatsync/internal/transport"
	"chatsync/pkg/logger"
)

var _ API = (*mocks.APIMock)(nil)

var (
	me    = domain.ChatUser{ID: 1, Username: "me"}
	alice = domain.ChatUser{ID: 2, Username: "alice"}
)

// fakeBroker is an always-connected broker the test feeds frames into.
type fakeBroker struct {
	handlers map[string]transport.Handler
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]transport.Handler)}
}

func (b *fakeBroker) Run(ctx context.Context) { <-ctx.Done() }

func (b *fakeBroker) Subscribe(destination string, handler transport.Handler) *transport.Subscription {
	b.handlers[destination] = handler
	return &transport.Subscription{}
}

func (b *fakeBroker) Unsubscribe(sub *transport.Subscription) {}

func (b *fakeBroker) OnStateChange(l transport.StateListener) {}

func (b *fakeBroker) deliver(t *testing.T, topic string, payload interface{}) {
	t.Helper()
	handler, ok := b.handlers[topic]
	require.True(t, ok, "no handler on %s", topic)
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	handler(data)
}

func roomFixture() domain.Room {
	return domain.Room{
		ID:           "r1",
		Type:         domain.RoomTypePrivate,
		Participants: []domain.ChatUser{me, alice},
	}
}

func startedSession(t *testing.T, api *mocks.APIMock) (*Session, *fakeBroker) {
	t.Helper()
	api.On("Rooms", mock.Anything).Return([]domain.Room{roomFixture()}, nil)
	api.On("LastMessage", mock.Anything, "r1").
		Return(domain.Message{ID: "m0", Body: "earlier", SentBy: alice, CreatedAt: time.Now().Add(-time.Hour), Kind: domain.MessageKindText}, nil)
	api.On("ChunkCount", mock.Anything, "r1").Return(1, nil)
	api.On("Messages", mock.Anything, "r1", 1).Return([]domain.Message{}, nil)

	broker := newFakeBroker()
	session := New(me, api, broker, nil, logger.NewNop())
	require.NoError(t, session.Start(context.Background()))
	return session, broker
}

func TestEchoBeforeResponseInsertsExactlyOnce(t *testing.T) {
	api := &mocks.APIMock{}
	session, broker := startedSession(t, api)

	canonical := domain.Message{ID: "m1", Body: "hi", Kind: domain.MessageKindText}
	api.On("SendText", mock.Anything, "r1", mock.Anything, "hi").
		Run(func(args mock.Arguments) {
			// The broker echo lands while the REST call is still in flight.
			broker.deliver(t, domain.InboxTopic(me.ID), domain.MessageEvent{
				RoomID:    "r1",
				Message:   canonical,
				RequestID: args.String(2),
			})
		}).
		Return(domain.MessageEvent{RoomID: "r1", Message: canonical}, nil)

	tl, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)

	require.NoError(t, session.Send(context.Background(), "r1", "hi", domain.MessageKindText))

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, domain.DeliveryStatusDelivered, msgs[0].Status)
	assert.Equal(t, me.ID, msgs[0].SentBy.ID)
}

func TestEchoAfterResponseInsertsExactlyOnce(t *testing.T) {
	api := &mocks.APIMock{}
	session, broker := startedSession(t, api)

	canonical := domain.Message{ID: "m1", Body: "hi", Kind: domain.MessageKindText}
	api.On("SendText", mock.Anything, "r1", mock.Anything, "hi").
		Return(domain.MessageEvent{RoomID: "r1", Message: canonical}, nil)

	tl, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)
	require.NoError(t, session.Send(context.Background(), "r1", "hi", domain.MessageKindText))

	// The echo arrives after the response already resolved the placeholder.
	// Its ledger entry is gone, so it is deduplicated by message id instead.
	broker.deliver(t, domain.InboxTopic(me.ID), domain.MessageEvent{
		RoomID:    "r1",
		Message:   canonical,
		RequestID: "already-claimed",
	})

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestInboundMessageReachesOpenTimelineAndDirectory(t *testing.T) {
	api := &mocks.APIMock{}
	session, broker := startedSession(t, api)

	tl, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)

	incoming := domain.Message{ID: "m2", Body: "hey", SentBy: alice, CreatedAt: time.Now(), Kind: domain.MessageKindText}
	broker.deliver(t, domain.InboxTopic(me.ID), domain.MessageEvent{
		RoomID:    "r1",
		Message:   incoming,
		RequestID: "their-request",
	})

	msgs := tl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)

	room, err := session.Directory().Room("r1")
	require.NoError(t, err)
	assert.Equal(t, "m2", room.LastMessage.ID)
}

func TestClosedRoomStopsReceivingTimelineEvents(t *testing.T) {
	api := &mocks.APIMock{}
	session, broker := startedSession(t, api)

	tl, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)
	session.CloseRoom("r1")

	broker.deliver(t, domain.InboxTopic(me.ID), domain.MessageEvent{
		RoomID:    "r1",
		Message:   domain.Message{ID: "m3", SentBy: alice},
		RequestID: "their-request",
	})

	// The stale timeline is untouched but the directory still advances.
	assert.Empty(t, tl.Messages())
	room, err := session.Directory().Room("r1")
	require.NoError(t, err)
	assert.Equal(t, "m3", room.LastMessage.ID)
}

func TestOpenRoomIsIdempotent(t *testing.T) {
	api := &mocks.APIMock{}
	session, _ := startedSession(t, api)

	first, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)
	second, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	api.AssertNumberOfCalls(t, "Messages", 1)
}

func TestSendOpensRoomWhenNeeded(t *testing.T) {
	api := &mocks.APIMock{}
	session, _ := startedSession(t, api)

	canonical := domain.Message{ID: "m1", Body: "hi", Kind: domain.MessageKindText}
	api.On("SendText", mock.Anything, "r1", mock.Anything, "hi").
		Return(domain.MessageEvent{RoomID: "r1", Message: canonical}, nil)

	require.NoError(t, session.Send(context.Background(), "r1", "hi", domain.MessageKindText))

	tl, err := session.OpenRoom(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, tl.Messages(), 1)
}
