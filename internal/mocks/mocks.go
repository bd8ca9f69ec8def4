package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chatsync/internal/domain"
)

// APIMock mocks the full REST surface consumed by a chat session.
type APIMock struct {
	mock.Mock
}

func (m *APIMock) Rooms(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	var rooms []domain.Room
	if val := args.Get(0); val != nil {
		rooms = val.([]domain.Room)
	}
	return rooms, args.Error(1)
}

func (m *APIMock) LastMessage(ctx context.Context, roomID string) (domain.Message, error) {
	args := m.Called(ctx, roomID)
	var msg domain.Message
	if val := args.Get(0); val != nil {
		msg = val.(domain.Message)
	}
	return msg, args.Error(1)
}

func (m *APIMock) ChunkCount(ctx context.Context, roomID string) (int, error) {
	args := m.Called(ctx, roomID)
	return args.Int(0), args.Error(1)
}

func (m *APIMock) Messages(ctx context.Context, roomID string, chunk int) ([]domain.Message, error) {
	args := m.Called(ctx, roomID, chunk)
	var msgs []domain.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]domain.Message)
	}
	return msgs, args.Error(1)
}

func (m *APIMock) MarkRead(ctx context.Context, roomID string, messageIDs []string) error {
	args := m.Called(ctx, roomID, messageIDs)
	return args.Error(0)
}

func (m *APIMock) SendText(ctx context.Context, roomID, requestID, text string) (domain.MessageEvent, error) {
	args := m.Called(ctx, roomID, requestID, text)
	var sent domain.MessageEvent
	if val := args.Get(0); val != nil {
		sent = val.(domain.MessageEvent)
	}
	return sent, args.Error(1)
}

func (m *APIMock) SendMedia(ctx context.Context, roomID, requestID string, kind domain.MessageKind, media []byte) (domain.MessageEvent, error) {
	args := m.Called(ctx, roomID, requestID, kind, media)
	var sent domain.MessageEvent
	if val := args.Get(0); val != nil {
		sent = val.(domain.MessageEvent)
	}
	return sent, args.Error(1)
}
