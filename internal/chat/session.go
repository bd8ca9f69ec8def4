package chat

import (
	"context"
	"sync"

	"chatsync/internal/directory"
	"chatsync/internal/domain"
	"chatsync/internal/outbound"
	"chatsync/internal/router"
	"chatsync/internal/timeline"
	"chatsync/pkg/logger"
)

// API is the full REST surface a chat session consumes, the union of what
// the directory, the timelines and the send pipeline need.
type API interface {
	directory.API
	timeline.API
	outbound.API
}

// Broker is the pub-sub session the chat session rides on.
type Broker interface {
	router.Session
	Run(ctx context.Context)
}

// Session owns the synchronized client-side state of one authenticated chat
// user: the room directory, the per-room timelines currently open, the send
// pipeline and the inbound router. All mutations of that state flow through
// the five entry points of its components; nothing else touches it.
type Session struct {
	user      domain.ChatUser
	api       API
	broker    Broker
	log       *logger.Logger
	directory *directory.Directory
	ledger    *outbound.Ledger
	pipeline  *outbound.Pipeline
	router    *router.Router

	mu        sync.Mutex
	timelines map[string]*timeline.Timeline
}

// New wires a session together. notify receives the one-shot user-facing
// error of each failed send and may be nil.
func New(user domain.ChatUser, api API, broker Broker, notify outbound.Notifier, log *logger.Logger) *Session {
	s := &Session{
		user:      user,
		api:       api,
		broker:    broker,
		log:       log,
		timelines: make(map[string]*timeline.Timeline),
	}
	s.directory = directory.New(api, log)
	s.ledger = outbound.NewLedger()
	s.pipeline = outbound.NewPipeline(api, s.ledger, s.directory, user, notify, log)
	s.router = router.New(user.ID, broker, s.ledger, s.resolveTimeline, s.directory, log)
	return s
}

// Start brings the broker session up in the background, hooks the router
// into it and loads the room directory. The broker keeps reconnecting on its
// own until the context is cancelled.
func (s *Session) Start(ctx context.Context) error {
	go s.broker.Run(ctx)
	s.router.Start()
	return s.directory.Load(ctx)
}

// User returns the authenticated chat user.
func (s *Session) User() domain.ChatUser {
	return s.user
}

// Directory exposes the room directory for read access and change
// subscription.
func (s *Session) Directory() *directory.Directory {
	return s.directory
}

// OpenRoom loads (or returns the already open) timeline for a room, starting
// at the room's paging cursor.
func (s *Session) OpenRoom(ctx context.Context, roomID string) (*timeline.Timeline, error) {
	s.mu.Lock()
	if tl, ok := s.timelines[roomID]; ok {
		s.mu.Unlock()
		return tl, nil
	}
	s.mu.Unlock()

	cursor, err := s.directory.PagingCursor(roomID)
	if err != nil {
		return nil, err
	}

	tl := timeline.New(roomID, s.user.ID, cursor, s.api, s.log)
	if err := tl.Load(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.timelines[roomID]; ok {
		// Someone opened the room while we were loading.
		s.mu.Unlock()
		return existing, nil
	}
	s.timelines[roomID] = tl
	s.mu.Unlock()
	return tl, nil
}

// CloseRoom forgets a room's timeline. Broker events for the room keep
// updating the directory but are no longer applied to a timeline; in-flight
// fetches are not aborted, their results simply have nowhere to land.
func (s *Session) CloseRoom(roomID string) {
	s.mu.Lock()
	delete(s.timelines, roomID)
	s.mu.Unlock()
}

// Send dispatches a message into a room through the outbound pipeline. The
// room must be open: the optimistic placeholder lives in its timeline.
func (s *Session) Send(ctx context.Context, roomID string, content interface{}, kind domain.MessageKind) error {
	s.mu.Lock()
	tl, ok := s.timelines[roomID]
	s.mu.Unlock()
	if !ok {
		var err error
		tl, err = s.OpenRoom(ctx, roomID)
		if err != nil {
			return err
		}
	}
	return s.pipeline.Send(ctx, roomID, tl, content, kind)
}

// Stop releases the router's broker subscriptions. The broker connection
// itself dies with the context passed to Start.
func (s *Session) Stop() {
	s.router.Stop()
}

func (s *Session) resolveTimeline(roomID string) router.TimelineSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tl, ok := s.timelines[roomID]; ok {
		return tl
	}
	return nil
}
