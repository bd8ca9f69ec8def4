package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatsync/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
)

// ConnState is the observable state of the broker connection. Errors are
// reported through state transitions, never through return values of
// Subscribe or Publish.
type ConnState string

const (
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateDisconnected ConnState = "DISCONNECTED"
)

// Frame is the wire envelope exchanged with the broker.
type Frame struct {
	Type        string          `json:"type"`
	ID          string          `json:"id,omitempty"`
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body,omitempty"`
}

const (
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	frameSend        = "send"
	frameMessage     = "message"
)

// Handler receives each frame body delivered on a subscribed destination.
type Handler func(body []byte)

// Subscription is the handle returned by Subscribe. It is only valid for the
// connection it was created on; after a reconnect the subscriber must
// subscribe again.
type Subscription struct {
	id          string
	destination string
}

// StateListener observes connection state transitions.
type StateListener func(state ConnState)

// Session maintains one long-lived pub-sub connection to the broker. It
// reconnects on its own with a fixed delay, but deliberately does not
// re-establish subscriptions: that is the subscriber's job on every
// transition to connected.
type Session struct {
	url            string
	header         http.Header
	heartbeat      time.Duration
	reconnectDelay time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	send      chan []byte
	state     ConnState
	subs      map[string]*subscription
	listeners []StateListener
}

type subscription struct {
	id          string
	destination string
	handler     Handler
}

func NewSession(url string, header http.Header, heartbeat, reconnectDelay time.Duration, log *logger.Logger) *Session {
	return &Session{
		url:            url,
		header:         header,
		heartbeat:      heartbeat,
		reconnectDelay: reconnectDelay,
		log:            log,
		state:          StateConnecting,
		subs:           make(map[string]*subscription),
	}
}

// OnStateChange registers a listener for connection state transitions. The
// listener is invoked synchronously with the transition.
func (s *Session) OnStateChange(l StateListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run connects and keeps the session alive until the context is cancelled.
// Every drop, including a missed heartbeat, goes through the same fixed-delay
// reconnection path.
func (s *Session) Run(ctx context.Context) {
	for {
		s.setState(StateConnecting)

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			s.log.Warn("broker dial failed", zap.Error(err))
			s.setState(StateDisconnected)
		} else {
			s.attach(conn)
			s.setState(StateConnected)
			s.pump(ctx, conn)
			s.detach()
			s.setState(StateDisconnected)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

// Subscribe registers a handler for a destination. It returns nil when the
// session is not connected; the caller must treat nil as "not yet
// subscribed" and retry after the next connected transition.
func (s *Session) Subscribe(destination string, handler Handler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return nil
	}

	sub := &subscription{
		id:          uuid.NewString(),
		destination: destination,
		handler:     handler,
	}
	s.subs[sub.id] = sub
	s.enqueue(Frame{Type: frameSubscribe, ID: sub.id, Destination: destination})

	return &Subscription{id: sub.id, destination: destination}
}

// Unsubscribe removes a subscription. It is idempotent and accepts nil.
func (s *Session) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.id]; !ok {
		return
	}
	delete(s.subs, sub.id)
	if s.state == StateConnected {
		s.enqueue(Frame{Type: frameUnsubscribe, ID: sub.id, Destination: sub.destination})
	}
}

// Publish sends a fire-and-forget frame. It silently no-ops when
// disconnected; anything needing guaranteed delivery goes through REST.
func (s *Session) Publish(destination string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return
	}
	s.enqueue(Frame{Type: frameSend, Destination: destination, Body: body})
}

// attach installs a fresh connection and its outbound queue.
func (s *Session) attach(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.send = make(chan []byte, 256)
	s.mu.Unlock()
}

// detach clears the connection and the subscription registry. Subscriptions
// do not survive a drop.
func (s *Session) detach() {
	s.mu.Lock()
	s.conn = nil
	s.send = nil
	s.subs = make(map[string]*subscription)
	s.mu.Unlock()
}

// enqueue marshals and queues a frame for the write pump. Callers hold s.mu.
func (s *Session) enqueue(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error("frame marshal failed", zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	default:
		s.log.Warn("outbound frame dropped, queue full", zap.String("destination", f.Destination))
	}
}

// pump runs the read and write loops until the connection dies or the
// context is cancelled.
func (s *Session) pump(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})

	go s.writePump(ctx, conn, done)
	s.readPump(conn)

	<-done
}

func (s *Session) readPump(conn *websocket.Conn) {
	pongWait := 2 * s.heartbeat

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("broker connection lost", zap.Error(err))
			}
			return
		}
		s.dispatch(data)
	}
}

func (s *Session) writePump(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	s.mu.Lock()
	send := s.send
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				conn.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// dispatch routes an inbound frame to the handlers subscribed to its
// destination.
func (s *Session) dispatch(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("unreadable broker frame dropped", zap.Error(err))
		return
	}
	if f.Type != frameMessage {
		return
	}

	s.mu.Lock()
	var handlers []Handler
	for _, sub := range s.subs {
		if sub.destination == f.Destination {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(f.Body)
	}
}

func (s *Session) setState(state ConnState) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	listeners := make([]StateListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
}
