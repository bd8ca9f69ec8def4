package router

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"chatsync/internal/domain"
	"chatsync/internal/observability"
	"chatsync/internal/outbound"
	"chatsync/internal/transport"
	"chatsync/pkg/logger"
)

// Session is the slice of the transport session the router needs.
type Session interface {
	Subscribe(destination string, handler transport.Handler) *transport.Subscription
	Unsubscribe(sub *transport.Subscription)
	OnStateChange(l transport.StateListener)
}

// TimelineSink is the timeline surface the router mutates.
type TimelineSink interface {
	ApplyInbound(msg domain.Message) bool
	ApplyReadReceipt(receipt domain.ReadEvent)
}

// TimelineResolver returns the open timeline for a room, or nil when the
// room is not open; events for unopened rooms still reach the directory.
type TimelineResolver func(roomID string) TimelineSink

// DirectorySink is the directory surface the router mutates.
type DirectorySink interface {
	SetLastMessage(roomID string, msg domain.Message)
	ApplyReadReceipt(roomID string, receipt domain.ReadEvent)
}

// Router bridges the current user's two broker inbox topics into directory
// and timeline mutations. The transport does not resurrect subscriptions
// after a drop, so the router re-subscribes on every connected transition.
type Router struct {
	userID    int64
	session   Session
	ledger    *outbound.Ledger
	timelines TimelineResolver
	directory DirectorySink
	log       *logger.Logger

	mu         sync.Mutex
	messageSub *transport.Subscription
	readSub    *transport.Subscription
}

func New(userID int64, session Session, ledger *outbound.Ledger, timelines TimelineResolver, directory DirectorySink, log *logger.Logger) *Router {
	return &Router{
		userID:    userID,
		session:   session,
		ledger:    ledger,
		timelines: timelines,
		directory: directory,
		log:       log,
	}
}

// Start hooks the router into the session's lifecycle and subscribes right
// away if the session is already connected.
func (r *Router) Start() {
	r.session.OnStateChange(func(state transport.ConnState) {
		observability.SetBrokerConnected(state == transport.StateConnected)
		switch state {
		case transport.StateConnected:
			observability.IncBrokerReconnect()
			r.subscribe()
		case transport.StateDisconnected:
			r.dropSubscriptions()
		}
	})
	r.subscribe()
}

// Stop releases the inbox subscriptions.
func (r *Router) Stop() {
	r.mu.Lock()
	messageSub, readSub := r.messageSub, r.readSub
	r.messageSub, r.readSub = nil, nil
	r.mu.Unlock()

	r.session.Unsubscribe(messageSub)
	r.session.Unsubscribe(readSub)
}

// subscribe (re-)establishes both inbox subscriptions. A nil handle means
// the session is not connected yet; the next connected transition retries.
func (r *Router) subscribe() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.messageSub == nil {
		r.messageSub = r.session.Subscribe(domain.InboxTopic(r.userID), r.handleMessageFrame)
	}
	if r.readSub == nil {
		r.readSub = r.session.Subscribe(domain.ReadTopic(r.userID), r.handleReadFrame)
	}
}

func (r *Router) dropSubscriptions() {
	r.mu.Lock()
	r.messageSub = nil
	r.readSub = nil
	r.mu.Unlock()
}

func (r *Router) handleMessageFrame(body []byte) {
	var event domain.MessageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		r.log.Warn("undecodable message event dropped", zap.Error(err))
		observability.IncFrame("inbox", "dropped")
		return
	}
	observability.IncFrame("inbox", "decoded")

	received := event.Message
	received.Status = domain.DeliveryStatusDelivered

	// The sender's own echo is identified by its request id still sitting in
	// the pending ledger. Claiming the entry suppresses the duplicate insert;
	// the REST response keeps the in-place placeholder replacement.
	if !r.ledger.Claim(event.RequestID) {
		if tl := r.timelines(event.RoomID); tl != nil {
			tl.ApplyInbound(received)
		}
	}
	r.directory.SetLastMessage(event.RoomID, received)
}

func (r *Router) handleReadFrame(body []byte) {
	var event domain.ReadEvent
	if err := json.Unmarshal(body, &event); err != nil {
		r.log.Warn("undecodable read event dropped", zap.Error(err))
		observability.IncFrame("read", "dropped")
		return
	}
	observability.IncFrame("read", "decoded")

	if tl := r.timelines(event.RoomID); tl != nil {
		tl.ApplyReadReceipt(event)
	}
	r.directory.ApplyReadReceipt(event.RoomID, event)
}
