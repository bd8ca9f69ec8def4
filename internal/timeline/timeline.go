package timeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chatsync/internal/domain"
	"chatsync/internal/observability"
	chatsync_errors "chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// API is the slice of the REST client the timeline needs.
type API interface {
	Messages(ctx context.Context, roomID string, chunk int) ([]domain.Message, error)
	MarkRead(ctx context.Context, roomID string, messageIDs []string) error
}

// chunk is one server page of a room's history. Only the most recent loaded
// chunk is ever mutated by live events or optimistic sends.
type chunk struct {
	number   int
	messages []*domain.Message
}

// Timeline is the reconciled, paginated message log for one open room. It
// merges three asynchronous inputs that may complete in any order: chunk
// fetches, the REST response of the user's own sends, and broker events.
// Messages are held by pointer so a placeholder can be resolved in place by
// identity, the same way the source of truth replaces it.
type Timeline struct {
	roomID   string
	userID   int64
	topChunk int
	api      API
	log      *logger.Logger

	mu        sync.Mutex
	chunks    []*chunk
	oldest    int
	newest    int
	exhausted bool // an older fetch came back empty
	deferred  []domain.ReadEvent
	observers []func()
}

// New creates a timeline for one room. topChunk is the room's paging cursor:
// the most recent chunk number, where the initial load starts.
func New(roomID string, userID int64, topChunk int, api API, log *logger.Logger) *Timeline {
	if topChunk < 1 {
		topChunk = 1
	}
	return &Timeline{
		roomID:   roomID,
		userID:   userID,
		topChunk: topChunk,
		api:      api,
		log:      log,
	}
}

// OnChange registers an observer invoked after every mutation, outside the
// timeline's lock.
func (t *Timeline) OnChange(fn func()) {
	t.mu.Lock()
	t.observers = append(t.observers, fn)
	t.mu.Unlock()
}

// Load fetches the most recent chunk, arriving at the bottom of the
// conversation, then reports any unread messages in it as read. A fetch
// failure leaves the timeline untouched; retry is the caller's call.
func (t *Timeline) Load(ctx context.Context) error {
	msgs, err := t.fetch(ctx, t.topChunk)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.chunks = []*chunk{toChunk(t.topChunk, msgs)}
	t.oldest = t.topChunk
	t.newest = t.topChunk
	unread := t.unreadLocked()
	t.mu.Unlock()

	t.notify()
	t.reportRead(ctx, unread)
	return nil
}

// LoadOlder prepends the chunk before the oldest loaded one. At chunk 1, or
// once an older fetch has come back empty, it reports no more pages without
// touching the network.
func (t *Timeline) LoadOlder(ctx context.Context) error {
	t.mu.Lock()
	if t.oldest <= 1 || t.exhausted {
		t.mu.Unlock()
		return chatsync_errors.ErrNoMorePages
	}
	target := t.oldest - 1
	t.mu.Unlock()

	msgs, err := t.fetch(ctx, target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if target != t.oldest-1 {
		// A concurrent load already covered this chunk.
		t.mu.Unlock()
		return nil
	}
	if len(msgs) == 0 {
		t.exhausted = true
		t.mu.Unlock()
		return chatsync_errors.ErrNoMorePages
	}
	t.chunks = append([]*chunk{toChunk(target, msgs)}, t.chunks...)
	t.oldest = target
	t.mu.Unlock()

	t.notify()
	return nil
}

// LoadNewer appends the chunk after the newest loaded one, for timelines
// resumed from a mid-history position. At the room's top cursor it reports no
// more pages without a network call.
func (t *Timeline) LoadNewer(ctx context.Context) error {
	t.mu.Lock()
	if t.newest >= t.topChunk {
		t.mu.Unlock()
		return chatsync_errors.ErrNoMorePages
	}
	target := t.newest + 1
	t.mu.Unlock()

	msgs, err := t.fetch(ctx, target)
	if err != nil {
		return err
	}

	t.mu.Lock()
	if target != t.newest+1 {
		t.mu.Unlock()
		return nil
	}
	t.chunks = append(t.chunks, toChunk(target, msgs))
	t.newest = target
	unread := t.unreadLocked()
	t.mu.Unlock()

	t.notify()
	t.reportRead(ctx, unread)
	return nil
}

// AppendLocal inserts an optimistic placeholder at the bottom of the
// conversation. It runs synchronously at send time, before any network call,
// so every later completion observes the placeholder.
func (t *Timeline) AppendLocal(msg *domain.Message) {
	t.mu.Lock()
	t.latestLocked().messages = append(t.latestLocked().messages, msg)
	t.mu.Unlock()

	t.notify()
}

// Resolve replaces a placeholder, matched by identity, with the canonical
// message returned by the REST send. Receipts that raced the send are drained
// against the now-known id.
func (t *Timeline) Resolve(placeholder *domain.Message, canonical domain.Message) {
	t.mu.Lock()
	*placeholder = canonical
	deferred := t.deferred
	t.deferred = nil
	for _, receipt := range deferred {
		t.applyReceiptLocked(receipt)
	}
	t.mu.Unlock()

	t.notify()
}

// MarkUndelivered flags a failed send in place. The message stays visible
// with its original content; a retry is a brand-new send.
func (t *Timeline) MarkUndelivered(placeholder *domain.Message) {
	t.mu.Lock()
	placeholder.Status = domain.DeliveryStatusUndelivered
	t.mu.Unlock()

	t.notify()
}

// ApplyInbound appends a message delivered by the broker for another
// participant (echoes of the user's own sends are suppressed upstream by the
// pending-request ledger). A message whose id is already present in a loaded
// chunk is dropped, which also covers the echo that slips in after its REST
// response already resolved the placeholder.
func (t *Timeline) ApplyInbound(msg domain.Message) bool {
	msg.Status = domain.DeliveryStatusDelivered

	t.mu.Lock()
	if msg.ID != "" && t.findLocked(msg.ID) != nil {
		t.mu.Unlock()
		return false
	}
	m := msg
	t.latestLocked().messages = append(t.latestLocked().messages, &m)
	t.mu.Unlock()

	observability.IncMessageReceived()
	t.notify()
	return true
}

// ApplyReadReceipt marks every loaded message named by the receipt as read by
// the event's reader, idempotently. Ids that match nothing while a send is
// still pending are buffered until the placeholder resolves to its canonical
// id; receipts for chunks that are simply not loaded are dropped, they become
// visible when the chunk loads.
func (t *Timeline) ApplyReadReceipt(receipt domain.ReadEvent) {
	t.mu.Lock()
	matched := t.applyReceiptLocked(receipt)
	if missed := len(receipt.MessageIDs) - matched; missed > 0 && t.pendingLocked() {
		t.deferred = append(t.deferred, receipt)
	}
	t.mu.Unlock()

	observability.IncReceiptApplied()
	t.notify()
}

// Messages returns a snapshot of all loaded messages in ascending time
// order.
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []domain.Message
	for _, c := range t.chunks {
		for _, m := range c.messages {
			out = append(out, *m)
		}
	}
	return out
}

// UnreadIDs returns the ids of messages in the most recent chunk that the
// current user has not read, newest first.
func (t *Timeline) UnreadIDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unreadLocked()
}

func (t *Timeline) fetch(ctx context.Context, number int) ([]domain.Message, error) {
	msgs, err := t.api.Messages(ctx, t.roomID, number)
	if err != nil {
		return nil, fmt.Errorf("load chunk %d of %s: %w", number, t.roomID, err)
	}
	return msgs, nil
}

// unreadLocked scans the most recent chunk from newest to oldest, collecting
// messages not sent and not yet read by the current user. Read state is
// contiguous by recency, so the scan stops at the first message the user has
// already read.
func (t *Timeline) unreadLocked() []string {
	if len(t.chunks) == 0 {
		return nil
	}
	latest := t.chunks[len(t.chunks)-1].messages

	var unread []string
	for i := len(latest) - 1; i >= 0; i-- {
		msg := latest[i]
		if msg.SentBy.ID == t.userID {
			continue
		}
		if msg.IsReadBy(t.userID) {
			break
		}
		if msg.ID != "" {
			unread = append(unread, msg.ID)
		}
	}
	return unread
}

func (t *Timeline) reportRead(ctx context.Context, messageIDs []string) {
	if len(messageIDs) == 0 {
		return
	}
	if err := t.api.MarkRead(ctx, t.roomID, messageIDs); err != nil {
		t.log.Warn("mark read failed",
			zap.String("room_id", t.roomID), zap.Int("count", len(messageIDs)), zap.Error(err))
	}
}

func (t *Timeline) applyReceiptLocked(receipt domain.ReadEvent) int {
	matched := 0
	for _, id := range receipt.MessageIDs {
		if msg := t.findLocked(id); msg != nil {
			msg.MarkReadBy(receipt.ReadBy)
			matched++
		}
	}
	return matched
}

func (t *Timeline) findLocked(id string) *domain.Message {
	for _, c := range t.chunks {
		for _, m := range c.messages {
			if m.ID == id {
				return m
			}
		}
	}
	return nil
}

// pendingLocked reports whether any optimistic send is still awaiting its
// canonical id.
func (t *Timeline) pendingLocked() bool {
	for _, c := range t.chunks {
		for _, m := range c.messages {
			if m.Status == domain.DeliveryStatusSending {
				return true
			}
		}
	}
	return false
}

// latestLocked returns the most recent chunk, creating it when nothing is
// loaded yet so a send into a fresh room still lands somewhere.
func (t *Timeline) latestLocked() *chunk {
	if len(t.chunks) == 0 {
		c := &chunk{number: t.topChunk}
		t.chunks = append(t.chunks, c)
		t.oldest = t.topChunk
		t.newest = t.topChunk
	}
	return t.chunks[len(t.chunks)-1]
}

func toChunk(number int, msgs []domain.Message) *chunk {
	c := &chunk{number: number, messages: make([]*domain.Message, 0, len(msgs))}
	for i := range msgs {
		m := msgs[i]
		m.Status = domain.DeliveryStatusDelivered
		c.messages = append(c.messages, &m)
	}
	return c
}

func (t *Timeline) notify() {
	t.mu.Lock()
	observers := make([]func(), len(t.observers))
	copy(observers, t.observers)
	t.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
