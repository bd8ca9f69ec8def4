package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"chatsync/internal/domain"
	chatsync_errors "chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// API is the slice of the REST client the directory needs.
type API interface {
	Rooms(ctx context.Context) ([]domain.Room, error)
	LastMessage(ctx context.Context, roomID string) (domain.Message, error)
	ChunkCount(ctx context.Context, roomID string) (int, error)
}

// Directory is the authoritative client-side cache of the current user's
// room list, ordered by last-message recency. It is one of the two shared
// states of a chat session; only the exported methods below may mutate it.
type Directory struct {
	api API
	log *logger.Logger

	mu        sync.Mutex
	rooms     []domain.Room
	loaded    bool
	observers []func()
}

func New(api API, log *logger.Logger) *Directory {
	return &Directory{api: api, log: log}
}

// OnChange registers an observer invoked after every mutation, outside the
// directory's lock. UI layers subscribe here instead of polling.
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	d.observers = append(d.observers, fn)
	d.mu.Unlock()
}

// Load fetches the room list, then enriches every room concurrently with its
// last message and chunk count. A room whose enrichment fails stays listed
// but is flagged degraded with a zero-valued last message; only a failure of
// the room list itself fails the whole load.
func (d *Directory) Load(ctx context.Context) error {
	rooms, err := d.api.Rooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func(room *domain.Room) {
			defer wg.Done()
			d.enrich(ctx, room)
		}(&rooms[i])
	}
	wg.Wait()

	d.mu.Lock()
	d.rooms = rooms
	d.loaded = true
	d.sortLocked()
	d.mu.Unlock()

	d.notify()
	return nil
}

func (d *Directory) enrich(ctx context.Context, room *domain.Room) {
	last, err := d.api.LastMessage(ctx, room.ID)
	if err != nil {
		d.log.Warn("room enrichment failed, keeping degraded room",
			zap.String("room_id", room.ID), zap.Error(err))
		room.Degraded = true
		room.ChunkCount = 1
		return
	}
	last.Status = domain.DeliveryStatusDelivered
	room.LastMessage = last

	count, err := d.api.ChunkCount(ctx, room.ID)
	if err != nil {
		d.log.Warn("chunk count fetch failed, keeping degraded room",
			zap.String("room_id", room.ID), zap.Error(err))
		room.Degraded = true
		room.ChunkCount = 1
		return
	}
	room.ChunkCount = count
}

// Loaded reports whether an initial Load has completed.
func (d *Directory) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Rooms returns a snapshot of the room list, most recent conversation first.
func (d *Directory) Rooms() []domain.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.Room, len(d.rooms))
	copy(out, d.rooms)
	return out
}

// Room returns a snapshot of one room.
func (d *Directory) Room(roomID string) (domain.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range d.rooms {
		if r.ID == roomID {
			return r, nil
		}
	}
	return domain.Room{}, chatsync_errors.ErrRoomNotFound
}

// PagingCursor returns the room's most-recent chunk number. Timelines start
// paging here.
func (d *Directory) PagingCursor(roomID string) (int, error) {
	room, err := d.Room(roomID)
	if err != nil {
		return 0, err
	}
	if room.ChunkCount < 1 {
		return 1, nil
	}
	return room.ChunkCount, nil
}

// SetLastMessage replaces a room's last message and restores the recency
// order. Called after every successful send and every inbound message event.
func (d *Directory) SetLastMessage(roomID string, msg domain.Message) {
	d.mu.Lock()
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			d.rooms[i].LastMessage = msg
			d.rooms[i].Degraded = false
			break
		}
	}
	d.sortLocked()
	d.mu.Unlock()

	d.notify()
}

// ApplyReadReceipt marks the room's last message as read by the event's
// reader when the receipt names it. Duplicate application is a no-op.
func (d *Directory) ApplyReadReceipt(roomID string, receipt domain.ReadEvent) {
	d.mu.Lock()
	changed := false
	for i := range d.rooms {
		if d.rooms[i].ID != roomID {
			continue
		}
		for _, id := range receipt.MessageIDs {
			if id == d.rooms[i].LastMessage.ID && d.rooms[i].LastMessage.ID != "" {
				before := len(d.rooms[i].LastMessage.ReadBy)
				d.rooms[i].LastMessage.MarkReadBy(receipt.ReadBy)
				changed = len(d.rooms[i].LastMessage.ReadBy) != before
				break
			}
		}
		break
	}
	d.mu.Unlock()

	if changed {
		d.notify()
	}
}

// sortLocked orders rooms with the most recent conversation first. Degraded
// rooms have a zero last message and sink to the bottom.
func (d *Directory) sortLocked() {
	sort.SliceStable(d.rooms, func(i, j int) bool {
		return d.rooms[i].LastMessage.CreatedAt.After(d.rooms[j].LastMessage.CreatedAt)
	})
}

func (d *Directory) notify() {
	d.mu.Lock()
	observers := make([]func(), len(d.observers))
	copy(observers, d.observers)
	d.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
