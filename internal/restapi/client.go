package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatsync/internal/domain"
)

const resource = "/chat"

// Client talks to the chat REST backend. All guaranteed writes go through
// here; the broker channel is fire-and-forget.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Rooms lists the rooms the authenticated user participates in. Last message
// and chunk count are separate per-room calls.
func (c *Client) Rooms(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	if err := c.getJSON(ctx, resource+"/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (c *Client) Room(ctx context.Context, roomID string) (domain.Room, error) {
	var room domain.Room
	if err := c.getJSON(ctx, fmt.Sprintf("%s/room/%s", resource, roomID), &room); err != nil {
		return domain.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

// RoomWithUser resolves the private room shared with the given user.
func (c *Client) RoomWithUser(ctx context.Context, userID int64) (domain.Room, error) {
	var room domain.Room
	if err := c.getJSON(ctx, fmt.Sprintf("%s/user/%d/room", resource, userID), &room); err != nil {
		return domain.Room{}, fmt.Errorf("room with user %d: %w", userID, err)
	}
	return room, nil
}

func (c *Client) LastMessage(ctx context.Context, roomID string) (domain.Message, error) {
	var msg domain.Message
	if err := c.getJSON(ctx, fmt.Sprintf("%s/room/%s/last-message", resource, roomID), &msg); err != nil {
		return domain.Message{}, fmt.Errorf("last message of %s: %w", roomID, err)
	}
	return msg, nil
}

func (c *Client) ChunkCount(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := c.getJSON(ctx, fmt.Sprintf("%s/room/%s/chunk-count", resource, roomID), &count); err != nil {
		return 0, fmt.Errorf("chunk count of %s: %w", roomID, err)
	}
	return count, nil
}

// Messages fetches one chunk of a room's history. Chunks are 1-indexed, chunk
// 1 is the oldest, messages inside a chunk are in ascending time order.
func (c *Client) Messages(ctx context.Context, roomID string, chunk int) ([]domain.Message, error) {
	path := fmt.Sprintf("%s/room/%s/messages?chunk=%d", resource, roomID, chunk)
	var msgs []domain.Message
	if err := c.getJSON(ctx, path, &msgs); err != nil {
		return nil, fmt.Errorf("messages of %s chunk %d: %w", roomID, chunk, err)
	}
	return msgs, nil
}

// SendText posts a plain-text message tagged with the client request id. The
// response echoes the canonical message, room id and request id.
func (c *Client) SendText(ctx context.Context, roomID, requestID, text string) (domain.MessageEvent, error) {
	path := fmt.Sprintf("%s/send/%s?requestId=%s", resource, roomID, requestID)
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(text))
	if err != nil {
		return domain.MessageEvent{}, err
	}
	req.Header.Set("Content-Type", "text/plain")

	var sent domain.MessageEvent
	if err := c.do(req, &sent); err != nil {
		return domain.MessageEvent{}, fmt.Errorf("send text to %s: %w", roomID, err)
	}
	return sent, nil
}

// SendMedia posts a binary message (image, voice or video) as a multipart
// form. The form field and path segment are the lowercased kind.
func (c *Client) SendMedia(ctx context.Context, roomID, requestID string, kind domain.MessageKind, media []byte) (domain.MessageEvent, error) {
	field := strings.ToLower(string(kind))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, field)
	if err != nil {
		return domain.MessageEvent{}, err
	}
	if _, err := part.Write(media); err != nil {
		return domain.MessageEvent{}, err
	}
	if err := writer.Close(); err != nil {
		return domain.MessageEvent{}, err
	}

	path := fmt.Sprintf("%s/send/%s/%s?requestId=%s", resource, roomID, field, requestID)
	req, err := c.newRequest(ctx, http.MethodPost, path, &body)
	if err != nil {
		return domain.MessageEvent{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var sent domain.MessageEvent
	if err := c.do(req, &sent); err != nil {
		return domain.MessageEvent{}, fmt.Errorf("send %s to %s: %w", field, roomID, err)
	}
	return sent, nil
}

// MarkRead reports the given messages as read by the current user.
func (c *Client) MarkRead(ctx context.Context, roomID string, messageIDs []string) error {
	payload, err := json.Marshal(messageIDs)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("%s/room/%s/read", resource, roomID)
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("mark read in %s: %w", roomID, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strconv.Quote(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
