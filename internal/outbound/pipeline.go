package outbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatsync/internal/domain"
	"chatsync/internal/observability"
	chatsync_errors "chatsync/pkg/errors"
	"chatsync/pkg/logger"
)

// uploadingBody is the visible placeholder body while a binary send is in
// flight; the server replaces it with the stored media reference.
const uploadingBody = "Uploading..."

// API is the slice of the REST client the pipeline needs.
type API interface {
	SendText(ctx context.Context, roomID, requestID, text string) (domain.MessageEvent, error)
	SendMedia(ctx context.Context, roomID, requestID string, kind domain.MessageKind, media []byte) (domain.MessageEvent, error)
}

// TimelineSink is the timeline surface the pipeline mutates.
type TimelineSink interface {
	AppendLocal(msg *domain.Message)
	Resolve(placeholder *domain.Message, canonical domain.Message)
	MarkUndelivered(placeholder *domain.Message)
}

// DirectorySink is the directory surface the pipeline mutates.
type DirectorySink interface {
	SetLastMessage(roomID string, msg domain.Message)
}

// Notifier surfaces the one-shot user-facing error of a failed send.
type Notifier func(roomID string, err error)

// Pipeline performs exactly-once-intent sends: optimistic placeholder first,
// REST dispatch second, reconciliation last. A failed send is terminal; a
// retry is a new message with a new request id.
type Pipeline struct {
	api       API
	ledger    *Ledger
	directory DirectorySink
	user      domain.ChatUser
	notify    Notifier
	log       *logger.Logger
	now       func() time.Time
}

func NewPipeline(api API, ledger *Ledger, directory DirectorySink, user domain.ChatUser, notify Notifier, log *logger.Logger) *Pipeline {
	if notify == nil {
		notify = func(string, error) {}
	}
	return &Pipeline{
		api:       api,
		ledger:    ledger,
		directory: directory,
		user:      user,
		notify:    notify,
		log:       log,
		now:       time.Now,
	}
}

// Send dispatches one message of the given kind into a room. Text content
// must be a string, image/voice/video content a byte slice; anything else is
// rejected synchronously before any state is touched, so no placeholder is
// left dangling. The placeholder is visible in the timeline and directory
// before the network call is issued.
func (p *Pipeline) Send(ctx context.Context, roomID string, tl TimelineSink, content interface{}, kind domain.MessageKind) error {
	text, media, err := splitContent(content, kind)
	if err != nil {
		p.log.Error("send rejected",
			zap.String("room_id", roomID), zap.String("kind", string(kind)), zap.Error(err))
		observability.IncMessageSent(string(kind), "rejected")
		return err
	}

	requestID := uuid.NewString()
	p.ledger.Add(requestID)

	placeholder := &domain.Message{
		Body:      text,
		CreatedAt: p.now(),
		SentBy:    p.user,
		Kind:      kind,
		Status:    domain.DeliveryStatusSending,
	}
	if kind != domain.MessageKindText {
		placeholder.Body = uploadingBody
	}

	tl.AppendLocal(placeholder)
	p.directory.SetLastMessage(roomID, *placeholder)

	var sent domain.MessageEvent
	if kind == domain.MessageKindText {
		sent, err = p.api.SendText(ctx, roomID, requestID, text)
	} else {
		sent, err = p.api.SendMedia(ctx, roomID, requestID, kind, media)
	}
	if err != nil {
		p.log.Error("send failed",
			zap.String("room_id", roomID), zap.String("request_id", requestID), zap.Error(err))
		tl.MarkUndelivered(placeholder)
		p.directory.SetLastMessage(roomID, *placeholder)
		p.notify(roomID, err)
		observability.IncMessageSent(string(kind), "error")
		return fmt.Errorf("send message: %w", err)
	}

	// If the broker echo got here first it already claimed the ledger entry;
	// the REST response still owns the in-place placeholder replacement.
	p.ledger.Claim(requestID)

	canonical := sent.Message
	canonical.SentBy = p.user
	canonical.ReadBy = nil
	canonical.Status = domain.DeliveryStatusDelivered

	tl.Resolve(placeholder, canonical)
	p.directory.SetLastMessage(roomID, canonical)
	observability.IncMessageSent(string(kind), "ok")
	return nil
}

// splitContent validates the declared kind against the runtime content type.
func splitContent(content interface{}, kind domain.MessageKind) (string, []byte, error) {
	switch kind {
	case domain.MessageKindText:
		text, ok := content.(string)
		if !ok {
			return "", nil, chatsync_errors.ErrKindMismatch
		}
		return text, nil, nil
	case domain.MessageKindImage, domain.MessageKindVoice, domain.MessageKindVideo:
		media, ok := content.([]byte)
		if !ok {
			return "", nil, chatsync_errors.ErrKindMismatch
		}
		return "", media, nil
	default:
		return "", nil, chatsync_errors.ErrUnsupportedKind
	}
}
