package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/rental-backend/internal/live"
	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/metrics"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/session"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxBodyLength is the longest message body accepted, in characters.
const MaxBodyLength = 500

const previewLength = 80

type MessageService interface {
	FetchInbox(ctx context.Context, sess session.Session) ([]model.Message, error)
	FetchThread(ctx context.Context, itemID uint64) ([]model.Message, error)
	SendMessage(ctx context.Context, sess session.Session, receiverID string, itemID uint64, body string) (*model.Message, error)
	MarkThreadRead(ctx context.Context, sess session.Session, itemID uint64) (int64, error)
}

type MessageDeps struct {
	Messages      repository.MessageRepository
	Items         repository.ItemRepository
	Bus           live.Bus
	Notifications NotificationService
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	Timeout       time.Duration
	Now           func() time.Time
}

type messageService struct {
	repo     repository.MessageRepository
	items    repository.ItemRepository
	bus      live.Bus
	notifier NotificationService
	m        *metrics.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewMessageService(d MessageDeps) MessageService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &messageService{
		repo:     d.Messages,
		items:    d.Items,
		bus:      d.Bus,
		notifier: d.Notifications,
		m:        d.Metrics,
		logger:   logging.OrNop(d.Logger),
		timeout:  d.Timeout,
		now:      now,
	}
}

func (s *messageService) FetchInbox(ctx context.Context, sess session.Session) ([]model.Message, error) {
	if !sess.Valid() {
		return nil, &AccessError{Op: "fetch inbox", Err: session.ErrNoSession}
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	msgs, err := s.repo.FindInbox(ctx, sess.UserID)
	if err != nil {
		return nil, &AccessError{Op: "fetch inbox", Err: err}
	}
	return msgs, nil
}

func (s *messageService) FetchThread(ctx context.Context, itemID uint64) ([]model.Message, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	msgs, err := s.repo.FindByItem(ctx, itemID)
	if err != nil {
		return nil, &AccessError{Op: "fetch thread", Err: err}
	}
	return msgs, nil
}

func (s *messageService) SendMessage(ctx context.Context, sess session.Session, receiverID string, itemID uint64, body string) (*model.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	if utf8.RuneCountInString(body) > MaxBodyLength {
		return nil, ErrBodyTooLong
	}
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return nil, ErrNoReceiver
	}
	if receiverID == sess.UserID {
		return nil, ErrSelfMessage
	}

	callCtx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if s.items != nil {
		if _, err := s.items.FindByID(callCtx, itemID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, &SendError{Err: err}
		}
	}

	msg := &model.Message{
		SenderUID:   sess.UserID,
		ReceiverUID: receiverID,
		ItemID:      itemID,
		Body:        body,
		CreatedAt:   s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.Create(callCtx, msg); err != nil {
		if s.m != nil {
			s.m.SendFailures.Inc()
		}
		return nil, &SendError{Err: err}
	}
	if s.m != nil {
		s.m.MessagesSent.Inc()
	}

	s.publish(ctx, *msg)
	if s.notifier != nil {
		s.notifier.Notify(ctx, receiverID, model.NotificationTypeMessage, "New message", preview(body), uint64Ptr(itemID), nil)
	}
	return msg, nil
}

// publish fans the stored message out to live watchers. The row is already
// committed, so failures only delay delivery until the next fetch.
func (s *messageService) publish(ctx context.Context, m model.Message) {
	if s.bus == nil {
		return
	}
	ctx, cancel := withShortDeadline(context.WithoutCancel(ctx))
	defer cancel()
	if err := s.bus.Publish(ctx, m); err != nil {
		s.logger.Warn("live publish failed",
			zap.Uint64("item_id", m.ItemID), zap.Uint64("message_id", m.ID), zap.Error(err))
	}
}

func (s *messageService) MarkThreadRead(ctx context.Context, sess session.Session, itemID uint64) (int64, error) {
	if !sess.Valid() {
		return 0, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.repo.MarkRead(ctx, itemID, sess.UserID)
	if err != nil {
		return 0, &AccessError{Op: "mark thread read", Err: err}
	}
	return n, nil
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	r := []rune(body)
	return string(r[:previewLength]) + "…"
}
