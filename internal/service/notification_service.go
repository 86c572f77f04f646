package service

import (
	"context"
	"time"

	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"go.uber.org/zap"
)

type NotificationService interface {
	Notify(ctx context.Context, userUID, typ, title, body string, itemID, rentalID *uint64)
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
}

type notificationService struct {
	repo    repository.NotificationRepository
	logger  *zap.Logger
	timeout time.Duration
}

func NewNotificationService(repo repository.NotificationRepository, logger *zap.Logger, timeout time.Duration) NotificationService {
	return &notificationService{repo: repo, logger: logging.OrNop(logger), timeout: timeout}
}

// Notify is best-effort; failures are logged and never reach the caller's flow.
func (s *notificationService) Notify(ctx context.Context, userUID, typ, title, body string, itemID, rentalID *uint64) {
	if userUID == "" || typ == "" {
		return
	}
	ctx, cancel := withShortDeadline(context.WithoutCancel(ctx))
	defer cancel()
	n := &model.Notification{
		UserUID:  userUID,
		Type:     typ,
		Title:    title,
		Body:     body,
		ItemID:   itemID,
		RentalID: rentalID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Warn("notification not stored",
			zap.String("user_uid", userUID), zap.String("type", typ), zap.Error(err))
	}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.MarkAllRead(ctx, userUID)
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}

// withTimeout bounds a backend call; d <= 0 leaves ctx unchanged.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
