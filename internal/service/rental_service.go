package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shinyyama/rental-backend/internal/logging"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/session"
	"github.com/shinyyama/rental-backend/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const day = 24 * time.Hour

type Quote struct {
	Days      int     `json:"days"`
	TotalCost float64 `json:"totalCost"`
}

type Receipt struct {
	Filename    string
	ContentType string
	Data        []byte
}

type RentalRequest struct {
	ItemID         uint64
	StartDate      time.Time
	EndDate        time.Time
	Quantity       int
	PaymentMethod  string
	DeliveryMethod string
	Receipt        *Receipt
}

type RentalWithItem struct {
	Rental model.RentalTransaction
	Item   *model.Item
}

type RentalService interface {
	Quote(pricePerDay float64, start, end time.Time) (Quote, error)
	Submit(ctx context.Context, sess session.Session, req RentalRequest) (*model.RentalTransaction, error)
	ListMine(ctx context.Context, sess session.Session) ([]RentalWithItem, error)
	ListIncoming(ctx context.Context, sess session.Session) ([]RentalWithItem, error)
	UpdateStatus(ctx context.Context, sess session.Session, id uint64, status model.RentalStatus) (*model.RentalTransaction, error)
}

type RentalDeps struct {
	Rentals       repository.RentalRepository
	Items         repository.ItemRepository
	Uploader      storage.Uploader
	Notifications NotificationService
	Logger        *zap.Logger
	Timeout       time.Duration
	Now           func() time.Time
}

type rentalService struct {
	rentals  repository.RentalRepository
	items    repository.ItemRepository
	uploader storage.Uploader
	notifier NotificationService
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time
}

func NewRentalService(d RentalDeps) RentalService {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &rentalService{
		rentals:  d.Rentals,
		items:    d.Items,
		uploader: d.Uploader,
		notifier: d.Notifications,
		logger:   logging.OrNop(d.Logger),
		timeout:  d.Timeout,
		now:      now,
	}
}

// Quote prices an inclusive date range: both the start and the end day are
// charged. Times of day are ignored.
func (s *rentalService) Quote(pricePerDay float64, start, end time.Time) (Quote, error) {
	start, end = dateOf(start), dateOf(end)
	if end.Before(start) {
		return Quote{}, ErrInvalidDates
	}
	days := int(math.Floor(float64(end.Sub(start))/float64(day))) + 1
	return Quote{Days: days, TotalCost: float64(days) * pricePerDay}, nil
}

func (s *rentalService) Submit(ctx context.Context, sess session.Session, req RentalRequest) (*model.RentalTransaction, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	if req.Receipt == nil || len(req.Receipt.Data) == 0 {
		return nil, ErrReceiptRequired
	}
	if !acceptedReceipt(req.Receipt.ContentType) {
		return nil, ErrInvalidReceipt
	}
	start, end := dateOf(req.StartDate), dateOf(req.EndDate)
	if end.Before(start) {
		return nil, ErrInvalidDates
	}
	if start.Before(dateOf(s.now())) {
		return nil, ErrStartInPast
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	item, err := s.items.FindByID(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if item.OwnerUID == sess.UserID {
		return nil, ErrOwnItem
	}
	if !item.Available {
		return nil, ErrItemUnavailable
	}
	if req.Quantity < 1 || req.Quantity > item.Quantity {
		return nil, ErrInvalidQuantity
	}

	q, err := s.Quote(item.PricePerDay, start, end)
	if err != nil {
		return nil, err
	}

	receiptURL, err := s.uploader.Upload(ctx, storage.ReceiptPath(req.Receipt.Filename), req.Receipt.ContentType, req.Receipt.Data)
	if err != nil {
		return nil, fmt.Errorf("upload receipt: %w", err)
	}

	rt := &model.RentalTransaction{
		ItemID:         item.ID,
		RenterUID:      sess.UserID,
		OwnerUID:       item.OwnerUID,
		StartDate:      start,
		EndDate:        end,
		Days:           q.Days,
		Quantity:       req.Quantity,
		TotalCost:      q.TotalCost,
		Status:         model.RentalStatusPending,
		ProofOfDeposit: receiptURL,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		DeliveryMethod: strings.TrimSpace(req.DeliveryMethod),
	}
	if err := s.rentals.Create(ctx, rt); err != nil {
		return nil, err
	}
	s.logger.Info("rental requested",
		zap.Uint64("rental_id", rt.ID), zap.Uint64("item_id", item.ID), zap.Int("days", q.Days))

	if s.notifier != nil {
		s.notifier.Notify(ctx, item.OwnerUID, model.NotificationTypeRental, "New rental request",
			fmt.Sprintf("%s was requested for %d day(s).", item.Title, q.Days), uint64Ptr(item.ID), uint64Ptr(rt.ID))
	}
	return rt, nil
}

func (s *rentalService) ListMine(ctx context.Context, sess session.Session) ([]RentalWithItem, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.rentals.ListByRenter(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, list), nil
}

func (s *rentalService) ListIncoming(ctx context.Context, sess session.Session) ([]RentalWithItem, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	list, err := s.rentals.ListByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return s.attachItems(ctx, list), nil
}

// UpdateStatus lets the owner approve or reject a pending request and the
// renter cancel it. Decided requests are final.
func (s *rentalService) UpdateStatus(ctx context.Context, sess session.Session, id uint64, status model.RentalStatus) (*model.RentalTransaction, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	rt, err := s.rentals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var notify string
	switch status {
	case model.RentalStatusApproved, model.RentalStatusRejected:
		if rt.OwnerUID != sess.UserID {
			return nil, ErrForbidden
		}
		notify = rt.RenterUID
	case model.RentalStatusCanceled:
		if rt.RenterUID != sess.UserID {
			return nil, ErrForbidden
		}
		notify = rt.OwnerUID
	default:
		return nil, ErrInvalidStatus
	}
	if rt.Status != model.RentalStatusPending {
		return nil, ErrInvalidStatus
	}

	n, err := s.rentals.TransitionStatus(ctx, id, model.RentalStatusPending, status)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrInvalidStatus
	}
	rt.Status = status

	if s.notifier != nil {
		s.notifier.Notify(ctx, notify, model.NotificationTypeRental, "Rental request "+string(status),
			fmt.Sprintf("Rental #%d is now %s.", rt.ID, status), uint64Ptr(rt.ItemID), uint64Ptr(rt.ID))
	}
	return rt, nil
}

func (s *rentalService) attachItems(ctx context.Context, list []model.RentalTransaction) []RentalWithItem {
	out := make([]RentalWithItem, 0, len(list))
	cache := make(map[uint64]*model.Item)
	for _, rt := range list {
		item, ok := cache[rt.ItemID]
		if !ok {
			found, err := s.items.FindByID(ctx, rt.ItemID)
			if err != nil {
				s.logger.Debug("rental item lookup failed", zap.Uint64("item_id", rt.ItemID), zap.Error(err))
			} else {
				item = found
			}
			cache[rt.ItemID] = item
		}
		out = append(out, RentalWithItem{Rental: rt, Item: item})
	}
	return out
}

func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func acceptedReceipt(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || ct == "application/pdf"
}
