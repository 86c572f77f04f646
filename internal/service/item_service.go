package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/session"
	"github.com/shinyyama/rental-backend/internal/storage"
	"gorm.io/gorm"
)

// ImageFile is a listing photo uploaded with the item.
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateItemInput struct {
	Title           string
	Description     string
	Category        string
	PricePerDay     float64
	DepositFee      float64
	Location        string
	PaymentInterval string
	Quantity        int
	ImageURL        *string
	Image           *ImageFile
}

type ItemService interface {
	Create(ctx context.Context, sess session.Session, in CreateItemInput) (*model.Item, error)
	Get(ctx context.Context, id uint64) (*model.Item, error)
	List(ctx context.Context, limit, offset int, category, query string) ([]model.Item, int64, error)
}

type itemService struct {
	repo     repository.ItemRepository
	uploader storage.Uploader
	timeout  time.Duration
}

func NewItemService(repo repository.ItemRepository, uploader storage.Uploader, timeout time.Duration) ItemService {
	return &itemService{repo: repo, uploader: uploader, timeout: timeout}
}

func (s *itemService) Create(ctx context.Context, sess session.Session, in CreateItemInput) (*model.Item, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || utf8.RuneCountInString(title) > 120 {
		return nil, fmt.Errorf("%w: title must be 1-120 characters", ErrInvalidInput)
	}
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if in.PricePerDay < 0 {
		return nil, fmt.Errorf("%w: price per day must not be negative", ErrInvalidInput)
	}
	if in.DepositFee < 0 {
		return nil, fmt.Errorf("%w: deposit fee must not be negative", ErrInvalidInput)
	}
	if in.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	interval, err := paymentInterval(in.PaymentInterval)
	if err != nil {
		return nil, err
	}
	imageURL, err := hostedImageURL(in.ImageURL)
	if err != nil {
		return nil, err
	}
	if in.Image != nil {
		if imageURL != nil {
			return nil, fmt.Errorf("%w: send either an image file or imageUrl", ErrInvalidInput)
		}
		if len(in.Image.Data) == 0 || !strings.HasPrefix(strings.ToLower(in.Image.ContentType), "image/") {
			return nil, fmt.Errorf("%w: item image must be a non-empty image file", ErrInvalidInput)
		}
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if in.Image != nil {
		if s.uploader == nil {
			return nil, storage.ErrNotConfigured
		}
		u, err := s.uploader.Upload(ctx, storage.ItemImagePath(in.Image.Filename), in.Image.ContentType, in.Image.Data)
		if err != nil {
			return nil, fmt.Errorf("upload item image: %w", err)
		}
		imageURL = &u
	}

	item := &model.Item{
		OwnerUID:        sess.UserID,
		Title:           title,
		Description:     description,
		Category:        strings.TrimSpace(in.Category),
		PricePerDay:     in.PricePerDay,
		DepositFee:      in.DepositFee,
		Location:        strings.TrimSpace(in.Location),
		PaymentInterval: interval,
		Quantity:        in.Quantity,
		Available:       true,
		ImageURL:        imageURL,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *itemService) Get(ctx context.Context, id uint64) (*model.Item, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *itemService) List(ctx context.Context, limit, offset int, category, query string) ([]model.Item, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	filter := repository.ItemFilter{
		Category: strings.TrimSpace(category),
		Query:    strings.TrimSpace(query),
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.List(ctx, filter, limit, offset)
}

func paymentInterval(v string) (string, error) {
	switch strings.TrimSpace(v) {
	case "", model.PaymentIntervalDay:
		return model.PaymentIntervalDay, nil
	case model.PaymentIntervalWeek:
		return model.PaymentIntervalWeek, nil
	case model.PaymentIntervalMonth:
		return model.PaymentIntervalMonth, nil
	}
	return "", fmt.Errorf("%w: payment interval must be %q, %q or %q", ErrInvalidInput,
		model.PaymentIntervalDay, model.PaymentIntervalWeek, model.PaymentIntervalMonth)
}

func hostedImageURL(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	u := strings.TrimSpace(*raw)
	if strings.HasPrefix(u, "data:") {
		return nil, fmt.Errorf("%w: imageUrl must be a URL, not data URI", ErrInvalidInput)
	}
	if u == "" {
		return nil, nil
	}
	return &u, nil
}
