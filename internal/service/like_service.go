package service

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/session"
	"gorm.io/gorm"
)

// LikeService keeps the per-user list of saved items.
type LikeService interface {
	Like(ctx context.Context, sess session.Session, itemID uint64) error
	Unlike(ctx context.Context, sess session.Session, itemID uint64) error
	IsLiked(ctx context.Context, sess session.Session, itemID uint64) (bool, error)
	List(ctx context.Context, sess session.Session) ([]model.Item, error)
}

type likeService struct {
	likes   repository.LikedItemRepository
	items   repository.ItemRepository
	timeout time.Duration
}

func NewLikeService(likes repository.LikedItemRepository, items repository.ItemRepository, timeout time.Duration) LikeService {
	return &likeService{likes: likes, items: items, timeout: timeout}
}

func (s *likeService) Like(ctx context.Context, sess session.Session, itemID uint64) error {
	if !sess.Valid() {
		return session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.items.FindByID(ctx, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.likes.Like(ctx, sess.UserID, itemID)
}

// Unlike is idempotent: removing an item that was never liked succeeds.
func (s *likeService) Unlike(ctx context.Context, sess session.Session, itemID uint64) error {
	if !sess.Valid() {
		return session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	_, err := s.likes.Unlike(ctx, sess.UserID, itemID)
	return err
}

func (s *likeService) IsLiked(ctx context.Context, sess session.Session, itemID uint64) (bool, error) {
	if !sess.Valid() {
		return false, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.likes.IsLiked(ctx, sess.UserID, itemID)
}

func (s *likeService) List(ctx context.Context, sess session.Session) ([]model.Item, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	items, err := s.likes.ListItems(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}
