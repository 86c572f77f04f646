package repository

import (
	"context"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LikedItemRepository interface {
	// Like records the pair once; liking again is a no-op.
	Like(ctx context.Context, userUID string, itemID uint64) error
	Unlike(ctx context.Context, userUID string, itemID uint64) (int64, error)
	IsLiked(ctx context.Context, userUID string, itemID uint64) (bool, error)
	// ListItems returns the liked items, most recently liked first.
	ListItems(ctx context.Context, userUID string) ([]model.Item, error)
	SetDB(db *gorm.DB)
}

type likedItemRepository struct {
	handle
}

func NewLikedItemRepository(db *gorm.DB) LikedItemRepository {
	r := &likedItemRepository{}
	r.SetDB(db)
	return r
}

func (r *likedItemRepository) Like(ctx context.Context, userUID string, itemID uint64) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.LikedItem{UserUID: userUID, ItemID: itemID}).Error
}

func (r *likedItemRepository) Unlike(ctx context.Context, userUID string, itemID uint64) (int64, error) {
	db, err := r.conn()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Where("user_uid = ? AND item_id = ?", userUID, itemID).
		Delete(&model.LikedItem{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *likedItemRepository) IsLiked(ctx context.Context, userUID string, itemID uint64) (bool, error) {
	db, err := r.conn()
	if err != nil {
		return false, err
	}
	var cnt int64
	if err := db.WithContext(ctx).
		Model(&model.LikedItem{}).
		Where("user_uid = ? AND item_id = ?", userUID, itemID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *likedItemRepository) ListItems(ctx context.Context, userUID string) ([]model.Item, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var items []model.Item
	if err := db.WithContext(ctx).
		Model(&model.Item{}).
		Joins("JOIN liked_items ON liked_items.item_id = items.id").
		Where("liked_items.user_uid = ?", userUID).
		Order("liked_items.created_at DESC").
		Order("liked_items.id DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
