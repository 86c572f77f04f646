package repository

import (
	"context"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

type MessageRepository interface {
	// FindInbox returns every message the user sent or received, newest first.
	FindInbox(ctx context.Context, uid string) ([]model.Message, error)
	// FindByItem returns the thread of an item, oldest first.
	FindByItem(ctx context.Context, itemID uint64) ([]model.Message, error)
	Create(ctx context.Context, msg *model.Message) error
	MarkRead(ctx context.Context, itemID uint64, receiverUID string) (int64, error)
	SetDB(db *gorm.DB)
}

type messageRepository struct {
	handle
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	r := &messageRepository{}
	r.SetDB(db)
	return r
}

func (r *messageRepository) FindInbox(ctx context.Context, uid string) ([]model.Message, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := db.WithContext(ctx).
		Where("sender_uid = ? OR receiver_uid = ?", uid, uid).
		Order("created_at DESC").
		Order("id DESC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) FindByItem(ctx context.Context, itemID uint64) ([]model.Message, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var msgs []model.Message
	if err := db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(msg).Error
}

func (r *messageRepository) MarkRead(ctx context.Context, itemID uint64, receiverUID string) (int64, error) {
	db, err := r.conn()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Model(&model.Message{}).
		Where("item_id = ? AND receiver_uid = ? AND is_read = ?", itemID, receiverUID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
