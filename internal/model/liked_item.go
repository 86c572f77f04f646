package model

import "time"

// LikedItem marks an item a user saved. A user likes an item at most once.
type LikedItem struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserUID   string    `gorm:"column:user_uid;size:128;not null;uniqueIndex:idx_liked_user_item"`
	ItemID    uint64    `gorm:"column:item_id;not null;uniqueIndex:idx_liked_user_item;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (LikedItem) TableName() string {
	return "liked_items"
}
