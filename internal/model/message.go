package model

import "time"

type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderUID   string    `gorm:"column:sender_uid;size:128;index;not null" json:"senderUid"`
	ReceiverUID string    `gorm:"column:receiver_uid;size:128;index;not null" json:"receiverUid"`
	ItemID      uint64    `gorm:"column:item_id;index;not null" json:"itemId"`
	Body        string    `gorm:"column:body;type:text;not null" json:"body"`
	CreatedAt   time.Time `gorm:"column:created_at;index" json:"createdAt"`
	Read        bool      `gorm:"column:is_read;not null;default:false" json:"read"`
}

func (Message) TableName() string {
	return "messages"
}

// Counterpart returns the participant of m that is not selfUID. A message
// sent to oneself yields selfUID.
func (m Message) Counterpart(selfUID string) string {
	if m.SenderUID == selfUID {
		return m.ReceiverUID
	}
	return m.SenderUID
}

// NewerThan orders messages by creation time, then by id.
func (m Message) NewerThan(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.After(o.CreatedAt)
	}
	return m.ID > o.ID
}
