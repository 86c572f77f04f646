package model

import "time"

const (
	PaymentIntervalDay   = "Per Day"
	PaymentIntervalWeek  = "Per Week"
	PaymentIntervalMonth = "Per Month"
)

// Item is a rental listing. PaymentInterval is only how the owner quotes the
// price; rentals are charged per day.
type Item struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerUID        string    `gorm:"column:owner_uid;size:128;index;not null"`
	Title           string    `gorm:"size:120;not null"`
	Description     string    `gorm:"type:text;not null"`
	Category        string    `gorm:"column:category;size:64;index"`
	PricePerDay     float64   `gorm:"column:price_per_day;not null"`
	DepositFee      float64   `gorm:"column:deposit_fee;not null;default:0"`
	Location        string    `gorm:"column:location;size:255"`
	PaymentInterval string    `gorm:"column:payment_interval;size:16;not null;default:'Per Day'"`
	Quantity        int       `gorm:"column:quantity;not null;default:1"`
	Available       bool      `gorm:"column:available;not null;default:true;index"`
	ImageURL        *string   `gorm:"size:512"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}
