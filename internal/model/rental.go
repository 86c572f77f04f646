package model

import "time"

type RentalStatus string

const (
	RentalStatusPending  RentalStatus = "pending"
	RentalStatusApproved RentalStatus = "approved"
	RentalStatusRejected RentalStatus = "rejected"
	RentalStatusCanceled RentalStatus = "canceled"
)

type RentalTransaction struct {
	ID             uint64       `gorm:"primaryKey;autoIncrement"`
	ItemID         uint64       `gorm:"column:item_id;index;not null"`
	RenterUID      string       `gorm:"column:renter_uid;size:128;index;not null"`
	OwnerUID       string       `gorm:"column:owner_uid;size:128;index;not null"`
	StartDate      time.Time    `gorm:"column:start_date;type:date;not null"`
	EndDate        time.Time    `gorm:"column:end_date;type:date;not null"`
	Days           int          `gorm:"column:days;not null"`
	Quantity       int          `gorm:"column:quantity;not null"`
	TotalCost      float64      `gorm:"column:total_cost;not null"`
	Status         RentalStatus `gorm:"column:status;size:32;not null"`
	ProofOfDeposit string       `gorm:"column:proof_of_deposit;type:text"`
	PaymentMethod  string       `gorm:"column:payment_method;size:64"`
	DeliveryMethod string       `gorm:"column:delivery_method;size:64"`
	CreatedAt      time.Time    `gorm:"autoCreateTime"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime"`
}

func (RentalTransaction) TableName() string {
	return "rental_transactions"
}
