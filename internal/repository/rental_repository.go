package repository

import (
	"context"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

type RentalRepository interface {
	Create(ctx context.Context, rt *model.RentalTransaction) error
	FindByID(ctx context.Context, id uint64) (*model.RentalTransaction, error)
	// TransitionStatus moves a rental out of from; it reports how many rows
	// changed so concurrent transitions lose cleanly.
	TransitionStatus(ctx context.Context, id uint64, from, to model.RentalStatus) (int64, error)
	ListByRenter(ctx context.Context, renterUID string) ([]model.RentalTransaction, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.RentalTransaction, error)
	SetDB(db *gorm.DB)
}

type rentalRepository struct {
	handle
}

func NewRentalRepository(db *gorm.DB) RentalRepository {
	r := &rentalRepository{}
	r.SetDB(db)
	return r
}

func (r *rentalRepository) Create(ctx context.Context, rt *model.RentalTransaction) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(rt).Error
}

func (r *rentalRepository) FindByID(ctx context.Context, id uint64) (*model.RentalTransaction, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var rt model.RentalTransaction
	if err := db.WithContext(ctx).First(&rt, id).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *rentalRepository) TransitionStatus(ctx context.Context, id uint64, from, to model.RentalStatus) (int64, error) {
	db, err := r.conn()
	if err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Model(&model.RentalTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *rentalRepository) ListByRenter(ctx context.Context, renterUID string) ([]model.RentalTransaction, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var list []model.RentalTransaction
	if err := db.WithContext(ctx).
		Where("renter_uid = ?", renterUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *rentalRepository) ListByOwner(ctx context.Context, ownerUID string) ([]model.RentalTransaction, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var list []model.RentalTransaction
	if err := db.WithContext(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
