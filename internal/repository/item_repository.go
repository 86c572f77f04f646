package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

type ItemFilter struct {
	Category string
	Query    string
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	List(ctx context.Context, filter ItemFilter, limit, offset int) ([]model.Item, int64, error)
	FindByTitle(ctx context.Context, title string) (*model.Item, error)
	SetDB(db *gorm.DB)
}

type itemRepository struct {
	handle
}

var ErrDBNotReady = errors.New("database not initialized")

func NewItemRepository(db *gorm.DB) ItemRepository {
	r := &itemRepository{}
	r.SetDB(db)
	return r
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	db, err := r.conn()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var item model.Item
	if err := db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns available items, newest first, optionally narrowed to a
// category and a title substring.
func (r *itemRepository) List(ctx context.Context, filter ItemFilter, limit, offset int) ([]model.Item, int64, error) {
	db, err := r.conn()
	if err != nil {
		return nil, 0, err
	}
	q := db.WithContext(ctx).Model(&model.Item{}).Where("available = ?", true)
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Query); s != "" {
		q = q.Where("title LIKE ?", "%"+escapeLike(s)+"%")
	}

	var (
		items []model.Item
		total int64
	)
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *itemRepository) FindByTitle(ctx context.Context, title string) (*model.Item, error) {
	db, err := r.conn()
	if err != nil {
		return nil, err
	}
	var item model.Item
	if err := db.WithContext(ctx).
		Where("title = ?", title).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
