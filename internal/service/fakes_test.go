package service

import (
	"context"
	"sync"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"gorm.io/gorm"
)

type fakeMessageRepo struct {
	mu        sync.Mutex
	msgs      []model.Message
	nextID    uint64
	createErr error
	findErr   error
	creates   int
	// block makes Create wait for the context instead of storing.
	block bool
}

func (r *fakeMessageRepo) FindInbox(_ context.Context, uid string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []model.Message
	for _, m := range r.msgs {
		if m.SenderUID == uid || m.ReceiverUID == uid {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) FindByItem(_ context.Context, itemID uint64) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []model.Message
	for _, m := range r.msgs {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	r.mu.Lock()
	r.creates++
	block, createErr := r.block, r.createErr
	r.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if createErr != nil {
		return createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, itemID uint64, receiverUID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.msgs {
		if r.msgs[i].ItemID == itemID && r.msgs[i].ReceiverUID == receiverUID && !r.msgs[i].Read {
			r.msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) SetDB(*gorm.DB) {}

type fakeItemRepo struct {
	items   map[uint64]*model.Item
	created []*model.Item
	// block makes every call wait for the context.
	block bool
}

func (r *fakeItemRepo) Create(ctx context.Context, item *model.Item) error {
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	item.ID = uint64(len(r.created) + 1000)
	r.created = append(r.created, item)
	return nil
}

func (r *fakeItemRepo) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	it, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *it
	return &cp, nil
}

func (r *fakeItemRepo) List(ctx context.Context, _ repository.ItemFilter, _, _ int) ([]model.Item, int64, error) {
	if r.block {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	return nil, 0, nil
}

func (r *fakeItemRepo) FindByTitle(context.Context, string) (*model.Item, error) { return nil, nil }

func (r *fakeItemRepo) SetDB(*gorm.DB) {}

type fakeRentalRepo struct {
	rentals map[uint64]*model.RentalTransaction
	nextID  uint64
}

func newFakeRentalRepo() *fakeRentalRepo {
	return &fakeRentalRepo{rentals: map[uint64]*model.RentalTransaction{}}
}

func (r *fakeRentalRepo) Create(_ context.Context, rt *model.RentalTransaction) error {
	r.nextID++
	rt.ID = r.nextID
	cp := *rt
	r.rentals[rt.ID] = &cp
	return nil
}

func (r *fakeRentalRepo) FindByID(_ context.Context, id uint64) (*model.RentalTransaction, error) {
	rt, ok := r.rentals[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *fakeRentalRepo) TransitionStatus(_ context.Context, id uint64, from, to model.RentalStatus) (int64, error) {
	rt, ok := r.rentals[id]
	if !ok || rt.Status != from {
		return 0, nil
	}
	rt.Status = to
	return 1, nil
}

func (r *fakeRentalRepo) ListByRenter(_ context.Context, uid string) ([]model.RentalTransaction, error) {
	var out []model.RentalTransaction
	for _, rt := range r.rentals {
		if rt.RenterUID == uid {
			out = append(out, *rt)
		}
	}
	return out, nil
}

func (r *fakeRentalRepo) ListByOwner(_ context.Context, uid string) ([]model.RentalTransaction, error) {
	var out []model.RentalTransaction
	for _, rt := range r.rentals {
		if rt.OwnerUID == uid {
			out = append(out, *rt)
		}
	}
	return out, nil
}

func (r *fakeRentalRepo) SetDB(*gorm.DB) {}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []model.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *n)
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, uid string, _ bool, _ int) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, n := range r.items {
		if n.UserUID == uid {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkAllRead(context.Context, string) error { return nil }

func (r *fakeNotificationRepo) CountUnread(_ context.Context, uid string) (int64, error) {
	list, _ := r.ListByUser(context.Background(), uid, true, 0)
	return int64(len(list)), nil
}

func (r *fakeNotificationRepo) SetDB(*gorm.DB) {}

func (r *fakeNotificationRepo) forUser(uid string) []model.Notification {
	list, _ := r.ListByUser(context.Background(), uid, false, 0)
	return list
}

type fakeUploader struct {
	paths []string
	err   error
	block bool
}

func (u *fakeUploader) Upload(ctx context.Context, objectPath, _ string, _ []byte) (string, error) {
	if u.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if u.err != nil {
		return "", u.err
	}
	u.paths = append(u.paths, objectPath)
	return "https://files.example.com/" + objectPath, nil
}

type fakeLikeRepo struct {
	items *fakeItemRepo
	liked map[string][]uint64
}

func newFakeLikeRepo(items *fakeItemRepo) *fakeLikeRepo {
	return &fakeLikeRepo{items: items, liked: map[string][]uint64{}}
}

func (r *fakeLikeRepo) Like(_ context.Context, uid string, itemID uint64) error {
	for _, id := range r.liked[uid] {
		if id == itemID {
			return nil
		}
	}
	r.liked[uid] = append(r.liked[uid], itemID)
	return nil
}

func (r *fakeLikeRepo) Unlike(_ context.Context, uid string, itemID uint64) (int64, error) {
	ids := r.liked[uid]
	for i, id := range ids {
		if id == itemID {
			r.liked[uid] = append(ids[:i:i], ids[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *fakeLikeRepo) IsLiked(_ context.Context, uid string, itemID uint64) (bool, error) {
	for _, id := range r.liked[uid] {
		if id == itemID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeLikeRepo) ListItems(ctx context.Context, uid string) ([]model.Item, error) {
	var out []model.Item
	ids := r.liked[uid]
	for i := len(ids) - 1; i >= 0; i-- {
		it, err := r.items.FindByID(ctx, ids[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, nil
}

func (r *fakeLikeRepo) SetDB(*gorm.DB) {}
