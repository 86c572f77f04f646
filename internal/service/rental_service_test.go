package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/session"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestQuote(t *testing.T) {
	svc := NewRentalService(RentalDeps{})
	tests := []struct {
		name      string
		price     float64
		start     time.Time
		end       time.Time
		wantDays  int
		wantTotal float64
		wantErr   error
	}{
		{"same day", 25, date(2024, 5, 1), date(2024, 5, 1), 1, 25, nil},
		{"three days", 10.5, date(2024, 5, 1), date(2024, 5, 3), 3, 31.5, nil},
		{"time of day ignored", 10, date(2024, 5, 1).Add(20 * time.Hour), date(2024, 5, 2).Add(time.Hour), 2, 20, nil},
		{"across month", 1, date(2024, 1, 30), date(2024, 2, 2), 4, 4, nil},
		{"free item", 0, date(2024, 5, 1), date(2024, 5, 10), 10, 0, nil},
		{"reversed", 10, date(2024, 5, 3), date(2024, 5, 1), 0, 0, ErrInvalidDates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := svc.Quote(tt.price, tt.start, tt.end)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err=%v want %v", err, tt.wantErr)
			}
			if q.Days != tt.wantDays || q.TotalCost != tt.wantTotal {
				t.Fatalf("quote=%+v want days=%d total=%v", q, tt.wantDays, tt.wantTotal)
			}
		})
	}
}

type rentalFixture struct {
	svc      RentalService
	items    *fakeItemRepo
	rentals  *fakeRentalRepo
	uploader *fakeUploader
	notes    *fakeNotificationRepo
}

func newRentalFixture() rentalFixture {
	return newRentalFixtureWithTimeout(time.Second)
}

func newRentalFixtureWithTimeout(timeout time.Duration) rentalFixture {
	items := &fakeItemRepo{items: map[uint64]*model.Item{
		1: {ID: 1, OwnerUID: "owner", Title: "Camera", PricePerDay: 30, Quantity: 2, Available: true},
		2: {ID: 2, OwnerUID: "owner", Title: "Kayak", PricePerDay: 50, Quantity: 1, Available: false},
	}}
	rentals := newFakeRentalRepo()
	uploader := &fakeUploader{}
	notes := &fakeNotificationRepo{}
	now := func() time.Time { return date(2024, 5, 1).Add(15 * time.Hour) }
	svc := NewRentalService(RentalDeps{
		Rentals:       rentals,
		Items:         items,
		Uploader:      uploader,
		Notifications: NewNotificationService(notes, nil, time.Second),
		Timeout:       timeout,
		Now:           now,
	})
	return rentalFixture{svc: svc, items: items, rentals: rentals, uploader: uploader, notes: notes}
}

func validRequest() RentalRequest {
	return RentalRequest{
		ItemID:         1,
		StartDate:      date(2024, 5, 1),
		EndDate:        date(2024, 5, 4),
		Quantity:       2,
		PaymentMethod:  "gcash",
		DeliveryMethod: "pickup",
		Receipt:        &Receipt{Filename: "proof.PNG", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	}
}

func TestSubmitRental(t *testing.T) {
	f := newRentalFixture()
	rt, err := f.svc.Submit(context.Background(), session.Session{UserID: "renter"}, validRequest())
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if rt.Status != model.RentalStatusPending || rt.Days != 4 || rt.TotalCost != 120 || rt.OwnerUID != "owner" {
		t.Fatalf("unexpected rental: %+v", rt)
	}
	if len(f.uploader.paths) != 1 || !strings.HasPrefix(f.uploader.paths[0], "receipts/") || !strings.HasSuffix(f.uploader.paths[0], ".png") {
		t.Fatalf("unexpected upload paths: %v", f.uploader.paths)
	}
	if rt.ProofOfDeposit != "https://files.example.com/"+f.uploader.paths[0] {
		t.Fatalf("proof=%q", rt.ProofOfDeposit)
	}
	notes := f.notes.forUser("owner")
	if len(notes) != 1 || notes[0].RentalID == nil || *notes[0].RentalID != rt.ID {
		t.Fatalf("unexpected owner notifications: %+v", notes)
	}
}

func TestSubmitRentalValidation(t *testing.T) {
	renter := session.Session{UserID: "renter"}
	tests := []struct {
		name   string
		sess   session.Session
		modify func(*RentalRequest)
		want   error
	}{
		{"no session", session.Session{}, func(*RentalRequest) {}, session.ErrNoSession},
		{"no receipt", renter, func(r *RentalRequest) { r.Receipt = nil }, ErrReceiptRequired},
		{"empty receipt", renter, func(r *RentalRequest) { r.Receipt.Data = nil }, ErrReceiptRequired},
		{"bad receipt type", renter, func(r *RentalRequest) { r.Receipt.ContentType = "text/html" }, ErrInvalidReceipt},
		{"reversed dates", renter, func(r *RentalRequest) { r.StartDate, r.EndDate = r.EndDate, r.StartDate }, ErrInvalidDates},
		{"start in past", renter, func(r *RentalRequest) { r.StartDate = date(2024, 4, 30) }, ErrStartInPast},
		{"unknown item", renter, func(r *RentalRequest) { r.ItemID = 99 }, ErrNotFound},
		{"own item", session.Session{UserID: "owner"}, func(*RentalRequest) {}, ErrOwnItem},
		{"unavailable", renter, func(r *RentalRequest) { r.ItemID = 2; r.Quantity = 1 }, ErrItemUnavailable},
		{"zero quantity", renter, func(r *RentalRequest) { r.Quantity = 0 }, ErrInvalidQuantity},
		{"over stock", renter, func(r *RentalRequest) { r.Quantity = 3 }, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRentalFixture()
			req := validRequest()
			tt.modify(&req)
			_, err := f.svc.Submit(context.Background(), tt.sess, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want %v", err, tt.want)
			}
			if len(f.uploader.paths) != 0 || len(f.rentals.rentals) != 0 {
				t.Fatal("rejected request must not upload or store")
			}
		})
	}
}

func TestSubmitRentalUploadFailure(t *testing.T) {
	f := newRentalFixture()
	f.uploader.err = errors.New("bucket missing")
	if _, err := f.svc.Submit(context.Background(), session.Session{UserID: "renter"}, validRequest()); err == nil {
		t.Fatal("expected upload error")
	}
	if len(f.rentals.rentals) != 0 {
		t.Fatal("rental stored without receipt")
	}
}

func TestUpdateRentalStatus(t *testing.T) {
	ctx := context.Background()
	owner := session.Session{UserID: "owner"}
	renter := session.Session{UserID: "renter"}

	f := newRentalFixture()
	rt, err := f.svc.Submit(ctx, renter, validRequest())
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, renter, rt.ID, model.RentalStatusApproved); !errors.Is(err, ErrForbidden) {
		t.Fatalf("renter approve err=%v want ErrForbidden", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, owner, rt.ID, model.RentalStatusCanceled); !errors.Is(err, ErrForbidden) {
		t.Fatalf("owner cancel err=%v want ErrForbidden", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, owner, rt.ID, model.RentalStatusPending); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("back to pending err=%v want ErrInvalidStatus", err)
	}
	updated, err := f.svc.UpdateStatus(ctx, owner, rt.ID, model.RentalStatusApproved)
	if err != nil || updated.Status != model.RentalStatusApproved {
		t.Fatalf("approve: rental=%+v err=%v", updated, err)
	}
	if _, err := f.svc.UpdateStatus(ctx, renter, rt.ID, model.RentalStatusCanceled); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("cancel after approve err=%v want ErrInvalidStatus", err)
	}
	if got := f.notes.forUser("renter"); len(got) != 1 {
		t.Fatalf("renter notifications=%d want 1", len(got))
	}

	mine, err := f.svc.ListMine(ctx, renter)
	if err != nil || len(mine) != 1 || mine[0].Item == nil || mine[0].Item.Title != "Camera" {
		t.Fatalf("ListMine=%+v err=%v", mine, err)
	}
	incoming, err := f.svc.ListIncoming(ctx, owner)
	if err != nil || len(incoming) != 1 {
		t.Fatalf("ListIncoming=%+v err=%v", incoming, err)
	}
}

func TestSubmitRentalTimeoutIsRetryable(t *testing.T) {
	tests := []struct {
		name  string
		block func(f rentalFixture)
	}{
		{"item lookup", func(f rentalFixture) { f.items.block = true }},
		{"receipt upload", func(f rentalFixture) { f.uploader.block = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRentalFixtureWithTimeout(20 * time.Millisecond)
			tt.block(f)
			start := time.Now()
			_, err := f.svc.Submit(context.Background(), session.Session{UserID: "renter"}, validRequest())
			if !IsRetryable(err) {
				t.Fatalf("err=%v want retryable timeout", err)
			}
			if elapsed := time.Since(start); elapsed > time.Second {
				t.Fatalf("Submit took %v", elapsed)
			}
			if len(f.rentals.rentals) != 0 {
				t.Fatal("rental stored after timeout")
			}
		})
	}
}

func TestListMineSurvivesItemLookupTimeout(t *testing.T) {
	f := newRentalFixtureWithTimeout(20 * time.Millisecond)
	f.items.block = true
	_ = f.rentals.Create(context.Background(), &model.RentalTransaction{
		ItemID: 1, RenterUID: "renter", OwnerUID: "owner", Status: model.RentalStatusPending,
	})

	done := make(chan error, 1)
	var mine []RentalWithItem
	go func() {
		var err error
		mine, err = f.svc.ListMine(context.Background(), session.Session{UserID: "renter"})
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil || len(mine) != 1 || mine[0].Item != nil {
			t.Fatalf("ListMine=%+v err=%v", mine, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ListMine did not finish")
	}
}
