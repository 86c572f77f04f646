package profile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/rental-backend/internal/inbox"
)

type fakeUsers struct {
	users map[string]*auth.UserRecord
	calls int
}

func (f *fakeUsers) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	f.calls++
	u, ok := f.users[uid]
	if !ok {
		return nil, errors.New("backend unavailable")
	}
	return u, nil
}

func record(uid, name, email, photo string) *auth.UserRecord {
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: uid, DisplayName: name, Email: email, PhotoURL: photo}}
}

func TestFirebaseResolverFallbacks(t *testing.T) {
	users := &fakeUsers{users: map[string]*auth.UserRecord{
		"full":  record("full", "Ana", "ana@example.com", "https://img/ana.png"),
		"email": record("email", "", "bo@example.com", ""),
		"bare":  record("bare", "", "", ""),
	}}
	r := NewFirebaseResolver(users)

	tests := []struct {
		uid        string
		wantName   string
		wantAvatar string
	}{
		{"full", "Ana", "https://img/ana.png"},
		{"email", "bo@example.com", "https://ui-avatars.com/api/?name=bo%40example.com&background=random"},
		{"bare", inbox.UnknownUserName, "https://ui-avatars.com/api/?name=User&background=random"},
	}
	for _, tt := range tests {
		p, err := r.Lookup(context.Background(), tt.uid)
		if err != nil {
			t.Fatalf("Lookup(%q) err: %v", tt.uid, err)
		}
		if p.DisplayName != tt.wantName || p.AvatarURL != tt.wantAvatar {
			t.Fatalf("Lookup(%q)=%+v want name=%q avatar=%q", tt.uid, p, tt.wantName, tt.wantAvatar)
		}
	}
}

func TestFirebaseResolverError(t *testing.T) {
	r := NewFirebaseResolver(&fakeUsers{})
	_, err := r.Lookup(context.Background(), "missing")
	var lookupErr *ProfileLookupError
	if !errors.As(err, &lookupErr) || lookupErr.UID != "missing" {
		t.Fatalf("err=%v want *ProfileLookupError for missing", err)
	}
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestCachedResolverHitsCache(t *testing.T) {
	users := &fakeUsers{users: map[string]*auth.UserRecord{
		"u1": record("u1", "Ana", "", "https://img/ana.png"),
	}}
	cache := &memCache{data: map[string]string{}}
	r := NewCachedResolver(NewFirebaseResolver(users), cache, time.Minute, nil)

	for i := 0; i < 3; i++ {
		p, err := r.Lookup(context.Background(), "u1")
		if err != nil {
			t.Fatalf("Lookup err: %v", err)
		}
		if p.DisplayName != "Ana" || p.AvatarURL != "https://img/ana.png" {
			t.Fatalf("unexpected profile: %+v", p)
		}
	}
	if users.calls != 1 {
		t.Fatalf("backend called %d times, want 1", users.calls)
	}
}

func TestCachedResolverDoesNotCacheFailures(t *testing.T) {
	users := &fakeUsers{users: map[string]*auth.UserRecord{}}
	cache := &memCache{data: map[string]string{}}
	r := NewCachedResolver(NewFirebaseResolver(users), cache, time.Minute, nil)

	for i := 0; i < 2; i++ {
		if _, err := r.Lookup(context.Background(), "ghost"); err == nil {
			t.Fatal("expected lookup error")
		}
	}
	if users.calls != 2 || len(cache.data) != 0 {
		t.Fatalf("calls=%d cached=%d", users.calls, len(cache.data))
	}
}
