// Package profile resolves the public identity (display name and avatar)
// of marketplace users from Firebase Auth.
package profile

import (
	"context"
	"errors"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/shinyyama/rental-backend/internal/inbox"
)

var ErrUserNotFound = errors.New("user not found")

// ProfileLookupError wraps a failed identity lookup. The inbox replaces the
// profile with a placeholder; only the public profile endpoint reports it.
type ProfileLookupError struct {
	UID string
	Err error
}

func (e *ProfileLookupError) Error() string {
	return fmt.Sprintf("profile lookup %q: %v", e.UID, e.Err)
}

func (e *ProfileLookupError) Unwrap() error { return e.Err }

// UserGetter is the subset of *auth.Client used here.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type FirebaseResolver struct {
	users UserGetter
}

var _ inbox.ProfileLookup = (*FirebaseResolver)(nil)

func NewFirebaseResolver(users UserGetter) *FirebaseResolver {
	return &FirebaseResolver{users: users}
}

func (r *FirebaseResolver) Lookup(ctx context.Context, uid string) (inbox.Profile, error) {
	if uid == "" {
		return inbox.Profile{}, &ProfileLookupError{UID: uid, Err: ErrUserNotFound}
	}
	if r.users == nil {
		return inbox.Profile{}, &ProfileLookupError{UID: uid, Err: errors.New("auth client not configured")}
	}
	user, err := r.users.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			err = ErrUserNotFound
		}
		return inbox.Profile{}, &ProfileLookupError{UID: uid, Err: err}
	}
	if user == nil || user.UserInfo == nil {
		return inbox.Profile{}, &ProfileLookupError{UID: uid, Err: ErrUserNotFound}
	}
	return FromUserInfo(user.UserInfo), nil
}

// FromUserInfo picks the display name (falling back to the email) and the
// photo (falling back to a generated avatar of the email).
func FromUserInfo(u *auth.UserInfo) inbox.Profile {
	p := inbox.Profile{UID: u.UID, DisplayName: u.DisplayName, AvatarURL: u.PhotoURL}
	if p.DisplayName == "" {
		p.DisplayName = u.Email
	}
	if p.DisplayName == "" {
		p.DisplayName = inbox.UnknownUserName
	}
	if p.AvatarURL == "" {
		p.AvatarURL = inbox.PlaceholderAvatar(u.Email)
	}
	return p
}
