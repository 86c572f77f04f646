// Package session carries the authenticated caller through a request as an
// explicit value.
package session

import (
	"errors"

	"github.com/labstack/echo/v4"
)

const contextKey = "session"

var ErrNoSession = errors.New("no session")

type Session struct {
	UserID string
	Email  string
}

func (s Session) Valid() bool {
	return s.UserID != ""
}

// Set stores s on the echo context. The auth middleware is the only writer.
func Set(c echo.Context, s Session) {
	c.Set(contextKey, s)
}

// From returns the session resolved for this request, or ErrNoSession.
func From(c echo.Context) (Session, error) {
	s, ok := c.Get(contextKey).(Session)
	if !ok || !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}
