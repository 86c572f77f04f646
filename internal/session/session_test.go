package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFrom(t *testing.T) {
	e := echo.New()
	tests := []struct {
		name string
		set  *Session
		want error
	}{
		{"missing", nil, ErrNoSession},
		{"empty uid", &Session{Email: "a@example.com"}, ErrNoSession},
		{"valid", &Session{UserID: "u1", Email: "a@example.com"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			if tt.set != nil {
				Set(c, *tt.set)
			}
			s, err := From(c)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if tt.want == nil && s.UserID != tt.set.UserID {
				t.Fatalf("uid = %q", s.UserID)
			}
		})
	}
}
