package repository

import (
	"sync/atomic"

	"gorm.io/gorm"
)

// handle holds the connection a repository queries through. The server
// starts before the database is reachable and installs it later with SetDB
// while requests are already running.
type handle struct {
	p atomic.Pointer[gorm.DB]
}

func (h *handle) SetDB(db *gorm.DB) {
	h.p.Store(db)
}

func (h *handle) conn() (*gorm.DB, error) {
	db := h.p.Load()
	if db == nil {
		return nil, ErrDBNotReady
	}
	return db, nil
}
