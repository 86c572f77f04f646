package service

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("forbidden")
	ErrRateLimited = errors.New("too many messages, slow down")

	// ErrInvalidInput is wrapped by every validation failure so callers can
	// map the whole family at once.
	ErrInvalidInput = errors.New("invalid input")

	ErrEmptyBody       = fmt.Errorf("%w: message body is empty", ErrInvalidInput)
	ErrBodyTooLong     = fmt.Errorf("%w: message body exceeds %d characters", ErrInvalidInput, MaxBodyLength)
	ErrSelfMessage     = fmt.Errorf("%w: cannot message yourself", ErrInvalidInput)
	ErrNoReceiver      = fmt.Errorf("%w: receiver is required", ErrInvalidInput)
	ErrInvalidDates    = fmt.Errorf("%w: start date must not be after end date", ErrInvalidInput)
	ErrStartInPast     = fmt.Errorf("%w: start date is in the past", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity exceeds available stock", ErrInvalidInput)
	ErrReceiptRequired = fmt.Errorf("%w: proof of deposit is required", ErrInvalidInput)
	ErrInvalidReceipt  = fmt.Errorf("%w: receipt must be an image or a PDF", ErrInvalidInput)
	ErrOwnItem         = fmt.Errorf("%w: cannot rent your own item", ErrInvalidInput)
	ErrItemUnavailable = fmt.Errorf("%w: item is not available", ErrInvalidInput)
	ErrInvalidStatus   = fmt.Errorf("%w: status change not allowed", ErrInvalidInput)
)

// AccessError reports a failed read of message records.
type AccessError struct {
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// Retryable reports whether the read failed only because it ran out of time.
func (e *AccessError) Retryable() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// SendError reports that a message could not be stored. Nothing was sent.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

func (e *SendError) Retryable() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// IsRetryable reports whether err carries a backend timeout.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
