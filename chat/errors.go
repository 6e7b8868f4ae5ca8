package chat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConnected is returned when an event is emitted without a live connection
	ErrNotConnected = errors.New("chat: not connected")
	// ErrEmptyMessage is returned by Send when there is neither text nor an attachment
	ErrEmptyMessage = errors.New("chat: empty message")
	// ErrNoConversation is returned when an operation needs a selected conversation
	ErrNoConversation = errors.New("chat: no conversation selected")
	// ErrSuperseded is returned when a newer selection or credential replaced the one in flight
	ErrSuperseded = errors.New("chat: superseded by a newer request")
)

// FetchError describes a failed request against the chat REST API
type FetchError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %d %s: %v", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed. Only rejected
// credentials are permanent.
func (e *FetchError) Retryable() bool {
	return e.StatusCode != http.StatusUnauthorized && e.StatusCode != http.StatusForbidden
}

// IsRetryable reports whether err is a FetchError that may succeed on retry
func IsRetryable(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Retryable()
}
