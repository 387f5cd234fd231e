package services

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/yolan2/tandonia/config"
	"github.com/yolan2/tandonia/supabase"
)

var (
	// ErrUnavailable means no configured store could answer. Controllers map
	// it to 503 so clients can tell "no data yet" from "service degraded".
	ErrUnavailable = errors.New("data unavailable")

	// ErrNotFound covers both missing and not-owned resources; the two are
	// deliberately indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")

	// ErrDuplicateChecklist is only returned when a dedup window is
	// configured; duplicates are allowed by default.
	ErrDuplicateChecklist = errors.New("checklist already submitted for this grid cell")
)

// ValidationError carries a field-level message answered as 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func badRequest(msg string) error { return &ValidationError{Msg: msg} }

// missingTable reports a relation-does-not-exist error from either store,
// which the fallback chains treat as "try the next source".
func missingTable(err error) bool {
	if err == nil {
		return false
	}
	if supabase.IsNotFound(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "42P01") || strings.Contains(msg, "does not exist")
}

// markIfConnDown flags the relational store as gone after a fatal connection
// error so later requests skip straight to the fallback.
func markIfConnDown(b *config.Backends, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, driver.ErrBadConn) || strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset") || strings.Contains(err.Error(), "broken pipe") {
		b.MarkDBDown(err)
	}
}
