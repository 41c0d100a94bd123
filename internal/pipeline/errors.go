package pipeline

import (
	"errors"
	"log/slog"
)

var (
	// ErrUnknownStream is returned when a selected stream has no descriptor.
	ErrUnknownStream = errors.New("unknown stream")
	// ErrSchemaMismatch is returned when a record cannot be conformed to its
	// declared schema.
	ErrSchemaMismatch = errors.New("record does not match schema")
)

// LevelCritical sits above slog.LevelError. It is used when the vendor
// answers with something that is not a report at all.
const LevelCritical = slog.LevelError + 4

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err must abort the run without a retry.
func IsPermanent(err error) bool {
	var p *permanentError
	switch {
	case errors.As(err, &p):
		return true
	case errors.Is(err, ErrUnknownStream), errors.Is(err, ErrSchemaMismatch):
		return true
	}
	return false
}

// ReplaceLevel renders LevelCritical as CRITICAL in handler output.
func ReplaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}
