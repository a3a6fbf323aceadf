package location

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Reading is a single raw location sample from a device sensor.
// Immutable once captured.
type Reading struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Timestamp      time.Time `json:"timestamp"`
}

// ErrorKind classifies platform location failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindPermissionDenied
	KindPositionUnavailable
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindPositionUnavailable:
		return "position_unavailable"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is a platform location failure with a stable kind.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("location: %s", e.Kind)
	}
	return fmt.Sprintf("location: %s: %s", e.Kind, e.Message)
}

// KindOf extracts the ErrorKind from err, KindUnknown for untyped errors.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// Options control a single acquisition attempt. MaxCachedAge zero means
// only a fresh fix is acceptable.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxCachedAge time.Duration
}

// Source delivers location readings from whatever platform backs it.
type Source interface {
	Acquire(ctx context.Context, opts Options) (Reading, error)
}
