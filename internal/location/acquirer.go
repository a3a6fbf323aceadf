package location

import (
	"context"
	"time"
)

// Acquirer applies the two-tier acquisition policy over a Source: a
// high-accuracy attempt first, accepting no cached fix, then exactly one
// relaxed retry with a shorter timeout and a bounded cached age. The
// retry happens only on timeout; permission denials and unavailable
// positions propagate immediately.
type Acquirer struct {
	src          Source
	highTimeout  time.Duration
	lowTimeout   time.Duration
	maxCachedAge time.Duration
}

// NewAcquirer builds an Acquirer. Zero durations fall back to defaults.
func NewAcquirer(src Source, highTimeout, lowTimeout, maxCachedAge time.Duration) *Acquirer {
	if highTimeout <= 0 {
		highTimeout = 18 * time.Second
	}
	if lowTimeout <= 0 {
		lowTimeout = 8 * time.Second
	}
	if maxCachedAge <= 0 {
		maxCachedAge = 30 * time.Second
	}
	return &Acquirer{src: src, highTimeout: highTimeout, lowTimeout: lowTimeout, maxCachedAge: maxCachedAge}
}

// Acquire returns one reading under the two-tier policy.
func (a *Acquirer) Acquire(ctx context.Context) (Reading, error) {
	r, err := a.src.Acquire(ctx, Options{HighAccuracy: true, Timeout: a.highTimeout})
	if err == nil {
		return r, nil
	}
	if KindOf(err) != KindTimeout {
		return Reading{}, err
	}
	return a.src.Acquire(ctx, Options{HighAccuracy: false, Timeout: a.lowTimeout, MaxCachedAge: a.maxCachedAge})
}
