package detection

import (
	"strings"
	"time"
)

// Level is the named sensitivity tier for the GPS plausibility checks.
type Level int

const (
	LevelMinimal Level = iota
	LevelMedium
	LevelMaximal
)

func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelMaximal:
		return "maximal"
	default:
		return "medium"
	}
}

// ParseLevel maps a stored level name to a Level. Anything unrecognized
// falls back to LevelMedium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return LevelMinimal
	case "maximal":
		return LevelMaximal
	default:
		return LevelMedium
	}
}

// Thresholds are the concrete numeric limits for one check-in attempt.
type Thresholds struct {
	AccuracyFloor     float64
	AccuracyCeiling   float64
	VarianceFloor     float64
	TimestampGapFloor time.Duration
}

// Resolve derives thresholds from a level plus per-lesson adjustments.
// radiusMeters <= 0 and pinValidity <= 0 mean the lesson supplied no
// adjustment. The two adjustments are independent; both may apply.
// Pure: recomputed per check-in, never cached across lessons.
func Resolve(level Level, radiusMeters float64, pinValidity time.Duration) Thresholds {
	var t Thresholds
	switch level {
	case LevelMinimal:
		t = Thresholds{AccuracyFloor: 1.0, AccuracyCeiling: 20000, VarianceFloor: 1e-6, TimestampGapFloor: 100 * time.Millisecond}
	case LevelMaximal:
		t = Thresholds{AccuracyFloor: 5.0, AccuracyCeiling: 10000, VarianceFloor: 1e-4, TimestampGapFloor: 500 * time.Millisecond}
	default:
		t = Thresholds{AccuracyFloor: 3.0, AccuracyCeiling: 15000, VarianceFloor: 1e-5, TimestampGapFloor: 200 * time.Millisecond}
	}
	// Large-radius lessons tolerate more GPS jitter.
	if radiusMeters > 200 {
		t.VarianceFloor *= 10
	}
	// Short-lived PINs mean rapid consecutive check-ins are legitimate.
	if pinValidity > 0 && pinValidity < time.Minute {
		t.TimestampGapFloor /= 2
	}
	return t
}
