package detection

import (
	"context"
	"math"
	"strings"

	"classpin/internal/location"
)

// Reasons appended by the individual heuristics. User-visible.
const (
	ReasonEmulator        = "emulator/simulator detected"
	ReasonZeroAccuracy    = "impossible GPS accuracy (0 m)"
	ReasonTooAccurate     = "impossibly high accuracy"
	ReasonAccuracyFloor   = "reported accuracy finer than consumer hardware"
	ReasonAccuracyCeiling = "reported accuracy beyond plausible range"
	ReasonFrozenCoords    = "coordinates artificially identical"
	ReasonLowVariance     = "coordinate jitter below sensor noise floor"
	ReasonTooFast         = "readings arrived impossibly fast"
	ReasonCheckError      = "error during GPS check"
)

// Subject says whether the actor is covered by the GPS plausibility
// checks at all. Resolved once from the actor's role before
// classification starts, so no role strings leak into the heuristics.
type Subject int

const (
	ExemptFromGPSChecks Subject = iota
	SubjectToGPSChecks
)

// SubjectForRole maps a role to its classification coverage. Teachers
// and admins are exempt; everyone else is checked.
func SubjectForRole(role string) Subject {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "teacher", "admin":
		return ExemptFromGPSChecks
	default:
		return SubjectToGPSChecks
	}
}

// Verdict is the classifier output. Reasons accumulate across
// heuristics; Suspicious is only set once at least two independent
// signals corroborate each other.
type Verdict struct {
	Suspicious bool
	Reasons    []string
}

// ReadingFunc acquires one fresh location reading. Calls must be
// strictly sequential so that elapsed time between readings stays a
// meaningful signal.
type ReadingFunc func(ctx context.Context) (location.Reading, error)

// Device identity substrings that betray an emulated environment.
// Matched case-insensitively against whatever identity string the
// platform reports.
var emulatorMarkers = []string{
	"emulator",
	"simulator",
	"sdk_gphone",
	"sdk built for",
	"generic_x86",
	"goldfish",
	"ranchu",
	"headlesschrome",
}

// Classify runs the plausibility heuristics for one check-in attempt.
//
// Exempt subjects short-circuit to a clean verdict before any location
// is read. For everyone else it inspects the device identity, then
// consumes three sequential readings. A single heuristic hit is normal
// browser/OS quirk territory and is discarded; only two or more
// corroborating signals flag the attempt. Any acquisition failure fails
// open: a broken sensor must not on its own block attendance.
func Classify(ctx context.Context, subject Subject, deviceIdentity string, th Thresholds, next ReadingFunc) Verdict {
	if subject == ExemptFromGPSChecks {
		return Verdict{}
	}

	var reasons []string

	if hasEmulatorMarker(deviceIdentity) {
		reasons = append(reasons, ReasonEmulator)
	}

	first, err := next(ctx)
	if err != nil {
		return failOpen(reasons)
	}
	switch {
	case first.AccuracyMeters == 0:
		// True GPS sensors never report exact-zero error.
		reasons = append(reasons, ReasonZeroAccuracy)
	case first.AccuracyMeters < 0.1:
		// Sub-10cm is beyond consumer browser/OS location APIs.
		reasons = append(reasons, ReasonTooAccurate)
	case first.AccuracyMeters < th.AccuracyFloor:
		reasons = append(reasons, ReasonAccuracyFloor)
	case first.AccuracyMeters > th.AccuracyCeiling:
		reasons = append(reasons, ReasonAccuracyCeiling)
	}

	second, err := next(ctx)
	if err != nil {
		return failOpen(reasons)
	}
	third, err := next(ctx)
	if err != nil {
		return failOpen(reasons)
	}

	// Spoofing tools often freeze coordinates exactly; genuine sensors
	// show sub-meter jitter between consecutive reads.
	frozen := math.Abs(third.Latitude-second.Latitude) < 1e-7 &&
		math.Abs(third.Longitude-second.Longitude) < 1e-7
	if frozen {
		reasons = append(reasons, ReasonFrozenCoords)
	} else if coordVariance(first, second, third) < th.VarianceFloor {
		reasons = append(reasons, ReasonLowVariance)
	}

	if impossiblyFast(first, second, third, th) {
		reasons = append(reasons, ReasonTooFast)
	}

	// Corroboration gate: one signal alone never flags. This tolerates
	// single cached high-accuracy fixes and similar platform quirks
	// without false-flagging genuine students.
	if len(reasons) < 2 {
		return Verdict{}
	}
	return Verdict{Suspicious: true, Reasons: reasons}
}

func failOpen(reasons []string) Verdict {
	return Verdict{Suspicious: false, Reasons: append(reasons, ReasonCheckError)}
}

func hasEmulatorMarker(identity string) bool {
	id := strings.ToLower(identity)
	for _, marker := range emulatorMarkers {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

// coordVariance is the combined population variance of latitude and
// longitude across the readings, in squared degrees.
func coordVariance(readings ...location.Reading) float64 {
	n := float64(len(readings))
	var meanLat, meanLon float64
	for _, r := range readings {
		meanLat += r.Latitude / n
		meanLon += r.Longitude / n
	}
	var v float64
	for _, r := range readings {
		v += (r.Latitude-meanLat)*(r.Latitude-meanLat) + (r.Longitude-meanLon)*(r.Longitude-meanLon)
	}
	return v / n
}

// impossiblyFast reports whether both inter-reading gaps sit below the
// resolved floor. Requires all three timestamps to be present.
func impossiblyFast(a, b, c location.Reading, th Thresholds) bool {
	if a.Timestamp.IsZero() || b.Timestamp.IsZero() || c.Timestamp.IsZero() {
		return false
	}
	gap1 := b.Timestamp.Sub(a.Timestamp)
	gap2 := c.Timestamp.Sub(b.Timestamp)
	return gap1 >= 0 && gap2 >= 0 && gap1 < th.TimestampGapFloor && gap2 < th.TimestampGapFloor
}
