package detection

import (
	"context"
	"testing"
	"time"

	"classpin/internal/location"
)

var testBase = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

// reading builds a sample offset from a Paris classroom with the given
// accuracy and a timestamp offset from the test base.
func reading(latOff, lonOff, accuracy float64, tsOff time.Duration) location.Reading {
	return location.Reading{
		Latitude:       48.8566 + latOff,
		Longitude:      2.3522 + lonOff,
		AccuracyMeters: accuracy,
		Timestamp:      testBase.Add(tsOff),
	}
}

// cleanReadings exhibit normal sensor jitter and pacing: nothing for the
// heuristics to latch onto.
func cleanReadings() []location.Reading {
	return []location.Reading{
		reading(0, 0, 25, 0),
		reading(0.01, 0.01, 22, 5*time.Second),
		reading(-0.01, -0.01, 27, 10*time.Second),
	}
}

type scriptedSource struct {
	readings []location.Reading
	calls    int
	failAt   int // 1-based call index that errors; 0 = never
}

func (s *scriptedSource) next(_ context.Context) (location.Reading, error) {
	s.calls++
	if s.failAt != 0 && s.calls >= s.failAt {
		return location.Reading{}, &location.Error{Kind: location.KindPositionUnavailable, Message: "sensor gone"}
	}
	if s.calls > len(s.readings) {
		return location.Reading{}, &location.Error{Kind: location.KindPositionUnavailable, Message: "exhausted"}
	}
	return s.readings[s.calls-1], nil
}

func mediumThresholds() Thresholds {
	return Resolve(LevelMedium, 0, 0)
}

func TestSubjectForRole(t *testing.T) {
	cases := map[string]Subject{
		"teacher": ExemptFromGPSChecks,
		"admin":   ExemptFromGPSChecks,
		"Teacher": ExemptFromGPSChecks,
		"student": SubjectToGPSChecks,
		"":        SubjectToGPSChecks,
		"parent":  SubjectToGPSChecks,
	}
	for role, want := range cases {
		if got := SubjectForRole(role); got != want {
			t.Fatalf("SubjectForRole(%q) = %v, want %v", role, got, want)
		}
	}
}

func TestClassifyExemptNeverReadsLocation(t *testing.T) {
	for _, role := range []string{"teacher", "admin"} {
		src := &scriptedSource{}
		v := Classify(context.Background(), SubjectForRole(role), "Android SDK built for x86", mediumThresholds(), src.next)
		if v.Suspicious || len(v.Reasons) != 0 {
			t.Fatalf("role %s: verdict %+v, want clean with no reasons", role, v)
		}
		if src.calls != 0 {
			t.Fatalf("role %s: location read %d times, want 0", role, src.calls)
		}
	}
}

func TestClassifyCleanStudent(t *testing.T) {
	src := &scriptedSource{readings: cleanReadings()}
	v := Classify(context.Background(), SubjectToGPSChecks, "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)", mediumThresholds(), src.next)
	if v.Suspicious || len(v.Reasons) != 0 {
		t.Fatalf("clean readings flagged: %+v", v)
	}
	if src.calls != 3 {
		t.Fatalf("want exactly 3 sequential readings, got %d", src.calls)
	}
}

func TestClassifySingleSignalIsDiscarded(t *testing.T) {
	cases := []struct {
		name     string
		identity string
		readings []location.Reading
	}{
		{
			name:     "zero accuracy only",
			identity: "real phone",
			readings: []location.Reading{
				reading(0, 0, 0, 0),
				reading(0.01, 0.01, 22, 5*time.Second),
				reading(-0.01, -0.01, 27, 10*time.Second),
			},
		},
		{
			name:     "sub-decimeter accuracy only",
			identity: "real phone",
			readings: []location.Reading{
				reading(0, 0, 0.05, 0),
				reading(0.01, 0.01, 22, 5*time.Second),
				reading(-0.01, -0.01, 27, 10*time.Second),
			},
		},
		{
			name:     "emulator marker only",
			identity: "Android Emulator sdk_gphone64",
			readings: cleanReadings(),
		},
		{
			name:     "frozen coordinates only",
			identity: "real phone",
			readings: []location.Reading{
				reading(0, 0, 25, 0),
				reading(0.01, 0.01, 22, 5*time.Second),
				reading(0.01, 0.01, 22, 10*time.Second),
			},
		},
	}
	for _, c := range cases {
		src := &scriptedSource{readings: c.readings}
		v := Classify(context.Background(), SubjectToGPSChecks, c.identity, mediumThresholds(), src.next)
		if v.Suspicious {
			t.Fatalf("%s: single signal must not flag, got %+v", c.name, v)
		}
		if len(v.Reasons) != 0 {
			t.Fatalf("%s: reasons must be discarded below the gate, got %v", c.name, v.Reasons)
		}
	}
}

func TestClassifyCorroboratedSignalsFlag(t *testing.T) {
	// Zero accuracy plus frozen consecutive coordinates.
	src := &scriptedSource{readings: []location.Reading{
		reading(0, 0, 0, 0),
		reading(0.01, 0.01, 22, 5*time.Second),
		reading(0.01, 0.01, 22, 10*time.Second),
	}}
	v := Classify(context.Background(), SubjectToGPSChecks, "real phone", mediumThresholds(), src.next)
	if !v.Suspicious {
		t.Fatalf("two corroborating signals must flag, got %+v", v)
	}
	if len(v.Reasons) < 2 {
		t.Fatalf("want >= 2 reasons, got %v", v.Reasons)
	}
	assertHasReason(t, v.Reasons, ReasonZeroAccuracy)
	assertHasReason(t, v.Reasons, ReasonFrozenCoords)
}

func TestClassifyEmulatorPlusFrozen(t *testing.T) {
	src := &scriptedSource{readings: []location.Reading{
		reading(0, 0, 25, 0),
		reading(0.01, 0.01, 22, 5*time.Second),
		reading(0.01, 0.01, 22, 10*time.Second),
	}}
	v := Classify(context.Background(), SubjectToGPSChecks, "HeadlessChrome/119.0", mediumThresholds(), src.next)
	if !v.Suspicious {
		t.Fatalf("emulator plus frozen coords must flag, got %+v", v)
	}
	assertHasReason(t, v.Reasons, ReasonEmulator)
	assertHasReason(t, v.Reasons, ReasonFrozenCoords)
}

func TestClassifyImpossiblyFastReadings(t *testing.T) {
	// Gaps of 50ms against a 200ms floor, plus zero accuracy.
	src := &scriptedSource{readings: []location.Reading{
		reading(0, 0, 0, 0),
		reading(0.01, 0.01, 22, 50*time.Millisecond),
		reading(-0.01, -0.01, 27, 100*time.Millisecond),
	}}
	v := Classify(context.Background(), SubjectToGPSChecks, "real phone", mediumThresholds(), src.next)
	if !v.Suspicious {
		t.Fatalf("fast readings plus zero accuracy must flag, got %+v", v)
	}
	assertHasReason(t, v.Reasons, ReasonTooFast)
}

func TestClassifyFailsOpenOnAcquisitionError(t *testing.T) {
	for failAt := 1; failAt <= 3; failAt++ {
		src := &scriptedSource{readings: cleanReadings(), failAt: failAt}
		v := Classify(context.Background(), SubjectToGPSChecks, "Android Emulator", mediumThresholds(), src.next)
		if v.Suspicious {
			t.Fatalf("failure at reading %d must fail open, got %+v", failAt, v)
		}
		assertHasReason(t, v.Reasons, ReasonCheckError)
	}
}

func assertHasReason(t *testing.T, reasons []string, want string) {
	t.Helper()
	for _, r := range reasons {
		if r == want {
			return
		}
	}
	t.Fatalf("reasons %v missing %q", reasons, want)
}
