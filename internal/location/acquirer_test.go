package location

import (
	"context"
	"testing"
	"time"
)

type recordingSource struct {
	opts    []Options
	results []struct {
		r   Reading
		err error
	}
}

func (s *recordingSource) push(r Reading, err error) {
	s.results = append(s.results, struct {
		r   Reading
		err error
	}{r, err})
}

func (s *recordingSource) Acquire(_ context.Context, opts Options) (Reading, error) {
	s.opts = append(s.opts, opts)
	if len(s.results) == 0 {
		return Reading{}, &Error{Kind: KindUnknown, Message: "unscripted"}
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res.r, res.err
}

func TestAcquirerHappyPath(t *testing.T) {
	src := &recordingSource{}
	src.push(Reading{Latitude: 1, Longitude: 2, AccuracyMeters: 10}, nil)

	r, err := NewAcquirer(src, 0, 0, 0).Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if r.Latitude != 1 || r.Longitude != 2 {
		t.Fatalf("wrong reading: %+v", r)
	}
	if len(src.opts) != 1 {
		t.Fatalf("want a single attempt, got %d", len(src.opts))
	}
	if !src.opts[0].HighAccuracy {
		t.Fatalf("first attempt must request high accuracy")
	}
	if src.opts[0].MaxCachedAge != 0 {
		t.Fatalf("first attempt must reject cached fixes, got %v", src.opts[0].MaxCachedAge)
	}
}

func TestAcquirerRetriesRelaxedOnTimeoutOnly(t *testing.T) {
	src := &recordingSource{}
	src.push(Reading{}, &Error{Kind: KindTimeout, Message: "fix took too long"})
	src.push(Reading{Latitude: 5}, nil)

	acq := NewAcquirer(src, 20*time.Second, 8*time.Second, 30*time.Second)
	r, err := acq.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if r.Latitude != 5 {
		t.Fatalf("retry reading not returned: %+v", r)
	}
	if len(src.opts) != 2 {
		t.Fatalf("want 2 attempts, got %d", len(src.opts))
	}
	retry := src.opts[1]
	if retry.HighAccuracy {
		t.Fatalf("retry must relax accuracy")
	}
	if retry.Timeout != 8*time.Second {
		t.Fatalf("retry timeout = %v, want 8s", retry.Timeout)
	}
	if retry.MaxCachedAge != 30*time.Second {
		t.Fatalf("retry must accept cached fixes up to 30s, got %v", retry.MaxCachedAge)
	}
}

func TestAcquirerPropagatesHardFailures(t *testing.T) {
	for _, kind := range []ErrorKind{KindPermissionDenied, KindPositionUnavailable, KindUnknown} {
		src := &recordingSource{}
		src.push(Reading{}, &Error{Kind: kind})

		_, err := NewAcquirer(src, 0, 0, 0).Acquire(context.Background())
		if err == nil {
			t.Fatalf("kind %v: want error", kind)
		}
		if KindOf(err) != kind {
			t.Fatalf("kind %v lost: got %v", kind, KindOf(err))
		}
		if len(src.opts) != 1 {
			t.Fatalf("kind %v: no low-accuracy retry allowed, got %d attempts", kind, len(src.opts))
		}
	}
}

func TestAcquirerRetryFailureSurfaces(t *testing.T) {
	src := &recordingSource{}
	src.push(Reading{}, &Error{Kind: KindTimeout})
	src.push(Reading{}, &Error{Kind: KindTimeout})

	_, err := NewAcquirer(src, 0, 0, 0).Acquire(context.Background())
	if err == nil {
		t.Fatalf("want error after both tiers time out")
	}
	if KindOf(err) != KindTimeout {
		t.Fatalf("got kind %v, want timeout", KindOf(err))
	}
	if len(src.opts) != 2 {
		t.Fatalf("exactly one retry allowed, got %d attempts", len(src.opts))
	}
}

func TestReplaySourceSequential(t *testing.T) {
	readings := []Reading{{Latitude: 1}, {Latitude: 2}, {Latitude: 3}}
	src := NewReplaySource(readings)

	for i, want := range []float64{1, 2, 3} {
		r, err := src.Acquire(context.Background(), Options{})
		if err != nil {
			t.Fatalf("reading %d: %v", i, err)
		}
		if r.Latitude != want {
			t.Fatalf("reading %d out of order: %+v", i, r)
		}
	}

	_, err := src.Acquire(context.Background(), Options{})
	if KindOf(err) != KindPositionUnavailable {
		t.Fatalf("exhausted source: got %v, want position unavailable", err)
	}
}
