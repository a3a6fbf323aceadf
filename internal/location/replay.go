package location

import "context"

// ReplaySource serves readings the client sampled on-device and
// submitted alongside its request, one per Acquire call in submission
// order. Replaying sequentially keeps inter-reading timing and jitter
// meaningful for the plausibility checks downstream.
type ReplaySource struct {
	readings []Reading
	next     int
}

// NewReplaySource wraps a batch of client-submitted readings.
func NewReplaySource(readings []Reading) *ReplaySource {
	return &ReplaySource{readings: readings}
}

// Acquire pops the next submitted reading. Running out of readings is
// reported as the position being unavailable.
func (s *ReplaySource) Acquire(ctx context.Context, _ Options) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, &Error{Kind: KindUnknown, Message: err.Error()}
	}
	if s.next >= len(s.readings) {
		return Reading{}, &Error{Kind: KindPositionUnavailable, Message: "no location reading supplied"}
	}
	r := s.readings[s.next]
	s.next++
	return r, nil
}
