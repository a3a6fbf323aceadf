package checkin

import (
	"context"
	"fmt"
	"time"

	"classpin/internal/audit"
	"classpin/internal/detection"
	"classpin/internal/geo"
	"classpin/internal/location"
)

// ReasonInvalidPIN is the terminal reason for a PIN that matches no
// active, non-expired lesson.
const ReasonInvalidPIN = "invalid or expired PIN"

// ReasonSkipped marks a check-in that bypassed the GPS flow with the
// lesson's consent.
const ReasonSkipped = "GPS check skipped"

// ReasonTooFarLabel is the fixed label under which geofence-only
// suspicion is counted. The user-facing reason prefixes it with the
// measured and allowed distances.
const ReasonTooFarLabel = "too far"

// Store is the persistence surface the service needs.
type Store interface {
	// FindActiveLessonByPIN returns the lesson whose current PIN matches,
	// filtered to active lessons with an unexpired PIN. (nil, nil) when
	// no lesson matches.
	FindActiveLessonByPIN(ctx context.Context, pin string) (*Lesson, error)
	// UpsertAttendance writes the record for its (lesson, student) pair,
	// updating in place when one already exists.
	UpsertAttendance(ctx context.Context, rec Record) (Record, error)
}

// Service sequences location acquisition, plausibility classification,
// geofencing, and persistence into one atomic decision per attempt.
type Service struct {
	store Store
	sink  *audit.Sink

	highTimeout  time.Duration
	lowTimeout   time.Duration
	maxCachedAge time.Duration
}

// NewService wires the orchestrator. The sink may be nil; auditing is
// best-effort throughout.
func NewService(store Store, sink *audit.Sink, highTimeout, lowTimeout, maxCachedAge time.Duration) *Service {
	return &Service{
		store:        store,
		sink:         sink,
		highTimeout:  highTimeout,
		lowTimeout:   lowTimeout,
		maxCachedAge: maxCachedAge,
	}
}

// Attempt carries everything one check-in needs. Source supplies the
// location readings for this attempt only.
type Attempt struct {
	PIN            string
	StudentID      string
	Role           string
	SkipGPS        bool
	DeviceIdentity string
	Fingerprint    string
	UserAgent      string
	Source         location.Source
}

// Do runs one complete check-in attempt. A returned error is a system
// failure (lookup or persistence); the caller must not report any
// decision in that case. All heuristic and policy outcomes, including
// rejections, come back as a Decision with a nil error.
func (s *Service) Do(ctx context.Context, att Attempt) (Decision, error) {
	lesson, err := s.store.FindActiveLessonByPIN(ctx, att.PIN)
	if err != nil {
		return Decision{}, fmt.Errorf("lesson lookup: %w", err)
	}
	if lesson == nil {
		d := Decision{Status: StatusRejected, Reasons: []string{ReasonInvalidPIN}}
		s.record(ctx, att.StudentID, "", d)
		return d, nil
	}

	if att.SkipGPS && lesson.AllowSkipGPS {
		d := Decision{Status: StatusPresent, Reasons: []string{ReasonSkipped}}
		if err := s.persist(ctx, lesson, att, d, location.Reading{}); err != nil {
			return Decision{}, err
		}
		s.record(ctx, att.StudentID, lesson.ID, d)
		return d, nil
	}

	acq := location.NewAcquirer(att.Source, s.highTimeout, s.lowTimeout, s.maxCachedAge)
	reading, err := acq.Acquire(ctx)
	if err != nil {
		d := Decision{Status: StatusRejected, Reasons: []string{remediationHint(err)}}
		if perr := s.persist(ctx, lesson, att, d, location.Reading{}); perr != nil {
			return Decision{}, perr
		}
		s.record(ctx, att.StudentID, lesson.ID, d)
		return d, nil
	}

	th := detection.Resolve(detection.ParseLevel(lesson.DetectionLevel), lesson.RadiusMeters, lesson.PINValidity)
	verdict := detection.Classify(ctx, detection.SubjectForRole(att.Role), att.DeviceIdentity, th, firstThen(reading, acq))

	fence := geo.Fence{Latitude: lesson.TargetLatitude, Longitude: lesson.TargetLongitude, RadiusMeters: lesson.RadiusMeters}
	res := fence.Evaluate(reading.Latitude, reading.Longitude)

	var d Decision
	switch {
	case verdict.Suspicious:
		d = Decision{Status: StatusSuspicious, DistanceMeters: res.DistanceMeters, FlaggedGPS: true, Reasons: verdict.Reasons}
	case !res.WithinRadius:
		reason := fmt.Sprintf("%s: %.0fm (allowed %.0fm)", ReasonTooFarLabel, res.DistanceMeters, lesson.RadiusMeters)
		d = Decision{Status: StatusSuspicious, DistanceMeters: res.DistanceMeters, Reasons: []string{reason}}
	default:
		d = Decision{Status: StatusPresent, DistanceMeters: res.DistanceMeters}
	}

	if err := s.persist(ctx, lesson, att, d, reading); err != nil {
		return Decision{}, err
	}
	s.record(ctx, att.StudentID, lesson.ID, d)
	return d, nil
}

// firstThen yields the already-acquired reading once, then defers to the
// acquirer. Keeps the geofence reading and the classifier's first
// reading the same sample without acquiring it twice.
func firstThen(first location.Reading, acq *location.Acquirer) detection.ReadingFunc {
	used := false
	return func(ctx context.Context) (location.Reading, error) {
		if !used {
			used = true
			return first, nil
		}
		return acq.Acquire(ctx)
	}
}

func (s *Service) persist(ctx context.Context, lesson *Lesson, att Attempt, d Decision, reading location.Reading) error {
	rec := Record{
		LessonID:       lesson.ID,
		StudentID:      att.StudentID,
		Status:         d.Status,
		DistanceMeters: d.DistanceMeters,
		FlaggedGPS:     d.FlaggedGPS,
		Reasons:        d.Reasons,
		Latitude:       reading.Latitude,
		Longitude:      reading.Longitude,
		AccuracyMeters: reading.AccuracyMeters,
		Fingerprint:    att.Fingerprint,
		UserAgent:      att.UserAgent,
	}
	if _, err := s.store.UpsertAttendance(ctx, rec); err != nil {
		return fmt.Errorf("attendance upsert: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, studentID, lessonID string, d Decision) {
	details := fmt.Sprintf("lesson=%s status=%s distance=%.0fm flagged=%t", lessonID, d.Status, d.DistanceMeters, d.FlaggedGPS)
	s.sink.Record(ctx, studentID, "checkin.attempt", details)
}

// remediationHint maps a platform location failure to a user-facing
// suggestion. The raw error never reaches the student.
func remediationHint(err error) string {
	switch location.KindOf(err) {
	case location.KindPermissionDenied:
		return "location permission denied - allow location access and retry"
	case location.KindPositionUnavailable:
		return "location unavailable - turn on device location services and retry"
	case location.KindTimeout:
		return "location request timed out - move somewhere with better reception and retry"
	default:
		return "location error - please retry"
	}
}
