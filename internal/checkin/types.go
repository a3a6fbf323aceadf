package checkin

import "time"

// Status is the terminal outcome of one check-in attempt.
type Status string

const (
	StatusPresent    Status = "present"
	StatusSuspicious Status = "suspicious"
	StatusRejected   Status = "rejected"
)

// Lesson is the policy a teacher configured for one class session. The
// check-in flow reads it, never writes it.
type Lesson struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	TeacherID       string        `json:"teacher_id"`
	TargetLatitude  float64       `json:"target_latitude"`
	TargetLongitude float64       `json:"target_longitude"`
	RadiusMeters    float64       `json:"radius_meters"`
	DetectionLevel  string        `json:"detection_level"`
	AllowSkipGPS    bool          `json:"allow_skip_gps"`
	PINValidity     time.Duration `json:"-"`
	PIN             string        `json:"-"`
	PINExpiresAt    time.Time     `json:"pin_expires_at"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Decision is the terminal output of one check-in attempt.
type Decision struct {
	Status         Status   `json:"status"`
	DistanceMeters float64  `json:"distance_meters"`
	FlaggedGPS     bool     `json:"flagged_gps"`
	Reasons        []string `json:"reasons,omitempty"`
}

// MetricReasons returns the bounded label set for this decision.
// Classifier suspicion carries only the fixed heuristic reason strings;
// geofence-only suspicion collapses to the single too-far label. The
// formatted distance reason never leaves here, so metric label
// cardinality stays fixed.
func (d Decision) MetricReasons() []string {
	if d.Status != StatusSuspicious {
		return nil
	}
	if d.FlaggedGPS {
		return d.Reasons
	}
	return []string{ReasonTooFarLabel}
}

// Record is one persisted attendance row. Exactly one exists per
// (lesson, student) pair; repeat check-ins update it in place.
type Record struct {
	ID             string    `json:"id"`
	LessonID       string    `json:"lesson_id"`
	StudentID      string    `json:"student_id"`
	Status         Status    `json:"status"`
	DistanceMeters float64   `json:"distance_meters"`
	FlaggedGPS     bool      `json:"flagged_gps"`
	Reasons        []string  `json:"reasons,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters"`
	Fingerprint    string    `json:"fingerprint,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
