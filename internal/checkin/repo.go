package checkin

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository persists lessons and attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const reasonSeparator = "; "

// CreateLesson inserts a lesson and returns it with generated fields.
func (r *Repository) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	if l.TeacherID == "" {
		return Lesson{}, errors.New("teacher id required")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.DetectionLevel == "" {
		l.DetectionLevel = "medium"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO lessons (id, name, teacher_id, target_latitude, target_longitude, radius_meters, detection_level, allow_skip_gps, pin_validity_seconds)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, l.ID, l.Name, l.TeacherID, l.TargetLatitude, l.TargetLongitude, l.RadiusMeters, l.DetectionLevel, l.AllowSkipGPS, int(l.PINValidity.Seconds()))
	if err := row.Scan(&l.CreatedAt); err != nil {
		return Lesson{}, err
	}
	l.IsActive = true
	return l, nil
}

// IssuePIN sets a fresh PIN on the lesson and starts its validity
// window. Re-issuing replaces any previous PIN immediately.
func (r *Repository) IssuePIN(ctx context.Context, lessonID, pin string, validity time.Duration) (time.Time, error) {
	expiresAt := time.Now().UTC().Add(validity)
	res, err := r.db.ExecContext(ctx, `
		UPDATE lessons
		SET pin = $2, pin_expires_at = $3, pin_validity_seconds = $4, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
	`, lessonID, pin, expiresAt, int(validity.Seconds()))
	if err != nil {
		return time.Time{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return time.Time{}, errors.New("lesson not found or inactive")
	}
	return expiresAt, nil
}

// DeactivateLesson closes the lesson to further check-ins.
func (r *Repository) DeactivateLesson(ctx context.Context, lessonID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE lessons SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, lessonID)
	return err
}

// FindActiveLessonByPIN returns the active lesson whose unexpired PIN
// matches, or (nil, nil) when there is none.
func (r *Repository) FindActiveLessonByPIN(ctx context.Context, pin string) (*Lesson, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, teacher_id, target_latitude, target_longitude, radius_meters, detection_level, allow_skip_gps, pin_validity_seconds, pin, pin_expires_at, is_active, created_at
		FROM lessons
		WHERE pin = $1 AND is_active = TRUE AND pin_expires_at > NOW()
		LIMIT 1
	`, pin)
	var l Lesson
	var validitySeconds int
	if err := row.Scan(&l.ID, &l.Name, &l.TeacherID, &l.TargetLatitude, &l.TargetLongitude, &l.RadiusMeters, &l.DetectionLevel, &l.AllowSkipGPS, &validitySeconds, &l.PIN, &l.PINExpiresAt, &l.IsActive, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	l.PINValidity = time.Duration(validitySeconds) * time.Second
	return &l, nil
}

// UpsertAttendance writes the record for its (lesson, student) pair.
// A student re-entering a PIN updates the existing row rather than
// creating a duplicate.
func (r *Repository) UpsertAttendance(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, lesson_id, student_id, status, distance_meters, flagged_gps, reasons, latitude, longitude, accuracy_meters, fingerprint, user_agent)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (lesson_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			distance_meters = EXCLUDED.distance_meters,
			flagged_gps = EXCLUDED.flagged_gps,
			reasons = EXCLUDED.reasons,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			accuracy_meters = EXCLUDED.accuracy_meters,
			fingerprint = EXCLUDED.fingerprint,
			user_agent = EXCLUDED.user_agent,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, rec.ID, rec.LessonID, rec.StudentID, rec.Status, rec.DistanceMeters, rec.FlaggedGPS, joinReasons(rec.Reasons), rec.Latitude, rec.Longitude, rec.AccuracyMeters, rec.Fingerprint, rec.UserAgent)
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListAttendance returns the lesson's attendance records, most recent
// first.
func (r *Repository) ListAttendance(ctx context.Context, lessonID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lesson_id, student_id, status, distance_meters, flagged_gps, reasons, latitude, longitude, accuracy_meters, fingerprint, user_agent, created_at, updated_at
		FROM attendance_records
		WHERE lesson_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, lessonID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		var rec Record
		var reasons string
		if err := rows.Scan(&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Status, &rec.DistanceMeters, &rec.FlaggedGPS, &reasons, &rec.Latitude, &rec.Longitude, &rec.AccuracyMeters, &rec.Fingerprint, &rec.UserAgent, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Reasons = splitReasons(reasons)
		res = append(res, rec)
	}
	return res, rows.Err()
}

// User is a platform account able to authenticate.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// GetUserByUsername returns a user, or (nil, nil) when unknown.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users WHERE username = $1
	`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func joinReasons(reasons []string) string {
	return strings.Join(reasons, reasonSeparator)
}

func splitReasons(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, reasonSeparator)
}
