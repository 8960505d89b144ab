package journal

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mzanella/watchpot/internal/errors"
)

// Event kinds.
const (
	KindCapture  = "capture"
	KindDispatch = "dispatch"
	KindPrune    = "prune"
)

// Event outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Event is one recorded capture/dispatch/prune outcome.
type Event struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Outcome   string `json:"outcome"`
	Bucket    string `json:"bucket,omitempty"` // YYYYMMDD
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Record inserts an event, assigning it a fresh ULID.
func Record(db *sql.DB, kind, outcome, bucket, detail string) error {
	id, err := newULID()
	if err != nil {
		return errors.NewInternal(err)
	}

	var bucketVal sql.NullString
	if bucket != "" {
		bucketVal = sql.NullString{String: bucket, Valid: true}
	}
	var detailVal sql.NullString
	if detail != "" {
		detailVal = sql.NullString{String: detail, Valid: true}
	}

	_, err = db.Exec(
		`INSERT INTO events (id, kind, outcome, bucket, detail, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, kind, outcome, bucketVal, detailVal, time.Now().Unix(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RecentErrors returns the newest error events, most recent first.
func RecentErrors(db *sql.DB, limit int) ([]Event, error) {
	return query(db,
		`SELECT id, kind, outcome, bucket, detail, created_at
		 FROM events WHERE outcome = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		OutcomeError, limit)
}

// RecentEvents returns the newest events, most recent first. An empty bucket
// selects across all buckets.
func RecentEvents(db *sql.DB, bucket string, limit int) ([]Event, error) {
	if bucket != "" {
		return query(db,
			`SELECT id, kind, outcome, bucket, detail, created_at
			 FROM events WHERE bucket = ?
			 ORDER BY created_at DESC, id DESC LIMIT ?`,
			bucket, limit)
	}
	return query(db,
		`SELECT id, kind, outcome, bucket, detail, created_at
		 FROM events
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit)
}

func query(db *sql.DB, q string, args ...any) ([]Event, error) {
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var bucket, detail sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &e.Outcome, &bucket, &detail, &e.CreatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.Bucket = bucket.String
		e.Detail = detail.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return events, nil
}

func newULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
