package lecture

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists lectures in a local SQLite database
type SQLiteStore struct {
	db    *sql.DB
	clock func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	// Immediate transactions take the write lock at BEGIN, where busy_timeout
	// applies, instead of failing on a read-to-write upgrade.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS lectures (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL,
    audio_url TEXT NOT NULL DEFAULT '',
    job_id TEXT NOT NULL DEFAULT '',
    transcript TEXT,
    user_keypoints TEXT NOT NULL DEFAULT '[]',
    ai_notes TEXT NOT NULL DEFAULT '',
    final_notes TEXT NOT NULL DEFAULT '',
    notes_edited INTEGER NOT NULL DEFAULT 0,
    fact_checks TEXT,
    error_message TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lectures_status_updated ON lectures(status, updated_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Create(ctx context.Context, l Lecture) (Lecture, error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.Status == "" {
		l.Status = StatusRecording
	}
	if l.Title == "" {
		l.Title = UntitledTitle
	}
	now := s.clock().UTC()
	l.CreatedAt, l.UpdatedAt = now, now

	if err := s.write(ctx, s.db, l, true); err != nil {
		return Lecture{}, fmt.Errorf("insert lecture: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) Get(ctx context.Context, ownerID, id string) (Lecture, error) {
	row := s.db.QueryRowContext(ctx, selectLecture+` WHERE id = ? AND owner_id = ?`, id, ownerID)
	return scanLecture(row)
}

// Update reads, applies u and writes inside one immediate transaction, so
// concurrent partial updates of different fields do not clobber each other.
func (s *SQLiteStore) Update(ctx context.Context, ownerID, id string, u Update) (Lecture, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Lecture{}, err
	}
	defer tx.Rollback()

	l, err := scanLecture(tx.QueryRowContext(ctx, selectLecture+` WHERE id = ? AND owner_id = ?`, id, ownerID))
	if err != nil {
		return Lecture{}, err
	}
	u.Apply(&l)
	l.UpdatedAt = s.clock().UTC()

	if err := s.write(ctx, tx, l, false); err != nil {
		return Lecture{}, fmt.Errorf("update lecture: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Lecture{}, err
	}
	return l, nil
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status, after Cursor, limit int) ([]Lecture, error) {
	if limit <= 0 {
		limit = 100
	}
	cursorTime := formatTime(after.UpdatedAt)
	rows, err := s.db.QueryContext(ctx, selectLecture+`
		WHERE status = ? AND (updated_at > ? OR (updated_at = ? AND id > ?))
		ORDER BY updated_at ASC, id ASC LIMIT ?`,
		string(status), cursorTime, cursorTime, after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("query lectures: %w", err)
	}
	defer rows.Close()

	var out []Lecture
	for rows.Next() {
		l, err := scanLecture(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const selectLecture = `SELECT id, owner_id, title, status, audio_url, job_id, transcript, user_keypoints,
	ai_notes, final_notes, notes_edited, fact_checks, error_message, created_at, updated_at FROM lectures`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) write(ctx context.Context, db execer, l Lecture, insert bool) error {
	keypoints, err := json.Marshal(nonNilKeypoints(l.UserKeypoints))
	if err != nil {
		return err
	}
	var factChecks sql.NullString
	if l.FactChecks != nil {
		data, err := json.Marshal(l.FactChecks)
		if err != nil {
			return err
		}
		factChecks = sql.NullString{String: string(data), Valid: true}
	}
	var transcript sql.NullString
	if l.Transcript != nil {
		transcript = sql.NullString{String: *l.Transcript, Valid: true}
	}
	edited := 0
	if l.NotesEdited {
		edited = 1
	}

	if insert {
		_, err = db.ExecContext(ctx,
			`INSERT INTO lectures(id, owner_id, title, status, audio_url, job_id, transcript, user_keypoints,
				ai_notes, final_notes, notes_edited, fact_checks, error_message, created_at, updated_at)
			 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.OwnerID, l.Title, string(l.Status), l.AudioURL, l.JobID, transcript, string(keypoints),
			l.AINotes, l.FinalNotes, edited, factChecks, l.ErrorMessage, formatTime(l.CreatedAt), formatTime(l.UpdatedAt))
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE lectures SET title = ?, status = ?, audio_url = ?, job_id = ?, transcript = ?, user_keypoints = ?,
			ai_notes = ?, final_notes = ?, notes_edited = ?, fact_checks = ?, error_message = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		l.Title, string(l.Status), l.AudioURL, l.JobID, transcript, string(keypoints),
		l.AINotes, l.FinalNotes, edited, factChecks, l.ErrorMessage, formatTime(l.UpdatedAt),
		l.ID, l.OwnerID)
	return err
}

func scanLecture(row scanner) (Lecture, error) {
	var (
		l                    Lecture
		status               string
		transcript           sql.NullString
		keypoints            string
		edited               int64
		factChecks           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&l.ID, &l.OwnerID, &l.Title, &status, &l.AudioURL, &l.JobID, &transcript, &keypoints,
		&l.AINotes, &l.FinalNotes, &edited, &factChecks, &l.ErrorMessage, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lecture{}, ErrNotFound
		}
		return Lecture{}, fmt.Errorf("scan lecture: %w", err)
	}

	l.Status = Status(status)
	l.NotesEdited = edited != 0
	if transcript.Valid {
		t := transcript.String
		l.Transcript = &t
	}
	if err := json.Unmarshal([]byte(keypoints), &l.UserKeypoints); err != nil {
		return Lecture{}, fmt.Errorf("decode keypoints: %w", err)
	}
	if factChecks.Valid {
		l.FactChecks = []FactCheckItem{}
		if err := json.Unmarshal([]byte(factChecks.String), &l.FactChecks); err != nil {
			return Lecture{}, fmt.Errorf("decode fact checks: %w", err)
		}
	}
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return l, nil
}

func nonNilKeypoints(k []Keypoint) []Keypoint {
	if k == nil {
		return []Keypoint{}
	}
	return k
}

// timeLayout is fixed width so stored timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
