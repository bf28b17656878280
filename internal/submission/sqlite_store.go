package submission

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const createSubmissionsTable = `
CREATE TABLE IF NOT EXISTS submissions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	subject TEXT NOT NULL,
	message TEXT NOT NULL,
	timestamp TEXT NOT NULL
)`

// SQLiteStore keeps submissions in an embedded SQLite database. The seq column
// fixes creation order; rows are only ever inserted.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
	stamper
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("unable to create %s - %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database - %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSubmissionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: unable to create submissions table - %w", ErrStorageCorrupt, err)
	}

	return &SQLiteStore{db: db, stamper: defaultStamper()}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, subject, message, timestamp
		FROM submissions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to query submissions - %w", ErrStorageCorrupt, err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var sub Submission
		var ts string
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Email, &sub.Subject, &sub.Message, &ts); err != nil {
			return nil, fmt.Errorf("%w: unable to scan submission - %w", ErrStorageCorrupt, err)
		}
		sub.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp on %s - %w", ErrStorageCorrupt, sub.ID, err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	return subs, nil
}

func (s *SQLiteStore) Append(ctx context.Context, d Draft) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.stamp(d)
	if err != nil {
		return Submission{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, name, email, subject, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.Name, sub.Email, sub.Subject, sub.Message, sub.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return Submission{}, fmt.Errorf("%w: unable to insert submission - %w", ErrStorageWrite, err)
	}
	return sub, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
