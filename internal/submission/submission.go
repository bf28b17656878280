// Package submission persists contact-form submissions as an append-only log.
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStorageCorrupt means the backing collection exists but cannot be read as structured data.
	ErrStorageCorrupt = errors.New("submission storage corrupt")
	// ErrStorageWrite means a durable write could not complete; nothing was committed.
	ErrStorageWrite = errors.New("submission storage write failed")
)

// Submission is one durably recorded contact-form entry.
type Submission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Draft is a submission before the store has assigned its id and timestamp.
type Draft struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// Store is the append-only record of submissions. Records come back in creation order.
type Store interface {
	List(ctx context.Context) ([]Submission, error)
	Append(ctx context.Context, d Draft) (Submission, error)
	Close() error
}

// Open returns the store for the given driver ("file" or "sqlite").
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown submission store driver %q", driver)
	}
}

type stamper struct {
	now   func() time.Time
	newID func() (string, error)
}

func defaultStamper() stamper {
	return stamper{
		now: time.Now,
		newID: func() (string, error) {
			// v7 ids sort by creation time
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

func (s stamper) stamp(d Draft) (Submission, error) {
	id, err := s.newID()
	if err != nil {
		return Submission{}, fmt.Errorf("%w: unable to generate id - %w", ErrStorageWrite, err)
	}
	return Submission{
		ID:        id,
		Name:      d.Name,
		Email:     d.Email,
		Subject:   d.Subject,
		Message:   d.Message,
		Timestamp: s.now().UTC(),
	}, nil
}
