package sqlcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-testseries/pkg/testsession/session"
)

// Store keeps the server-issued attempt id per test across restarts.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

var _ session.DraftCache = (*Store)(nil)

func New(db *sql.DB) *Store { return &Store{DB: db, now: time.Now} }

func (s *Store) LoadAttemptID(ctx context.Context, testID string) (string, bool, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `SELECT attempt_id FROM draft_attempts WHERE test_id=$1`, testID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) StoreAttemptID(ctx context.Context, testID, attemptID string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO draft_attempts (test_id, attempt_id, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (test_id)
		DO UPDATE SET attempt_id=EXCLUDED.attempt_id, updated_at=EXCLUDED.updated_at`,
		testID, attemptID, s.now().Unix())
	return err
}

func (s *Store) Clear(ctx context.Context, testID string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM draft_attempts WHERE test_id=$1`, testID)
	return err
}

func (s *Store) Close() error { return s.DB.Close() }
