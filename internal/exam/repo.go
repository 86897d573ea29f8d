package exam

import (
	"context"
	"errors"
)

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrProgressNotFound = errors.New("progress not found")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

// Store keeps tests and the single current attempt per (test, user).
//
// SaveProgress creates the in-progress attempt on first use. Submit grades
// and closes it; a repeated Submit returns ErrAlreadySubmitted together with
// the stored attempt.
type Store interface {
	PutTest(ctx context.Context, t Test) error
	GetTest(ctx context.Context, id string) (Test, error) // answer keys stripped
	ListTests(ctx context.Context) ([]TestSummary, error)

	GetProgress(ctx context.Context, testID, userID string) (Progress, error)
	SaveProgress(ctx context.Context, testID, userID string, p Progress) (Attempt, error)
	Submit(ctx context.Context, in SubmitInput) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
}
