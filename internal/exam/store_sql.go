package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-testseries/internal/grading"
	syncx "github.com/mind-engage/mindengage-testseries/internal/sync"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	grader grading.Grader
	events *syncx.EventRepo
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, g grading.Grader) *SQLStore {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	return &SQLStore{db: db, driver: driver, grader: g, events: syncx.NewEventRepo(db), now: time.Now}
}

func (s *SQLStore) PutTest(ctx context.Context, t Test) error {
	sj, err := json.Marshal(t.Sections)
	if err != nil {
		return err
	}
	qj, err := json.Marshal(t.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO tests (id,title,duration_seconds,sections_json,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, duration_seconds=EXCLUDED.duration_seconds,
			sections_json=EXCLUDED.sections_json, questions_json=EXCLUDED.questions_json`,
		t.ID, t.Title, t.DurationSeconds, string(sj), string(qj), s.now().Unix())
	return err
}

// getTestFull returns the test including answer keys.
func (s *SQLStore) getTestFull(ctx context.Context, q querier, id string) (Test, error) {
	row := q.QueryRowContext(ctx, `SELECT id,title,duration_seconds,sections_json,questions_json,created_at FROM tests WHERE id=$1`, id)
	var t Test
	var sj, qj string
	if err := row.Scan(&t.ID, &t.Title, &t.DurationSeconds, &sj, &qj, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Test{}, ErrTestNotFound
		}
		return Test{}, err
	}
	if err := json.Unmarshal([]byte(sj), &t.Sections); err != nil {
		return Test{}, fmt.Errorf("decode sections of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(qj), &t.Questions); err != nil {
		return Test{}, fmt.Errorf("decode questions of %s: %w", id, err)
	}
	return t, nil
}

func (s *SQLStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := s.getTestFull(ctx, s.db, id)
	if err != nil {
		return Test{}, err
	}
	return StripKeys(t), nil
}

func (s *SQLStore) ListTests(ctx context.Context) ([]TestSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,duration_seconds,questions_json FROM tests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TestSummary
	for rows.Next() {
		var ts TestSummary
		var qj string
		if err := rows.Scan(&ts.ID, &ts.Title, &ts.DurationSeconds, &qj); err != nil {
			return nil, err
		}
		var qs []json.RawMessage
		_ = json.Unmarshal([]byte(qj), &qs)
		ts.Questions = len(qs)
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetProgress(ctx context.Context, testID, userID string) (Progress, error) {
	if _, err := s.testExists(ctx, s.db, testID); err != nil {
		return Progress{}, err
	}
	a, err := s.attemptFor(ctx, s.db, testID, userID)
	if errors.Is(err, ErrAttemptNotFound) || (err == nil && a.Status != StatusInProgress) {
		return Progress{}, ErrProgressNotFound
	}
	if err != nil {
		return Progress{}, err
	}
	return a.Progress, nil
}

func (s *SQLStore) SaveProgress(ctx context.Context, testID, userID string, p Progress) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	t, err := s.getTestFull(ctx, tx, testID)
	if err != nil {
		return Attempt{}, err
	}
	p.Answers = filterAnswers(t, p.Answers)
	pj, _ := json.Marshal(p)

	a, err := s.attemptFor(ctx, tx, testID, userID)
	switch {
	case errors.Is(err, ErrAttemptNotFound):
		a = Attempt{ID: uuid.NewString(), TestID: testID, UserID: userID, Status: StatusInProgress, StartedAt: s.now().Unix()}
		res, err := tx.ExecContext(ctx, `INSERT INTO attempts (id,test_id,user_id,status,progress_json,time_left,started_at)
			VALUES ($1,$2,$3,'in_progress',$4,$5,$6)
			ON CONFLICT (test_id,user_id) DO NOTHING`,
			a.ID, testID, userID, string(pj), p.TimeLeft, a.StartedAt)
		if err != nil {
			return Attempt{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// lost a race with another writer for the same attempt
			return Attempt{}, fmt.Errorf("save progress %s/%s: concurrent attempt creation", testID, userID)
		}
	case err != nil:
		return Attempt{}, err
	case a.Status == StatusSubmitted:
		return a, ErrAlreadySubmitted
	default:
		res, err := tx.ExecContext(ctx, `UPDATE attempts SET progress_json=$1, time_left=$2 WHERE id=$3 AND status='in_progress'`,
			string(pj), p.TimeLeft, a.ID)
		if err != nil {
			return Attempt{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return a, ErrAlreadySubmitted
		}
	}
	a.Progress = p
	a.TimeLeft = p.TimeLeft

	if err := s.events.Tx(tx).Append(ctx, syncx.Event{
		Type: syncx.EventProgressSaved, Key: a.ID,
		DataJSON: fmt.Sprintf(`{"testId":%q,"userId":%q,"answers":%d,"timeLeft":%d}`, testID, userID, len(p.Answers), p.TimeLeft),
	}); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Submit(ctx context.Context, in SubmitInput) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	t, err := s.getTestFull(ctx, tx, in.TestID)
	if err != nil {
		return Attempt{}, err
	}
	a, err := s.attemptFor(ctx, tx, in.TestID, in.UserID)
	fresh := errors.Is(err, ErrAttemptNotFound)
	switch {
	case fresh:
		a = Attempt{ID: uuid.NewString(), TestID: in.TestID, UserID: in.UserID, StartedAt: s.now().Unix()}
	case err != nil:
		return Attempt{}, err
	case a.Status == StatusSubmitted:
		return a, ErrAlreadySubmitted
	}

	a.Answers = filterAnswers(t, in.Answers)
	a.Score, a.MaxScore = score(ctx, s.grader, t, a.Answers)
	a.TimeLeft = in.TimeLeft
	a.Status = StatusSubmitted
	a.SubmittedAt = s.now().Unix()
	a.Progress = Progress{}
	aj, _ := json.Marshal(a.Answers)

	var res sql.Result
	if fresh {
		res, err = tx.ExecContext(ctx, `INSERT INTO attempts (id,test_id,user_id,status,score,max_score,answers_json,progress_json,time_left,started_at,submitted_at)
			VALUES ($1,$2,$3,'submitted',$4,$5,$6,'{}',$7,$8,$9)
			ON CONFLICT (test_id,user_id) DO NOTHING`,
			a.ID, a.TestID, a.UserID, a.Score, a.MaxScore, string(aj), a.TimeLeft, a.StartedAt, a.SubmittedAt)
	} else {
		res, err = tx.ExecContext(ctx, `UPDATE attempts SET status='submitted', score=$1, max_score=$2, answers_json=$3,
			progress_json='{}', time_left=$4, submitted_at=$5 WHERE id=$6 AND status='in_progress'`,
			a.Score, a.MaxScore, string(aj), a.TimeLeft, a.SubmittedAt, a.ID)
	}
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		existing, err := s.attemptFor(ctx, s.db, in.TestID, in.UserID)
		if err != nil {
			return Attempt{}, err
		}
		return existing, ErrAlreadySubmitted
	}

	if err := s.events.Tx(tx).Append(ctx, syncx.Event{
		Type: syncx.EventAttemptSubmitted, Key: a.ID,
		DataJSON: fmt.Sprintf(`{"testId":%q,"userId":%q,"score":%g,"maxScore":%g}`, a.TestID, a.UserID, a.Score, a.MaxScore),
	}); err != nil {
		return Attempt{}, err
	}
	if err := tx.Commit(); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return s.scanAttempt(s.db.QueryRowContext(ctx, attemptSelect+` WHERE id=$1`, id))
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const attemptSelect = `SELECT id,test_id,user_id,status,score,max_score,answers_json,progress_json,time_left,started_at,submitted_at FROM attempts`

func (s *SQLStore) attemptFor(ctx context.Context, q querier, testID, userID string) (Attempt, error) {
	return s.scanAttempt(q.QueryRowContext(ctx, attemptSelect+` WHERE test_id=$1 AND user_id=$2`, testID, userID))
}

func (s *SQLStore) testExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	if err := q.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id=$1`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrTestNotFound
		}
		return false, err
	}
	return true, nil
}

func (s *SQLStore) scanAttempt(row *sql.Row) (Attempt, error) {
	var a Attempt
	var aj, pj string
	var submitted sql.NullInt64
	if err := row.Scan(&a.ID, &a.TestID, &a.UserID, &a.Status, &a.Score, &a.MaxScore, &aj, &pj, &a.TimeLeft, &a.StartedAt, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.SubmittedAt = submitted.Int64
	if err := json.Unmarshal([]byte(aj), &a.Answers); err != nil {
		a.Answers = map[string]string{}
	}
	if err := json.Unmarshal([]byte(pj), &a.Progress); err != nil {
		a.Progress = Progress{}
	}
	return a, nil
}

// Events exposes the change log written alongside progress and submissions.
func (s *SQLStore) Events() *syncx.EventRepo { return s.events }
