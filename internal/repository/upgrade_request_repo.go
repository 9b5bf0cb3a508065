package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studybuddy/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Activation is the subscription state written when a request is approved.
type Activation struct {
	Plan      model.PlanTier
	StartDate time.Time
	EndDate   time.Time
	// ResetTTS sets tts_used to 0 and tts_limit to TTSLimit.
	ResetTTS bool
	TTSLimit int
}

// UpgradeRequestRepository stores upgrade requests and applies their outcomes.
type UpgradeRequestRepository interface {
	// Create inserts a pending request. A second pending request for the same
	// student fails with ErrDuplicatePending.
	Create(ctx context.Context, req *model.UpgradeRequest) error
	GetByID(ctx context.Context, id string) (*model.UpgradeRequest, error)
	GetPending(ctx context.Context, studentID string) (*model.UpgradeRequest, error)
	GetLatest(ctx context.Context, studentID string) (*model.UpgradeRequest, error)
	// ListByStudents returns requests for the students, newest first.
	ListByStudents(ctx context.Context, studentIDs []string) ([]model.UpgradeRequest, error)
	// Approve marks a pending request approved and writes the activation in one
	// transaction, holding the subscription row lock. Returns ErrNotPending if
	// the request was already processed.
	Approve(ctx context.Context, id, institutionID string, now time.Time, act Activation) error
	// Reject returns ErrNotPending if the request was already processed.
	Reject(ctx context.Context, id, institutionID, reason string, now time.Time) error
	// Block terminates the student's pending requests as blocked and downgrades
	// the subscription to basePlan in one transaction.
	Block(ctx context.Context, studentID, institutionID string, basePlan model.PlanTier, now time.Time) (blocked int64, err error)
}

type upgradeRequestRepo struct {
	pool *pgxpool.Pool
}

// NewUpgradeRequestRepo creates a new UpgradeRequestRepository.
func NewUpgradeRequestRepo(pool *pgxpool.Pool) UpgradeRequestRepository {
	return &upgradeRequestRepo{pool: pool}
}

const requestColumns = `id::text, student_id, requested_plan, status, requested_at, processed_at, processed_by, rejection_reason`

func scanRequest(row pgx.Row) (*model.UpgradeRequest, error) {
	var req model.UpgradeRequest
	var plan, status string
	err := row.Scan(
		&req.ID,
		&req.StudentID,
		&plan,
		&status,
		&req.RequestedAt,
		&req.ProcessedAt,
		&req.ProcessedBy,
		&req.RejectionReason,
	)
	if err != nil {
		return nil, err
	}
	req.RequestedPlan = model.PlanTier(plan)
	req.Status = model.RequestStatus(status)
	return &req, nil
}

// Create inserts a new pending request.
func (r *upgradeRequestRepo) Create(ctx context.Context, req *model.UpgradeRequest) error {
	const q = `
        INSERT INTO upgrade_requests (id, student_id, requested_plan, status, requested_at)
        VALUES ($1, $2, $3, 'pending', $4)
    `
	_, err := r.pool.Exec(ctx, q, req.ID, req.StudentID, string(req.RequestedPlan), req.RequestedAt)
	if isUniqueViolation(err) {
		return ErrDuplicatePending
	}
	if err != nil {
		return fmt.Errorf("insert upgrade request for student %s: %w", req.StudentID, err)
	}
	req.Status = model.RequestPending
	return nil
}

func (r *upgradeRequestRepo) getOne(ctx context.Context, q string, arg any) (*model.UpgradeRequest, error) {
	var req *model.UpgradeRequest
	err := withReadRetry(ctx, func(ctx context.Context) error {
		var err error
		req, err = scanRequest(r.pool.QueryRow(ctx, q, arg))
		return err
	})
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

// GetByID returns a request by id.
func (r *upgradeRequestRepo) GetByID(ctx context.Context, id string) (*model.UpgradeRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM upgrade_requests WHERE id = $1::uuid`
	req, err := r.getOne(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("fetch upgrade request %s: %w", id, err)
	}
	return req, nil
}

// GetPending returns the student's pending request.
func (r *upgradeRequestRepo) GetPending(ctx context.Context, studentID string) (*model.UpgradeRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM upgrade_requests WHERE student_id = $1 AND status = 'pending'`
	req, err := r.getOne(ctx, q, studentID)
	if err != nil {
		return nil, fmt.Errorf("fetch pending request for student %s: %w", studentID, err)
	}
	return req, nil
}

// GetLatest returns the student's most recent request of any status.
func (r *upgradeRequestRepo) GetLatest(ctx context.Context, studentID string) (*model.UpgradeRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM upgrade_requests WHERE student_id = $1 ORDER BY requested_at DESC LIMIT 1`
	req, err := r.getOne(ctx, q, studentID)
	if err != nil {
		return nil, fmt.Errorf("fetch latest request for student %s: %w", studentID, err)
	}
	return req, nil
}

// ListByStudents returns every request for the given students.
func (r *upgradeRequestRepo) ListByStudents(ctx context.Context, studentIDs []string) ([]model.UpgradeRequest, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	q := `SELECT ` + requestColumns + ` FROM upgrade_requests WHERE student_id = ANY($1) ORDER BY requested_at DESC`
	var out []model.UpgradeRequest
	err := withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, q, studentIDs)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			req, err := scanRequest(rows)
			if err != nil {
				return err
			}
			out = append(out, *req)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list upgrade requests for %d students: %w", len(studentIDs), err)
	}
	return out, nil
}

// Approve transitions the request and activates the plan.
func (r *upgradeRequestRepo) Approve(ctx context.Context, id, institutionID string, now time.Time, act Activation) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for approve %s: %w", id, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var studentID, status string
	const lockReqQ = `SELECT student_id, status FROM upgrade_requests WHERE id = $1::uuid FOR UPDATE`
	if err := tx.QueryRow(ctx, lockReqQ, id).Scan(&studentID, &status); err != nil {
		return fmt.Errorf("lock upgrade request %s: %w", id, notFound(err))
	}
	if model.RequestStatus(status) != model.RequestPending {
		return ErrNotPending
	}

	// Serialises with the expiry sweep and concurrent debits for this student.
	const lockSubQ = `SELECT 1 FROM subscriptions WHERE student_id = $1 FOR UPDATE`
	var one int
	if err := tx.QueryRow(ctx, lockSubQ, studentID).Scan(&one); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock subscription for student %s: %w", studentID, err)
	}

	const updReqQ = `
        UPDATE upgrade_requests
        SET status = 'approved', processed_at = $2, processed_by = $3
        WHERE id = $1::uuid
    `
	if _, err := tx.Exec(ctx, updReqQ, id, now, institutionID); err != nil {
		return fmt.Errorf("approve upgrade request %s: %w", id, err)
	}

	const upsertQ = `
        INSERT INTO subscriptions (student_id, plan, start_date, end_date, tts_used, tts_limit, is_active)
        VALUES ($1, $2, $3, $4, 0, $5, TRUE)
        ON CONFLICT (student_id) DO UPDATE
        SET plan = EXCLUDED.plan,
            start_date = EXCLUDED.start_date,
            end_date = EXCLUDED.end_date,
            is_active = TRUE,
            tts_used = CASE WHEN $6 THEN 0 ELSE subscriptions.tts_used END,
            tts_limit = CASE WHEN $6 THEN EXCLUDED.tts_limit ELSE subscriptions.tts_limit END,
            updated_at = NOW()
    `
	if _, err := tx.Exec(ctx, upsertQ, studentID, string(act.Plan), act.StartDate, act.EndDate, act.TTSLimit, act.ResetTTS); err != nil {
		return fmt.Errorf("activate %s for student %s: %w", act.Plan, studentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing approve %s: %w", id, err)
	}
	return nil
}

// Reject transitions a pending request to rejected.
func (r *upgradeRequestRepo) Reject(ctx context.Context, id, institutionID, reason string, now time.Time) error {
	const q = `
        UPDATE upgrade_requests
        SET status = 'rejected', processed_at = $2, processed_by = $3, rejection_reason = $4
        WHERE id = $1::uuid AND status = 'pending'
    `
	tag, err := r.pool.Exec(ctx, q, id, now, institutionID, reason)
	if err != nil {
		return fmt.Errorf("reject upgrade request %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// Block ends pending requests and force-downgrades the student.
func (r *upgradeRequestRepo) Block(ctx context.Context, studentID, institutionID string, basePlan model.PlanTier, now time.Time) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("starting transaction for block %s: %w", studentID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const blockQ = `
        UPDATE upgrade_requests
        SET status = 'blocked', processed_at = $2, processed_by = $3
        WHERE student_id = $1 AND status = 'pending'
    `
	tag, err := tx.Exec(ctx, blockQ, studentID, now, institutionID)
	if err != nil {
		return 0, fmt.Errorf("block pending requests for student %s: %w", studentID, err)
	}

	const downgradeQ = `
        UPDATE subscriptions
        SET plan = $2, end_date = NULL, is_active = TRUE, tts_used = 0, tts_limit = 0, updated_at = NOW()
        WHERE student_id = $1
    `
	if _, err := tx.Exec(ctx, downgradeQ, studentID, string(basePlan)); err != nil {
		return 0, fmt.Errorf("downgrade blocked student %s: %w", studentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing block %s: %w", studentID, err)
	}
	return tag.RowsAffected(), nil
}
