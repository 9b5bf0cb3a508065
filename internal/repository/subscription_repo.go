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

// ExpiredSubscription identifies a lapsed pro subscription and the owner's type.
type ExpiredSubscription struct {
	StudentID   string
	StudentType model.StudentType
	EndDate     time.Time
}

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// GetSubscription returns ErrNotFound when the student has no persisted record.
	GetSubscription(ctx context.Context, studentID string) (*model.Subscription, error)
	ListByStudents(ctx context.Context, studentIDs []string) (map[string]*model.Subscription, error)
	// DebitTTS adds chars to tts_used only when the whole amount fits and the
	// pro window is open at now. ok is false when nothing was debited.
	DebitTTS(ctx context.Context, studentID string, chars int, now time.Time) (sub *model.Subscription, ok bool, err error)
	// Downgrade moves the student to plan with no expiry. A student without a
	// persisted record is already on the base plan and is left alone.
	Downgrade(ctx context.Context, studentID string, plan model.PlanTier) error
	ListExpired(ctx context.Context, now time.Time) ([]ExpiredSubscription, error)
	// DowngradeIfExpired downgrades only while the record is still an expired
	// pro subscription, so a renewal that landed in between is kept.
	DowngradeIfExpired(ctx context.Context, studentID string, plan model.PlanTier, now time.Time) (bool, error)
}

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepo creates a new SubscriptionRepository.
func NewSubscriptionRepo(pool *pgxpool.Pool) SubscriptionRepository {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id::text, student_id, plan, start_date, end_date, tts_used, tts_limit, is_active, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	var plan string
	err := row.Scan(
		&s.ID,
		&s.StudentID,
		&plan,
		&s.StartDate,
		&s.EndDate,
		&s.TTSUsed,
		&s.TTSLimit,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Plan, _ = model.LookupEntitlements(plan)
	s.Persisted = true
	return &s, nil
}

// GetSubscription returns the student's subscription record.
func (r *subscriptionRepo) GetSubscription(ctx context.Context, studentID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE student_id = $1`
	var sub *model.Subscription
	err := withReadRetry(ctx, func(ctx context.Context) error {
		var err error
		sub, err = scanSubscription(r.pool.QueryRow(ctx, q, studentID))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch subscription for student %s: %w", studentID, notFound(err))
	}
	return sub, nil
}

// ListByStudents returns the persisted subscriptions keyed by student id.
func (r *subscriptionRepo) ListByStudents(ctx context.Context, studentIDs []string) (map[string]*model.Subscription, error) {
	out := make(map[string]*model.Subscription, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE student_id = ANY($1)`
	err := withReadRetry(ctx, func(ctx context.Context) error {
		rows, err := r.pool.Query(ctx, q, studentIDs)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			sub, err := scanSubscription(rows)
			if err != nil {
				return err
			}
			out[sub.StudentID] = sub
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for %d students: %w", len(studentIDs), err)
	}
	return out, nil
}

// DebitTTS atomically consumes premium voice characters.
func (r *subscriptionRepo) DebitTTS(ctx context.Context, studentID string, chars int, now time.Time) (*model.Subscription, bool, error) {
	q := `
        UPDATE subscriptions
        SET tts_used = tts_used + $2, updated_at = NOW()
        WHERE student_id = $1
          AND plan = 'pro'
          AND is_active
          AND (end_date IS NULL OR end_date >= $3)
          AND tts_used + $2 <= tts_limit
        RETURNING ` + subscriptionColumns
	sub, err := scanSubscription(r.pool.QueryRow(ctx, q, studentID, chars, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("debit %d tts chars for student %s: %w", chars, studentID, err)
	}
	return sub, true, nil
}

// Downgrade resets the student to plan, clearing the activation window and
// the premium voice allowance.
func (r *subscriptionRepo) Downgrade(ctx context.Context, studentID string, plan model.PlanTier) error {
	const q = `
        UPDATE subscriptions
        SET plan = $2,
            end_date = NULL,
            is_active = TRUE,
            tts_used = 0,
            tts_limit = 0,
            updated_at = NOW()
        WHERE student_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, studentID, string(plan)); err != nil {
		return fmt.Errorf("downgrade student %s to %s: %w", studentID, plan, err)
	}
	return nil
}

// ListExpired returns every pro subscription whose window closed before now.
// Students without a profile default to school students.
func (r *subscriptionRepo) ListExpired(ctx context.Context, now time.Time) ([]ExpiredSubscription, error) {
	const q = `
        SELECT s.student_id, COALESCE(st.student_type, 'school_student'), s.end_date
        FROM subscriptions s
        LEFT JOIN students st ON st.id = s.student_id
        WHERE s.plan = 'pro' AND s.end_date < $1
        ORDER BY s.end_date
    `
	var out []ExpiredSubscription
	err := withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, q, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e ExpiredSubscription
			var studentType string
			if err := rows.Scan(&e.StudentID, &studentType, &e.EndDate); err != nil {
				return err
			}
			e.StudentType = model.StudentType(studentType)
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}
	return out, nil
}

// DowngradeIfExpired applies the downgrade under the same predicate the scan used.
func (r *subscriptionRepo) DowngradeIfExpired(ctx context.Context, studentID string, plan model.PlanTier, now time.Time) (bool, error) {
	const q = `
        UPDATE subscriptions
        SET plan = $2,
            end_date = NULL,
            is_active = TRUE,
            tts_used = 0,
            tts_limit = 0,
            updated_at = NOW()
        WHERE student_id = $1 AND plan = 'pro' AND end_date < $3
    `
	tag, err := r.pool.Exec(ctx, q, studentID, string(plan), now)
	if err != nil {
		return false, fmt.Errorf("downgrade expired subscription for student %s: %w", studentID, err)
	}
	return tag.RowsAffected() == 1, nil
}
