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

// UsageRepository tracks per-day chat and image counters.
type UsageRepository interface {
	// GetDailyUsage returns the counters for the day, zero-valued if no row exists yet.
	GetDailyUsage(ctx context.Context, studentID, usageDate string) (*model.DailyUsage, error)
	// IncrementWithCeiling adds one to the usage type's counter only while it is
	// below limit. It returns the post-increment count when allowed, and the
	// unchanged current count otherwise.
	IncrementWithCeiling(ctx context.Context, studentID, usageDate string, usageType model.UsageType, limit int) (count int, allowed bool, err error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

func usageColumn(t model.UsageType) (string, error) {
	switch t {
	case model.UsageChat:
		return "chats_used", nil
	case model.UsageImage:
		return "images_used", nil
	default:
		return "", fmt.Errorf("unknown usage type %q", t)
	}
}

func parseUsageDate(d string) (time.Time, error) {
	day, err := time.Parse(model.UsageDateLayout, d)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse usage date %q: %w", d, err)
	}
	return day, nil
}

// GetDailyUsage returns the counters for the day without creating a row.
func (r *usageRepo) GetDailyUsage(ctx context.Context, studentID, usageDate string) (*model.DailyUsage, error) {
	day, err := parseUsageDate(usageDate)
	if err != nil {
		return nil, err
	}
	const q = `
        SELECT chats_used, images_used
        FROM daily_usage
        WHERE student_id = $1 AND usage_date = $2
    `
	u := &model.DailyUsage{StudentID: studentID, UsageDate: usageDate}
	err = withReadRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, q, studentID, day).Scan(&u.ChatsUsed, &u.ImagesUsed)
	})
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("fetch daily usage for student %s: %w", studentID, err)
	}
	return u, nil
}

// IncrementWithCeiling creates the day's row if needed and then performs a
// single conditional UPDATE, so concurrent callers can never push the counter
// past limit.
func (r *usageRepo) IncrementWithCeiling(ctx context.Context, studentID, usageDate string, usageType model.UsageType, limit int) (int, bool, error) {
	col, err := usageColumn(usageType)
	if err != nil {
		return 0, false, err
	}
	day, err := parseUsageDate(usageDate)
	if err != nil {
		return 0, false, err
	}

	const insertQ = `
        INSERT INTO daily_usage (student_id, usage_date)
        VALUES ($1, $2)
        ON CONFLICT (student_id, usage_date) DO NOTHING
    `
	if _, err := r.pool.Exec(ctx, insertQ, studentID, day); err != nil {
		return 0, false, fmt.Errorf("create daily usage for student %s: %w", studentID, err)
	}

	// col comes from usageColumn's whitelist.
	updateQ := fmt.Sprintf(`
        UPDATE daily_usage
        SET %[1]s = %[1]s + 1, updated_at = NOW()
        WHERE student_id = $1 AND usage_date = $2 AND %[1]s < $3
        RETURNING %[1]s
    `, col)
	var count int
	err = r.pool.QueryRow(ctx, updateQ, studentID, day, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("increment %s for student %s: %w", col, studentID, err)
	}

	selectQ := fmt.Sprintf(`SELECT %s FROM daily_usage WHERE student_id = $1 AND usage_date = $2`, col)
	if err := r.pool.QueryRow(ctx, selectQ, studentID, day).Scan(&count); err != nil {
		return 0, false, fmt.Errorf("read %s for student %s: %w", col, studentID, err)
	}
	return count, false, nil
}
