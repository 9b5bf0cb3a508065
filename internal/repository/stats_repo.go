package repository

import (
	"context"
	"fmt"

	"studybuddy/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PlanCount is the number of approved students on a plan within an institution.
type PlanCount struct {
	Kind          model.InstitutionKind
	InstitutionID string
	Plan          model.PlanTier
	Students      int
}

// StatsRepository aggregates plan adoption across institutions.
type StatsRepository interface {
	CountPlans(ctx context.Context) ([]PlanCount, error)
}

type statsRepo struct {
	pool *pgxpool.Pool
}

// NewStatsRepo creates a new StatsRepository.
func NewStatsRepo(pool *pgxpool.Pool) StatsRepository {
	return &statsRepo{pool: pool}
}

// CountPlans groups approved students by owner and effective plan. Students
// with no subscription row count toward their base plan.
func (r *statsRepo) CountPlans(ctx context.Context) ([]PlanCount, error) {
	const q = `
        SELECT
            CASE WHEN st.school_id IS NOT NULL THEN 'school' ELSE 'coaching' END AS kind,
            COALESCE(st.school_id, st.coaching_center_id) AS institution_id,
            COALESCE(sub.plan,
                CASE WHEN st.student_type = 'coaching_student' THEN 'starter' ELSE 'basic' END) AS plan,
            COUNT(*)
        FROM students st
        LEFT JOIN subscriptions sub ON sub.student_id = st.id
        WHERE st.is_approved
          AND (st.school_id IS NOT NULL OR st.coaching_center_id IS NOT NULL)
        GROUP BY 1, 2, 3
    `
	var out []PlanCount
	err := withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var pc PlanCount
			var kind, plan string
			if err := rows.Scan(&kind, &pc.InstitutionID, &plan, &pc.Students); err != nil {
				return err
			}
			pc.Kind = model.InstitutionKind(kind)
			pc.Plan, _ = model.LookupEntitlements(plan)
			out = append(out, pc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count plans by institution: %w", err)
	}
	return out, nil
}
