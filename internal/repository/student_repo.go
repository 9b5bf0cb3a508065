package repository

import (
	"context"
	"fmt"

	"studybuddy/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StudentRepository reads student profiles and the institutions that own them.
type StudentRepository interface {
	GetStudent(ctx context.Context, id string) (*model.Student, error)
	GetInstitution(ctx context.Context, kind model.InstitutionKind, id string) (*model.Institution, error)
	// ListStudents returns the institution's approved students, newest first.
	ListStudents(ctx context.Context, inst *model.Institution) ([]model.Student, error)
	ListInstitutions(ctx context.Context) ([]model.Institution, error)
}

type studentRepo struct {
	pool *pgxpool.Pool
}

// NewStudentRepo creates a new StudentRepository.
func NewStudentRepo(pool *pgxpool.Pool) StudentRepository {
	return &studentRepo{pool: pool}
}

const studentColumns = `id, full_name, class, student_type, school_id, coaching_center_id, is_approved, is_banned, created_at`

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	var studentType string
	err := row.Scan(
		&s.ID,
		&s.FullName,
		&s.Class,
		&studentType,
		&s.SchoolID,
		&s.CoachingCenterID,
		&s.IsApproved,
		&s.IsBanned,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.StudentType = model.StudentType(studentType)
	return &s, nil
}

// GetStudent returns the student profile.
func (r *studentRepo) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	q := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	var s *model.Student
	err := withReadRetry(ctx, func(ctx context.Context) error {
		var err error
		s, err = scanStudent(r.pool.QueryRow(ctx, q, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch student %s: %w", id, notFound(err))
	}
	return s, nil
}

// GetInstitution returns a school or coaching center.
func (r *studentRepo) GetInstitution(ctx context.Context, kind model.InstitutionKind, id string) (*model.Institution, error) {
	var q string
	switch kind {
	case model.InstitutionSchool:
		q = `SELECT id, name, is_banned, fee_paid FROM schools WHERE id = $1`
	case model.InstitutionCoaching:
		q = `SELECT id, name, is_banned, TRUE FROM coaching_centers WHERE id = $1`
	default:
		return nil, fmt.Errorf("fetch institution %s: unknown kind %q", id, kind)
	}
	inst := &model.Institution{Kind: kind}
	err := withReadRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, q, id).Scan(&inst.ID, &inst.Name, &inst.IsBanned, &inst.FeePaid)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s %s: %w", kind, id, notFound(err))
	}
	return inst, nil
}

// ListStudents returns approved students owned by the institution.
func (r *studentRepo) ListStudents(ctx context.Context, inst *model.Institution) ([]model.Student, error) {
	var ownerCol string
	switch inst.Kind {
	case model.InstitutionSchool:
		ownerCol = "school_id"
	case model.InstitutionCoaching:
		ownerCol = "coaching_center_id"
	default:
		return nil, fmt.Errorf("list students for %s: unknown kind %q", inst.ID, inst.Kind)
	}
	q := `SELECT ` + studentColumns + ` FROM students WHERE ` + ownerCol + ` = $1 AND is_approved ORDER BY created_at DESC`

	var out []model.Student
	err := withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, q, inst.ID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s, err := scanStudent(rows)
			if err != nil {
				return err
			}
			out = append(out, *s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list students for %s %s: %w", inst.Kind, inst.ID, err)
	}
	return out, nil
}

// ListInstitutions returns every school followed by every coaching center.
func (r *studentRepo) ListInstitutions(ctx context.Context) ([]model.Institution, error) {
	const q = `
        SELECT id, name, 'school', is_banned, fee_paid FROM schools
        UNION ALL
        SELECT id, name, 'coaching', is_banned, TRUE FROM coaching_centers
        ORDER BY 3 DESC, 2
    `
	var out []model.Institution
	err := withReadRetry(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var inst model.Institution
			var kind string
			if err := rows.Scan(&inst.ID, &inst.Name, &kind, &inst.IsBanned, &inst.FeePaid); err != nil {
				return err
			}
			inst.Kind = model.InstitutionKind(kind)
			out = append(out, inst)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return out, nil
}
