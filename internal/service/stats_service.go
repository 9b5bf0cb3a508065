package service

import (
	"context"

	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// StatsService reports plan adoption per institution for platform admins.
type StatsService interface {
	InstitutionStats(ctx context.Context) ([]model.InstitutionStats, error)
}

type statsService struct {
	stats    repository.StatsRepository
	students repository.StudentRepository
	logger   zerolog.Logger
}

// NewStatsService creates a new StatsService with a scoped logger.
func NewStatsService(stats repository.StatsRepository, students repository.StudentRepository, logger zerolog.Logger) StatsService {
	return &statsService{
		stats:    stats,
		students: students,
		logger:   logger.With().Str("service", "StatsService").Logger(),
	}
}

// InstitutionStats lists every institution, including ones with no students,
// with estimated monthly revenue from catalog prices.
func (s *statsService) InstitutionStats(ctx context.Context) ([]model.InstitutionStats, error) {
	insts, err := s.students.ListInstitutions(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list institutions")
		return nil, err
	}
	counts, err := s.stats.CountPlans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count plans")
		return nil, err
	}

	type key struct {
		kind model.InstitutionKind
		id   string
	}
	idx := make(map[key]int, len(insts))
	out := make([]model.InstitutionStats, len(insts))
	for i, inst := range insts {
		out[i] = model.InstitutionStats{ID: inst.ID, Name: inst.Name, Kind: inst.Kind}
		idx[key{inst.Kind, inst.ID}] = i
	}

	for _, c := range counts {
		i, ok := idx[key{c.Kind, c.InstitutionID}]
		if !ok {
			continue
		}
		st := &out[i]
		st.TotalStudents += c.Students
		switch c.Plan {
		case model.PlanStarter:
			st.StarterUsers += c.Students
		case model.PlanPro:
			st.ProUsers += c.Students
		default:
			st.BasicUsers += c.Students
		}
		st.EstimatedRevenue += c.Students * c.Plan.Entitlements().MonthlyPriceMinorUnits
	}
	return out, nil
}
