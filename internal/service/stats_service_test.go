package service

import (
	"context"
	"testing"

	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstitutionStats(t *testing.T) {
	stats := new(mockStatsRepo)
	students := new(mockStudentRepo)
	svc := NewStatsService(stats, students, zerolog.Nop())
	ctx := context.Background()

	students.On("ListInstitutions", ctx).Return([]model.Institution{
		{ID: "sch-1", Kind: model.InstitutionSchool, Name: "North High"},
		{ID: "cc-1", Kind: model.InstitutionCoaching, Name: "Apex"},
		{ID: "empty", Kind: model.InstitutionSchool, Name: "New School"},
	}, nil)
	stats.On("CountPlans", ctx).Return([]repository.PlanCount{
		{Kind: model.InstitutionSchool, InstitutionID: "sch-1", Plan: model.PlanBasic, Students: 10},
		{Kind: model.InstitutionSchool, InstitutionID: "sch-1", Plan: model.PlanPro, Students: 2},
		{Kind: model.InstitutionCoaching, InstitutionID: "cc-1", Plan: model.PlanStarter, Students: 5},
		{Kind: model.InstitutionCoaching, InstitutionID: "sch-1", Plan: model.PlanPro, Students: 99},
	}, nil)

	out, err := svc.InstitutionStats(ctx)
	require.NoError(t, err)
	require.Len(t, out, 3)

	sch := out[0]
	assert.Equal(t, 12, sch.TotalStudents)
	assert.Equal(t, 10, sch.BasicUsers)
	assert.Equal(t, 2, sch.ProUsers)
	assert.Equal(t, 10*model.PlanBasic.Entitlements().MonthlyPriceMinorUnits+2*model.PlanPro.Entitlements().MonthlyPriceMinorUnits, sch.EstimatedRevenue)

	cc := out[1]
	assert.Equal(t, 5, cc.StarterUsers)
	assert.Equal(t, 5*model.PlanStarter.Entitlements().MonthlyPriceMinorUnits, cc.EstimatedRevenue)

	assert.Zero(t, out[2].TotalStudents)
}
