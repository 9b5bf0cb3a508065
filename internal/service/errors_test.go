package service

import (
	"errors"
	"fmt"
	"testing"

	"studybuddy/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrInvalidPlan))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrRequestNotFound)))
	assert.Equal(t, KindForbidden, KindOf(ErrNotOwner))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "Request already processed", Message(ErrRequestProcessed))
	assert.Equal(t, "Internal server error", Message(errors.New("pq: relation missing")))
}

func TestAlreadyOnPlanMatchesSentinel(t *testing.T) {
	err := alreadyOnPlan(model.PlanPro)
	assert.ErrorIs(t, err, ErrAlreadyOnPlan)
	assert.Equal(t, "You already have a Pro plan", Message(err))
}
