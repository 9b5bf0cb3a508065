package service

import (
	"context"
	"errors"

	"studybuddy/internal/model"
	"studybuddy/internal/repository"

	"github.com/rs/zerolog"
)

// SessionService validates institution and admin session tokens.
type SessionService interface {
	// AuthorizeInstitution checks the token was issued to institutionID of the
	// given kind and that the institution may currently act.
	AuthorizeInstitution(ctx context.Context, token string, kind model.InstitutionKind, institutionID string) (*model.Institution, error)
	// AuthorizeAdmin checks the token belongs to a platform admin and returns the admin id.
	AuthorizeAdmin(ctx context.Context, token string) (string, error)
}

type sessionService struct {
	sessions repository.SessionRepository
	students repository.StudentRepository
	now      Clock
	logger   zerolog.Logger
}

// NewSessionService creates a new SessionService with a scoped logger.
func NewSessionService(sessions repository.SessionRepository, students repository.StudentRepository, now Clock, logger zerolog.Logger) SessionService {
	return &sessionService{
		sessions: sessions,
		students: students,
		now:      now,
		logger:   logger.With().Str("service", "SessionService").Logger(),
	}
}

func (s *sessionService) lookup(ctx context.Context, token string, want model.SessionUserType) (*model.Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to fetch session")
		return nil, err
	}
	if !sess.Valid(s.now()) || sess.UserType != want {
		return nil, ErrInvalidSession
	}
	return sess, nil
}

func (s *sessionService) AuthorizeInstitution(ctx context.Context, token string, kind model.InstitutionKind, institutionID string) (*model.Institution, error) {
	sess, err := s.lookup(ctx, token, model.SessionUserType(kind))
	if err != nil {
		return nil, err
	}
	if institutionID != "" && sess.UserID != institutionID {
		return nil, ErrInvalidSession
	}

	inst, err := s.students.GetInstitution(ctx, kind, sess.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		s.logger.Error().Err(err).Str("institution_id", sess.UserID).Msg("Failed to fetch institution")
		return nil, err
	}
	if !inst.CanAct() {
		s.logger.Info().Str("institution_id", inst.ID).Bool("banned", inst.IsBanned).Bool("fee_paid", inst.FeePaid).Msg("Institution may not act")
		return nil, ErrInstitutionSuspended
	}
	return inst, nil
}

func (s *sessionService) AuthorizeAdmin(ctx context.Context, token string) (string, error) {
	sess, err := s.lookup(ctx, token, model.SessionAdmin)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}
