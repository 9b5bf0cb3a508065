package repository

import (
	"context"
	"fmt"

	"studybuddy/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository looks up institution and admin session tokens.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*model.Session, error)
}

type sessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo creates a new SessionRepository.
func NewSessionRepo(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepo{pool: pool}
}

func (r *sessionRepo) GetSession(ctx context.Context, token string) (*model.Session, error) {
	const q = `
        SELECT token, user_id, user_type, expires_at, is_revoked
        FROM session_tokens
        WHERE token = $1
    `
	var s model.Session
	var userType string
	err := withReadRetry(ctx, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, q, token).Scan(&s.Token, &s.UserID, &userType, &s.ExpiresAt, &s.IsRevoked)
	})
	if err != nil {
		// Never echo the token itself.
		return nil, fmt.Errorf("fetch session: %w", notFound(err))
	}
	s.UserType = model.SessionUserType(userType)
	return &s, nil
}
