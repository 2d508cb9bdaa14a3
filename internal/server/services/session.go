// Package services contains server-side business logic. This file implements
// SessionService, the lifecycle manager for access/refresh token pairs:
// issuing sessions, exchanging refresh tokens for fresh access tokens, and
// revoking sessions.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rmaia/authd/internal/common"
	"github.com/rmaia/authd/internal/dbx"
	"github.com/rmaia/authd/internal/server/auth"
	"github.com/rmaia/authd/internal/server/config"
	"github.com/rmaia/authd/internal/server/models"
	"github.com/rmaia/authd/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionService manages the refresh-token records behind user sessions.
// A user holds at most one session: issuing a new one always deletes the
// previous record first, so logging in from a second device signs the
// first one out.
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewSessionService constructs a SessionService using repositories and
// server config.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SessionService {
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Issue signs a new refresh token for the user and persists its record,
// replacing any existing session. The delete-then-create sequence runs in
// one transaction: a failed create rolls the delete back, so the user is
// never left with two sessions and a half-rotated state is never visible.
// The persisted expiry is derived from the same validity as the signature
// expiry.
func (s *SessionService) Issue(ctx context.Context, userID, username string) (string, error) {
	refresh, err := auth.GenerateToken(userID, username, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}

	expiresAt := time.Now().Add(s.refreshTokenValidityDuration)

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		existing, err := repo.FindByUserID(ctx, userID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if err == nil {
			if err := repo.Delete(ctx, existing.ID); err != nil {
				return fmt.Errorf("error deleting refresh token: %w", err)
			}
		}

		if _, err := repo.Create(ctx, &models.RefreshToken{
			UserID:    userID,
			Token:     refresh,
			ExpiresAt: expiresAt,
		}); err != nil {
			return fmt.Errorf("error creating refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return refresh, nil
}

// AccessToken signs a short-lived access token for the given principal.
// Access tokens are never persisted; they are verified by signature and
// expiry alone.
func (s *SessionService) AccessToken(userID, username string) (string, error) {
	token, err := auth.GenerateToken(userID, username, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// IssuePair issues a new session and a matching access token in one step.
func (s *SessionService) IssuePair(ctx context.Context, userID, username string) (*TokenPair, error) {
	refresh, err := s.Issue(ctx, userID, username)
	if err != nil {
		return nil, err
	}
	access, err := s.AccessToken(userID, username)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Exchange validates a presented refresh token and mints a fresh access
// token. The refresh token itself is not rotated; it stays valid until its
// own expiry. Unknown tokens yield ErrSessionNotFound; records whose token
// no longer verifies are deleted so the store heals itself, and the
// verification error (ErrTokenExpired or ErrInvalidToken) is returned.
func (s *SessionService) Exchange(ctx context.Context, refreshToken string) (string, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	rt, err := repo.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrSessionNotFound
		}
		return "", fmt.Errorf("error searching refresh token: %w", err)
	}

	if _, err := auth.ParseToken(rt.Token, s.jwtSecret); err != nil {
		if delErr := repo.Delete(ctx, rt.ID); delErr != nil && !errors.Is(delErr, common.ErrorNotFound) {
			return "", fmt.Errorf("error deleting stale refresh token: %w", delErr)
		}
		return "", err
	}

	return s.AccessToken(rt.UserID, "")
}

// Revoke deletes the session backing the presented refresh token and
// returns the deleted record so the caller can confirm whose session was
// cleared.
func (s *SessionService) Revoke(ctx context.Context, refreshToken string) (*models.RefreshToken, error) {
	repo := s.repomanager.RefreshTokens(s.db)

	rt, err := repo.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if err := repo.Delete(ctx, rt.ID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("error deleting refresh token: %w", err)
	}

	return rt, nil
}
