// This file implements UserService: registration, credential verification,
// external-identity login, and the protected profile operations.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rmaia/authd/internal/common"
	"github.com/rmaia/authd/internal/cryptox"
	"github.com/rmaia/authd/internal/server/models"
	"github.com/rmaia/authd/internal/server/oauth"
	"github.com/rmaia/authd/internal/server/repositories/repomanager"
)

// UserService provides account-related operations. Login failures never
// reveal whether the username existed or the password was wrong.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	sessions    *SessionService
}

// NewUserService constructs a UserService.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, sessions *SessionService) *UserService {
	return &UserService{db: db, repomanager: m, sessions: sessions}
}

// Register creates a new account with a bcrypt-hashed password. A taken
// username or email yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username, password, name, email string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	if _, err := repo.FindByUsername(ctx, username); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if _, err := repo.FindByEmail(ctx, email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// Login verifies the username/password pair and, on success, issues a new
// session. Unknown usernames, password-less external accounts, and wrong
// passwords all yield ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, username, password string) (*TokenPair, *models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, common.ErrorInternal
	}

	if !cryptox.VerifyPassword(user.PasswordHash, password) {
		return nil, nil, common.ErrInvalidCredentials
	}

	pair, err := s.sessions.IssuePair(ctx, user.ID, user.Username)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// LoginExternal signs in a verified external identity, creating the account
// on first login. Externally-created accounts carry no password hash.
func (s *UserService) LoginExternal(ctx context.Context, identity *oauth.Identity) (*TokenPair, *models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByEmail(ctx, identity.Email)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorInternal
		}
		user, err = repo.Create(ctx, &models.User{
			Username: externalUsername(identity),
			Name:     strings.TrimSpace(identity.GivenName + " " + identity.FamilyName),
			Email:    identity.Email,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("error creating user: %w", err)
		}
	}

	pair, err := s.sessions.IssuePair(ctx, user.ID, user.Username)
	if err != nil {
		return nil, nil, err
	}
	return pair, user, nil
}

// GetUser returns the account for id, or common.ErrorNotFound.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).FindByID(ctx, id)
}

// DeleteUser removes the account. Any active session goes with it via the
// store's cascade.
func (s *UserService) DeleteUser(ctx context.Context, id string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := repo.Delete(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func externalUsername(identity *oauth.Identity) string {
	name := strings.ToLower(identity.GivenName + identity.FamilyName)
	name = strings.ReplaceAll(name, " ", "")
	if name == "" {
		// fall back to the mailbox part of the email
		name = strings.SplitN(identity.Email, "@", 2)[0]
	}
	return name
}
