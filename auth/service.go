// Package auth implements registration and the password grant on top
// of the repository stores.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/stephnangue/idstore/helper"
	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/binding"
	"github.com/stephnangue/idstore/repository/profile"
	"github.com/stephnangue/idstore/repository/token"
)

// Service wires the auth use cases.
type Service struct {
	tokens     *token.Store
	profiles   *profile.Store
	usernames  *binding.Store
	principals *helper.PrincipalIDGenerator
	logger     log.Logger

	now       func() time.Time
	mintValue func() (string, error)
}

func NewService(tokens *token.Store, profiles *profile.Store, usernames *binding.Store, logger log.Logger) *Service {
	return &Service{
		tokens:     tokens,
		profiles:   profiles,
		usernames:  usernames,
		principals: helper.NewPrincipalIDGenerator(),
		logger:     logger.WithSubsystem("auth"),
		now:        time.Now,
		mintValue:  helper.GenerateTokenValue,
	}
}

// Register creates a principal with the given username, display name
// and password, and returns its id. A taken username surfaces as
// DuplicateKey.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (int64, error) {
	if password == "" {
		return 0, repository.Validationf("password is empty")
	}

	salt, err := helper.GenerateSalt()
	if err != nil {
		return 0, repository.Serverf(err, "registering principal")
	}

	principal := s.principals.Next()
	err = s.profiles.Create(ctx, &profile.Profile{
		PrincipalID:  principal,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		DisplayName:  displayName,
	})
	if err != nil {
		return 0, err
	}

	if err := s.usernames.CreateBinding(ctx, username, principal); err != nil {
		// The username is taken; the orphaned profile row is
		// unreachable and harmless.
		return 0, err
	}

	s.logger.Info("principal registered", log.Int64("principal_id", principal))
	return principal, nil
}

// PasswordGrant authenticates a username and password and issues a
// bearer token. An unknown username and a wrong password both surface
// as the same ItemNotFound so callers cannot probe for registered
// usernames.
func (s *Service) PasswordGrant(ctx context.Context, username, password string) (*token.Token, error) {
	principal, err := s.usernames.CurrentPrincipal(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, invalidGrant()
		}
		return nil, err
	}

	info, err := s.profiles.GetAuthInfo(ctx, principal)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return nil, invalidGrant()
		}
		return nil, err
	}
	if !VerifyPassword(password, info.Salt, info.PasswordHash) {
		return nil, invalidGrant()
	}

	return s.issue(ctx, func(value string) *token.Token {
		return token.NewUserToken(value, principal, s.now())
	})
}

// IssueAuthorization issues a bearer token for a principal of the given
// type without a credential check. The caller is responsible for having
// authenticated the principal.
func (s *Service) IssueAuthorization(ctx context.Context, principal int64, principalType string) (*token.Token, error) {
	return s.issue(ctx, func(value string) *token.Token {
		return token.NewPrincipalToken(value, principal, principalType, s.now())
	})
}

// issue mints a token value and persists it. Minting is retried once on
// a value collision; a second collision means the randomness source is
// broken and surfaces as RepositoryServer.
func (s *Service) issue(ctx context.Context, build func(value string) *token.Token) (*token.Token, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		value, err := s.mintValue()
		if err != nil {
			return nil, repository.Serverf(err, "minting token value")
		}

		tok := build(value)
		err = s.tokens.Persist(ctx, tok)
		if err == nil {
			return tok, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, err
		}
		lastErr = err
		s.logger.Warn("token value collision, minting again")
	}
	return nil, repository.Serverf(lastErr, "token value collided twice")
}

// Revoke retires a token immediately.
func (s *Service) Revoke(ctx context.Context, value string) error {
	return s.tokens.Revoke(ctx, token.BearerAccess, value)
}

// RevokeOwned retires a token only if it belongs to the principal.
func (s *Service) RevokeOwned(ctx context.Context, value string, principal int64) error {
	return s.tokens.RevokeOwned(ctx, token.BearerAccess, value, principal)
}

// CurrentUsername resolves the principal's current username. The
// result feeds rename flows, so a lagging reverse index surfaces as
// StaleData rather than a stale name.
func (s *Service) CurrentUsername(ctx context.Context, principal int64) (string, error) {
	b, err := s.usernames.IdentifierForPrincipal(ctx, principal, true)
	if err != nil {
		return "", err
	}
	return b.Identifier, nil
}

func invalidGrant() error {
	return repository.NotFoundf("invalid username or password")
}
