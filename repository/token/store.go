// Package token manages the lifecycle of ephemeral bearer tokens:
// authentication tokens bound to a user, and authorization tokens bound
// to a principal and principal type.
package token

import (
	"context"
	"errors"
	"time"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/schema"
)

// Type is the token type discriminator.
type Type string

// BearerAccess is the bearer access token type.
const BearerAccess Type = "bearer_access_token"

// DefaultValidity is the default token validity window relative to the
// issue time.
const DefaultValidity = 7 * 24 * time.Hour

// Token is one ephemeral bearer token. Exactly one subject is set: a
// user id for authentication tokens, or a principal id plus principal
// type for authorization tokens.
type Token struct {
	Type     Type
	Value    string
	IssuedAt time.Time
	ExpireAt time.Time

	UserID        int64
	PrincipalID   int64
	PrincipalType string
}

// NewUserToken builds an authentication token for a user with the
// default validity window.
func NewUserToken(value string, userID int64, issuedAt time.Time) *Token {
	return &Token{
		Type:     BearerAccess,
		Value:    value,
		IssuedAt: issuedAt,
		ExpireAt: issuedAt.Add(DefaultValidity),
		UserID:   userID,
	}
}

// NewPrincipalToken builds an authorization token for a principal with
// the default validity window.
func NewPrincipalToken(value string, principal int64, principalType string, issuedAt time.Time) *Token {
	return &Token{
		Type:          BearerAccess,
		Value:         value,
		IssuedAt:      issuedAt,
		ExpireAt:      issuedAt.Add(DefaultValidity),
		PrincipalID:   principal,
		PrincipalType: principalType,
	}
}

func (t *Token) validate() error {
	if t == nil {
		return repository.Validationf("token is nil")
	}
	if t.Type == "" {
		return repository.Validationf("token type is empty")
	}
	if t.Value == "" {
		return repository.Validationf("token value is empty")
	}
	if t.IssuedAt.IsZero() || t.ExpireAt.IsZero() {
		return repository.Validationf("token timestamps are not set")
	}
	hasUser := t.UserID != 0
	hasPrincipal := t.PrincipalID != 0
	if hasUser == hasPrincipal {
		return repository.Validationf("token must have exactly one subject")
	}
	if hasPrincipal && t.PrincipalType == "" {
		return repository.Validationf("principal token has no principal type")
	}
	return nil
}

// Store persists bearer tokens. Revocation is modeled as forcing the
// expire time to now, never as deletion; rows are only deleted once
// truly expired, by best-effort cleanup.
type Store struct {
	client physical.Client
	logger log.Logger
	now    func() time.Time
}

// NewStore constructs a token store over the given store client.
func NewStore(client physical.Client, logger log.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// Persist writes the token, requiring that no live row occupies its
// (type, value) key. A violation surfaces as DuplicateKey: the caller
// mints a fresh random value and retries persistence exactly once more.
func (s *Store) Persist(ctx context.Context, tok *Token) error {
	if err := tok.validate(); err != nil {
		return err
	}

	item := physical.Item{
		schema.Tokens.Type.Name:     physical.String(string(tok.Type)),
		schema.Tokens.Value.Name:    physical.String(tok.Value),
		schema.Tokens.IssuedAt.Name: physical.Time(tok.IssuedAt),
		schema.Tokens.ExpireAt.Name: physical.Time(tok.ExpireAt),
	}
	if tok.UserID != 0 {
		item[schema.Tokens.UserID.Name] = physical.Int(tok.UserID)
	} else {
		item[schema.Tokens.PrincipalID.Name] = physical.Int(tok.PrincipalID)
		item[schema.Tokens.PrincipalType.Name] = physical.String(tok.PrincipalType)
	}

	err := s.client.ConditionalPut(ctx, schema.TokensTableName, item, []physical.Condition{
		physical.AttributeNotExists(schema.Tokens.Type),
		physical.AttributeNotExists(schema.Tokens.Value),
	})
	if err != nil {
		if errors.Is(err, physical.ErrConditionFailed) {
			return repository.DuplicateKeyf("token value already in use")
		}
		return repository.Serverf(err, "persisting token")
	}

	s.logger.Debug("token persisted",
		log.String("token_type", string(tok.Type)),
		log.Time("expire_at", tok.ExpireAt),
	)
	return nil
}

// Get fetches a token with a strongly consistent read.
func (s *Store) Get(ctx context.Context, typ Type, value string) (*Token, error) {
	if typ == "" || value == "" {
		return nil, repository.Validationf("token type and value are required")
	}

	item, err := s.client.Get(ctx, schema.TokensTableName, tokenKey(typ, value), true)
	if err != nil {
		return nil, repository.Serverf(err, "fetching token")
	}
	if item == nil {
		return nil, repository.NotFoundf("token does not exist")
	}
	return decodeToken(item)
}

// Revoke forces the token's expire time to now. An already revoked or
// nonexistent token yields the same ItemNotFound: the caller must not
// learn which reason applied.
func (s *Store) Revoke(ctx context.Context, typ Type, value string) error {
	return s.revoke(ctx, typ, value, nil)
}

// RevokeOwned revokes only if the stored principal matches. A principal
// mismatch is indistinguishable from a nonexistent token.
func (s *Store) RevokeOwned(ctx context.Context, typ Type, value string, principal int64) error {
	return s.revoke(ctx, typ, value, &principal)
}

func (s *Store) revoke(ctx context.Context, typ Type, value string, principal *int64) error {
	if typ == "" || value == "" {
		return repository.Validationf("token type and value are required")
	}

	now := s.now()
	conds := []physical.Condition{
		physical.GreaterThan(schema.Tokens.ExpireAt, physical.Time(now)),
	}
	if principal != nil {
		conds = append(conds, physical.Equal(schema.Tokens.PrincipalID, physical.Int(*principal)))
	}

	err := s.client.ConditionalUpdate(ctx, schema.TokensTableName, tokenKey(typ, value),
		[]physical.Update{physical.Set(schema.Tokens.ExpireAt, physical.Time(now))},
		conds,
	)
	if err != nil {
		if errors.Is(err, physical.ErrConditionFailed) {
			return repository.NotFoundf("token does not exist")
		}
		return repository.Serverf(err, "revoking token")
	}

	s.logger.Info("token revoked", log.String("token_type", string(typ)))
	return nil
}

// DeleteExpired removes a token row only once it is truly expired. Used
// by best-effort cleanup, never by the request-serving path.
func (s *Store) DeleteExpired(ctx context.Context, typ Type, value string) error {
	if typ == "" || value == "" {
		return repository.Validationf("token type and value are required")
	}

	err := s.client.ConditionalDelete(ctx, schema.TokensTableName, tokenKey(typ, value),
		[]physical.Condition{
			physical.LessThan(schema.Tokens.ExpireAt, physical.Time(s.now())),
		},
	)
	if err != nil {
		if errors.Is(err, physical.ErrConditionFailed) {
			return repository.NotFoundf("token is not expired")
		}
		return repository.Serverf(err, "deleting expired token")
	}
	return nil
}

func tokenKey(typ Type, value string) physical.Key {
	return physical.Key{
		schema.Tokens.Type.Name:  physical.String(string(typ)),
		schema.Tokens.Value.Name: physical.String(value),
	}
}

func decodeToken(item physical.Item) (*Token, error) {
	typ, err := physical.RequiredString(item, schema.Tokens.Type)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	value, err := physical.RequiredString(item, schema.Tokens.Value)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	issuedAt, err := physical.RequiredTime(item, schema.Tokens.IssuedAt)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	expireAt, err := physical.RequiredTime(item, schema.Tokens.ExpireAt)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	userID, _, err := physical.OptionalInt64(item, schema.Tokens.UserID)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	principalID, _, err := physical.OptionalInt64(item, schema.Tokens.PrincipalID)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}
	principalType, _, err := physical.OptionalString(item, schema.Tokens.PrincipalType)
	if err != nil {
		return nil, repository.Serverf(err, "decoding token")
	}

	return &Token{
		Type:          Type(typ),
		Value:         value,
		IssuedAt:      issuedAt,
		ExpireAt:      expireAt,
		UserID:        userID,
		PrincipalID:   principalID,
		PrincipalType: principalType,
	}, nil
}
