// Package profile stores per-principal authentication material and the
// display name. The password itself is never stored, only the derived
// hash and its salt.
package profile

import (
	"context"
	"errors"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/schema"
)

// Profile is the stored record of one principal.
type Profile struct {
	PrincipalID  int64
	PasswordHash []byte
	Salt         []byte
	DisplayName  string
}

func (p *Profile) validate() error {
	if p.PrincipalID <= 0 {
		return repository.Validationf("principal id must be positive")
	}
	if len(p.PasswordHash) == 0 {
		return repository.Validationf("password hash is empty")
	}
	if len(p.Salt) == 0 {
		return repository.Validationf("salt is empty")
	}
	if p.DisplayName == "" {
		return repository.Validationf("display name is empty")
	}
	return nil
}

// AuthInfo is the credential material needed to verify a password.
type AuthInfo struct {
	PasswordHash []byte
	Salt         []byte
}

// Store persists principal profiles.
type Store struct {
	client physical.Client
	logger log.Logger
}

func NewStore(client physical.Client, logger log.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Create persists a new profile. The principal id must be unused; a
// collision surfaces as DuplicateKey.
func (s *Store) Create(ctx context.Context, p *Profile) error {
	if err := p.validate(); err != nil {
		return err
	}

	item := physical.Item{
		schema.Profiles.PrincipalID.Name:  physical.Int(p.PrincipalID),
		schema.Profiles.PasswordHash.Name: physical.Binary(p.PasswordHash),
		schema.Profiles.Salt.Name:         physical.Binary(p.Salt),
		schema.Profiles.DisplayName.Name:  physical.String(p.DisplayName),
	}
	err := s.client.ConditionalPut(ctx, schema.ProfilesTableName, item, []physical.Condition{
		physical.AttributeNotExists(schema.Profiles.PrincipalID),
	})
	if err != nil {
		if errors.Is(err, physical.ErrConditionFailed) {
			return repository.DuplicateKeyf("principal %d already has a profile", p.PrincipalID)
		}
		return repository.Serverf(err, "creating profile")
	}

	s.logger.Debug("profile created", log.Int64("principal_id", p.PrincipalID))
	return nil
}

// GetAuthInfo loads the credential material with a strongly consistent
// read, so a just-created profile can authenticate immediately.
func (s *Store) GetAuthInfo(ctx context.Context, principalID int64) (*AuthInfo, error) {
	item, err := s.get(ctx, principalID)
	if err != nil {
		return nil, err
	}

	hash, err := physical.RequiredBinary(item, schema.Profiles.PasswordHash)
	if err != nil {
		return nil, repository.Serverf(err, "decoding profile")
	}
	salt, err := physical.RequiredBinary(item, schema.Profiles.Salt)
	if err != nil {
		return nil, repository.Serverf(err, "decoding profile")
	}
	return &AuthInfo{PasswordHash: hash, Salt: salt}, nil
}

// GetDisplayName loads the principal's display name.
func (s *Store) GetDisplayName(ctx context.Context, principalID int64) (string, error) {
	item, err := s.get(ctx, principalID)
	if err != nil {
		return "", err
	}

	name, err := physical.RequiredString(item, schema.Profiles.DisplayName)
	if err != nil {
		return "", repository.Serverf(err, "decoding profile")
	}
	return name, nil
}

func (s *Store) get(ctx context.Context, principalID int64) (physical.Item, error) {
	if principalID <= 0 {
		return nil, repository.Validationf("principal id must be positive")
	}

	key := physical.Key{
		schema.Profiles.PrincipalID.Name: physical.Int(principalID),
	}
	item, err := s.client.Get(ctx, schema.ProfilesTableName, key, true)
	if err != nil {
		return nil, repository.Serverf(err, "fetching profile")
	}
	if item == nil {
		return nil, repository.NotFoundf("principal %d has no profile", principalID)
	}
	return item, nil
}
