// Package binding manages versioned bindings between human-chosen
// identifiers and principals. A binding is valid over
// [activate_time, deactivate_time); the currently active generation
// carries the sentinel deactivate time. An identifier is globally
// unique while active; once deactivated it may be claimed by another
// principal.
//
// The backing store offers no multi-row transactions, so the rename
// protocol is an ordered sequence of single-row conditional writes with
// an explicitly documented partial-failure state. Readers resolve any
// resulting ambiguity deterministically: the reverse lookup always takes
// the binding with the largest activate time.
package binding

import (
	"context"
	"errors"
	"time"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/schema"
)

// Binding is one generation of an identifier-to-principal association.
type Binding struct {
	Identifier     string
	Principal      int64
	ActivateTime   time.Time
	DeactivateTime time.Time
}

// Active reports whether this is the currently active generation.
func (b *Binding) Active() bool {
	return schema.IsEndOfTime(b.DeactivateTime)
}

// Store is a versioned identifier-binding store for one identifier
// kind.
type Store struct {
	client physical.Client
	kind   Kind
	logger log.Logger
	now    func() time.Time
}

// NewStore constructs a binding store for the given identifier kind.
func NewStore(client physical.Client, kind Kind, logger log.Logger) *Store {
	return &Store{
		client: client,
		kind:   kind,
		logger: logger.WithFields(log.String("identifier_kind", kind.Name)),
		now:    time.Now,
	}
}

// CreateBinding activates a new binding for the identifier, requiring
// that no active binding holds it. A violation surfaces as
// DuplicateKey.
func (s *Store) CreateBinding(ctx context.Context, identifier string, principal int64) error {
	id, err := s.normalize(identifier)
	if err != nil {
		return err
	}
	if principal <= 0 {
		return repository.Validationf("principal id must be positive")
	}
	return s.createAt(ctx, id, principal, s.now())
}

func (s *Store) createAt(ctx context.Context, id string, principal int64, at time.Time) error {
	item := physical.Item{
		schema.Bindings.Identifier.Name:     physical.String(id),
		schema.Bindings.DeactivateTime.Name: physical.Time(schema.EndOfTime),
		schema.Bindings.ActivateTime.Name:   physical.Time(at),
		schema.Bindings.PrincipalID.Name:    physical.Int(principal),
	}
	err := s.client.ConditionalPut(ctx, s.kind.TableName, item, []physical.Condition{
		physical.AttributeNotExists(schema.Bindings.Identifier),
		physical.AttributeNotExists(schema.Bindings.DeactivateTime),
	})
	if err != nil {
		if errors.Is(err, physical.ErrConditionFailed) {
			return repository.DuplicateKeyf("%s %q is already bound", s.kind.Name, id)
		}
		return repository.Serverf(err, "creating %s binding", s.kind.Name)
	}

	s.logger.Debug("binding created", log.Int64("principal_id", principal))
	return nil
}

// UpdateBinding renames the principal's current identifier. The
// protocol is three single-row writes, not a transaction:
//
//  1. Resolve the principal's current binding through the reverse index
//     and verify it matches curIdentifier.
//  2. Activate the new binding. DuplicateKey aborts the rename with the
//     prior binding untouched.
//  3. Insert the historical row for the old identifier, then delete its
//     sentinel row conditioned on the principal matching.
//
// If step 3's delete is lost, the old sentinel row lingers and only a
// forward lookup of the stale old identifier can still resolve to this
// principal until reconciled; the reverse lookup stays unambiguous
// because it takes the largest activate time.
func (s *Store) UpdateBinding(ctx context.Context, curIdentifier, newIdentifier string, principal int64) error {
	curID, err := s.normalize(curIdentifier)
	if err != nil {
		return err
	}
	newID, err := s.normalize(newIdentifier)
	if err != nil {
		return err
	}
	if principal <= 0 {
		return repository.Validationf("principal id must be positive")
	}
	if curID == newID {
		return repository.Validationf("current and new %s are identical", s.kind.Name)
	}

	current, err := s.IdentifierForPrincipal(ctx, principal, false)
	if err != nil {
		return err
	}
	if current.Identifier != curID {
		return repository.NotFoundf("current %s does not match", s.kind.Name)
	}

	now := s.now()
	if err := s.createAt(ctx, newID, principal, now); err != nil {
		return err
	}

	historical := physical.Item{
		schema.Bindings.Identifier.Name:     physical.String(curID),
		schema.Bindings.DeactivateTime.Name: physical.Time(now),
		schema.Bindings.ActivateTime.Name:   physical.Time(current.ActivateTime),
		schema.Bindings.PrincipalID.Name:    physical.Int(principal),
	}
	if err := s.client.ConditionalPut(ctx, s.kind.TableName, historical, nil); err != nil {
		return repository.Serverf(err, "recording %s binding history", s.kind.Name)
	}

	err = s.client.ConditionalDelete(ctx, s.kind.TableName,
		s.sentinelKey(curID),
		[]physical.Condition{
			physical.Equal(schema.Bindings.PrincipalID, physical.Int(principal)),
		},
	)
	if err != nil {
		// The rename already took effect; the lingering sentinel row is
		// the documented self-limiting inconsistency, so the caller
		// still sees success.
		s.logger.Warn("old sentinel binding row left behind",
			log.Int64("principal_id", principal),
			log.Err(err),
		)
	}

	s.logger.Info("binding renamed", log.Int64("principal_id", principal))
	return nil
}

// CurrentPrincipal resolves the identifier's active binding with a
// strongly consistent read.
func (s *Store) CurrentPrincipal(ctx context.Context, identifier string) (int64, error) {
	id, err := s.normalize(identifier)
	if err != nil {
		return 0, err
	}

	item, err := s.client.Get(ctx, s.kind.TableName, s.sentinelKey(id), true)
	if err != nil {
		return 0, repository.Serverf(err, "resolving %s", s.kind.Name)
	}
	if item == nil {
		return 0, repository.NotFoundf("%s %q has no active binding", s.kind.Name, id)
	}

	b, err := s.decode(item)
	if err != nil {
		return 0, err
	}
	return b.Principal, nil
}

// PrincipalAtTime resolves which principal held the identifier at time
// t. Not found when t falls in a gap between two generations of the
// identifier.
func (s *Store) PrincipalAtTime(ctx context.Context, identifier string, t time.Time) (int64, error) {
	id, err := s.normalize(identifier)
	if err != nil {
		return 0, err
	}

	items, err := s.client.Query(ctx, physical.QueryRequest{
		Table:     s.kind.TableName,
		Index:     schema.ActivateTimeIndex,
		HashAttr:  schema.Bindings.Identifier,
		HashValue: physical.String(id),
		Range: &physical.RangeCondition{
			Attr:  schema.Bindings.ActivateTime,
			Op:    physical.RangeLessThan,
			Value: physical.Time(t),
		},
		Descending: true,
		Limit:      1,
		Consistent: true,
	})
	if err != nil {
		return 0, repository.Serverf(err, "querying %s history", s.kind.Name)
	}
	if len(items) == 0 {
		return 0, repository.NotFoundf("%s %q was not bound at that time", s.kind.Name, id)
	}

	b, err := s.decode(items[0])
	if err != nil {
		return 0, err
	}
	if t.After(b.DeactivateTime) {
		return 0, repository.NotFoundf("%s %q was not bound at that time", s.kind.Name, id)
	}
	return b.Principal, nil
}

// IdentifierForPrincipal resolves the principal's most recent binding
// through the reverse index, which may lag behind recent writes. With
// checkStaleness, the result is verified with a strongly consistent
// forward lookup; a mismatch surfaces as StaleData instead of a
// wrong-but-plausible answer. Callers that will act on the result must
// request the check; display-only callers may skip it.
func (s *Store) IdentifierForPrincipal(ctx context.Context, principal int64, checkStaleness bool) (*Binding, error) {
	if principal <= 0 {
		return nil, repository.Validationf("principal id must be positive")
	}

	items, err := s.client.Query(ctx, physical.QueryRequest{
		Table:      s.kind.TableName,
		Index:      schema.PrincipalIndex,
		HashAttr:   schema.Bindings.PrincipalID,
		HashValue:  physical.Int(principal),
		Descending: true,
		Limit:      1,
	})
	if err != nil {
		return nil, repository.Serverf(err, "reverse %s lookup", s.kind.Name)
	}
	if len(items) == 0 {
		return nil, repository.NotFoundf("principal has no %s binding", s.kind.Name)
	}

	b, err := s.decode(items[0])
	if err != nil {
		return nil, err
	}

	if checkStaleness {
		resolved, err := s.CurrentPrincipal(ctx, b.Identifier)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return nil, repository.StaleDataf("reverse index lags for %s %q", s.kind.Name, b.Identifier)
			}
			return nil, err
		}
		if resolved != principal {
			return nil, repository.StaleDataf("%s %q has moved to another principal", s.kind.Name, b.Identifier)
		}
	}

	return b, nil
}

func (s *Store) normalize(identifier string) (string, error) {
	id := s.kind.Normalize(identifier)
	if id == "" {
		return "", repository.Validationf("%s is empty", s.kind.Name)
	}
	return id, nil
}

func (s *Store) sentinelKey(id string) physical.Key {
	return physical.Key{
		schema.Bindings.Identifier.Name:     physical.String(id),
		schema.Bindings.DeactivateTime.Name: physical.Time(schema.EndOfTime),
	}
}

func (s *Store) decode(item physical.Item) (*Binding, error) {
	identifier, err := physical.RequiredString(item, schema.Bindings.Identifier)
	if err != nil {
		return nil, repository.Serverf(err, "decoding %s binding", s.kind.Name)
	}
	principal, err := physical.RequiredInt64(item, schema.Bindings.PrincipalID)
	if err != nil {
		return nil, repository.Serverf(err, "decoding %s binding", s.kind.Name)
	}
	activate, err := physical.RequiredTime(item, schema.Bindings.ActivateTime)
	if err != nil {
		return nil, repository.Serverf(err, "decoding %s binding", s.kind.Name)
	}
	deactivate, err := physical.RequiredTime(item, schema.Bindings.DeactivateTime)
	if err != nil {
		return nil, repository.Serverf(err, "decoding %s binding", s.kind.Name)
	}
	return &Binding{
		Identifier:     identifier,
		Principal:      principal,
		ActivateTime:   activate,
		DeactivateTime: deactivate,
	}, nil
}
