package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical/inmem"
	"github.com/stephnangue/idstore/repository"
	"github.com/stephnangue/idstore/repository/schema"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := inmem.NewInmemClient(logger.NewNop())
	require.NoError(t, client.CreateTable(context.Background(), schema.ProfilesTable()))
	return NewStore(client, logger.NewNop())
}

func testProfile() *Profile {
	return &Profile{
		PrincipalID:  42,
		PasswordHash: []byte{0xde, 0xad, 0xbe, 0xef},
		Salt:         []byte{0x01, 0x02, 0x03, 0x04},
		DisplayName:  "Alice Liddell",
	}
}

func TestStore_CreateAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := testProfile()

	require.NoError(t, store.Create(ctx, p))

	info, err := store.GetAuthInfo(ctx, p.PrincipalID)
	require.NoError(t, err)
	assert.Equal(t, p.PasswordHash, info.PasswordHash)
	assert.Equal(t, p.Salt, info.Salt)

	name, err := store.GetDisplayName(ctx, p.PrincipalID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", name)
}

func TestStore_Create_Duplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testProfile()))

	other := testProfile()
	other.DisplayName = "Impostor"
	err := store.Create(ctx, other)
	require.ErrorIs(t, err, repository.ErrDuplicateKey)

	// The original record is untouched.
	name, err := store.GetDisplayName(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", name)
}

func TestStore_Create_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero principal", func(p *Profile) { p.PrincipalID = 0 }},
		{"no hash", func(p *Profile) { p.PasswordHash = nil }},
		{"no salt", func(p *Profile) { p.Salt = nil }},
		{"no display name", func(p *Profile) { p.DisplayName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testProfile()
			tt.mutate(p)
			require.ErrorIs(t, store.Create(ctx, p), repository.ErrValidation)
		})
	}
}

func TestStore_Get_Missing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetAuthInfo(ctx, 99)
	require.ErrorIs(t, err, repository.ErrItemNotFound)

	_, err = store.GetDisplayName(ctx, 99)
	require.ErrorIs(t, err, repository.ErrItemNotFound)
}
