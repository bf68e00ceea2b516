package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	attrID       = physical.AttrDef{Name: "id", Type: physical.TypeString}
	attrVersion  = physical.AttrDef{Name: "version", Type: physical.TypeNumber}
	attrOwner    = physical.AttrDef{Name: "owner", Type: physical.TypeNumber}
	attrExpireAt = physical.AttrDef{Name: "expire_at", Type: physical.TypeNumber}
)

func testSchema() physical.TableSchema {
	return physical.TableSchema{
		Name:     "things",
		HashKey:  attrID,
		RangeKey: &attrVersion,
		Indexes: []physical.IndexDef{
			{Name: "version_index", Kind: physical.LocalIndex, HashKey: attrID, RangeKey: attrVersion},
			{Name: "owner_index", Kind: physical.GlobalIndex, HashKey: attrOwner, RangeKey: attrVersion},
		},
	}
}

func newTestClient(t *testing.T) *InmemClient {
	t.Helper()
	c := NewInmemClient(logger.NewNop())
	require.NoError(t, c.CreateTable(context.Background(), testSchema()))
	return c
}

func put(t *testing.T, c *InmemClient, id string, version, owner int64, conds ...physical.Condition) error {
	t.Helper()
	return c.ConditionalPut(context.Background(), "things", physical.Item{
		"id":      physical.String(id),
		"version": physical.Int(version),
		"owner":   physical.Int(owner),
	}, conds)
}

func TestInmem_PutGetRoundTrip(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, put(t, c, "a", 1, 42))

	item, err := c.Get(context.Background(), "things", physical.Key{
		"id":      physical.String("a"),
		"version": physical.Int(1),
	}, true)
	require.NoError(t, err)
	require.NotNil(t, item)

	owner, err := physical.RequiredInt64(item, attrOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)
}

func TestInmem_GetMissing(t *testing.T) {
	c := newTestClient(t)

	item, err := c.Get(context.Background(), "things", physical.Key{
		"id":      physical.String("nope"),
		"version": physical.Int(1),
	}, true)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestInmem_ConditionalPut_NotExists(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, put(t, c, "a", 1, 42, physical.AttributeNotExists(attrID)))

	// Same key again must fail the precondition.
	err := put(t, c, "a", 1, 43, physical.AttributeNotExists(attrID))
	require.ErrorIs(t, err, physical.ErrConditionFailed)

	// First writer's row survives.
	item, err := c.Get(context.Background(), "things", physical.Key{
		"id":      physical.String("a"),
		"version": physical.Int(1),
	}, true)
	require.NoError(t, err)
	owner, err := physical.RequiredInt64(item, attrOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(42), owner)
}

func TestInmem_ConditionalUpdate(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, c.ConditionalPut(ctx, "things", physical.Item{
		"id":        physical.String("tok"),
		"version":   physical.Int(1),
		"owner":     physical.Int(7),
		"expire_at": physical.Time(now.Add(time.Hour)),
	}, nil))

	key := physical.Key{"id": physical.String("tok"), "version": physical.Int(1)}

	// expire_at > now holds, update applies.
	err := c.ConditionalUpdate(ctx, "things", key,
		[]physical.Update{physical.Set(attrExpireAt, physical.Time(now))},
		[]physical.Condition{physical.GreaterThan(attrExpireAt, physical.Time(now))})
	require.NoError(t, err)

	// Second attempt fails: the attribute is no longer in the future.
	err = c.ConditionalUpdate(ctx, "things", key,
		[]physical.Update{physical.Set(attrExpireAt, physical.Time(now))},
		[]physical.Condition{physical.GreaterThan(attrExpireAt, physical.Time(now))})
	require.ErrorIs(t, err, physical.ErrConditionFailed)
}

func TestInmem_ConditionalUpdate_MissingRow(t *testing.T) {
	c := newTestClient(t)

	// A comparison against a missing row fails the condition.
	err := c.ConditionalUpdate(context.Background(), "things",
		physical.Key{"id": physical.String("ghost"), "version": physical.Int(1)},
		[]physical.Update{physical.Set(attrOwner, physical.Int(1))},
		[]physical.Condition{physical.GreaterThan(attrExpireAt, physical.Time(time.Now()))})
	require.ErrorIs(t, err, physical.ErrConditionFailed)
}

func TestInmem_ConditionalDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, put(t, c, "a", 1, 42))
	key := physical.Key{"id": physical.String("a"), "version": physical.Int(1)}

	err := c.ConditionalDelete(ctx, "things", key,
		[]physical.Condition{physical.Equal(attrOwner, physical.Int(999))})
	require.ErrorIs(t, err, physical.ErrConditionFailed)

	err = c.ConditionalDelete(ctx, "things", key,
		[]physical.Condition{physical.Equal(attrOwner, physical.Int(42))})
	require.NoError(t, err)

	item, err := c.Get(ctx, "things", key, true)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestInmem_QueryDescendingLimit(t *testing.T) {
	c := newTestClient(t)

	for v := int64(1); v <= 5; v++ {
		require.NoError(t, put(t, c, "a", v, 42))
	}
	require.NoError(t, put(t, c, "b", 9, 42))

	items, err := c.Query(context.Background(), physical.QueryRequest{
		Table:      "things",
		Index:      "version_index",
		HashAttr:   attrID,
		HashValue:  physical.String("a"),
		Range:      &physical.RangeCondition{Attr: attrVersion, Op: physical.RangeLessThan, Value: physical.Int(5)},
		Descending: true,
		Limit:      1,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	version, err := physical.RequiredInt64(items[0], attrVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
}

func TestInmem_GlobalIndexLag(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, put(t, c, "a", 1, 42))
	c.FreezeGlobalIndexes("things")
	require.NoError(t, put(t, c, "a", 2, 42))

	query := physical.QueryRequest{
		Table:      "things",
		Index:      "owner_index",
		HashAttr:   attrOwner,
		HashValue:  physical.Int(42),
		Descending: true,
		Limit:      1,
	}

	// The frozen global index does not see version 2 yet.
	items, err := c.Query(ctx, query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	version, err := physical.RequiredInt64(items[0], attrVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	c.ThawGlobalIndexes("things")

	items, err = c.Query(ctx, query)
	require.NoError(t, err)
	require.Len(t, items, 1)
	version, err = physical.RequiredInt64(items[0], attrVersion)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestInmem_TableAdmin(t *testing.T) {
	c := NewInmemClient(logger.NewNop())
	ctx := context.Background()

	require.NoError(t, c.CreateTable(ctx, testSchema()))
	require.ErrorIs(t, c.CreateTable(ctx, testSchema()), physical.ErrTableExists)

	require.NoError(t, c.DeleteTable(ctx, "things"))
	require.ErrorIs(t, c.DeleteTable(ctx, "things"), physical.ErrTableNotFound)
}
