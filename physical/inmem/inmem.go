// Package inmem is an in-memory implementation of physical.Client. It is
// useful for testing and development situations where the data is not
// expected to be durable. It reproduces the backing store's semantics:
// single-row conditional writes, range-ordered index queries, and
// eventually-consistent global indexes (via an explicit freeze control so
// tests can stage index lag deterministically).
package inmem

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
)

// Verify interfaces are satisfied
var _ physical.Client = (*InmemClient)(nil)

// InmemClient is an in-memory only physical.Client.
type InmemClient struct {
	sync.RWMutex
	tables map[string]*table
	logger log.Logger

	// When a frozen snapshot is present, global-index queries against
	// that table serve the snapshot instead of the live rows.
	frozen map[string][]physical.Item
}

type table struct {
	schema physical.TableSchema
	items  map[string]physical.Item
}

// NewInmemClient constructs an empty in-memory client.
func NewInmemClient(logger log.Logger) *InmemClient {
	return &InmemClient{
		tables: make(map[string]*table),
		frozen: make(map[string][]physical.Item),
		logger: logger,
	}
}

// FreezeGlobalIndexes snapshots the table's current rows; subsequent
// global-index queries serve the snapshot, emulating an index that lags
// behind the most recent writes.
func (c *InmemClient) FreezeGlobalIndexes(tableName string) {
	c.Lock()
	defer c.Unlock()
	t, ok := c.tables[tableName]
	if !ok {
		return
	}
	snap := make([]physical.Item, 0, len(t.items))
	for _, item := range t.items {
		snap = append(snap, copyItem(item))
	}
	c.frozen[tableName] = snap
}

// ThawGlobalIndexes makes the table's global indexes consistent again.
func (c *InmemClient) ThawGlobalIndexes(tableName string) {
	c.Lock()
	defer c.Unlock()
	delete(c.frozen, tableName)
}

func (c *InmemClient) Get(ctx context.Context, tableName string, key physical.Key, consistent bool) (physical.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.RLock()
	defer c.RUnlock()

	t, ok := c.tables[tableName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", physical.ErrTableNotFound, tableName)
	}
	item, ok := t.items[t.keyString(key)]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (c *InmemClient) ConditionalPut(ctx context.Context, tableName string, item physical.Item, conds []physical.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	t, ok := c.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %s", physical.ErrTableNotFound, tableName)
	}
	ks := t.keyString(t.keyOf(item))
	if err := evalConditions(t.items[ks], conds); err != nil {
		return err
	}
	t.items[ks] = copyItem(item)
	return nil
}

func (c *InmemClient) ConditionalUpdate(ctx context.Context, tableName string, key physical.Key, updates []physical.Update, conds []physical.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	t, ok := c.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %s", physical.ErrTableNotFound, tableName)
	}
	ks := t.keyString(key)
	current := t.items[ks]
	if err := evalConditions(current, conds); err != nil {
		return err
	}

	// Like the backing store, an update against a missing row creates it
	// when the conditions allow that.
	if current == nil {
		current = physical.Item{}
		for name, attr := range key {
			current[name] = attr
		}
	}
	for _, u := range updates {
		current[u.Attr.Name] = u.Value
	}
	t.items[ks] = current
	return nil
}

func (c *InmemClient) ConditionalDelete(ctx context.Context, tableName string, key physical.Key, conds []physical.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	t, ok := c.tables[tableName]
	if !ok {
		return fmt.Errorf("%w: %s", physical.ErrTableNotFound, tableName)
	}
	ks := t.keyString(key)
	if err := evalConditions(t.items[ks], conds); err != nil {
		return err
	}
	delete(t.items, ks)
	return nil
}

func (c *InmemClient) Query(ctx context.Context, req physical.QueryRequest) ([]physical.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.RLock()
	defer c.RUnlock()

	t, ok := c.tables[req.Table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", physical.ErrTableNotFound, req.Table)
	}

	source := t.liveItems()
	if req.Index != "" {
		idx, ok := t.schema.Index(req.Index)
		if !ok {
			return nil, fmt.Errorf("table %s has no index %s", req.Table, req.Index)
		}
		if idx.Kind == physical.GlobalIndex {
			if snap, frozen := c.frozen[req.Table]; frozen {
				source = snap
			}
		}
	}

	var matched []physical.Item
	for _, item := range source {
		hv, ok := item[req.HashAttr.Name]
		if !ok || compareAttrs(hv, req.HashValue) != 0 {
			continue
		}
		if req.Range != nil {
			rv, ok := item[req.Range.Attr.Name]
			if !ok {
				continue
			}
			cmp := compareAttrs(rv, req.Range.Value)
			switch req.Range.Op {
			case physical.RangeEqual:
				if cmp != 0 {
					continue
				}
			case physical.RangeLessThan:
				if cmp >= 0 {
					continue
				}
			case physical.RangeGreaterThan:
				if cmp <= 0 {
					continue
				}
			}
		}
		matched = append(matched, copyItem(item))
	}

	rangeAttr := t.rangeAttrFor(req)
	if rangeAttr != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareAttrs(matched[i][rangeAttr], matched[j][rangeAttr])
			if req.Descending {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if req.Limit > 0 && len(matched) > req.Limit {
		matched = matched[:req.Limit]
	}
	return matched, nil
}

func (c *InmemClient) CreateTable(ctx context.Context, schema physical.TableSchema) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	if _, ok := c.tables[schema.Name]; ok {
		return fmt.Errorf("%w: %s", physical.ErrTableExists, schema.Name)
	}
	c.tables[schema.Name] = &table{
		schema: schema,
		items:  make(map[string]physical.Item),
	}
	if c.logger != nil {
		c.logger.Debug("created in-memory table", log.String("table", schema.Name))
	}
	return nil
}

func (c *InmemClient) DeleteTable(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Lock()
	defer c.Unlock()

	if _, ok := c.tables[name]; !ok {
		return fmt.Errorf("%w: %s", physical.ErrTableNotFound, name)
	}
	delete(c.tables, name)
	delete(c.frozen, name)
	return nil
}

func (c *InmemClient) Close() error {
	c.Lock()
	defer c.Unlock()
	c.tables = make(map[string]*table)
	c.frozen = make(map[string][]physical.Item)
	return nil
}

func (t *table) keyOf(item physical.Item) physical.Key {
	key := physical.Key{t.schema.HashKey.Name: item[t.schema.HashKey.Name]}
	if t.schema.RangeKey != nil {
		key[t.schema.RangeKey.Name] = item[t.schema.RangeKey.Name]
	}
	return key
}

func (t *table) keyString(key physical.Key) string {
	var sb strings.Builder
	sb.WriteString(canonical(key[t.schema.HashKey.Name]))
	if t.schema.RangeKey != nil {
		sb.WriteByte(0)
		sb.WriteString(canonical(key[t.schema.RangeKey.Name]))
	}
	return sb.String()
}

func (t *table) liveItems() []physical.Item {
	out := make([]physical.Item, 0, len(t.items))
	for _, item := range t.items {
		out = append(out, item)
	}
	return out
}

// rangeAttrFor resolves the attribute the query result must be ordered
// by: the index's range key, or the table's for primary-key queries.
func (t *table) rangeAttrFor(req physical.QueryRequest) string {
	if req.Index != "" {
		if idx, ok := t.schema.Index(req.Index); ok {
			return idx.RangeKey.Name
		}
		return ""
	}
	if t.schema.RangeKey != nil {
		return t.schema.RangeKey.Name
	}
	return ""
}

// evalConditions checks every condition against the row's current state.
// A nil current item means the row is absent: attribute-not-exists holds,
// every comparison fails.
func evalConditions(current physical.Item, conds []physical.Condition) error {
	for _, cond := range conds {
		var attr physical.Attribute
		present := false
		if current != nil {
			attr, present = current[cond.Attr.Name]
		}
		switch cond.Op {
		case physical.CondAttributeNotExists:
			if present {
				return fmt.Errorf("%w: %s exists", physical.ErrConditionFailed, cond.Attr.Name)
			}
		case physical.CondEqual:
			if !present || compareAttrs(attr, cond.Value) != 0 {
				return fmt.Errorf("%w: %s not equal", physical.ErrConditionFailed, cond.Attr.Name)
			}
		case physical.CondGreaterThan:
			if !present || compareAttrs(attr, cond.Value) <= 0 {
				return fmt.Errorf("%w: %s not greater", physical.ErrConditionFailed, cond.Attr.Name)
			}
		case physical.CondLessThan:
			if !present || compareAttrs(attr, cond.Value) >= 0 {
				return fmt.Errorf("%w: %s not less", physical.ErrConditionFailed, cond.Attr.Name)
			}
		}
	}
	return nil
}

// compareAttrs orders two attribute values the way the backing store
// does: numbers numerically, strings lexically, binary bytewise.
func compareAttrs(a, b physical.Attribute) int {
	if a.Type == physical.TypeNumber && b.Type == physical.TypeNumber {
		av, aerr := strconv.ParseInt(a.N, 10, 64)
		bv, berr := strconv.ParseInt(b.N, 10, 64)
		if aerr == nil && berr == nil {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
		af, _ := strconv.ParseFloat(a.N, 64)
		bf, _ := strconv.ParseFloat(b.N, 64)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.Type == physical.TypeBinary && b.Type == physical.TypeBinary {
		return bytes.Compare(a.B, b.B)
	}
	return strings.Compare(a.S, b.S)
}

func canonical(a physical.Attribute) string {
	switch a.Type {
	case physical.TypeNumber:
		// Normalize the numeric text so "07" and "7" key the same row.
		if v, err := strconv.ParseInt(a.N, 10, 64); err == nil {
			return "N" + strconv.FormatInt(v, 10)
		}
		return "N" + a.N
	case physical.TypeBinary:
		return "B" + string(a.B)
	default:
		return "S" + a.S
	}
}

func copyItem(item physical.Item) physical.Item {
	out := make(physical.Item, len(item))
	for name, attr := range item {
		out[name] = attr
	}
	return out
}
