package physical

import (
	"context"
	"strconv"
	"time"
)

// AttrType is the physical type of an attribute value.
type AttrType int

const (
	TypeString AttrType = iota
	TypeNumber
	TypeBinary
	TypeStringSet
	TypeBool
)

// String returns the string representation of AttrType
func (t AttrType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBinary:
		return "binary"
	case TypeStringSet:
		return "string-set"
	case TypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Attribute is the store's generic typed value. Numbers travel in their
// text form, the way the backing store represents them; width-specific
// parsing happens in the codec.
type Attribute struct {
	Type AttrType
	S    string
	N    string
	B    []byte
	SS   []string
	BOOL bool
}

// String builds a string attribute.
func String(v string) Attribute {
	return Attribute{Type: TypeString, S: v}
}

// Int builds a number attribute from a 64-bit integer.
func Int(v int64) Attribute {
	return Attribute{Type: TypeNumber, N: strconv.FormatInt(v, 10)}
}

// Float builds a number attribute from a double.
func Float(v float64) Attribute {
	return Attribute{Type: TypeNumber, N: strconv.FormatFloat(v, 'g', -1, 64)}
}

// Time builds a number attribute holding epoch milliseconds.
func Time(v time.Time) Attribute {
	return Int(v.UnixMilli())
}

// Binary builds a binary attribute.
func Binary(v []byte) Attribute {
	return Attribute{Type: TypeBinary, B: v}
}

// StringSet builds a string-set attribute.
func StringSet(v []string) Attribute {
	return Attribute{Type: TypeStringSet, SS: v}
}

// Bool builds a boolean attribute.
func Bool(v bool) Attribute {
	return Attribute{Type: TypeBool, BOOL: v}
}

// Item is one row of a table.
type Item map[string]Attribute

// Key identifies one row: the hash key attribute plus, for tables with a
// composite primary key, the range key attribute.
type Key map[string]Attribute

// AttrDef is a named, typed attribute descriptor. Entity schemas declare
// their attributes once as AttrDef values so that nothing above the codec
// touches raw attribute names.
type AttrDef struct {
	Name string
	Type AttrType
}

// CondOp enumerates the supported conditional-write predicates.
type CondOp int

const (
	CondAttributeNotExists CondOp = iota
	CondEqual
	CondGreaterThan
	CondLessThan
)

// Condition is a single-row precondition evaluated by the store against
// the row's current state.
type Condition struct {
	Attr  AttrDef
	Op    CondOp
	Value Attribute
}

// AttributeNotExists requires the attribute to be absent on the row (or
// the row itself to be absent).
func AttributeNotExists(attr AttrDef) Condition {
	return Condition{Attr: attr, Op: CondAttributeNotExists}
}

// Equal requires the attribute to be present and equal to value.
func Equal(attr AttrDef, value Attribute) Condition {
	return Condition{Attr: attr, Op: CondEqual, Value: value}
}

// GreaterThan requires the attribute to be present and greater than value.
func GreaterThan(attr AttrDef, value Attribute) Condition {
	return Condition{Attr: attr, Op: CondGreaterThan, Value: value}
}

// LessThan requires the attribute to be present and less than value.
func LessThan(attr AttrDef, value Attribute) Condition {
	return Condition{Attr: attr, Op: CondLessThan, Value: value}
}

// Update sets one attribute to a new value.
type Update struct {
	Attr  AttrDef
	Value Attribute
}

// Set builds an Update.
func Set(attr AttrDef, value Attribute) Update {
	return Update{Attr: attr, Value: value}
}

// RangeOp enumerates the range-key predicates of an index query.
type RangeOp int

const (
	RangeEqual RangeOp = iota
	RangeLessThan
	RangeGreaterThan
)

// RangeCondition constrains the range key of an index query.
type RangeCondition struct {
	Attr  AttrDef
	Op    RangeOp
	Value Attribute
}

// QueryRequest describes one secondary-index (or primary-key) query.
type QueryRequest struct {
	Table string

	// Index is the secondary index to query; empty means the primary key.
	Index string

	HashAttr  AttrDef
	HashValue Attribute

	// Range is optional.
	Range *RangeCondition

	// Descending reverses the range-key scan direction.
	Descending bool

	// Limit bounds the number of returned items; zero means no limit.
	Limit int

	// Consistent requests a strongly consistent read. Only honored for
	// primary-key and local-index queries; global indexes are always
	// eventually consistent.
	Consistent bool
}

// IndexKind separates local indexes (same hash key, alternative range
// key, strongly-consistent capable) from global ones (alternative hash
// key, eventually consistent only).
type IndexKind int

const (
	LocalIndex IndexKind = iota
	GlobalIndex
)

// IndexDef describes a secondary index of a table.
type IndexDef struct {
	Name     string
	Kind     IndexKind
	HashKey  AttrDef
	RangeKey AttrDef
}

// TableSchema is the static shape of one entity's table.
type TableSchema struct {
	Name     string
	HashKey  AttrDef
	RangeKey *AttrDef
	Indexes  []IndexDef
}

// Index returns the named index definition, if any.
func (s TableSchema) Index(name string) (IndexDef, bool) {
	for _, idx := range s.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDef{}, false
}

// Client is the bounded-retry contract against the backing key-value
// store. Implementations retry transient failures a fixed number of
// times; a failed precondition is surfaced immediately as
// ErrConditionFailed and never retried.
type Client interface {
	// Get fetches one row by primary key. A missing row yields a nil
	// Item and no error.
	Get(ctx context.Context, table string, key Key, consistent bool) (Item, error)

	// ConditionalPut writes the full item if all conditions hold on the
	// row's current state.
	ConditionalPut(ctx context.Context, table string, item Item, conds []Condition) error

	// ConditionalUpdate applies the updates if all conditions hold.
	ConditionalUpdate(ctx context.Context, table string, key Key, updates []Update, conds []Condition) error

	// ConditionalDelete removes the row if all conditions hold.
	ConditionalDelete(ctx context.Context, table string, key Key, conds []Condition) error

	// Query runs an index query and returns the matching items in range
	// key order.
	Query(ctx context.Context, req QueryRequest) ([]Item, error)

	// CreateTable provisions the table and blocks, polling, until it is
	// active or the polling deadline elapses.
	CreateTable(ctx context.Context, schema TableSchema) error

	// DeleteTable removes the table and blocks, polling, until it is
	// gone or the polling deadline elapses.
	DeleteTable(ctx context.Context, name string) error

	// Close releases the client's resources.
	Close() error
}
