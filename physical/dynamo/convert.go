package dynamo

import (
	"fmt"
	"strconv"
	"strings"

	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/stephnangue/idstore/physical"
)

func toDynamoAttr(a physical.Attribute) ddbtypes.AttributeValue {
	switch a.Type {
	case physical.TypeNumber:
		return &ddbtypes.AttributeValueMemberN{Value: a.N}
	case physical.TypeBinary:
		return &ddbtypes.AttributeValueMemberB{Value: a.B}
	case physical.TypeStringSet:
		return &ddbtypes.AttributeValueMemberSS{Value: a.SS}
	case physical.TypeBool:
		return &ddbtypes.AttributeValueMemberBOOL{Value: a.BOOL}
	default:
		return &ddbtypes.AttributeValueMemberS{Value: a.S}
	}
}

func fromDynamoAttr(av ddbtypes.AttributeValue) (physical.Attribute, error) {
	switch v := av.(type) {
	case *ddbtypes.AttributeValueMemberS:
		return physical.Attribute{Type: physical.TypeString, S: v.Value}, nil
	case *ddbtypes.AttributeValueMemberN:
		return physical.Attribute{Type: physical.TypeNumber, N: v.Value}, nil
	case *ddbtypes.AttributeValueMemberB:
		return physical.Attribute{Type: physical.TypeBinary, B: v.Value}, nil
	case *ddbtypes.AttributeValueMemberSS:
		return physical.Attribute{Type: physical.TypeStringSet, SS: v.Value}, nil
	case *ddbtypes.AttributeValueMemberBOOL:
		return physical.Attribute{Type: physical.TypeBool, BOOL: v.Value}, nil
	default:
		return physical.Attribute{}, fmt.Errorf("unsupported attribute value %T", av)
	}
}

func toDynamoItem(item physical.Item) map[string]ddbtypes.AttributeValue {
	out := make(map[string]ddbtypes.AttributeValue, len(item))
	for name, attr := range item {
		out[name] = toDynamoAttr(attr)
	}
	return out
}

func toDynamoKey(key physical.Key) map[string]ddbtypes.AttributeValue {
	out := make(map[string]ddbtypes.AttributeValue, len(key))
	for name, attr := range key {
		out[name] = toDynamoAttr(attr)
	}
	return out
}

func fromDynamoItem(m map[string]ddbtypes.AttributeValue) (physical.Item, error) {
	item := make(physical.Item, len(m))
	for name, av := range m {
		attr, err := fromDynamoAttr(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", name, err)
		}
		item[name] = attr
	}
	return item, nil
}

// exprBuilder accumulates expression attribute names and values while
// condition, update and key expressions are rendered.
type exprBuilder struct {
	names  map[string]string
	values map[string]ddbtypes.AttributeValue
	n      int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  make(map[string]string),
		values: make(map[string]ddbtypes.AttributeValue),
	}
}

func (b *exprBuilder) name(attr string) string {
	placeholder := "#a" + strconv.Itoa(b.n)
	b.names[placeholder] = attr
	b.n++
	return placeholder
}

func (b *exprBuilder) value(a physical.Attribute) string {
	placeholder := ":v" + strconv.Itoa(len(b.values))
	b.values[placeholder] = toDynamoAttr(a)
	return placeholder
}

func (b *exprBuilder) conditionExpression(conds []physical.Condition) *string {
	if len(conds) == 0 {
		return nil
	}
	parts := make([]string, 0, len(conds))
	for _, cond := range conds {
		name := b.name(cond.Attr.Name)
		switch cond.Op {
		case physical.CondAttributeNotExists:
			parts = append(parts, fmt.Sprintf("attribute_not_exists(%s)", name))
		case physical.CondEqual:
			parts = append(parts, fmt.Sprintf("%s = %s", name, b.value(cond.Value)))
		case physical.CondGreaterThan:
			parts = append(parts, fmt.Sprintf("%s > %s", name, b.value(cond.Value)))
		case physical.CondLessThan:
			parts = append(parts, fmt.Sprintf("%s < %s", name, b.value(cond.Value)))
		}
	}
	expr := strings.Join(parts, " AND ")
	return &expr
}

func (b *exprBuilder) updateExpression(updates []physical.Update) *string {
	if len(updates) == 0 {
		return nil
	}
	parts := make([]string, 0, len(updates))
	for _, u := range updates {
		parts = append(parts, fmt.Sprintf("%s = %s", b.name(u.Attr.Name), b.value(u.Value)))
	}
	expr := "SET " + strings.Join(parts, ", ")
	return &expr
}

func (b *exprBuilder) keyConditionExpression(req physical.QueryRequest) *string {
	expr := fmt.Sprintf("%s = %s", b.name(req.HashAttr.Name), b.value(req.HashValue))
	if req.Range != nil {
		op := "="
		switch req.Range.Op {
		case physical.RangeLessThan:
			op = "<"
		case physical.RangeGreaterThan:
			op = ">"
		}
		expr += fmt.Sprintf(" AND %s %s %s", b.name(req.Range.Attr.Name), op, b.value(req.Range.Value))
	}
	return &expr
}

// attach hands the accumulated placeholders to an input struct; DynamoDB
// rejects empty maps, so nothing is attached when no placeholders exist.
func (b *exprBuilder) attach(names *map[string]string, values *map[string]ddbtypes.AttributeValue) {
	if len(b.names) > 0 {
		*names = b.names
	}
	if len(b.values) > 0 {
		*values = b.values
	}
}
