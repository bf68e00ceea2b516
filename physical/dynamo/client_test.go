package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
)

type fakeAPI struct {
	getItem       func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem       func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem    func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem    func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	query         func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	createTable   func(*dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error)
	deleteTable   func(*dynamodb.DeleteTableInput) (*dynamodb.DeleteTableOutput, error)
	describeTable func(*dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error)
}

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return f.getItem(in)
}
func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return f.putItem(in)
}
func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return f.updateItem(in)
}
func (f *fakeAPI) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return f.deleteItem(in)
}
func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return f.query(in)
}
func (f *fakeAPI) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return f.createTable(in)
}
func (f *fakeAPI) DeleteTable(_ context.Context, in *dynamodb.DeleteTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	return f.deleteTable(in)
}
func (f *fakeAPI) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return f.describeTable(in)
}

func testConfig() *Config {
	return &Config{
		RetryAttempts: 3,
		RetryInterval: time.Millisecond,
		PollInterval:  time.Millisecond,
		PollTimeout:   50 * time.Millisecond,
	}
}

var attrValue = physical.AttrDef{Name: "token_value", Type: physical.TypeString}

func throttlingErr() error {
	return &smithy.GenericAPIError{Code: "ThrottlingException", Message: "slow down"}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			if calls < 3 {
				return nil, throttlingErr()
			}
			return &dynamodb.GetItemOutput{Item: map[string]ddbtypes.AttributeValue{
				"token_value": &ddbtypes.AttributeValueMemberS{Value: "abc"},
			}}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	item, err := c.Get(context.Background(), "tokens", physical.Key{
		"token_value": physical.String("abc"),
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	v, err := physical.RequiredString(item, attrValue)
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestClient_RetryBoundExhausted(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			return nil, throttlingErr()
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	_, err := c.Get(context.Background(), "tokens", physical.Key{
		"token_value": physical.String("abc"),
	}, true)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestClient_ConditionFailureNeverRetried(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			calls++
			return nil, &ddbtypes.ConditionalCheckFailedException{Message: aws.String("no")}
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.ConditionalPut(context.Background(), "tokens", physical.Item{
		"token_value": physical.String("abc"),
	}, []physical.Condition{physical.AttributeNotExists(attrValue)})
	require.ErrorIs(t, err, physical.ErrConditionFailed)
	assert.Equal(t, 1, calls)
}

func TestClient_NonTransientErrorNotRetried(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			calls++
			return nil, &smithy.GenericAPIError{Code: "ValidationException", Message: "bad input"}
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.ConditionalPut(context.Background(), "tokens", physical.Item{
		"token_value": physical.String("abc"),
	}, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, physical.ErrConditionFailed)
	assert.Equal(t, 1, calls)
}

func TestClient_ConditionalPutExpression(t *testing.T) {
	var captured *dynamodb.PutItemInput
	api := &fakeAPI{
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			captured = in
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	attrType := physical.AttrDef{Name: "token_type", Type: physical.TypeString}
	err := c.ConditionalPut(context.Background(), "tokens", physical.Item{
		"token_type":  physical.String("bearer_access_token"),
		"token_value": physical.String("abc"),
	}, []physical.Condition{
		physical.AttributeNotExists(attrType),
		physical.AttributeNotExists(attrValue),
	})
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, "tokens", *captured.TableName)
	assert.Equal(t, "attribute_not_exists(#a0) AND attribute_not_exists(#a1)", *captured.ConditionExpression)
	assert.Equal(t, map[string]string{"#a0": "token_type", "#a1": "token_value"}, captured.ExpressionAttributeNames)
	assert.Empty(t, captured.ExpressionAttributeValues)
}

func TestClient_QueryExpression(t *testing.T) {
	var captured *dynamodb.QueryInput
	api := &fakeAPI{
		query: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
			captured = in
			return &dynamodb.QueryOutput{}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	principal := physical.AttrDef{Name: "principal_id", Type: physical.TypeNumber}
	activate := physical.AttrDef{Name: "activate_time", Type: physical.TypeNumber}

	_, err := c.Query(context.Background(), physical.QueryRequest{
		Table:     "bindings",
		Index:     "principal_index",
		HashAttr:  principal,
		HashValue: physical.Int(42),
		Range: &physical.RangeCondition{
			Attr:  activate,
			Op:    physical.RangeLessThan,
			Value: physical.Int(1000),
		},
		Descending: true,
		Limit:      1,
	})
	require.NoError(t, err)
	require.NotNil(t, captured)

	assert.Equal(t, "principal_index", *captured.IndexName)
	assert.Equal(t, "#a0 = :v0 AND #a1 < :v1", *captured.KeyConditionExpression)
	assert.False(t, *captured.ScanIndexForward)
	assert.Equal(t, int32(1), *captured.Limit)
}

func TestClient_CreateTable_AlreadyExists(t *testing.T) {
	api := &fakeAPI{
		createTable: func(in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			return nil, &ddbtypes.ResourceInUseException{Message: aws.String("exists")}
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.CreateTable(context.Background(), physical.TableSchema{
		Name:    "tokens",
		HashKey: physical.AttrDef{Name: "token_type", Type: physical.TypeString},
	})
	require.ErrorIs(t, err, physical.ErrTableExists)
}

func TestClient_CreateTable_PollsUntilActive(t *testing.T) {
	describes := 0
	api := &fakeAPI{
		createTable: func(in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			return &dynamodb.CreateTableOutput{}, nil
		},
		describeTable: func(in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
			describes++
			status := ddbtypes.TableStatusCreating
			if describes >= 3 {
				status = ddbtypes.TableStatusActive
			}
			return &dynamodb.DescribeTableOutput{
				Table: &ddbtypes.TableDescription{TableStatus: status},
			}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.CreateTable(context.Background(), physical.TableSchema{
		Name:    "tokens",
		HashKey: physical.AttrDef{Name: "token_type", Type: physical.TypeString},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, describes)
}

func TestClient_CreateTable_PollDeadline(t *testing.T) {
	api := &fakeAPI{
		createTable: func(in *dynamodb.CreateTableInput) (*dynamodb.CreateTableOutput, error) {
			return &dynamodb.CreateTableOutput{}, nil
		},
		describeTable: func(in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{
				Table: &ddbtypes.TableDescription{TableStatus: ddbtypes.TableStatusCreating},
			}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.CreateTable(context.Background(), physical.TableSchema{
		Name:    "tokens",
		HashKey: physical.AttrDef{Name: "token_type", Type: physical.TypeString},
	})
	require.ErrorIs(t, err, physical.ErrTableStateTimeout)
}

func TestClient_DeleteTable_PollsUntilGone(t *testing.T) {
	describes := 0
	api := &fakeAPI{
		deleteTable: func(in *dynamodb.DeleteTableInput) (*dynamodb.DeleteTableOutput, error) {
			return &dynamodb.DeleteTableOutput{}, nil
		},
		describeTable: func(in *dynamodb.DescribeTableInput) (*dynamodb.DescribeTableOutput, error) {
			describes++
			if describes >= 2 {
				return nil, &ddbtypes.ResourceNotFoundException{Message: aws.String("gone")}
			}
			return &dynamodb.DescribeTableOutput{
				Table: &ddbtypes.TableDescription{TableStatus: ddbtypes.TableStatusDeleting},
			}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	require.NoError(t, c.DeleteTable(context.Background(), "tokens"))
	assert.Equal(t, 2, describes)
}

func TestClient_DeleteTable_NotFound(t *testing.T) {
	api := &fakeAPI{
		deleteTable: func(in *dynamodb.DeleteTableInput) (*dynamodb.DeleteTableOutput, error) {
			return nil, &ddbtypes.ResourceNotFoundException{Message: aws.String("missing")}
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	err := c.DeleteTable(context.Background(), "tokens")
	require.ErrorIs(t, err, physical.ErrTableNotFound)
}

func TestClient_TransportErrorRetried(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset by peer")
			}
			return &dynamodb.GetItemOutput{}, nil
		},
	}
	c := NewClient(api, testConfig(), logger.NewNop())

	item, err := c.Get(context.Background(), "tokens", physical.Key{
		"token_value": physical.String("abc"),
	}, false)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, 2, calls)
}
