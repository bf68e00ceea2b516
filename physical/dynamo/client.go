// Package dynamo implements physical.Client on top of Amazon DynamoDB.
//
// Transient client and network errors are retried a fixed number of times
// with a fixed inter-attempt delay. A conditional-check failure is never
// retried: it is the store reporting that a precondition did not hold,
// and retrying it would paper over a real conflict.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
)

// Verify interfaces are satisfied
var _ physical.Client = (*Client)(nil)

// API is the slice of the DynamoDB client this package uses. It exists
// so tests can substitute a fake.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DeleteTable(ctx context.Context, in *dynamodb.DeleteTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config holds the retry and table-admin polling bounds.
type Config struct {
	// RetryAttempts is the total number of attempts per operation.
	RetryAttempts int

	// RetryInterval is the fixed delay between attempts.
	RetryInterval time.Duration

	// PollInterval is the fixed interval between table-state probes.
	PollInterval time.Duration

	// PollTimeout bounds the total wait for a table to reach its target
	// state; elapsing it is fatal.
	PollTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		RetryAttempts: 3,
		RetryInterval: 250 * time.Millisecond,
		PollInterval:  2 * time.Second,
		PollTimeout:   2 * time.Minute,
	}
}

// Client is an explicitly constructed, injectable DynamoDB-backed store
// client with its own lifecycle. It holds no process-wide state.
type Client struct {
	api    API
	config *Config
	logger log.Logger
}

// NewClient constructs a Client around the given DynamoDB API.
func NewClient(api API, config *Config, logger log.Logger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	return &Client{
		api:    api,
		config: config,
		logger: logger,
	}
}

func (c *Client) Get(ctx context.Context, table string, key physical.Key, consistent bool) (physical.Item, error) {
	var out *dynamodb.GetItemOutput
	err := c.withRetry(ctx, "GetItem", func() error {
		var err error
		out, err = c.api.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(table),
			Key:            toDynamoKey(key),
			ConsistentRead: aws.Bool(consistent),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return fromDynamoItem(out.Item)
}

func (c *Client) ConditionalPut(ctx context.Context, table string, item physical.Item, conds []physical.Condition) error {
	b := newExprBuilder()
	condExpr := b.conditionExpression(conds)

	in := &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                toDynamoItem(item),
		ConditionExpression: condExpr,
	}
	b.attach(&in.ExpressionAttributeNames, &in.ExpressionAttributeValues)

	return c.withRetry(ctx, "PutItem", func() error {
		_, err := c.api.PutItem(ctx, in)
		return err
	})
}

func (c *Client) ConditionalUpdate(ctx context.Context, table string, key physical.Key, updates []physical.Update, conds []physical.Condition) error {
	b := newExprBuilder()
	updateExpr := b.updateExpression(updates)
	condExpr := b.conditionExpression(conds)

	in := &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 toDynamoKey(key),
		UpdateExpression:    updateExpr,
		ConditionExpression: condExpr,
	}
	b.attach(&in.ExpressionAttributeNames, &in.ExpressionAttributeValues)

	return c.withRetry(ctx, "UpdateItem", func() error {
		_, err := c.api.UpdateItem(ctx, in)
		return err
	})
}

func (c *Client) ConditionalDelete(ctx context.Context, table string, key physical.Key, conds []physical.Condition) error {
	b := newExprBuilder()
	condExpr := b.conditionExpression(conds)

	in := &dynamodb.DeleteItemInput{
		TableName:           aws.String(table),
		Key:                 toDynamoKey(key),
		ConditionExpression: condExpr,
	}
	b.attach(&in.ExpressionAttributeNames, &in.ExpressionAttributeValues)

	return c.withRetry(ctx, "DeleteItem", func() error {
		_, err := c.api.DeleteItem(ctx, in)
		return err
	})
}

func (c *Client) Query(ctx context.Context, req physical.QueryRequest) ([]physical.Item, error) {
	b := newExprBuilder()
	keyExpr := b.keyConditionExpression(req)

	in := &dynamodb.QueryInput{
		TableName:              aws.String(req.Table),
		KeyConditionExpression: keyExpr,
		ScanIndexForward:       aws.Bool(!req.Descending),
		ConsistentRead:         aws.Bool(req.Consistent),
	}
	if req.Index != "" {
		in.IndexName = aws.String(req.Index)
	}
	if req.Limit > 0 {
		in.Limit = aws.Int32(int32(req.Limit))
	}
	b.attach(&in.ExpressionAttributeNames, &in.ExpressionAttributeValues)

	var out *dynamodb.QueryOutput
	err := c.withRetry(ctx, "Query", func() error {
		var err error
		out, err = c.api.Query(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	items := make([]physical.Item, 0, len(out.Items))
	for _, raw := range out.Items {
		item, err := fromDynamoItem(raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Close releases the client. The underlying HTTP client is owned by the
// AWS SDK configuration, so there is nothing to tear down here; the
// method exists to give callers an explicit lifecycle endpoint.
func (c *Client) Close() error {
	c.logger.Debug("dynamo client closed")
	return nil
}

// withRetry runs fn up to RetryAttempts times with a fixed delay between
// attempts. Condition failures and non-transient service errors are
// returned immediately.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	call := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return backoff.Permanent(fmt.Errorf("%w: %s", physical.ErrConditionFailed, op))
		}
		if !isTransient(err) {
			return backoff.Permanent(err)
		}

		c.logger.Warn("transient store error",
			log.String("operation", op),
			log.Int("attempt", attempt),
			log.Err(err),
		)
		return err
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(c.config.RetryInterval),
		uint64(c.config.RetryAttempts-1),
	)
	return backoff.Retry(call, backoff.WithContext(policy, ctx))
}

// isTransient reports whether the error is worth another attempt:
// throttling, server-side faults, and anything that is not a modeled
// service error (i.e. transport failures).
func isTransient(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException",
			"ThrottlingException",
			"RequestLimitExceeded",
			"InternalServerError",
			"ServiceUnavailable",
			"TransactionConflictException":
			return true
		}
		return false
	}
	return true
}
