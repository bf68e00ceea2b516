package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical"
)

// CreateTable provisions the table on demand billing and polls until it
// reaches ACTIVE or the polling deadline elapses.
func (c *Client) CreateTable(ctx context.Context, schema physical.TableSchema) error {
	in, err := toCreateTableInput(schema)
	if err != nil {
		return err
	}

	_, err = c.api.CreateTable(ctx, in)
	if err != nil {
		var inUse *ddbtypes.ResourceInUseException
		if errors.As(err, &inUse) {
			return fmt.Errorf("%w: %s", physical.ErrTableExists, schema.Name)
		}
		return fmt.Errorf("CreateTable %s: %w", schema.Name, err)
	}

	c.logger.Info("waiting for table to become active", log.String("table", schema.Name))
	return c.pollTableState(ctx, schema.Name, true)
}

// DeleteTable removes the table and polls until it is gone or the
// polling deadline elapses.
func (c *Client) DeleteTable(ctx context.Context, name string) error {
	_, err := c.api.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(name),
	})
	if err != nil {
		var notFound *ddbtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: %s", physical.ErrTableNotFound, name)
		}
		return fmt.Errorf("DeleteTable %s: %w", name, err)
	}

	c.logger.Info("waiting for table to be removed", log.String("table", name))
	return c.pollTableState(ctx, name, false)
}

// pollTableState probes DescribeTable at a fixed interval until the
// table is ACTIVE (wantActive) or absent (!wantActive). The total wait
// is bounded; elapsing it surfaces a fatal error.
func (c *Client) pollTableState(ctx context.Context, name string, wantActive bool) error {
	deadline := time.Now().Add(c.config.PollTimeout)

	for {
		out, err := c.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(name),
		})
		switch {
		case err != nil:
			var notFound *ddbtypes.ResourceNotFoundException
			if errors.As(err, &notFound) {
				if !wantActive {
					return nil
				}
			} else if !isTransient(err) {
				return fmt.Errorf("DescribeTable %s: %w", name, err)
			}
		case wantActive && out.Table.TableStatus == ddbtypes.TableStatusActive:
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", physical.ErrTableStateTimeout, name)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.config.PollInterval):
		}
	}
}

func toCreateTableInput(schema physical.TableSchema) (*dynamodb.CreateTableInput, error) {
	defs := map[string]ddbtypes.ScalarAttributeType{}

	addDef := func(attr physical.AttrDef) error {
		var scalar ddbtypes.ScalarAttributeType
		switch attr.Type {
		case physical.TypeString:
			scalar = ddbtypes.ScalarAttributeTypeS
		case physical.TypeNumber:
			scalar = ddbtypes.ScalarAttributeTypeN
		case physical.TypeBinary:
			scalar = ddbtypes.ScalarAttributeTypeB
		default:
			return fmt.Errorf("attribute %s: type %s cannot be a key", attr.Name, attr.Type)
		}
		defs[attr.Name] = scalar
		return nil
	}

	if err := addDef(schema.HashKey); err != nil {
		return nil, err
	}
	keySchema := []ddbtypes.KeySchemaElement{{
		AttributeName: aws.String(schema.HashKey.Name),
		KeyType:       ddbtypes.KeyTypeHash,
	}}
	if schema.RangeKey != nil {
		if err := addDef(*schema.RangeKey); err != nil {
			return nil, err
		}
		keySchema = append(keySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(schema.RangeKey.Name),
			KeyType:       ddbtypes.KeyTypeRange,
		})
	}

	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(schema.Name),
		KeySchema:   keySchema,
		BillingMode: ddbtypes.BillingModePayPerRequest,
	}

	for _, idx := range schema.Indexes {
		if err := addDef(idx.HashKey); err != nil {
			return nil, err
		}
		if err := addDef(idx.RangeKey); err != nil {
			return nil, err
		}
		idxKey := []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String(idx.HashKey.Name), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String(idx.RangeKey.Name), KeyType: ddbtypes.KeyTypeRange},
		}
		projection := &ddbtypes.Projection{ProjectionType: ddbtypes.ProjectionTypeAll}

		if idx.Kind == physical.LocalIndex {
			in.LocalSecondaryIndexes = append(in.LocalSecondaryIndexes, ddbtypes.LocalSecondaryIndex{
				IndexName:  aws.String(idx.Name),
				KeySchema:  idxKey,
				Projection: projection,
			})
		} else {
			in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, ddbtypes.GlobalSecondaryIndex{
				IndexName:  aws.String(idx.Name),
				KeySchema:  idxKey,
				Projection: projection,
			})
		}
	}

	for name, scalar := range defs {
		in.AttributeDefinitions = append(in.AttributeDefinitions, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(name),
			AttributeType: scalar,
		})
	}

	return in, nil
}
