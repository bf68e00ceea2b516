// Package helpers builds the shared collaborators of the CLI commands:
// configuration, logger and the store client.
package helpers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/stephnangue/idstore/config"
	log "github.com/stephnangue/idstore/logger"
	"github.com/stephnangue/idstore/physical/dynamo"
)

// ConfigFile is set by the root command's --config flag.
var ConfigFile string

// Load reads the configuration file, or returns an all-defaults
// configuration when no file was given.
func Load() (*config.Config, error) {
	if ConfigFile == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.LoadConfig(ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", ConfigFile, err)
	}
	return cfg, nil
}

// Logger builds the CLI logger from the configuration.
func Logger(cfg *config.Config) log.Logger {
	return log.NewZerologLogger(cfg.LoggerConfig())
}

// StoreClient builds the DynamoDB-backed store client. The aws block's
// endpoint override points it at a local DynamoDB.
func StoreClient(ctx context.Context, cfg *config.Config, logger log.Logger) (*dynamo.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS != nil {
		if cfg.AWS.Region != "" {
			opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
		}
		if cfg.AWS.AccessKeyID != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.AWS.AccessKeyID,
					cfg.AWS.SecretAccessKey,
					cfg.AWS.SessionToken,
				)))
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	api := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWS != nil && cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})

	storeCfg, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	return dynamo.NewClient(api, storeCfg, logger.WithSubsystem("storage")), nil
}
