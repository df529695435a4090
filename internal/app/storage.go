//go:build !js || !wasm

package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/dvcrn/kitsune-oauth/internal/config"
	"github.com/dvcrn/kitsune-oauth/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OpenStorage builds the storage backend selected in cfg.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, logger *zerolog.Logger) (storage.Storage, error) {
	switch cfg.Backend {
	case config.StorageMemory:
		logger.Warn().Msg("🧠 Using in-memory storage, the session is lost on exit")
		return storage.NewMemory(), nil

	case config.StorageFS, "":
		if err := storage.EnsureDir(cfg.Dir); err != nil {
			return nil, err
		}
		logger.Info().Str("dir", cfg.Dir).Msg("📄 Using filesystem storage")
		return storage.NewFS(cfg.Dir, logger), nil

	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Int("db", cfg.Redis.DB).Msg("📦 Using redis storage")
		return storage.NewRedis(client, cfg.Redis.Prefix), nil

	case config.StorageDynamoDB:
		client, err := newDynamoDBClient(ctx, cfg.Dynamo)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("table", cfg.Dynamo.Table).Msg("📦 Using DynamoDB storage")
		return storage.NewDynamoDB(client, cfg.Dynamo.Table), nil

	case config.StorageKeychain:
		logger.Info().Str("service", cfg.KeychainService).Msg("🔑 Using macOS keychain storage")
		return storage.NewKeychain(cfg.KeychainService), nil

	case config.StorageKV:
		return nil, fmt.Errorf("storage backend %q is only available in the Workers build", cfg.Backend)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func newDynamoDBClient(ctx context.Context, cfg config.DynamoDBConfig) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg), nil
}
