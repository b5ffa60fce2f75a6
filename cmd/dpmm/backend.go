package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/dpmm/blobstore"
	minioblob "github.com/hupe1980/dpmm/blobstore/minio"
	s3blob "github.com/hupe1980/dpmm/blobstore/s3"
	"github.com/hupe1980/dpmm/checkpoint"
	"github.com/hupe1980/dpmm/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// openCheckpoints returns the configured checkpoint store, or nil when
// checkpointing is disabled.
func openCheckpoints(ctx context.Context, cfg config.CheckpointConfig) (*checkpoint.Store, error) {
	blobs, err := openBlobStore(ctx, cfg)
	if err != nil || blobs == nil {
		return nil, err
	}
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	return checkpoint.NewStore(blobs, opts...), nil
}

func openBlobStore(ctx context.Context, cfg config.CheckpointConfig) (blobstore.BlobStore, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		return blobstore.NewLocalStore(cfg.Local.Dir), nil
	case "s3":
		return openS3(ctx, cfg.S3)
	case "minio":
		return openMinio(cfg.Minio)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}

func openS3(ctx context.Context, cfg config.S3Config) (blobstore.BlobStore, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	store := s3blob.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
	if cfg.DynamoDBTable == "" {
		return store, nil
	}

	baseURI := "s3://" + cfg.Bucket + "/"
	if p := strings.Trim(cfg.Prefix, "/"); p != "" {
		baseURI += p + "/"
	}
	ddb := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.RetryMaxAttempts = 5
		o.RetryMode = aws.RetryModeAdaptive
	})
	return s3blob.NewDDBCommitStore(store, ddb, cfg.DynamoDBTable, baseURI), nil
}

func openMinio(cfg config.MinioConfig) (blobstore.BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return minioblob.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}
