// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := awss3.NewFromConfig(cfg)
//	store := s3.NewStore(client, "my-bucket", "runs/")
//
//	ckpt := checkpoint.NewStore(store)
//
// With a DynamoDB table the CURRENT pointer becomes an atomic,
// versioned commit:
//
//	store := s3.NewDDBCommitStore(s3.NewStore(client, "my-bucket", "runs/"),
//	    dynamodb.NewFromConfig(cfg), "dpmm-commits", "s3://my-bucket/runs/")
//
// # Features
//
//   - Multipart uploads for large checkpoints
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
