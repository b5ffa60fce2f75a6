// Package blobstore provides storage abstraction for checkpoint blobs.
//
// BlobStore is the interface for reading and writing whole, named blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests
//   - LocalStore: local filesystem with atomic rename
//   - s3.Store: Amazon S3 with multipart uploads
//   - s3.DDBCommitStore: S3 plus DynamoDB for atomic CURRENT updates
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Put(ctx, name, data) error          // Atomic write
//	    Get(ctx, name) ([]byte, error)      // Whole-blob read
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
