// Package dpmm fits Dirichlet process mixture models with a parallel
// split/merge Gibbs sampler.
//
// Every cluster carries two auxiliary sub-clusters. Each sweep resamples
// point labels against the current cluster parameters, resamples the
// sub-cluster labels inside every cluster, and then proposes to split a
// cluster along its sub-clusters or to merge two clusters. The number of
// clusters is inferred from the data.
//
// # Quick Start
//
//	m, _ := dpmm.NewGaussian(2, dpmm.WithIters(200), dpmm.WithNumShards(4))
//	res, _ := m.Fit(ctx, data) // data is an n×2 *mat.Dense
//	fmt.Println(res.DataClusters(), res.Counts)
//
// Other prior families plug in through stats.Family:
//
//	model := dpmm.DefaultModelOptions[niw.Stats](fam)
//	model.Outlier = nil // no outlier component
//	m, _ := dpmm.New(model, dpmm.WithSeed(7))
//
// # Sharding
//
// Rows are split into contiguous shards that are sampled concurrently,
// each with its own random stream. The coordinator owns cluster
// statistics and draws the global state; shards only hold labels. A run
// is reproducible for a given seed and shard count.
//
// # Checkpoints
//
// With a Checkpointer the chain is saved every few sweeps and can be
// resumed exactly, including the random streams:
//
//	store := checkpoint.NewStore(blobstore.NewLocalStore("./ckpt"),
//	    checkpoint.WithCompression(checkpoint.CompressionZSTD))
//	m, _ := dpmm.NewGaussian(2, dpmm.WithCheckpointer(store), dpmm.WithResume())
//
// # Key Features
//
//   - Split/merge moves through auxiliary sub-clusters
//   - Optional fixed-weight outlier component
//   - Conjugate Normal-Inverse-Wishart prior (package prior/niw)
//   - Checkpoints on local disk, S3 (with DynamoDB commits) or MinIO
//   - Structured logging (log/slog) and Prometheus metrics
package dpmm
