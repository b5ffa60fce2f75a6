// Package checkpoint persists sampler chains so a fit can resume where it
// stopped.
//
// A checkpoint holds everything a chain needs to continue bit-identically:
// per-shard labels and sub-labels, per-shard and coordinator generator
// states, and cluster ages. Global parameters are not stored; they are
// redrawn from the restored statistics with the restored coordinator
// generator.
//
// Blobs are written as ckpt-<iteration> followed by an update of the
// CURRENT pointer, so a crash between the two leaves the previous
// checkpoint reachable.
package checkpoint

import "errors"

// Version is the current checkpoint schema version.
const Version = 1

var (
	// ErrNoCheckpoint is returned by Latest when nothing was saved yet.
	ErrNoCheckpoint = errors.New("checkpoint: no checkpoint")

	// ErrCorrupt is returned when a blob cannot be decoded.
	ErrCorrupt = errors.New("checkpoint: corrupt blob")

	// ErrUnsupportedVersion is returned for checkpoints from a newer schema.
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported version")
)

// Checkpoint is a snapshot of a chain after Iteration completed sweeps.
type Checkpoint struct {
	Version   int    `json:"version"`
	Iteration int    `json:"iteration"`
	Seed      uint64 `json:"seed"`
	// NClusters counts all components, including an outlier component.
	NClusters int `json:"n_clusters"`
	// Ages has one entry per component.
	Ages []int `json:"ages"`
	// RNG is the marshaled coordinator generator.
	RNG    []byte       `json:"rng"`
	Shards []ShardState `json:"shards"`
}

// ShardState is the per-shard part of a checkpoint.
type ShardState struct {
	Labels    []int  `json:"labels"`
	LabelsAux []int  `json:"labels_aux"`
	RNG       []byte `json:"rng"`
}

// NPoints returns the total number of points across shards.
func (c *Checkpoint) NPoints() int {
	n := 0
	for _, s := range c.Shards {
		n += len(s.Labels)
	}
	return n
}
