package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/dpmm/blobstore"
	"github.com/hupe1980/dpmm/codec"
	"github.com/hupe1980/dpmm/resource"
	"golang.org/x/sync/errgroup"
)

const (
	// CurrentName is the pointer blob naming the latest checkpoint.
	CurrentName = "CURRENT"

	blobPrefix = "ckpt-"
)

// Store saves and loads checkpoints in a blob store.
type Store struct {
	blobs       blobstore.BlobStore
	codec       codec.Codec
	compression Compression
	prefix      string
	limits      resource.Config
	rc          *resource.Controller
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the payload codec. Defaults to codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithCompression sets the payload compression. Defaults to CompressionNone.
func WithCompression(c Compression) Option {
	return func(s *Store) {
		s.compression = c
	}
}

// WithRateLimit caps checkpoint IO in bytes per second. 0 means unlimited.
func WithRateLimit(bytesPerSec int64) Option {
	return func(s *Store) {
		s.limits.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithPruneConcurrency sets how many deletes Prune runs at once.
func WithPruneConcurrency(n int) Option {
	return func(s *Store) {
		s.limits.MaxBackgroundWorkers = int64(n)
	}
}

// WithPrefix stores all blobs under prefix, so several runs can share
// one blob store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// NewStore creates a checkpoint store on top of blobs.
func NewStore(blobs blobstore.BlobStore, opts ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		codec:       codec.Default,
		compression: CompressionNone,
		limits:      resource.Config{MaxBackgroundWorkers: 4},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rc = resource.NewController(s.limits)
	return s
}

func (s *Store) name(base string) string {
	if s.prefix == "" {
		return base
	}
	return path.Join(s.prefix, base)
}

// BlobName returns the blob name of the checkpoint taken after iteration
// completed sweeps.
func (s *Store) BlobName(iteration int) string {
	return s.name(fmt.Sprintf("%s%09d", blobPrefix, iteration))
}

// Save writes cp and then points CURRENT at it.
func (s *Store) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint: nil checkpoint")
	}
	if cp.Iteration < 0 {
		return fmt.Errorf("checkpoint: negative iteration %d", cp.Iteration)
	}
	if cp.Version == 0 {
		cp.Version = Version
	}

	data, err := encode(cp, s.codec, s.compression)
	if err != nil {
		return err
	}
	if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
		return err
	}

	name := s.BlobName(cp.Iteration)
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return fmt.Errorf("checkpoint: put %s: %w", name, err)
	}
	if err := s.blobs.Put(ctx, s.name(CurrentName), []byte(name)); err != nil {
		return fmt.Errorf("checkpoint: update %s: %w", CurrentName, err)
	}
	return nil
}

// Latest loads the checkpoint CURRENT points at. It returns
// ErrNoCheckpoint if no checkpoint was saved yet.
func (s *Store) Latest(ctx context.Context) (*Checkpoint, error) {
	target, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, target)
}

func (s *Store) current(ctx context.Context) (string, error) {
	ptr, err := s.blobs.Get(ctx, s.name(CurrentName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoCheckpoint
		}
		return "", fmt.Errorf("checkpoint: read %s: %w", CurrentName, err)
	}
	target := strings.TrimSpace(string(ptr))
	if target == "" {
		return "", fmt.Errorf("%w: empty %s", ErrCorrupt, CurrentName)
	}
	return target, nil
}

// Load reads the checkpoint stored under name.
func (s *Store) Load(ctx context.Context, name string) (*Checkpoint, error) {
	data, err := s.blobs.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: get %s: %w", name, err)
	}
	if err := s.rc.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	cp, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return cp, nil
}

// List returns the names of all stored checkpoints, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	listPrefix := s.name(blobPrefix)
	names, err := s.blobs.List(ctx, listPrefix)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	out := names[:0]
	for _, n := range names {
		// Guard against stores that match prefixes loosely.
		if strings.HasPrefix(n, listPrefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Prune deletes all but the newest keep checkpoints. The checkpoint CURRENT
// points at is never deleted. It returns the number of deleted blobs.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("checkpoint: keep must be at least 1, got %d", keep)
	}
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(names) <= keep {
		return 0, nil
	}

	current, err := s.current(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpoint) {
		return 0, err
	}

	var victims []string
	for _, n := range names[:len(names)-keep] {
		if n != current {
			victims = append(victims, n)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range victims {
		if err := s.rc.AcquireBackground(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer s.rc.ReleaseBackground()
			if err := s.blobs.Delete(gctx, n); err != nil {
				return fmt.Errorf("checkpoint: delete %s: %w", n, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return len(victims), nil
}
