package local

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/dpmm/global"
	"github.com/hupe1980/dpmm/internal/numeric"
	"gonum.org/v1/gonum/mat"
)

// State is one data shard and its current labels.
type State struct {
	data      *mat.Dense
	labels    []int
	labelsAux []int
}

// New creates a State from existing labels, e.g. when restoring a
// checkpoint. Labels are copied.
func New(data *mat.Dense, labels, labelsAux []int) (*State, error) {
	n, _ := data.Dims()
	if len(labels) != n || len(labelsAux) != n {
		return nil, fmt.Errorf("%w: %d points, %d labels, %d aux labels", ErrLengthMismatch, n, len(labels), len(labelsAux))
	}
	for i, l := range labels {
		if l < 0 {
			return nil, &LabelError{Point: i, Label: l, cause: ErrLabelOutOfRange}
		}
	}
	for i, a := range labelsAux {
		if a != 0 && a != 1 {
			return nil, &LabelError{Point: i, Label: a, cause: ErrInvalidAuxLabel}
		}
	}
	return &State{
		data:      data,
		labels:    slices.Clone(labels),
		labelsAux: slices.Clone(labelsAux),
	}, nil
}

// FromInit creates a State with every point assigned to a uniformly random
// cluster in [0, nClusters) and a uniformly random aux label. Callers that
// reserve an outlier component include it in nClusters.
func FromInit(data *mat.Dense, nClusters int, rng *rand.Rand) *State {
	n, _ := data.Dims()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = rng.IntN(nClusters)
	}
	labelsAux := make([]int, n)
	for i := range labelsAux {
		labelsAux[i] = rng.IntN(2)
	}
	return &State{data: data, labels: labels, labelsAux: labelsAux}
}

// NPoints returns the number of points in the shard.
func (l *State) NPoints() int {
	n, _ := l.data.Dims()
	return n
}

// Data returns the shard's data matrix. It must not be modified.
func (l *State) Data() *mat.Dense { return l.data }

// Labels returns a copy of the primary labels.
func (l *State) Labels() []int { return slices.Clone(l.labels) }

// LabelsAux returns a copy of the aux labels.
func (l *State) LabelsAux() []int { return slices.Clone(l.labelsAux) }

// point returns a view of row i.
func (l *State) point(i int) []float64 { return l.data.RawRowView(i) }

// SampleLabels reassigns every point's primary label against g.
//
// The log-likelihood of point i under cluster k is
// log p_k(x_i) + log w_k. With final set each point takes the arg-max
// cluster (first maximum on ties); otherwise labels are drawn from the
// normalized row. Labels are left untouched on error, e.g. when every
// cluster assigns zero likelihood to a point.
func (l *State) SampleLabels(g *global.State, final bool, rng *rand.Rand) error {
	if err := g.Validate(); err != nil {
		return err
	}
	n := l.NPoints()
	if n == 0 {
		return nil
	}

	ll := mat.NewDense(n, g.NClusters(), nil)
	for k, c := range g.Clusters {
		lw := math.Log(g.Weights[k])
		for i := 0; i < n; i++ {
			ll.Set(i, k, c.Prim.LogProb(l.point(i))+lw)
		}
	}

	if final {
		for i := 0; i < n; i++ {
			l.labels[i] = numeric.Argmax(ll.RawRowView(i))
		}
		return nil
	}

	numeric.RowNormalizeLogWeights(ll)
	return numeric.SampleWeighted(ll, l.labels, rng)
}

// SampleLabelsAux reassigns every point's aux label using the two
// sub-cluster densities and aux weights of the point's own cluster.
// Sub-cluster assignment is always stochastic.
func (l *State) SampleLabelsAux(g *global.State, rng *rand.Rand) error {
	if err := g.Validate(); err != nil {
		return err
	}
	n := l.NPoints()
	if n == 0 {
		return nil
	}
	if err := l.checkLabels(g.NClusters()); err != nil {
		return err
	}

	ll := mat.NewDense(n, 2, nil)
	for k, c := range g.Clusters {
		lw := [2]float64{math.Log(c.Weights[0]), math.Log(c.Weights[1])}
		for i, label := range l.labels {
			if label != k {
				continue
			}
			x := l.point(i)
			for a := 0; a < 2; a++ {
				ll.Set(i, a, c.Aux[a].LogProb(x)+lw[a])
			}
		}
	}

	numeric.RowNormalizeLogWeights(ll)
	return numeric.SampleWeighted(ll, l.labelsAux, rng)
}

// ResetClusters draws fresh uniform aux labels for every point of the
// given clusters.
func (l *State) ResetClusters(clusterIdx []int, rng *rand.Rand) {
	reset := clusterSet(clusterIdx)
	for i, label := range l.labels {
		if label >= 0 && reset.Contains(uint32(label)) {
			l.labelsAux[i] = rng.IntN(2)
		}
	}
}

// RemoveClusters deletes the given cluster indices and compacts the
// remaining labels so that they stay contiguous.
//
// clusterIdx must be strictly ascending and refer to the numbering before
// the call. No point may hold a removed index; such points must have been
// reassigned first.
func (l *State) RemoveClusters(clusterIdx []int) error {
	if len(clusterIdx) == 0 {
		return nil
	}
	for j, k := range clusterIdx {
		if k < 0 || (j > 0 && k <= clusterIdx[j-1]) {
			return fmt.Errorf("%w: %v", ErrUnsortedIndices, clusterIdx)
		}
	}

	removed := clusterSet(clusterIdx)
	for i, label := range l.labels {
		if removed.Contains(uint32(label)) {
			return &LabelError{Point: i, Label: label, cause: ErrClusterOccupied}
		}
	}

	// Every removal shifts the indices above it down by one, so each index
	// is adjusted by the number of removals already applied.
	for shift, k := range clusterIdx {
		threshold := k - shift
		for i, label := range l.labels {
			if label > threshold {
				l.labels[i] = label - 1
			}
		}
	}
	return nil
}

// Split moves the aux-1 half of Cluster into the new cluster Into.
type Split struct {
	Cluster int
	Into    int
}

// ApplySplits moves the points of every split cluster whose aux label is 1
// into the split's target cluster. Aux labels are left as they are; callers
// reset them with ResetClusters.
func (l *State) ApplySplits(splits []Split) {
	if len(splits) == 0 {
		return
	}
	target := make(map[int]int, len(splits))
	for _, s := range splits {
		target[s.Cluster] = s.Into
	}
	for i, label := range l.labels {
		if into, ok := target[label]; ok && l.labelsAux[i] == 1 {
			l.labels[i] = into
		}
	}
}

// Merge folds cluster From into cluster Into.
type Merge struct {
	Into int
	From int
}

// ApplyMerges moves the points of every From cluster into its Into cluster.
// The merged cluster's sub-clusters are the two original clusters: former
// Into points get aux label 0 and former From points aux label 1. The
// emptied From indices are not removed; callers follow up with
// RemoveClusters.
func (l *State) ApplyMerges(merges []Merge) error {
	if len(merges) == 0 {
		return nil
	}
	into := make(map[int]struct{}, len(merges))
	from := make(map[int]int, len(merges))
	for _, m := range merges {
		if m.Into == m.From {
			return fmt.Errorf("%w: cluster %d merged into itself", ErrLabelOutOfRange, m.Into)
		}
		into[m.Into] = struct{}{}
		from[m.From] = m.Into
	}
	for _, m := range merges {
		if _, ok := from[m.Into]; ok {
			return fmt.Errorf("%w: cluster %d is both merge source and target", ErrLabelOutOfRange, m.Into)
		}
	}

	for i, label := range l.labels {
		if target, ok := from[label]; ok {
			l.labels[i] = target
			l.labelsAux[i] = 1
		} else if _, ok := into[label]; ok {
			l.labelsAux[i] = 0
		}
	}
	return nil
}

func (l *State) checkLabels(nClusters int) error {
	for i, label := range l.labels {
		if label < 0 || label >= nClusters {
			return &LabelError{Point: i, Label: label, cause: ErrLabelOutOfRange}
		}
	}
	return nil
}

func clusterSet(idx []int) *roaring.Bitmap {
	bm := roaring.New()
	for _, k := range idx {
		if k >= 0 {
			bm.Add(uint32(k))
		}
	}
	return bm
}
