package local

import (
	"github.com/hupe1980/dpmm/stats"
)

// CollectStats summarizes the shard for every cluster index in
// [0, nClusters). It does not modify l.
func CollectStats[S stats.SuffStats[S]](l *State, fam stats.Family[S], nClusters int) (stats.LocalStats[S], error) {
	if err := l.checkLabels(nClusters); err != nil {
		return nil, err
	}

	groups := make([][2][]int, nClusters)
	for i, label := range l.labels {
		a := l.labelsAux[i]
		groups[label][a] = append(groups[label][a], i)
	}

	out := make(stats.LocalStats[S], nClusters)
	for k := range out {
		out[k] = clusterStats(l, fam, groups[k][0], groups[k][1])
	}
	return out, nil
}

// CollectClusterStats summarizes the points of a single cluster.
func CollectClusterStats[S stats.SuffStats[S]](l *State, fam stats.Family[S], cluster int) stats.ClusterStats[S] {
	var left, right []int
	for i, label := range l.labels {
		if label != cluster {
			continue
		}
		if l.labelsAux[i] == 0 {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return clusterStats(l, fam, left, right)
}

// clusterStats selects the left rows followed by the right rows and
// summarizes the whole selection, its left prefix and its right suffix.
func clusterStats[S stats.SuffStats[S]](l *State, fam stats.Family[S], left, right []int) stats.ClusterStats[S] {
	rows := make([][]float64, 0, len(left)+len(right))
	for _, i := range left {
		rows = append(rows, l.point(i))
	}
	for _, i := range right {
		rows = append(rows, l.point(i))
	}
	return stats.ClusterStats[S]{
		Prim: fam.FromData(rows),
		Aux: [2]S{
			fam.FromData(rows[:len(left)]),
			fam.FromData(rows[len(left):]),
		},
	}
}
