package dpmm

import "github.com/hupe1980/dpmm/global"

// Result is the state of the chain after the last sweep.
type Result struct {
	// Labels holds the cluster of every data row.
	Labels []int `json:"labels"`
	// LabelsAux holds the sub-cluster (0 or 1) of every data row.
	LabelsAux []int `json:"labels_aux"`
	// NClusters is the number of clusters, including the outlier component.
	NClusters int `json:"n_clusters"`
	// Counts is the number of rows per cluster.
	Counts []int `json:"counts"`
	// Weights are the mixture weights of the last global state.
	Weights []float64 `json:"weights"`
	// Iterations is the number of completed sweeps.
	Iterations int `json:"iterations"`
	// Outlier reports whether cluster 0 is the outlier component.
	Outlier bool `json:"outlier"`
	// Global is the last global state.
	Global *global.State `json:"-"`
}

// DataClusters returns the number of clusters excluding the outlier
// component.
func (r *Result) DataClusters() int {
	if r.Outlier {
		return r.NClusters - 1
	}
	return r.NClusters
}
