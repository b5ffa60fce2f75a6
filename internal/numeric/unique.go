package numeric

import (
	"cmp"
	"slices"
)

// UniqueWithIndices returns the distinct values of data in first-seen order
// (or ascending when sorted is set) together with, for every element of
// data, its position in the returned unique slice.
func UniqueWithIndices[T cmp.Ordered](data []T, sorted bool) ([]T, []int) {
	seen := make(map[T]int, len(data))
	unique := make([]T, 0)
	for _, v := range data {
		if _, ok := seen[v]; !ok {
			seen[v] = 0
			unique = append(unique, v)
		}
	}

	if sorted {
		slices.Sort(unique)
	}
	for i, v := range unique {
		seen[v] = i
	}

	indices := make([]int, len(data))
	for i, v := range data {
		indices[i] = seen[v]
	}
	return unique, indices
}

// Bincount counts the occurrences of every distinct value in data.
func Bincount[T comparable](data []T) map[T]int {
	counts := make(map[T]int)
	for _, v := range data {
		counts[v]++
	}
	return counts
}
