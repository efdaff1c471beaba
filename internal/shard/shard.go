// Package shard partitions pending work across workers.
package shard

// Split distributes items round-robin over n shards: items[i] lands in
// shard i mod n. The shards partition the input exactly and their sizes
// differ by at most one, so each worker's slice spans the whole identifier
// range instead of a contiguous block. n is clamped to at least 1; shards
// may be empty when there are fewer items than workers.
func Split[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	shards := make([][]T, n)
	for i, item := range items {
		shards[i%n] = append(shards[i%n], item)
	}
	return shards
}
