package clustering

import (
	"fmt"
	"math"
	"sort"

	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

// Noise is the label DBSCAN assigns to points that belong to no cluster.
// Callers rewrite it to fresh singleton ids before labels leave this
// package.
const Noise = -1

// cosineDistanceMatrix computes the full pairwise cosine distance matrix.
func cosineDistanceMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := vecmath.CosineDistance(vectors[i], vectors[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// dbscan clusters points over a precomputed distance matrix. Points whose
// eps-neighborhood holds fewer than minSamples members (the point itself
// included) are labeled Noise.
func dbscan(dist [][]float64, eps float64, minSamples int) []int {
	n := len(dist)
	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	regionQuery := func(p int) []int {
		var neighbors []int
		for q := 0; q < n; q++ {
			if dist[p][q] <= eps {
				neighbors = append(neighbors, q)
			}
		}
		return neighbors
	}

	cluster := 0
	for p := 0; p < n; p++ {
		if labels[p] != unvisited {
			continue
		}
		neighbors := regionQuery(p)
		if len(neighbors) < minSamples {
			labels[p] = Noise
			continue
		}

		labels[p] = cluster
		queue := append([]int(nil), neighbors...)
		for i := 0; i < len(queue); i++ {
			q := queue[i]
			if labels[q] == Noise {
				labels[q] = cluster
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = cluster
			qNeighbors := regionQuery(q)
			if len(qNeighbors) >= minSamples {
				queue = append(queue, qNeighbors...)
			}
		}
		cluster++
	}
	return labels
}

func euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// estimateBandwidth picks a mean-shift bandwidth as the mean k-th
// nearest-neighbor distance with k at the 0.3 quantile of the point
// count. Zero means every point is identical.
func estimateBandwidth(vectors [][]float32) float64 {
	n := len(vectors)
	k := int(float64(n) * 0.3)
	if k < 1 {
		k = 1
	}

	var total float64
	for i := range vectors {
		dists := make([]float64, 0, n-1)
		for j := range vectors {
			if i == j {
				continue
			}
			dists = append(dists, euclidean(vectors[i], vectors[j]))
		}
		sort.Float64s(dists)
		total += dists[k-1]
	}
	return total / float64(n)
}

// meanShift clusters points with a flat kernel and auto-estimated
// bandwidth. Every point converges to a mode; modes closer than the
// bandwidth collapse into one cluster, so there is no noise label.
func meanShift(vectors [][]float32) []int {
	n := len(vectors)
	if n == 1 {
		return []int{0}
	}

	bandwidth := estimateBandwidth(vectors)
	if bandwidth == 0 {
		return make([]int, n)
	}

	const maxIter = 300
	stopThreshold := 1e-3 * bandwidth

	modes := make([][]float32, n)
	for i, start := range vectors {
		mean := append([]float32(nil), start...)
		for iter := 0; iter < maxIter; iter++ {
			var within [][]float32
			for _, v := range vectors {
				if euclidean(mean, v) <= bandwidth {
					within = append(within, v)
				}
			}
			next := vecmath.Mean(within)
			if euclidean(mean, next) < stopThreshold {
				mean = next
				break
			}
			mean = next
		}
		modes[i] = mean
	}

	// Collapse modes within one bandwidth of each other.
	labels := make([]int, n)
	var centers [][]float32
	for i, mode := range modes {
		assigned := -1
		for c, center := range centers {
			if euclidean(mode, center) <= bandwidth {
				assigned = c
				break
			}
		}
		if assigned == -1 {
			centers = append(centers, mode)
			assigned = len(centers) - 1
		}
		labels[i] = assigned
	}
	return labels
}

// agglomerative performs average-linkage hierarchical clustering over
// cosine distances, merging until no cluster pair sits closer than the
// distance threshold.
func agglomerative(vectors [][]float32, threshold float64) []int {
	n := len(vectors)
	dist := cosineDistanceMatrix(vectors)

	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}

	avgLinkage := func(a, b []int) float64 {
		var sum float64
		for _, i := range a {
			for _, j := range b {
				sum += dist[i][j]
			}
		}
		return sum / float64(len(a)*len(b))
	}

	for len(clusters) > 1 {
		bestI, bestJ := -1, -1
		best := math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if d := avgLinkage(clusters[i], clusters[j]); d < best {
					best = d
					bestI, bestJ = i, j
				}
			}
		}
		if best >= threshold {
			break
		}
		clusters[bestI] = append(clusters[bestI], clusters[bestJ]...)
		clusters = append(clusters[:bestJ], clusters[bestJ+1:]...)
	}

	labels := make([]int, n)
	for c, members := range clusters {
		for _, i := range members {
			labels[i] = c
		}
	}
	return labels
}

// runAlgorithm dispatches to the configured clustering algorithm. An
// unknown name is a configuration error, never silently defaulted.
func runAlgorithm(algorithm string, vectors [][]float32, cfg Config) ([]int, error) {
	switch algorithm {
	case "dbscan":
		return dbscan(cosineDistanceMatrix(vectors), cfg.EpsilonDBSCAN, cfg.MinSamplesDBSCAN), nil
	case "meanshift":
		return meanShift(vectors), nil
	case "agglomerative":
		return agglomerative(vectors, cfg.DistanceThresholdAgg), nil
	default:
		return nil, fmt.Errorf("unsupported clustering algorithm %q: choose dbscan, meanshift or agglomerative", algorithm)
	}
}
