package risk

import (
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// kmeansResult is the outcome of a single clustering run.
type kmeansResult struct {
	labels     []int
	centroids  [][]float64
	inertia    float64 // total within-cluster sum of squared distances
	converged  bool
	iterations int
}

// runKMeans partitions points into k clusters by iterative centroid
// relocation. Seeding is k-means++ style weighted sampling so initial
// centroids spread across the data. The loop stops when membership stops
// changing or maxIter is hit; hitting the cap yields a best-effort result
// with converged=false, never an error.
func runKMeans(points [][]float64, k, maxIter int, rng *rand.Rand) kmeansResult {
	n := len(points)
	if k > n {
		k = n
	}

	centroids := seedCentroids(points, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	res := kmeansResult{labels: labels, centroids: centroids}
	for iter := 0; iter < maxIter; iter++ {
		res.iterations = iter + 1

		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}

		if !changed {
			res.converged = true
			break
		}

		recomputeCentroids(points, labels, centroids)
		repairEmptyClusters(points, labels, centroids)
	}

	res.inertia = totalInertia(points, labels, centroids)
	return res
}

// seedCentroids implements k-means++ weighted sampling: the first centroid
// is uniform, each further one is drawn with probability proportional to the
// squared distance from the nearest already-chosen centroid.
func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clonePoint(points[rng.Intn(len(points))]))

	dists := make([]float64, len(points))
	for len(centroids) < k {
		var sum float64
		for i, p := range points {
			d := sqDist(p, centroids[len(centroids)-1])
			if len(centroids) == 1 || d < dists[i] {
				dists[i] = d
			}
			sum += dists[i]
		}

		if sum == 0 {
			// All remaining points coincide with a centroid; any pick works.
			centroids = append(centroids, clonePoint(points[rng.Intn(len(points))]))
			continue
		}

		target := rng.Float64() * sum
		var acc float64
		picked := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				picked = i
				break
			}
		}
		centroids = append(centroids, clonePoint(points[picked]))
	}
	return centroids
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for c, centroid := range centroids {
		if d := sqDist(p, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func recomputeCentroids(points [][]float64, labels []int, centroids [][]float64) {
	dim := len(centroids[0])
	counts := make([]int, len(centroids))
	for c := range centroids {
		for j := 0; j < dim; j++ {
			centroids[c][j] = 0
		}
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for j, v := range p {
			centroids[c][j] += v
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue // handled by repairEmptyClusters
		}
		for j := range centroids[c] {
			centroids[c][j] /= float64(counts[c])
		}
	}
}

// repairEmptyClusters reseats each empty cluster on the point currently
// farthest from its assigned centroid, keeping k clusters alive.
func repairEmptyClusters(points [][]float64, labels []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	for _, c := range labels {
		counts[c]++
	}
	for c := range centroids {
		if counts[c] > 0 {
			continue
		}
		farthest, maxDist := 0, -1.0
		for i, p := range points {
			if counts[labels[i]] <= 1 {
				continue
			}
			if d := sqDist(p, centroids[labels[i]]); d > maxDist {
				farthest, maxDist = i, d
			}
		}
		counts[labels[farthest]]--
		labels[farthest] = c
		counts[c] = 1
		copy(centroids[c], points[farthest])
	}
}

func totalInertia(points [][]float64, labels []int, centroids [][]float64) float64 {
	var sum float64
	for i, p := range points {
		sum += sqDist(p, centroids[labels[i]])
	}
	return sum
}

// bestOfTrials races `trials` independently seeded runs and keeps the one
// with the lowest inertia. Trial i uses seed+i, and ties resolve to the
// lowest trial index, so the outcome is deterministic for a fixed seed.
// Trials are independent, so they run in parallel and reduce afterwards.
func bestOfTrials(points [][]float64, k, trials, maxIter int, seed int64) kmeansResult {
	results := make([]kmeansResult, trials)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := 0; t < trials; t++ {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(t)))
			results[t] = runKMeans(points, k, maxIter, rng)
			return nil
		})
	}
	_ = g.Wait() // trials never return errors

	best := results[0]
	for _, r := range results[1:] {
		if r.inertia < best.inertia {
			best = r
		}
	}
	return best
}

// chooseK picks a cluster count by the variance-ratio criterion over
// k in [2, min(MaxAutoK, n-1)], reusing the same trial seeds for each
// candidate so the choice is deterministic given identical input.
func chooseK(points [][]float64, trials, maxIter int, seed int64) int {
	n := len(points)
	kMax := MaxAutoK
	if n-1 < kMax {
		kMax = n - 1
	}
	if kMax < 2 {
		return minInt(2, n)
	}

	totalSS := totalScatter(points)
	bestK, bestScore := 2, math.Inf(-1)
	for k := 2; k <= kMax; k++ {
		res := bestOfTrials(points, k, trials, maxIter, seed)
		score := varianceRatio(totalSS, res.inertia, n, k)
		if score > bestScore {
			bestK, bestScore = k, score
		}
	}
	return bestK
}

// varianceRatio is the Calinski-Harabasz statistic: between-cluster scatter
// over within-cluster scatter, each per degree of freedom. Zero inertia
// (perfect separation) maps to +Inf, which the caller's strict greater-than
// comparison resolves to the smallest such k.
func varianceRatio(totalSS, inertia float64, n, k int) float64 {
	between := totalSS - inertia
	if inertia == 0 {
		return math.Inf(1)
	}
	return (between / float64(k-1)) / (inertia / float64(n-k))
}

func totalScatter(points [][]float64) float64 {
	dim := len(points[0])
	mean := make([]float64, dim)
	for _, p := range points {
		for j, v := range p {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(points))
	}
	var sum float64
	for _, p := range points {
		sum += sqDist(p, mean)
	}
	return sum
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clonePoint(p []float64) []float64 {
	return append([]float64(nil), p...)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
