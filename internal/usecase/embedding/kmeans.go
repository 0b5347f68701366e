package embedding

import (
	"errors"
	"math"
	"math/rand"

	"feedproxy/internal/domain/entity"
)

// ClusterCount is the fixed k for per-user K-means clustering.
const ClusterCount = 10

// ClusterSeed fixes the random source so a recompute over the same read
// history is reproducible run to run.
const ClusterSeed = 42

// maxIterations bounds Lloyd's algorithm; centers typically stop moving
// well before this on article-sized batches.
const maxIterations = 100

// ErrNotEnoughArticles is returned by Cluster when fewer than ClusterCount
// articles are supplied.
var ErrNotEnoughArticles = errors.New("embedding: fewer than k articles to cluster")

// Cluster runs K-means (Lloyd's algorithm) over the embeddings of articles,
// returning k cluster centers. It refuses to run below k input articles,
// since k empty clusters would otherwise need to be seeded from nothing.
func Cluster(articles []*entity.Article, k, seed int) ([][]float32, error) {
	if len(articles) < k {
		return nil, ErrNotEnoughArticles
	}

	points := make([][]float64, len(articles))
	for i, article := range articles {
		points[i] = toFloat64(article.Embedding)
	}
	dim := len(points[0])

	rng := rand.New(rand.NewSource(int64(seed)))
	centers := initCenters(points, k, rng)

	assignments := make([]int, len(points))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCenter(p, centers)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assignments[i]
			counts[c]++
			for d, v := range p {
				sums[c][d] += v
			}
		}
		for c := range centers {
			if counts[c] == 0 {
				continue
			}
			for d := range centers[c] {
				centers[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	out := make([][]float32, k)
	for c, center := range centers {
		out[c] = toFloat32(center)
	}
	return out, nil
}

// initCenters seeds centers by drawing k distinct points from the input,
// in a deterministic order controlled by rng.
func initCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	perm := rng.Perm(len(points))
	centers := make([][]float64, k)
	for c := 0; c < k; c++ {
		src := points[perm[c]]
		center := make([]float64, len(src))
		copy(center, src)
		centers[c] = center
	}
	return centers
}

func nearestCenter(p []float64, centers [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, center := range centers {
		d := squaredDistance(p, center)
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
