// Package ranker scores a user's candidate articles against their learned
// cluster centers, folding in a fixed fraction of random exploration so a
// user's feed doesn't collapse into an ever-narrowing filter bubble.
package ranker

import (
	"math"
	"math/rand"
	"sort"

	"feedproxy/internal/domain/entity"
)

const (
	// DefaultFilterRatio is the fraction of cluster-ranked articles kept.
	DefaultFilterRatio = 0.5
	// DefaultRandomRatio is the fraction of articles held out for random
	// exploration, bypassing the cluster-distance filter entirely.
	DefaultRandomRatio = 0.1
	// Seed fixes the shuffle so the same input produces the same ranking.
	Seed = 42
)

// Rank reorders articles by relevance to clusterCenters, returning at most
// len(articles) results. If no article in the input carries an embedding,
// or no cluster centers are available, articles is returned unchanged.
func Rank(articles []*entity.Article, clusterCenters [][]float32, filterRatio, randomRatio float64) []*entity.Article {
	if len(clusterCenters) == 0 || !anyEmbedded(articles) {
		return articles
	}

	shuffled := make([]*entity.Article, len(articles))
	copy(shuffled, articles)
	rng := rand.New(rand.NewSource(Seed))
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	nRandom := int(float64(len(shuffled)) * randomRatio)
	randomPick := shuffled[:nRandom]
	remaining := shuffled[nRandom:]

	scored := make([]scoredArticle, 0, len(remaining))
	for _, article := range remaining {
		scored = append(scored, scoredArticle{
			article:  article,
			distance: minCosineDistance(article.Embedding, clusterCenters),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].distance < scored[j].distance })

	numToKeep := int(float64(len(scored)) * filterRatio)
	if numToKeep > len(scored) {
		numToKeep = len(scored)
	}

	result := make([]*entity.Article, 0, numToKeep+len(randomPick))
	for _, s := range scored[:numToKeep] {
		result = append(result, s.article)
	}
	result = append(result, randomPick...)

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EffectiveDate().After(result[j].EffectiveDate())
	})
	return result
}

type scoredArticle struct {
	article  *entity.Article
	distance float64
}

func anyEmbedded(articles []*entity.Article) bool {
	for _, a := range articles {
		if a.HasEmbedding() {
			return true
		}
	}
	return false
}

// minCosineDistance returns the smallest cosine distance (1 - cosine
// similarity) between embedding and any of centers. An article with no
// embedding of its own is treated as maximally distant from everything, so
// it sorts to the bottom of the cluster-ranked portion rather than crashing
// on a length mismatch.
func minCosineDistance(embedding []float32, centers [][]float32) float64 {
	if len(embedding) == 0 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, center := range centers {
		d := cosineDistance(embedding, center)
		if d < best {
			best = d
		}
	}
	return best
}

// CosineDistance returns 1 minus the cosine similarity of a and b, so 0
// means identical direction and 2 means opposite. Exported so callers
// outside this package (the user-clusters endpoint) can assign an
// embedding to its nearest center the same way Rank does.
func CosineDistance(a, b []float32) float64 {
	return cosineDistance(a, b)
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}
