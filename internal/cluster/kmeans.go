package cluster

import (
	"context"
	"math/rand"

	"github.com/chanuka/mjadala/internal/embed"
)

// kmeans partitions vectors into at most k groups by cosine similarity.
// The rng drives the initial centroid choice, so a fixed seed reproduces
// the same partition for the same input. Cancellation is checked between
// iterations, never mid-assignment.
func kmeans(ctx context.Context, vectors []embed.Vector, k, maxIter int, rng *rand.Rand) ([]int, error) {
	n := len(vectors)
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	// 1. Farthest-first init: the seeded rng picks the first centroid,
	// every further one is the vector least similar to all centroids
	// chosen so far. A bare random draw can land two centroids inside
	// the same viewpoint and starve the others.
	centroids := initCentroids(vectors, k, rng)

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 2. Assign each vector to its most similar centroid. Strict >
		// keeps the lowest index on ties, keeping runs reproducible.
		changed := false
		for i, vec := range vectors {
			best := 0
			bestSim := embed.Similarity(vec, centroids[0])
			for c := 1; c < k; c++ {
				if sim := embed.Similarity(vec, centroids[c]); sim > bestSim {
					best = c
					bestSim = sim
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// 3. Recompute centroids as normalized member means. A centroid
		// that captured nothing keeps its previous value; if it stays
		// empty the caller drops the group.
		centroids = recomputeCentroids(vectors, assignment, centroids)
	}

	return assignment, nil
}

// initCentroids seeds k centroids spread across the vector space. After
// the rng picks the first, each next centroid is the unchosen vector
// whose best similarity to the existing centroids is lowest, ties going
// to the lowest index, so the choice stays reproducible.
func initCentroids(vectors []embed.Vector, k int, rng *rand.Rand) []embed.Vector {
	centroids := make([]embed.Vector, 0, k)
	chosen := make([]bool, len(vectors))

	first := rng.Intn(len(vectors))
	chosen[first] = true
	centroids = append(centroids, append(embed.Vector(nil), vectors[first]...))

	// nearest[i] is vector i's similarity to its closest centroid so far
	nearest := make([]float64, len(vectors))
	for i, vec := range vectors {
		nearest[i] = embed.Similarity(vec, centroids[0])
	}

	for len(centroids) < k {
		next := -1
		for i := range vectors {
			if chosen[i] {
				continue
			}
			if next == -1 || nearest[i] < nearest[next] {
				next = i
			}
		}

		chosen[next] = true
		c := append(embed.Vector(nil), vectors[next]...)
		centroids = append(centroids, c)

		for i, vec := range vectors {
			if sim := embed.Similarity(vec, c); sim > nearest[i] {
				nearest[i] = sim
			}
		}
	}

	return centroids
}

// recomputeCentroids rebuilds each centroid from its current members
func recomputeCentroids(vectors []embed.Vector, assignment []int, prev []embed.Vector) []embed.Vector {
	members := make([][]int, len(prev))
	for i, c := range assignment {
		members[c] = append(members[c], i)
	}

	next := make([]embed.Vector, len(prev))
	for c := range next {
		if len(members[c]) == 0 {
			next[c] = prev[c]
			continue
		}
		next[c] = centroidOf(vectors, members[c])
	}
	return next
}

// centroidOf is the normalized mean of the member vectors
func centroidOf(vectors []embed.Vector, members []int) embed.Vector {
	if len(members) == 0 {
		return nil
	}

	dims := len(vectors[members[0]])
	sum := make([]float64, dims)
	for _, m := range members {
		for d, v := range vectors[m] {
			sum[d] += float64(v)
		}
	}

	centroid := make(embed.Vector, dims)
	inv := 1 / float64(len(members))
	for d := range sum {
		centroid[d] = float32(sum[d] * inv)
	}
	embed.Normalize(centroid)

	return centroid
}
