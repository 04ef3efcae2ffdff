package cluster

import (
	"context"

	"github.com/chanuka/mjadala/internal/embed"
)

// hierarchical builds groups bottom-up: every vector starts alone, and
// the two most similar groups merge under average linkage until k remain.
// No seed is involved; ties keep the lowest pair of indexes, so the
// result is deterministic by construction.
func hierarchical(ctx context.Context, vectors []embed.Vector, k int) ([]int, error) {
	n := len(vectors)
	if k > n {
		k = n
	}
	if k < 1 {
		k = 1
	}

	// Pairwise similarities, computed once up front
	sims := make([][]float64, n)
	for i := range sims {
		sims[i] = make([]float64, n)
		sims[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := embed.Similarity(vectors[i], vectors[j])
			sims[i][j] = sim
			sims[j][i] = sim
		}
	}

	// Active groups; merged-away slots become nil
	groups := make([][]int, n)
	for i := range groups {
		groups[i] = []int{i}
	}
	active := n

	for active > k {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bestA, bestB := -1, -1
		bestSim := -1.0
		for a := 0; a < n; a++ {
			if groups[a] == nil {
				continue
			}
			for b := a + 1; b < n; b++ {
				if groups[b] == nil {
					continue
				}
				if sim := linkage(sims, groups[a], groups[b]); sim > bestSim {
					bestSim = sim
					bestA, bestB = a, b
				}
			}
		}

		groups[bestA] = append(groups[bestA], groups[bestB]...)
		groups[bestB] = nil
		active--
	}

	assignment := make([]int, n)
	label := 0
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, idx := range g {
			assignment[idx] = label
		}
		label++
	}

	return assignment, nil
}

// linkage is the average pairwise similarity between two groups
func linkage(sims [][]float64, a, b []int) float64 {
	var total float64
	for _, i := range a {
		for _, j := range b {
			total += sims[i][j]
		}
	}
	return total / float64(len(a)*len(b))
}
