package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/chanuka/mjadala/internal/embed"
	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// Service groups arguments into viewpoint clusters. Assignment is hard:
// every argument lands in exactly one cluster per run, and clusters below
// the minimum size merge into their nearest neighbor instead of being
// dropped, so minority viewpoints survive into the brief.
type Service struct {
	cfg model.ClusteringConfig
}

// NewService creates a clustering service
func NewService(cfg model.ClusteringConfig) *Service {
	if cfg.Method == "" {
		cfg.Method = "kmeans"
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = 2
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 50
	}
	if cfg.RepresentativeClaims <= 0 {
		cfg.RepresentativeClaims = 3
	}
	return &Service{cfg: cfg}
}

// Cluster partitions arguments into viewpoint clusters using their
// embedding vectors. Vectors run parallel to args: vectors[i] embeds
// args[i]. Given identical inputs and a fixed seed the output is
// identical across runs.
func (s *Service) Cluster(ctx context.Context, billID string, generation int64, args []*model.Argument, vectors []embed.Vector) ([]*model.Cluster, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("cluster: no arguments: %w", model.ErrInsufficientData)
	}
	if len(vectors) != len(args) {
		return nil, fmt.Errorf("cluster: %d vectors for %d arguments: %w",
			len(vectors), len(args), model.ErrInvalidInput)
	}

	n := len(args)

	// 1. Trivial case: fewer than two arguments form one perfect cluster
	if n < 2 {
		return []*model.Cluster{s.buildCluster(billID, generation, 0, []int{0}, args, vectors)}, nil
	}

	// 2. Choose k: caller cap or the sqrt heuristic
	k := s.chooseK(n)

	// 3. Partition
	assignment, err := s.partition(ctx, vectors, k)
	if err != nil {
		return nil, err
	}

	// 4. Collect non-empty groups in first-member order
	groups := collectGroups(assignment)

	// 5. Fold sub-minimum groups into their nearest neighbor by
	// centroid similarity
	groups = s.mergeSmall(groups, vectors)

	// 6. Materialize clusters
	clusters := make([]*model.Cluster, 0, len(groups))
	for idx, members := range groups {
		clusters = append(clusters, s.buildCluster(billID, generation, idx, members, args, vectors))
	}

	logging.Debug("Clustering complete",
		"bill", billID,
		"arguments", n,
		"clusters", len(clusters),
		"method", s.cfg.Method)

	return clusters, nil
}

// chooseK picks the cluster count: ceil(sqrt(n/2)), capped by the
// configured maximum and by n
func (s *Service) chooseK(n int) int {
	k := int(math.Ceil(math.Sqrt(float64(n) / 2)))
	if k < 1 {
		k = 1
	}
	if s.cfg.MaxClusters > 0 && k > s.cfg.MaxClusters {
		k = s.cfg.MaxClusters
	}
	if k > n {
		k = n
	}
	return k
}

func (s *Service) partition(ctx context.Context, vectors []embed.Vector, k int) ([]int, error) {
	switch s.cfg.Method {
	case "hierarchical":
		return hierarchical(ctx, vectors, k)
	default:
		rng := rand.New(rand.NewSource(s.cfg.Seed))
		return kmeans(ctx, vectors, k, s.cfg.MaxIterations, rng)
	}
}

// collectGroups turns an assignment into member-index groups, ordered by
// each group's first member
func collectGroups(assignment []int) [][]int {
	var order []int
	byLabel := make(map[int][]int)
	for i, label := range assignment {
		if _, seen := byLabel[label]; !seen {
			order = append(order, label)
		}
		byLabel[label] = append(byLabel[label], i)
	}

	groups := make([][]int, 0, len(order))
	for _, label := range order {
		groups = append(groups, byLabel[label])
	}
	return groups
}

// mergeSmall folds groups below the minimum size into their nearest
// neighbor by centroid similarity, smallest first. A lone group is left
// as is: merging requires somewhere to go.
func (s *Service) mergeSmall(groups [][]int, vectors []embed.Vector) [][]int {
	for len(groups) > 1 {
		smallest := -1
		for i, g := range groups {
			if len(g) >= s.cfg.MinClusterSize {
				continue
			}
			if smallest == -1 || len(g) < len(groups[smallest]) {
				smallest = i
			}
		}
		if smallest == -1 {
			break
		}

		src := centroidOf(vectors, groups[smallest])
		best := -1
		bestSim := -1.0
		for i, g := range groups {
			if i == smallest {
				continue
			}
			if sim := embed.Similarity(src, centroidOf(vectors, g)); sim > bestSim {
				bestSim = sim
				best = i
			}
		}

		groups[best] = append(groups[best], groups[smallest]...)
		groups = append(groups[:smallest], groups[smallest+1:]...)
	}
	return groups
}

// buildCluster materializes one cluster from member indexes
func (s *Service) buildCluster(billID string, generation int64, idx int, members []int, args []*model.Argument, vectors []embed.Vector) *model.Cluster {
	sort.Ints(members)

	centroid := centroidOf(vectors, members)

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = args[m].ID
	}

	return &model.Cluster{
		ID:                   fmt.Sprintf("%s:%d:%d", billID, generation, idx),
		BillID:               billID,
		Generation:           generation,
		MemberArgumentIDs:    ids,
		CentroidVector:       centroid,
		RepresentativeClaims: s.representativeClaims(members, args, vectors, centroid),
		Position:             majorityPosition(members, args),
		Cohesion:             cohesionOf(vectors, members),
		Size:                 len(members),
		CreatedAt:            time.Now().UTC(),
	}
}

// representativeClaims collects claims from the members closest to the
// centroid, deduplicated, up to the configured limit
func (s *Service) representativeClaims(members []int, args []*model.Argument, vectors []embed.Vector, centroid embed.Vector) []string {
	ranked := append([]int(nil), members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return embed.Similarity(vectors[ranked[i]], centroid) > embed.Similarity(vectors[ranked[j]], centroid)
	})

	seen := make(map[string]bool)
	var claims []string
	for _, m := range ranked {
		for _, claim := range args[m].Claims {
			key := strings.ToLower(strings.TrimSpace(claim.Text))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			claims = append(claims, claim.Text)
			if len(claims) >= s.cfg.RepresentativeClaims {
				return claims
			}
		}
	}
	return claims
}

// majorityPosition is the members' majority stance; below 60% agreement
// the cluster reads mixed
func majorityPosition(members []int, args []*model.Argument) model.Position {
	counts := make(map[model.Position]int)
	for _, m := range members {
		counts[args[m].Position]++
	}

	ordered := []model.Position{model.PositionSupport, model.PositionOppose, model.PositionNeutral, model.PositionMixed}
	best := model.PositionNeutral
	bestCount := 0
	for _, p := range ordered {
		if counts[p] > bestCount {
			best = p
			bestCount = counts[p]
		}
	}

	if float64(bestCount)/float64(len(members)) >= 0.6 {
		return best
	}
	return model.PositionMixed
}

// cohesionOf is the average pairwise similarity among members; a single
// member is perfectly cohesive
func cohesionOf(vectors []embed.Vector, members []int) float64 {
	if len(members) < 2 {
		return 1.0
	}

	var total float64
	pairs := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			total += embed.Similarity(vectors[members[i]], vectors[members[j]])
			pairs++
		}
	}
	return total / float64(pairs)
}
