package embed

import (
	"math/rand"
	"sync"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/coder/hnsw"
)

// DedupIndex groups near-identical vectors using an HNSW graph. The first
// member added to a group is its primary; later members are duplicates.
// Callers supply the vectors, so the index behaves the same whichever
// embedder produced them.
type DedupIndex struct {
	mu        sync.RWMutex
	graph     *hnsw.Graph[string] // id -> vector
	groups    map[string][]string // primary id -> member ids
	itemGroup map[string]string   // id -> primary id
	threshold float32
}

// NewDedupIndex creates an index that treats vectors with similarity at or
// above threshold as duplicates. The seed fixes HNSW level generation so
// identical insert sequences build identical graphs.
func NewDedupIndex(threshold float64, seed int64) *DedupIndex {
	if threshold <= 0 {
		threshold = 0.9
	}

	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = 16        // Max neighbors per node
	g.EfSearch = 32 // Search quality parameter
	g.Rng = rand.New(rand.NewSource(seed))

	return &DedupIndex{
		graph:     g,
		groups:    make(map[string][]string),
		itemGroup: make(map[string]string),
		threshold: float32(threshold),
	}
}

// Add indexes one vector and reports whether it duplicates an earlier one.
// For duplicates the returned primary is the first id of the matched group.
func (d *DedupIndex) Add(id string, vec Vector) (isDup bool, primary string) {
	if len(vec) == 0 {
		return false, ""
	}

	// Recover from any HNSW panics
	defer func() {
		if r := recover(); r != nil {
			logging.Error("HNSW panic recovered in Add", "error", r, "id", id)
			isDup, primary = false, ""
		}
	}()

	d.mu.Lock()
	defer d.mu.Unlock()

	// Already indexed: report its existing group membership
	if _, exists := d.graph.Lookup(id); exists {
		if groupID := d.itemGroup[id]; groupID != "" && groupID != id {
			return true, groupID
		}
		return false, ""
	}

	// CosineDistance returns distance (0 = identical, 2 = opposite).
	// Convert to similarity: sim = 1 - (distance / 2)
	var bestMatch string
	var bestSim float32

	if d.graph.Len() > 0 {
		neighbors := d.graph.Search(vec, 5)
		for _, n := range neighbors {
			if len(n.Value) != len(vec) {
				continue
			}
			distance := hnsw.CosineDistance(vec, n.Value)
			sim := 1.0 - (distance / 2.0)
			if sim >= d.threshold && sim > bestSim {
				bestSim = sim
				bestMatch = n.Key
			}
		}
	}

	d.graph.Add(hnsw.MakeNode(id, vec))

	if bestMatch == "" {
		return false, ""
	}

	groupID := d.itemGroup[bestMatch]
	if groupID == "" {
		// First duplicate for bestMatch: it becomes the group primary
		groupID = bestMatch
		d.groups[groupID] = []string{bestMatch}
		d.itemGroup[bestMatch] = groupID
	}
	d.groups[groupID] = append(d.groups[groupID], id)
	d.itemGroup[id] = groupID

	return true, groupID
}

// IsPrimary returns true if id is the first member of its group, or belongs
// to no group at all
func (d *DedupIndex) IsPrimary(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groupID := d.itemGroup[id]
	if groupID == "" {
		return true
	}

	members := d.groups[groupID]
	return len(members) > 0 && members[0] == id
}

// GroupSize returns the number of members in id's duplicate group, counting
// id itself
func (d *DedupIndex) GroupSize(id string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groupID := d.itemGroup[id]
	if groupID == "" {
		return 1
	}
	return len(d.groups[groupID])
}

// Duplicates returns the other member ids of id's group
func (d *DedupIndex) Duplicates(id string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groupID := d.itemGroup[id]
	if groupID == "" {
		return nil
	}

	var result []string
	for _, member := range d.groups[groupID] {
		if member != id {
			result = append(result, member)
		}
	}
	return result
}

// Stats returns index statistics
func (d *DedupIndex) Stats() (indexed, groups, duplicates int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexed = d.graph.Len()
	groups = len(d.groups)
	for _, members := range d.groups {
		duplicates += len(members) - 1
	}
	return
}
