package model

import "time"

// Cluster represents a set of Arguments sharing a semantic viewpoint on one bill.
// Clusters are recomputed wholesale per run: a new run produces a new generation,
// superseding but never deleting the prior one.
type Cluster struct {
	ID                   string    `json:"id"`
	BillID               string    `json:"bill_id"`
	Generation           int64     `json:"generation"`            // Clustering run this cluster belongs to
	MemberArgumentIDs    []string  `json:"member_argument_ids"`   // Non-empty; hard assignment, one cluster per argument
	CentroidVector       []float32 `json:"centroid_vector"`       // Mean of member embeddings
	RepresentativeClaims []string  `json:"representative_claims"` // Top-N claims by proximity to centroid
	Position             Position  `json:"position"`              // Majority vote among members, mixed if < 60%
	Cohesion             float64   `json:"cohesion"`              // Average intra-cluster similarity in [0,1]
	Size                 int       `json:"size"`                  // Count of members
	CreatedAt            time.Time `json:"created_at"`
}

// Coalition represents a discovered relationship between two or more Clusters
// indicating complementary, not necessarily identical, concerns.
type Coalition struct {
	ClusterIDs       []string     `json:"cluster_ids"` // At least 2
	RelationshipType RelationType `json:"relationship_type"`
	Strength         float64      `json:"strength"` // Combined lexical + semantic similarity in [0,1]
}

// RelationType classifies how two clusters relate
type RelationType string

const (
	RelationComplementaryConcern  RelationType = "complementary_concern"    // High similarity, differing positions
	RelationSharedEvidence        RelationType = "shared_evidence"          // Same position, moderate similarity
	RelationOpposingButOverlapped RelationType = "opposing_but_overlapping" // Opposed positions citing the same ground
)
