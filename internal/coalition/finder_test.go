package coalition

import (
	"reflect"
	"testing"

	"github.com/chanuka/mjadala/internal/model"
)

func mkCluster(id string, pos model.Position, centroid []float32, claims ...string) *model.Cluster {
	return &model.Cluster{
		ID:                   id,
		BillID:               "bill-1",
		MemberArgumentIDs:    []string{id + "-m"},
		CentroidVector:       centroid,
		RepresentativeClaims: claims,
		Position:             pos,
		Size:                 1,
	}
}

func TestNewFinder_Defaults(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	if f.cfg.MinStrength != 0.55 {
		t.Errorf("Expected default min strength 0.55, got %v", f.cfg.MinStrength)
	}
	if f.cfg.SharedEvidence != 0.45 {
		t.Errorf("Expected default shared-evidence floor 0.45, got %v", f.cfg.SharedEvidence)
	}
	if f.cfg.LexicalWeight != 0.4 || f.cfg.SemanticWeight != 0.6 {
		t.Errorf("Expected default weights 0.4/0.6, got %v/%v",
			f.cfg.LexicalWeight, f.cfg.SemanticWeight)
	}
}

func TestFinder_ComplementaryConcern(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	clusters := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0},
			"boda boda levy hurts riders"),
		mkCluster("c2", model.PositionOppose, []float32{0.9, 0.3, 0},
			"levy hurts boda boda operators"),
	}

	coalitions := f.Find(clusters)
	if len(coalitions) != 1 {
		t.Fatalf("Expected 1 coalition, got %d", len(coalitions))
	}

	co := coalitions[0]
	if co.RelationshipType != model.RelationComplementaryConcern {
		t.Errorf("Expected complementary_concern, got %s", co.RelationshipType)
	}
	if co.Strength < f.cfg.MinStrength {
		t.Errorf("Expected strength above %v, got %v", f.cfg.MinStrength, co.Strength)
	}
	if !reflect.DeepEqual(co.ClusterIDs, []string{"c1", "c2"}) {
		t.Errorf("Expected cluster IDs [c1 c2], got %v", co.ClusterIDs)
	}
}

func TestFinder_SharedEvidence(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	// Same position, moderate centroid similarity, no claim overlap
	clusters := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0},
			"matatu fares will rise"),
		mkCluster("c2", model.PositionSupport, []float32{0.6, 0.8, 0},
			"county roads need repair"),
	}

	coalitions := f.Find(clusters)
	if len(coalitions) != 1 {
		t.Fatalf("Expected 1 coalition, got %d", len(coalitions))
	}

	co := coalitions[0]
	if co.RelationshipType != model.RelationSharedEvidence {
		t.Errorf("Expected shared_evidence, got %s", co.RelationshipType)
	}
	if co.Strength < f.cfg.SharedEvidence || co.Strength >= f.cfg.MinStrength {
		t.Errorf("Expected strength in the shared-evidence band, got %v", co.Strength)
	}
}

func TestFinder_BelowThresholdIgnored(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	differing := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0}, "water levy"),
		mkCluster("c2", model.PositionOppose, []float32{0, 1, 0}, "land rates"),
	}
	if got := f.Find(differing); len(got) != 0 {
		t.Errorf("Expected no coalition for weak differing pair, got %d", len(got))
	}

	samePosition := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0}, "water levy"),
		mkCluster("c2", model.PositionSupport, []float32{0, 0, 1}, "land rates"),
	}
	if got := f.Find(samePosition); len(got) != 0 {
		t.Errorf("Expected no coalition for weak same-position pair, got %d", len(got))
	}
}

func TestFinder_OpposingButOverlapping(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	// Opposed camps fighting over the same article, otherwise dissimilar
	clusters := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0},
			"article 28 taxes small traders unfairly"),
		mkCluster("c2", model.PositionOppose, []float32{0, 1, 0},
			"article 28 protects revenue collection"),
	}

	coalitions := f.Find(clusters)
	if len(coalitions) != 1 {
		t.Fatalf("Expected 1 coalition, got %d", len(coalitions))
	}

	co := coalitions[0]
	if co.RelationshipType != model.RelationOpposingButOverlapped {
		t.Errorf("Expected opposing_but_overlapping, got %s", co.RelationshipType)
	}
	if co.Strength >= f.cfg.MinStrength {
		t.Errorf("Expected the shared citation to carry a weak pair, got strength %v", co.Strength)
	}
}

func TestFinder_StrongestFirst(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	clusters := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0},
			"boda levy hurts riders"),
		mkCluster("c2", model.PositionOppose, []float32{0.9, 0.3, 0},
			"levy hurts boda operators"),
		mkCluster("c3", model.PositionOppose, []float32{0.95, 0.2, 0},
			"boda levy burdens youth riders"),
	}

	coalitions := f.Find(clusters)
	if len(coalitions) != 3 {
		t.Fatalf("Expected 3 coalitions, got %d", len(coalitions))
	}

	for i := 1; i < len(coalitions); i++ {
		if coalitions[i].Strength > coalitions[i-1].Strength {
			t.Errorf("Expected non-increasing strength, got %v after %v",
				coalitions[i].Strength, coalitions[i-1].Strength)
		}
	}
	if !reflect.DeepEqual(coalitions[0].ClusterIDs, []string{"c1", "c2"}) {
		t.Errorf("Expected strongest pair [c1 c2], got %v", coalitions[0].ClusterIDs)
	}

	// Identical input produces identical output
	again := f.Find(clusters)
	if !reflect.DeepEqual(coalitions, again) {
		t.Error("Expected repeated scans to agree")
	}
}

func TestFinder_FewerThanTwoClusters(t *testing.T) {
	f := NewFinder(model.CoalitionConfig{})

	if got := f.Find(nil); len(got) != 0 {
		t.Errorf("Expected no coalitions for nil input, got %d", len(got))
	}

	one := []*model.Cluster{
		mkCluster("c1", model.PositionSupport, []float32{1, 0, 0}, "water levy"),
	}
	if got := f.Find(one); len(got) != 0 {
		t.Errorf("Expected no coalitions for a single cluster, got %d", len(got))
	}
}

func TestLegalRefs(t *testing.T) {
	tests := []struct {
		claim    string
		expected []string
		desc     string
	}{
		{
			claim:    "section 12 applies to street vendors",
			expected: []string{"section 12"},
			desc:     "Single section reference",
		},
		{
			claim:    "Article 28 conflicts with Clause 5b",
			expected: []string{"article 28", "clause 5b"},
			desc:     "Multiple references with letter suffix",
		},
		{
			claim:    "the cap 472 schedule",
			expected: []string{"cap 472"},
			desc:     "Chapter citation, trailing keyword ignored",
		},
		{
			claim:    "no references in this claim",
			expected: nil,
			desc:     "No references",
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			refs := legalRefs([]string{tt.claim})
			if len(refs) != len(tt.expected) {
				t.Fatalf("Expected %d refs, got %v", len(tt.expected), refs)
			}
			for _, want := range tt.expected {
				if !refs[want] {
					t.Errorf("Expected ref %q, got %v", want, refs)
				}
			}
		})
	}
}
