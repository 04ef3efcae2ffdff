package brief

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chanuka/mjadala/internal/embed"
	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// Generator assembles the legislative brief from the pipeline's outputs.
// Everything in the brief is computed, ordered and explainable; the only
// randomness is the clustering seed recorded in RunMeta.
type Generator struct {
	cfg      model.BriefConfig
	embedder embed.Embedder
}

// NewGenerator creates a generator. The embedder is used to deduplicate
// near-identical evidence text; nil falls back to the hashing embedder.
func NewGenerator(cfg model.BriefConfig, embedder embed.Embedder) *Generator {
	if cfg.MinorityCohesion <= 0 {
		cfg.MinorityCohesion = 0.6
	}
	if cfg.MajorityShare <= 0 {
		cfg.MajorityShare = 0.15
	}
	if cfg.EvidenceDedup <= 0 {
		cfg.EvidenceDedup = 0.9
	}
	if cfg.TopEvidenceLimit <= 0 {
		cfg.TopEvidenceLimit = 10
	}
	if embedder == nil {
		embedder = embed.NewHashingEmbedder(0)
	}
	return &Generator{cfg: cfg, embedder: embedder}
}

// Generate builds the brief for one bill
func (g *Generator) Generate(ctx context.Context, billID string, clusters []*model.Cluster, coalitions []model.Coalition, arguments []*model.Argument, evidence []model.Evidence, meta model.RunMeta) (*model.LegislativeBrief, error) {
	if len(clusters) == 0 {
		return nil, fmt.Errorf("brief: no clusters to summarize: %w", model.ErrInvalidInput)
	}

	// 1. Rank viewpoints by weight
	summaries := g.summarize(clusters)

	// 2. Retain coherent viewpoints whatever their size
	minority := g.minorityViewpoints(summaries)

	// 3. Deduplicate evidence and rank by credibility
	topEvidence, err := g.rankEvidence(ctx, evidence, meta.Seed)
	if err != nil {
		return nil, err
	}

	// 4. Diagnostic signals
	signals := g.buildSignals(minority, arguments, len(evidence), meta)

	brief := &model.LegislativeBrief{
		BillID:             billID,
		GeneratedAt:        time.Now().UTC(),
		Generation:         clusters[0].Generation,
		ClusterSummaries:   summaries,
		Coalitions:         append([]model.Coalition(nil), coalitions...),
		TopEvidence:        topEvidence,
		MinorityViewpoints: minority,
		AggregateStrength:  aggregateStrength(arguments),
		Confidence:         determineConfidence(len(arguments), len(evidence), meta),
		Signals:            signals,
		RunMeta:            meta,
		Principles:         model.DefaultPrinciples(),
	}

	logging.Debug("Brief generated",
		"bill", billID,
		"clusters", len(summaries),
		"minority", len(minority),
		"evidence", len(topEvidence),
		"confidence", brief.Confidence)

	return brief, nil
}

// summarize turns clusters into summaries ordered by size × cohesion
// descending, ties broken by cluster id
func (g *Generator) summarize(clusters []*model.Cluster) []model.ClusterSummary {
	summaries := make([]model.ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, model.ClusterSummary{
			ClusterID:            c.ID,
			Position:             c.Position,
			Size:                 c.Size,
			Cohesion:             c.Cohesion,
			Weight:               float64(c.Size) * c.Cohesion,
			RepresentativeClaims: append([]string(nil), c.RepresentativeClaims...),
			Summary:              summaryText(c),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Weight != summaries[j].Weight {
			return summaries[i].Weight > summaries[j].Weight
		}
		return summaries[i].ClusterID < summaries[j].ClusterID
	})

	return summaries
}

// minorityViewpoints keeps every cluster above the cohesion floor,
// regardless of size. Coherent viewpoints are never erased by volume.
func (g *Generator) minorityViewpoints(summaries []model.ClusterSummary) []model.ClusterSummary {
	minority := []model.ClusterSummary{}
	for _, s := range summaries {
		if s.Cohesion >= g.cfg.MinorityCohesion {
			minority = append(minority, s)
		}
	}
	return minority
}

// rankEvidence groups near-identical evidence, keeps the best-scored
// member of each group and ranks the survivors by credibility
func (g *Generator) rankEvidence(ctx context.Context, evidence []model.Evidence, seed int64) ([]model.RankedEvidence, error) {
	if len(evidence) == 0 {
		return []model.RankedEvidence{}, nil
	}

	vectors, err := g.embedEvidence(ctx, evidence)
	if err != nil {
		return nil, err
	}

	index := embed.NewDedupIndex(g.cfg.EvidenceDedup, seed)
	members := make(map[string][]int)
	var order []string

	for i := range evidence {
		id := fmt.Sprintf("ev:%d", i)
		isDup, primary := index.Add(id, vectors[i])
		if isDup {
			members[primary] = append(members[primary], i)
			continue
		}
		members[id] = []int{i}
		order = append(order, id)
	}

	ranked := make([]model.RankedEvidence, 0, len(order))
	for _, primary := range order {
		group := members[primary]
		best := group[0]
		for _, idx := range group[1:] {
			if scoreOf(evidence[idx]) > scoreOf(evidence[best]) {
				best = idx
			}
		}
		ranked = append(ranked, model.RankedEvidence{
			Evidence:   evidence[best],
			Duplicates: len(group) - 1,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scoreOf(ranked[i].Evidence), scoreOf(ranked[j].Evidence)
		if si != sj {
			return si > sj
		}
		return ranked[i].Evidence.Text < ranked[j].Evidence.Text
	})

	if len(ranked) > g.cfg.TopEvidenceLimit {
		ranked = ranked[:g.cfg.TopEvidenceLimit]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return ranked, nil
}

// embedEvidence embeds every evidence text for deduplication. A remote
// provider failure falls back to the hashing embedder for the whole
// batch, never mixing vector spaces, so the brief is still produced
// whenever clustering already succeeded. Only cancellation propagates.
func (g *Generator) embedEvidence(ctx context.Context, evidence []model.Evidence) ([]embed.Vector, error) {
	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = ev.Text
	}

	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("brief: embed evidence: %w", err)
	}

	logging.Warn("Evidence embedder failed, falling back to hashing",
		"provider", g.embedder.Name(), "error", err)

	vectors, err = embed.NewHashingEmbedder(0).EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("brief: embed evidence: %w", err)
	}
	return vectors, nil
}

// buildSignals collects the diagnostic signals for the run
func (g *Generator) buildSignals(minority []model.ClusterSummary, arguments []*model.Argument, evidenceCount int, meta model.RunMeta) []model.Signal {
	var signals []model.Signal

	if sig := g.minorityRetainedSignal(minority, len(arguments)); sig.Type != "" {
		signals = append(signals, sig)
	}
	if sig := extractionFailuresSignal(meta); sig.Type != "" {
		signals = append(signals, sig)
	}
	if sig := validationDegradedSignal(meta, evidenceCount); sig.Type != "" {
		signals = append(signals, sig)
	}
	if sig := sparseDatasetSignal(len(arguments)); sig.Type != "" {
		signals = append(signals, sig)
	}
	if sig := evidenceCoverageSignal(arguments, evidenceCount); sig.Type != "" {
		signals = append(signals, sig)
	}

	return signals
}

// minorityRetainedSignal reports coherent clusters small enough that
// majority-ordered output would have buried them
func (g *Generator) minorityRetainedSignal(minority []model.ClusterSummary, totalArgs int) model.Signal {
	if totalArgs == 0 {
		return model.Signal{}
	}

	var rescued []string
	for _, m := range minority {
		if float64(m.Size)/float64(totalArgs) < g.cfg.MajorityShare {
			rescued = append(rescued, m.ClusterID)
		}
	}
	if len(rescued) == 0 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalMinorityRetained,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("Retained %d coherent minority viewpoint(s) in the brief", len(rescued)),
		Data: map[string]interface{}{
			"clusters":       rescued,
			"majority_share": g.cfg.MajorityShare,
			"cohesion_floor": g.cfg.MinorityCohesion,
		},
	}
}

func extractionFailuresSignal(meta model.RunMeta) model.Signal {
	if meta.FailedExtractions == 0 {
		return model.Signal{}
	}

	severity := model.SeverityWarning
	if meta.CommentCount > 0 && float64(meta.FailedExtractions)/float64(meta.CommentCount) > 0.5 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:        model.SignalExtractionFailures,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d comments failed structure extraction", meta.FailedExtractions, meta.CommentCount),
		Data: map[string]interface{}{
			"failed": meta.FailedExtractions,
			"total":  meta.CommentCount,
		},
	}
}

func validationDegradedSignal(meta model.RunMeta, evidenceCount int) model.Signal {
	if meta.DegradedValidations == 0 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalValidationDegraded,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d evidence item(s) scored without the external fact-check", meta.DegradedValidations),
		Data: map[string]interface{}{
			"degraded": meta.DegradedValidations,
			"total":    evidenceCount,
		},
	}
}

func sparseDatasetSignal(argCount int) model.Signal {
	if argCount >= 4 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalSparseDataset,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Only %d argument(s) available; cluster boundaries are unstable", argCount),
		Data: map[string]interface{}{
			"arguments": argCount,
			"minimum":   4,
		},
	}
}

func evidenceCoverageSignal(arguments []*model.Argument, evidenceCount int) model.Signal {
	claimCount := 0
	for _, arg := range arguments {
		claimCount += len(arg.Claims)
	}
	if claimCount == 0 {
		return model.Signal{}
	}

	ratio := float64(evidenceCount) / float64(claimCount)
	if ratio >= 0.5 {
		return model.Signal{}
	}

	return model.Signal{
		Type:        model.SignalLowEvidenceCoverage,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Evidence-to-claim ratio %.2f; most claims are unsupported", ratio),
		Data: map[string]interface{}{
			"claims":   claimCount,
			"evidence": evidenceCount,
			"ratio":    ratio,
			"formula":  "evidence_count / claim_count",
		},
	}
}

// summaryText builds the template description for one cluster
func summaryText(c *model.Cluster) string {
	head := fmt.Sprintf("%s viewpoint from %s", titleCase(positionAdjective(c.Position)), plural(c.Size, "argument"))
	if len(c.RepresentativeClaims) == 0 {
		return head + "."
	}
	return fmt.Sprintf("%s, centered on: %s.", head, strings.Join(c.RepresentativeClaims, "; "))
}

func positionAdjective(p model.Position) string {
	switch p {
	case model.PositionSupport:
		return "supporting"
	case model.PositionOppose:
		return "opposing"
	case model.PositionNeutral:
		return "neutral"
	default:
		return "mixed"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func aggregateStrength(arguments []*model.Argument) float64 {
	if len(arguments) == 0 {
		return 0
	}
	sum := 0.0
	for _, arg := range arguments {
		sum += arg.Strength
	}
	return sum / float64(len(arguments))
}

// determineConfidence grades how much weight the brief deserves
func determineConfidence(argCount, evidenceCount int, meta model.RunMeta) string {
	if argCount < 4 || evidenceCount == 0 {
		return "low"
	}

	degradedShare := float64(meta.DegradedValidations) / float64(evidenceCount)
	if argCount >= 10 && evidenceCount >= 5 && degradedShare <= 0.5 {
		return "high"
	}
	return "medium"
}

func scoreOf(ev model.Evidence) float64 {
	if ev.CredibilityScore != nil {
		return *ev.CredibilityScore
	}
	return 0
}
