package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chanuka/mjadala/internal/brief"
	"github.com/chanuka/mjadala/internal/cache"
	"github.com/chanuka/mjadala/internal/cluster"
	"github.com/chanuka/mjadala/internal/coalition"
	"github.com/chanuka/mjadala/internal/embed"
	"github.com/chanuka/mjadala/internal/extract"
	"github.com/chanuka/mjadala/internal/llm"
	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
	"github.com/chanuka/mjadala/internal/source"
	"github.com/chanuka/mjadala/internal/store"
	"github.com/chanuka/mjadala/internal/validate"
)

// Pipeline orchestrates the complete analysis for a bill: extraction,
// embedding, clustering, validation, coalition detection, and brief
// generation. Runs for the same bill are serialized so two generations
// never race; different bills proceed independently.
type Pipeline struct {
	cfg       *model.Config
	extractor *extract.StructureExtractor
	embedder  embed.Embedder
	clusterer *cluster.Service
	validator *validate.Validator
	finder    *coalition.Finder
	generator *brief.Generator
	narrator  *llm.Narrator // Optional, nil when disabled
	runs      *store.Store  // Optional generation store, nil when disabled

	mu          sync.Mutex
	billLocks   map[string]*sync.Mutex
	generations map[string]int64 // In-memory counters when no store is open
}

// NewPipeline creates a pipeline from the configuration. factCheck is
// the optional external credibility lookup; nil leaves the validator on
// text-only scoring.
func NewPipeline(cfg *model.Config, factCheck validate.FactCheckFunc) (*Pipeline, error) {
	c := buildCache(cfg.Cache)

	embedder := buildEmbedder(cfg.Embedding)
	if c != nil {
		embedder = embed.NewCachedEmbedder(embedder, c, cfg.Cache.TTL)
		factCheck = validate.CachedFactCheck(factCheck, c, cfg.Cache.TTL)
	}

	var prober *validate.CitationProber
	if cfg.Validation.ProbeCitations {
		authority := validate.NewAuthorityClassifier(cfg.Validation.PrimaryDomains, cfg.Validation.SecondaryDomains)
		prober = validate.NewCitationProber(cfg.HTTP, authority)
	}

	var narrator *llm.Narrator
	if cfg.LLM.Enabled {
		n, err := llm.NewNarrator(cfg.LLM)
		if err != nil {
			logging.Warn("Narrative generation disabled", "error", err)
		} else {
			narrator = n
		}
	}

	var runs *store.Store
	if cfg.Store.Enabled {
		if cfg.Store.Path == "" {
			return nil, fmt.Errorf("pipeline: store enabled without a path: %w", model.ErrInvalidInput)
		}
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("pipeline: open store: %w", err)
		}
		runs = s
	}

	return &Pipeline{
		cfg:         cfg,
		extractor:   extract.NewStructureExtractor(cfg.Extract),
		embedder:    embedder,
		clusterer:   cluster.NewService(cfg.Clustering),
		validator:   validate.NewValidator(cfg.Validation, factCheck, prober),
		finder:      coalition.NewFinder(cfg.Coalition),
		generator:   brief.NewGenerator(cfg.Brief, embedder),
		narrator:    narrator,
		runs:        runs,
		billLocks:   make(map[string]*sync.Mutex),
		generations: make(map[string]int64),
	}, nil
}

// buildCache assembles the shared cache: layered when a disk directory
// is configured, memory-only otherwise, nil when disabled
func buildCache(cfg model.CacheConfig) cache.Cache {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Dir != "" {
		return cache.NewLayeredCache(cfg.TTL, cfg.Dir, cfg.TTL)
	}
	return cache.NewMemoryCache(cfg.TTL, 10*time.Minute)
}

// buildEmbedder picks the configured provider. A remote provider that
// is not ready falls back to deterministic hashing so analysis still
// runs offline.
func buildEmbedder(cfg model.EmbeddingConfig) embed.Embedder {
	if cfg.Provider == "openai" {
		e := embed.NewOpenAIEmbedder(cfg, os.Getenv("OPENAI_API_KEY"))
		if e.Available() {
			return e
		}
		logging.Warn("OpenAI embedder not available, using hashing embedder")
	}
	return embed.NewHashingEmbedder(cfg.Dimensions)
}

// Close releases the pipeline's store, if one is open
func (p *Pipeline) Close() error {
	if p.runs == nil {
		return nil
	}
	return p.runs.Close()
}

// Result bundles everything one analysis run produced. Arguments,
// clusters, and the brief are immutable snapshots once returned.
type Result struct {
	Generation int64
	Arguments  []*model.Argument
	Clusters   []*model.Cluster
	Coalitions []model.Coalition
	Brief      *model.LegislativeBrief
}

// Analyze runs the full pipeline over one bill's comments and returns
// the new generation's artifacts. Each stage completes for the whole
// dataset before the next begins: clustering needs the full argument
// set to produce a stable partition.
func (p *Pipeline) Analyze(ctx context.Context, billID string, comments []model.Comment) (*Result, error) {
	if billID == "" {
		return nil, fmt.Errorf("pipeline: bill ID is empty: %w", model.ErrInvalidInput)
	}
	if len(comments) == 0 {
		return nil, fmt.Errorf("pipeline: no comments for bill %s: %w", billID, model.ErrInsufficientData)
	}

	lock := p.billLock(billID)
	lock.Lock()
	defer lock.Unlock()

	generation, err := p.nextGeneration(ctx, billID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	logging.Info("Analyzing bill", "bill", billID, "generation", generation, "comments", len(comments))

	// 1. Extract structured arguments; failed items stay in the batch
	// as unprocessed markers and are counted, not dropped silently
	extracted := p.extractor.ExtractBatch(ctx, comments)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: analysis cancelled: %w", err)
	}

	args := make([]*model.Argument, 0, len(extracted))
	failed := 0
	for i := range extracted {
		if extracted[i].Error != "" {
			failed++
			continue
		}
		args = append(args, &extracted[i])
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("pipeline: no usable arguments for bill %s: %w", billID, model.ErrInsufficientData)
	}

	// 2. Embed arguments
	vectors, err := p.embedVectors(ctx, args)
	if err != nil {
		return nil, err
	}

	// 3. Cluster into viewpoints
	clusters, err := p.clusterer.Cluster(ctx, billID, generation, args, vectors)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	// 4. Validate evidence
	evidence, degraded, err := p.validateEvidence(ctx, args)
	if err != nil {
		return nil, err
	}

	// 5. Detect cross-cluster coalitions
	coalitions := p.finder.Find(clusters)

	// 6. Generate the brief
	meta := model.RunMeta{
		CommentCount:        len(comments),
		ArgumentCount:       len(args),
		FailedExtractions:   failed,
		EvidenceCount:       len(evidence),
		DegradedValidations: degraded,
		Method:              p.cfg.Clustering.Method,
		Seed:                p.cfg.Clustering.Seed,
	}
	b, err := p.generator.Generate(ctx, billID, clusters, coalitions, args, evidence, meta)
	if err != nil {
		return nil, fmt.Errorf("generate brief: %w", err)
	}

	// 7. Optional narrative, strictly after ranking so it can never
	// affect the deterministic outputs
	p.narrate(ctx, b)

	if p.runs != nil {
		run := store.Run{
			BillID:     billID,
			Generation: generation,
			Arguments:  args,
			Clusters:   clusters,
			Coalitions: coalitions,
			Brief:      b,
		}
		if err := p.runs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save run: %w", err)
		}
	}

	logging.Info("Analysis complete",
		"bill", billID,
		"generation", generation,
		"clusters", len(clusters),
		"coalitions", len(coalitions),
		"duration", time.Since(started).Round(time.Millisecond))

	return &Result{
		Generation: generation,
		Arguments:  args,
		Clusters:   clusters,
		Coalitions: coalitions,
		Brief:      b,
	}, nil
}

// AnalyzeBill loads a bill's comments from a JSONL file and runs the
// analysis. Comments without a bill ID inherit the requested one;
// comments tagged for other bills are skipped.
func (p *Pipeline) AnalyzeBill(ctx context.Context, billID, path string) (*model.LegislativeBrief, error) {
	comments, err := source.ReadCommentsFile(path)
	if err != nil {
		return nil, fmt.Errorf("load comments: %w", err)
	}

	kept := comments[:0]
	skipped := 0
	for _, c := range comments {
		if c.BillID == "" {
			c.BillID = billID
		}
		if c.BillID != billID {
			skipped++
			continue
		}
		kept = append(kept, c)
	}
	if skipped > 0 {
		logging.Debug("Skipped comments for other bills", "bill", billID, "count", skipped)
	}

	result, err := p.Analyze(ctx, billID, kept)
	if err != nil {
		return nil, err
	}
	return result.Brief, nil
}

// StoredBrief returns a previously stored brief. Generation 0 means
// the bill's latest.
func (p *Pipeline) StoredBrief(ctx context.Context, billID string, generation int64) (*model.LegislativeBrief, error) {
	if p.runs == nil {
		return nil, fmt.Errorf("pipeline: store is not enabled: %w", model.ErrInvalidInput)
	}
	return p.runs.Brief(ctx, billID, generation)
}

// StoredGenerations lists a bill's stored generations, newest first
func (p *Pipeline) StoredGenerations(ctx context.Context, billID string) ([]store.GenerationInfo, error) {
	if p.runs == nil {
		return nil, fmt.Errorf("pipeline: store is not enabled: %w", model.ErrInvalidInput)
	}
	return p.runs.Generations(ctx, billID)
}

// embedVectors embeds each argument's text. A remote provider failure
// falls back to the deterministic hashing embedder for the whole batch,
// never mixing vector spaces within one run.
func (p *Pipeline) embedVectors(ctx context.Context, args []*model.Argument) ([]embed.Vector, error) {
	texts := make([]string, len(args))
	for i, arg := range args {
		texts[i] = embed.ArgumentText(arg)
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err == nil {
		return vectors, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("embed: %w", err)
	}

	logging.Warn("Embedding provider failed, falling back to hashing",
		"provider", p.embedder.Name(), "error", err)

	fallback := embed.NewHashingEmbedder(p.cfg.Embedding.Dimensions)
	vectors, err = fallback.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	return vectors, nil
}

// validateEvidence validates every evidence item across the arguments
// and writes the scored copies back in place. It returns the flat
// scored list for ranking plus the count of degraded validations.
func (p *Pipeline) validateEvidence(ctx context.Context, args []*model.Argument) ([]model.Evidence, int, error) {
	var flat []model.Evidence
	var owners []int
	for i, arg := range args {
		for _, ev := range arg.Evidence {
			flat = append(flat, ev)
			owners = append(owners, i)
		}
	}
	if len(flat) == 0 {
		return nil, 0, nil
	}

	scored, err := p.validator.ValidateBatch(ctx, flat)
	if err != nil {
		return nil, 0, fmt.Errorf("validate: %w", err)
	}

	// ValidateBatch preserves order, so items map back positionally
	cursor := make(map[int]int)
	for j, ev := range scored {
		owner := owners[j]
		args[owner].Evidence[cursor[owner]] = ev
		cursor[owner]++
	}

	degraded := 0
	for _, ev := range scored {
		if n := len(ev.ScoreHistory); n > 0 && ev.ScoreHistory[n-1].Degraded {
			degraded++
		}
	}

	return scored, degraded, nil
}

// narrate appends the optional LLM narrative. Failures only log; the
// brief's deterministic content is already final.
func (p *Pipeline) narrate(ctx context.Context, b *model.LegislativeBrief) {
	if p.narrator == nil {
		return
	}

	narrative, err := p.narrator.Narrate(ctx, b)
	if err != nil {
		logging.Warn("Narrative generation failed", "error", err)
		return
	}
	b.Narrative = narrative
}

// billLock returns the mutex serializing runs for one bill
func (p *Pipeline) billLock(billID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.billLocks[billID]
	if !ok {
		lock = &sync.Mutex{}
		p.billLocks[billID] = lock
	}
	return lock
}

// nextGeneration picks the run's generation number: the store's next
// when persistence is on, an in-memory counter otherwise. Caller holds
// the bill lock.
func (p *Pipeline) nextGeneration(ctx context.Context, billID string) (int64, error) {
	if p.runs != nil {
		gen, err := p.runs.NextGeneration(ctx, billID)
		if err != nil {
			return 0, fmt.Errorf("next generation: %w", err)
		}
		return gen, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.generations[billID]++
	return p.generations[billID], nil
}
