package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chanuka/mjadala/internal/model"
)

// Analyzer runs the full analysis for one bill's comment file
type Analyzer interface {
	AnalyzeBill(ctx context.Context, billID, path string) (*model.LegislativeBrief, error)
}

// BillRef points a bill ID at its comment dataset
type BillRef struct {
	BillID string
	Path   string
}

// BillJob represents one bill analysis job
type BillJob struct {
	Ref      BillRef
	Analyzer Analyzer
}

// Execute runs the analysis for the referenced bill
func (j *BillJob) Execute(ctx context.Context) Result {
	brief, err := j.Analyzer.AnalyzeBill(ctx, j.Ref.BillID, j.Ref.Path)
	if err != nil {
		return &BillResult{Ref: j.Ref, Error: err}
	}
	return &BillResult{Ref: j.Ref, Brief: brief}
}

// BillResult represents the outcome of one bill analysis
type BillResult struct {
	Ref   BillRef
	Brief *model.LegislativeBrief
	Error error
}

// GetError returns the error from the bill result
func (r *BillResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple bills concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessBills analyzes the referenced bills concurrently. Results come
// back in completion order; each carries its BillRef so callers can map
// them to the input.
func (b *BatchProcessor) ProcessBills(ctx context.Context, refs []BillRef) []*BillResult {
	if len(refs) == 0 {
		return []*BillResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, ref := range refs {
		pool.Submit(&BillJob{Ref: ref, Analyzer: b.analyzer})
	}

	results := pool.Wait()

	billResults := make([]*BillResult, len(results))
	for i, result := range results {
		billResults[i] = result.(*BillResult)
	}

	return billResults
}

// ProcessFile reads bill references from a file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BillResult, error) {
	refs, err := ReadBillRefsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read bill refs: %w", err)
	}

	return b.ProcessBills(ctx, refs), nil
}

// ReadBillRefsFromFile reads bill references from a file, one per line,
// in the form "bill-id=path/to/comments.jsonl". A line holding only a
// path uses the file's base name without its extension as the bill ID.
// Blank lines and lines starting with # are skipped; duplicate bill IDs
// keep the first occurrence.
func ReadBillRefsFromFile(filePath string) ([]BillRef, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var refs []BillRef
	seen := make(map[string]bool)

	lineNo := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ref, err := parseBillRef(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		// Deduplicate bill IDs
		if !seen[ref.BillID] {
			seen[ref.BillID] = true
			refs = append(refs, ref)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return refs, nil
}

func parseBillRef(line string) (BillRef, error) {
	id, path, found := strings.Cut(line, "=")
	if !found {
		base := filepath.Base(line)
		return BillRef{
			BillID: strings.TrimSuffix(base, filepath.Ext(base)),
			Path:   line,
		}, nil
	}

	id = strings.TrimSpace(id)
	path = strings.TrimSpace(path)
	if id == "" {
		return BillRef{}, errors.New("missing bill id before '='")
	}
	if path == "" {
		return BillRef{}, errors.New("missing comments path after '='")
	}
	return BillRef{BillID: id, Path: path}, nil
}
