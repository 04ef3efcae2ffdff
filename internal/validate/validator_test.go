package validate

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chanuka/mjadala/internal/model"
)

func init() {
	// Disable retry sleep in all tests for fast execution
	probeSleepFunc = func(d time.Duration) {}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func hasSignal(snap model.CredibilitySnapshot, name string) bool {
	for _, s := range snap.Signals {
		if s == name {
			return true
		}
	}
	return false
}

func hintFunc(v float64) FactCheckFunc {
	return func(ctx context.Context, text string) (*float64, error) {
		return &v, nil
	}
}

func probeConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:     5 * time.Second,
		RatePerHost: 100,
	}
}

func TestNewValidator_Defaults(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	if v.cfg.Concurrency != 8 {
		t.Errorf("Expected default concurrency 8, got %d", v.cfg.Concurrency)
	}
	if v.cfg.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout 10s, got %v", v.cfg.Timeout)
	}
}

func TestValidator_TypePriors(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	tests := []struct {
		sourceType model.SourceType
		expected   float64
	}{
		{model.SourceCitation, 0.6},
		{model.SourceStatistic, 0.5},
		{model.SourceExperience, 0.35},
		{model.SourceAnecdote, 0.2},
		{model.SourceType("unknown"), 0.2},
	}

	for _, tt := range tests {
		t.Run(string(tt.sourceType), func(t *testing.T) {
			ev := model.Evidence{
				Text:       "the levy is unfair and should be scrapped",
				SourceType: tt.sourceType,
			}
			out := v.Validate(context.Background(), ev)

			if !out.Scored() {
				t.Fatal("Expected evidence to be scored")
			}
			if !closeTo(*out.CredibilityScore, tt.expected) {
				t.Errorf("Expected score %.2f, got %.2f", tt.expected, *out.CredibilityScore)
			}
		})
	}
}

func TestValidator_TextSignals(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	ev := model.Evidence{
		Text:       "KNBS reported 2024 inflation at 7.5 percent",
		SourceType: model.SourceStatistic,
	}
	out := v.Validate(context.Background(), ev)

	// 0.5 prior plus numbers, dates and named entity boosts
	if !closeTo(*out.CredibilityScore, 0.65) {
		t.Errorf("Expected score 0.65, got %.2f", *out.CredibilityScore)
	}

	snap := out.ScoreHistory[0]
	for _, want := range []string{"prior:statistic", "numbers", "dates", "named_entities"} {
		if !hasSignal(snap, want) {
			t.Errorf("Expected signal %q, got %v", want, snap.Signals)
		}
	}
	if snap.Degraded {
		t.Error("Expected snapshot not to be degraded")
	}
}

func TestValidator_BareMonthIsNotADate(t *testing.T) {
	if hasDate("the bill may pass next session") {
		t.Error("Expected a bare month word not to count as a date")
	}
	if !hasDate("gazetted on 12 May") {
		t.Error("Expected month adjacent to a number to count as a date")
	}
	if !hasDate("the Finance Act 2023 amended it") {
		t.Error("Expected a year token to count as a date")
	}
}

func TestValidator_NamedEntityDetection(t *testing.T) {
	tests := []struct {
		text     string
		expected bool
		desc     string
	}{
		{"the county assembly rejected it", true, "Institution phrase"},
		{"KRA collects the levy", true, "Institution token"},
		{"According to Moses Kuria the rates differ", true, "Capitalized pair past sentence start"},
		{"Everyone disagrees with this", false, "Sentence-initial capital alone"},
		{"the levy is unfair", false, "No entities"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if got := hasNamedEntity(tt.text); got != tt.expected {
				t.Errorf("Expected %v for %q, got %v", tt.expected, tt.text, got)
			}
		})
	}
}

func TestValidator_AuthorityBoost(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	ev := model.Evidence{
		Text:       "see the committee report",
		SourceType: model.SourceCitation,
		SourceURL:  "https://www.parliament.go.ke/committee-reports/finance",
	}
	out := v.Validate(context.Background(), ev)

	if !closeTo(*out.CredibilityScore, 0.70) {
		t.Errorf("Expected score 0.70, got %.2f", *out.CredibilityScore)
	}
	if !hasSignal(out.ScoreHistory[0], "authority:primary") {
		t.Errorf("Expected authority:primary signal, got %v", out.ScoreHistory[0].Signals)
	}
	if out.Authority != model.TierPrimary {
		t.Errorf("Expected authority tier to be recorded, got %v", out.Authority)
	}
}

func TestValidator_ScoreIdempotent(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	ev := model.Evidence{
		Text:       "the gazette notice covers it",
		SourceType: model.SourceCitation,
	}

	first := v.Validate(context.Background(), ev)
	second := v.Validate(context.Background(), ev)

	if !closeTo(*first.CredibilityScore, *second.CredibilityScore) {
		t.Errorf("Expected identical scores, got %.4f and %.4f",
			*first.CredibilityScore, *second.CredibilityScore)
	}
}

func TestValidator_FirstScoreImmutable(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	ev := model.Evidence{
		Text:       "the gazette notice covers it",
		SourceType: model.SourceCitation,
	}

	first := v.Validate(context.Background(), ev)
	if len(first.ScoreHistory) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(first.ScoreHistory))
	}

	second := v.Validate(context.Background(), first)

	if !closeTo(*second.CredibilityScore, *first.CredibilityScore) {
		t.Error("Expected re-validation not to change the credibility score")
	}
	if len(second.ScoreHistory) != 2 {
		t.Fatalf("Expected 2 snapshots after re-validation, got %d", len(second.ScoreHistory))
	}
	if !closeTo(second.ScoreHistory[0].Score, second.ScoreHistory[1].Score) {
		t.Error("Expected both snapshots to carry the same score")
	}
	if len(first.ScoreHistory) != 1 {
		t.Error("Expected re-validation not to mutate the earlier result")
	}
}

func TestValidator_NilHintDegrades(t *testing.T) {
	noHint := func(ctx context.Context, text string) (*float64, error) {
		return nil, nil
	}
	v := NewValidator(model.ValidationConfig{}, noHint, nil)

	ev := model.Evidence{
		Text:       "the gazette notice covers it",
		SourceType: model.SourceCitation,
	}
	out := v.Validate(context.Background(), ev)

	// No verdict is not a negative verdict
	if !closeTo(*out.CredibilityScore, 0.6) {
		t.Errorf("Expected score 0.6, got %.2f", *out.CredibilityScore)
	}

	snap := out.ScoreHistory[0]
	if !snap.Degraded {
		t.Error("Expected snapshot to be marked degraded")
	}
	if snap.FactCheck {
		t.Error("Expected no fact-check contribution")
	}
	if !hasSignal(snap, "fact_check_unavailable") {
		t.Errorf("Expected fact_check_unavailable signal, got %v", snap.Signals)
	}
}

func TestValidator_HintErrorDegrades(t *testing.T) {
	failing := func(ctx context.Context, text string) (*float64, error) {
		return nil, errors.New("service unavailable")
	}
	v := NewValidator(model.ValidationConfig{}, failing, nil)

	ev := model.Evidence{
		Text:       "the gazette notice covers it",
		SourceType: model.SourceCitation,
	}
	out := v.Validate(context.Background(), ev)

	if !closeTo(*out.CredibilityScore, 0.6) {
		t.Errorf("Expected score 0.6, got %.2f", *out.CredibilityScore)
	}
	if !out.ScoreHistory[0].Degraded {
		t.Error("Expected snapshot to be marked degraded")
	}
}

func TestValidator_HintBlend(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, hintFunc(0.9), nil)

	ev := model.Evidence{
		Text:       "the economy will suffer",
		SourceType: model.SourceStatistic,
	}
	out := v.Validate(context.Background(), ev)

	// 0.7*0.5 + 0.3*0.9
	if !closeTo(*out.CredibilityScore, 0.62) {
		t.Errorf("Expected score 0.62, got %.4f", *out.CredibilityScore)
	}

	snap := out.ScoreHistory[0]
	if !snap.FactCheck {
		t.Error("Expected fact-check contribution to be recorded")
	}
	if snap.Degraded {
		t.Error("Expected snapshot not to be degraded")
	}
	if !hasSignal(snap, "fact_check") {
		t.Errorf("Expected fact_check signal, got %v", snap.Signals)
	}
}

func TestValidator_HintClamped(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, hintFunc(1.8), nil)

	ev := model.Evidence{
		Text:       "the economy will suffer",
		SourceType: model.SourceStatistic,
	}
	out := v.Validate(context.Background(), ev)

	// 0.7*0.5 + 0.3*1.0
	if !closeTo(*out.CredibilityScore, 0.65) {
		t.Errorf("Expected out-of-range hint to be clamped, got %.4f", *out.CredibilityScore)
	}
}

func TestValidator_ValidateBatch_PreservesOrder(t *testing.T) {
	v := NewValidator(model.ValidationConfig{Concurrency: 2}, nil, nil)

	items := []model.Evidence{
		{Text: "the gazette confirms it", SourceType: model.SourceCitation},
		{Text: "the economy will suffer", SourceType: model.SourceStatistic},
		{Text: "my neighbour said so", SourceType: model.SourceAnecdote},
	}

	results, err := v.ValidateBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != len(items) {
		t.Fatalf("Expected %d results, got %d", len(items), len(results))
	}

	expected := []float64{0.6, 0.5, 0.2}
	for i, res := range results {
		if res.Text != items[i].Text {
			t.Errorf("Expected result %d to keep its position, got %q", i, res.Text)
		}
		if !res.Scored() {
			t.Errorf("Expected result %d to be scored", i)
			continue
		}
		if !closeTo(*res.CredibilityScore, expected[i]) {
			t.Errorf("Expected result %d score %.2f, got %.2f", i, expected[i], *res.CredibilityScore)
		}
	}
}

func TestValidator_ValidateBatch_Empty(t *testing.T) {
	v := NewValidator(model.ValidationConfig{}, nil, nil)

	results, err := v.ValidateBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty result, got %d items", len(results))
	}
}

func TestValidator_ValidateBatch_Cancelled(t *testing.T) {
	v := NewValidator(model.ValidationConfig{Concurrency: 1}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []model.Evidence{
		{Text: "first", SourceType: model.SourceCitation},
		{Text: "second", SourceType: model.SourceCitation},
	}

	results, err := v.ValidateBatch(ctx, items)
	if err == nil {
		t.Fatal("Expected an error for cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(results) != len(items) {
		t.Errorf("Expected %d results, got %d", len(items), len(results))
	}
}

func TestCitationProber_Accessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method != http.MethodHead {
			t.Errorf("Expected HEAD request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), server.URL+"/doc")

	if !check.IsAccessible {
		t.Error("Expected link to be accessible")
	}
	if check.IsDead {
		t.Error("Expected link not to be dead")
	}
	if check.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", check.StatusCode)
	}
	if check.Error != "" {
		t.Errorf("Expected no error, got %q", check.Error)
	}
}

func TestCitationProber_NotFoundIsDead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), server.URL+"/missing")

	if check.IsAccessible {
		t.Error("Expected 404 link not to be accessible")
	}
	if !check.IsDead {
		t.Error("Expected 404 link to be marked dead")
	}
}

func TestCitationProber_NetworkErrorIsNotDead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	deadURL := server.URL + "/doc"
	server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), deadURL)

	if check.Error == "" {
		t.Error("Expected a probe error for unreachable host")
	}
	if check.IsDead {
		t.Error("Expected unreachable link not to be marked dead")
	}
	if check.IsAccessible {
		t.Error("Expected unreachable link not to be accessible")
	}
}

func TestCitationProber_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), server.URL+"/flaky")

	if !check.IsAccessible {
		t.Errorf("Expected retries to reach success, got status %d", check.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestCitationProber_RobotsDisallowed(t *testing.T) {
	var probeHits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		atomic.AddInt32(&probeHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), server.URL+"/private/doc")

	if check.Error != "disallowed by robots.txt" {
		t.Errorf("Expected robots disallow error, got %q", check.Error)
	}
	if got := atomic.LoadInt32(&probeHits); got != 0 {
		t.Errorf("Expected no probe request for disallowed path, got %d", got)
	}
}

func TestCitationProber_Redirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	check := prober.Probe(context.Background(), server.URL+"/old")

	if !check.IsAccessible {
		t.Error("Expected redirected link to be accessible")
	}
	if check.RedirectURL != server.URL+"/new" {
		t.Errorf("Expected redirect target %q, got %q", server.URL+"/new", check.RedirectURL)
	}
}

func TestValidator_DeadLinkPenalty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	v := NewValidator(model.ValidationConfig{ProbeCitations: true}, nil, prober)

	ev := model.Evidence{
		Text:       "see the gazette notice",
		SourceType: model.SourceCitation,
		SourceURL:  server.URL + "/gone",
	}
	out := v.Validate(context.Background(), ev)

	// 0.6 prior minus the dead-link penalty
	if !closeTo(*out.CredibilityScore, 0.4) {
		t.Errorf("Expected score 0.4, got %.2f", *out.CredibilityScore)
	}
	if !hasSignal(out.ScoreHistory[0], "dead_link") {
		t.Errorf("Expected dead_link signal, got %v", out.ScoreHistory[0].Signals)
	}
	if out.ScoreHistory[0].Degraded {
		t.Error("Expected a definitive dead link not to mark the snapshot degraded")
	}
}

func TestValidator_ProbeFailureDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	deadURL := server.URL + "/doc"
	server.Close()

	prober := NewCitationProber(probeConfig(), nil)
	v := NewValidator(model.ValidationConfig{ProbeCitations: true}, nil, prober)

	ev := model.Evidence{
		Text:       "see the gazette notice",
		SourceType: model.SourceCitation,
		SourceURL:  deadURL,
	}
	out := v.Validate(context.Background(), ev)

	// No penalty when the probe itself failed
	if !closeTo(*out.CredibilityScore, 0.6) {
		t.Errorf("Expected score 0.6, got %.2f", *out.CredibilityScore)
	}

	snap := out.ScoreHistory[0]
	if !snap.Degraded {
		t.Error("Expected snapshot to be marked degraded")
	}
	if !hasSignal(snap, "probe_unavailable") {
		t.Errorf("Expected probe_unavailable signal, got %v", snap.Signals)
	}
}
