package llm

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// Narrator turns a finished brief into short prose. The narrative is
// presentation only and never feeds back into ranking. In strict
// evidence mode a URL cited outside the brief's own evidence is a
// citation leak: the prose is dropped and the leak recorded as a
// warning, so a misbehaving model cannot smuggle sources into a brief.
type Narrator struct {
	client *openai.Client
	cfg    model.LLMConfig
}

// NewNarrator creates a narrator. The API key comes from the
// OPENAI_API_KEY environment variable, never from config files.
func NewNarrator(cfg model.LLMConfig) (*Narrator, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("llm: OPENAI_API_KEY is not set: %w", model.ErrExternalServiceUnavailable)
	}
	return newNarrator(cfg, key, os.Getenv("OPENAI_BASE_URL")), nil
}

func newNarrator(cfg model.LLMConfig, key, baseURL string) *Narrator {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientConfig := openai.DefaultConfig(key)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &Narrator{
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
	}
}

// Available checks whether the API answers
func (n *Narrator) Available(ctx context.Context) bool {
	if _, err := n.client.ListModels(ctx); err != nil {
		logging.Debug("OpenAI availability check failed", "error", err)
		return false
	}
	return true
}

const systemPrompt = "You narrate analyses of public comments on legislation. " +
	"You describe what commenters argued and how well evidence supports it. " +
	"You never assert whether a claim is true."

// Narrate generates the prose section for a brief
func (n *Narrator) Narrate(ctx context.Context, b *model.LegislativeBrief) (*model.Narrative, error) {
	allowed := evidenceURLs(b)
	prompt := buildPrompt(b, allowed)

	nctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	resp, err := n.client.CreateChatCompletion(nctx, openai.ChatCompletionRequest{
		Model: n.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   800,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty completion: %w", model.ErrExternalServiceUnavailable)
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	narrative := &model.Narrative{
		Enabled:        true,
		Provider:       "openai",
		Model:          n.cfg.Model,
		StrictEvidence: n.cfg.StrictEvidence,
		SummaryMD:      summary,
	}

	if n.cfg.StrictEvidence {
		for _, cited := range extractURLs(summary) {
			if !containsURL(allowed, cited) {
				narrative.SummaryMD = ""
				narrative.Warnings = append(narrative.Warnings,
					fmt.Sprintf("citation leak: narrative cited %s, which is not in the brief's evidence", cited))
			}
		}
	}

	logging.Debug("Narrative generated",
		"model", n.cfg.Model,
		"tokens", resp.Usage.TotalTokens,
		"warnings", len(narrative.Warnings))

	return narrative, nil
}

// buildPrompt lays out the brief's computed facts for the model
func buildPrompt(b *model.LegislativeBrief, allowed []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `Summarize the public response to bill %s in 3-5 sentences of Markdown.

RULES:
1. Only cite URLs from this list:%s
2. Do not invent sources, numbers, or viewpoints beyond those listed below.
3. Describe evidence support, never truth. Prefer "commenters argue" over "it is the case".
4. Mention the minority viewpoints explicitly; they are retained by design.

Viewpoints:
`, b.BillID, joinURLs(allowed))

	for _, s := range b.ClusterSummaries {
		fmt.Fprintf(&sb, "- %s\n", s.Summary)
	}

	if len(b.MinorityViewpoints) > 0 {
		sb.WriteString("\nMinority viewpoints:\n")
		for _, m := range b.MinorityViewpoints {
			fmt.Fprintf(&sb, "- %s (%s, cohesion %.2f)\n", m.ClusterID, m.Position, m.Cohesion)
		}
	}

	if len(b.TopEvidence) > 0 {
		sb.WriteString("\nTop evidence:\n")
		for i, re := range b.TopEvidence {
			if i >= 5 {
				break
			}
			fmt.Fprintf(&sb, "- %q", re.Evidence.Text)
			if re.Evidence.SourceURL != "" {
				fmt.Fprintf(&sb, " (%s)", re.Evidence.SourceURL)
			}
			sb.WriteString("\n")
		}
	}

	fmt.Fprintf(&sb, "\nOverall confidence: %s. Aggregate argument strength: %.2f.\n",
		b.Confidence, b.AggregateStrength)

	return sb.String()
}

// evidenceURLs is the strict allowlist the narrative may cite
func evidenceURLs(b *model.LegislativeBrief) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, re := range b.TopEvidence {
		u := re.Evidence.SourceURL
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func joinURLs(urls []string) string {
	if len(urls) == 0 {
		return "\n(no evidence URLs available; cite nothing)"
	}
	var sb strings.Builder
	for i, u := range urls {
		if i >= 20 {
			fmt.Fprintf(&sb, "\n... and %d more", len(urls)-20)
			break
		}
		fmt.Fprintf(&sb, "\n- %s", u)
	}
	return sb.String()
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)]+`)

// extractURLs pulls http(s) URLs out of generated text
func extractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]bool)
	var unique []string
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?")
		if !seen[u] {
			seen[u] = true
			unique = append(unique, u)
		}
	}
	return unique
}

func containsURL(list []string, u string) bool {
	for _, s := range list {
		if s == u {
			return true
		}
	}
	return false
}
