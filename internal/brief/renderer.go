package brief

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chanuka/mjadala/internal/model"
)

// RenderJSON serializes a brief for storage or API consumers
func RenderJSON(b *model.LegislativeBrief) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("brief: marshal: %w", err)
	}
	return data, nil
}

// RenderMarkdown produces the human-readable form of a brief. The
// narrative section, when present, is marked as presentation only so
// readers cannot mistake prose for ranking.
func RenderMarkdown(b *model.LegislativeBrief, includeFooter bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Legislative Brief: %s\n\n", b.BillID)
	fmt.Fprintf(&sb, "- Generated: %s\n", b.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "- Generation: %d\n", b.Generation)
	fmt.Fprintf(&sb, "- Method: %s (seed %d)\n", b.RunMeta.Method, b.RunMeta.Seed)
	fmt.Fprintf(&sb, "- Confidence: %s (aggregate strength %.2f)\n", b.Confidence, b.AggregateStrength)
	fmt.Fprintf(&sb, "- Inputs: %s, %s, %s\n\n",
		plural(b.RunMeta.CommentCount, "comment"),
		plural(b.RunMeta.ArgumentCount, "argument"),
		plural(b.RunMeta.EvidenceCount, "evidence item"))

	sb.WriteString("## Viewpoints\n\n")
	for i, s := range b.ClusterSummaries {
		fmt.Fprintf(&sb, "### %d. %s (%s, cohesion %.2f)\n\n",
			i+1, titleCase(string(s.Position)), plural(s.Size, "argument"), s.Cohesion)
		fmt.Fprintf(&sb, "%s\n\n", s.Summary)
		if len(s.RepresentativeClaims) > 0 {
			sb.WriteString("Representative claims:\n")
			for _, claim := range s.RepresentativeClaims {
				fmt.Fprintf(&sb, "- %s\n", claim)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("## Coalitions\n\n")
	if len(b.Coalitions) == 0 {
		sb.WriteString("No coalitions detected.\n\n")
	} else {
		for _, co := range b.Coalitions {
			fmt.Fprintf(&sb, "- %s: %s (strength %.2f)\n",
				co.RelationshipType, strings.Join(co.ClusterIDs, " and "), co.Strength)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Top Evidence\n\n")
	if len(b.TopEvidence) == 0 {
		sb.WriteString("No evidence extracted.\n\n")
	} else {
		for _, re := range b.TopEvidence {
			fmt.Fprintf(&sb, "%d. [%.2f] %q (%s%s)%s\n",
				re.Rank, scoreOf(re.Evidence), re.Evidence.Text,
				re.Evidence.SourceType, authoritySuffix(re.Evidence), duplicatesSuffix(re))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Minority Viewpoints\n\n")
	if len(b.MinorityViewpoints) == 0 {
		sb.WriteString("No clusters met the cohesion floor.\n\n")
	} else {
		for _, m := range b.MinorityViewpoints {
			fmt.Fprintf(&sb, "- %s: %s, %s, cohesion %.2f\n",
				m.ClusterID, string(m.Position), plural(m.Size, "argument"), m.Cohesion)
		}
		sb.WriteString("\n")
	}

	if len(b.Signals) > 0 {
		sb.WriteString("## Signals\n\n")
		for _, sig := range b.Signals {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", sig.Severity, sig.Type, sig.Description)
		}
		sb.WriteString("\n")
	}

	if b.Narrative != nil && b.Narrative.Enabled && b.Narrative.SummaryMD != "" {
		sb.WriteString("## Narrative (generated prose)\n\n")
		fmt.Fprintf(&sb, "_Produced by %s/%s. Presentation only; it has no effect on the rankings above._\n\n",
			b.Narrative.Provider, b.Narrative.Model)
		sb.WriteString(strings.TrimSpace(b.Narrative.SummaryMD))
		sb.WriteString("\n\n")
		if len(b.Narrative.Warnings) > 0 {
			sb.WriteString("Narrative warnings:\n")
			for _, w := range b.Narrative.Warnings {
				fmt.Fprintf(&sb, "- %s\n", w)
			}
			sb.WriteString("\n")
		}
	}

	if includeFooter {
		sb.WriteString("---\n")
		sb.WriteString("Produced by Mjadala. Ranking and scoring are deterministic and fully explainable from the signals above.\n")
	}

	return sb.String()
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func authoritySuffix(ev model.Evidence) string {
	if ev.Authority == model.TierUnknown {
		return ""
	}
	return ", " + ev.Authority.String() + " source"
}

func duplicatesSuffix(re model.RankedEvidence) string {
	if re.Duplicates == 0 {
		return ""
	}
	return fmt.Sprintf(" [+%d near-duplicate(s) merged]", re.Duplicates)
}
