package extract

import (
	"strings"

	"github.com/chanuka/mjadala/internal/model"
)

// associationWindow bounds how far an evidence sentence may sit from the
// claim it supports, in sentences. Association is windowed, not global.
const associationWindow = 2

// scanReferences finds cited URLs and legal references ("Article 28",
// "Section 12", "Cap. 486") in a sentence
func scanReferences(sentence string) (urls []string, legalRefs []string) {
	fields := strings.Fields(sentence)

	for i, f := range fields {
		lower := strings.ToLower(f)

		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			urls = append(urls, strings.TrimRight(f, ".,;:!?)"))
			continue
		}

		switch strings.Trim(lower, ".,;:()") {
		case "article", "section", "clause", "regulation", "cap":
			if i+1 < len(fields) && startsWithDigit(fields[i+1]) {
				ref := strings.Trim(f, ",;:()") + " " + strings.Trim(fields[i+1], ".,;:()")
				legalRefs = append(legalRefs, ref)
			}
		case "constitution":
			legalRefs = append(legalRefs, strings.Trim(f, ".,;:()"))
		}
	}

	return urls, legalRefs
}

func startsWithDigit(s string) bool {
	return len(s) > 0 && s[0] >= '0' && s[0] <= '9'
}

// numericTokens counts tokens that begin with a digit
func numericTokens(tokens []string) int {
	n := 0
	for _, t := range tokens {
		if startsWithDigit(t) {
			n++
		}
	}
	return n
}

// classifySourceType determines what kind of evidence a sentence carries.
// URLs and legal references always read as citations.
func (e *StructureExtractor) classifySourceType(lower string, hasURL, hasLegalRef bool) model.SourceType {
	if hasURL || hasLegalRef {
		return model.SourceCitation
	}

	for _, frame := range e.citationFrames {
		if strings.HasPrefix(lower, frame) {
			return model.SourceCitation
		}
	}

	if strings.Contains(lower, "%") || strings.Contains(lower, " percent") ||
		numericTokens(tokenize(lower)) >= 2 {
		return model.SourceStatistic
	}

	for _, m := range e.experienceMarks {
		if strings.Contains(lower, m) {
			return model.SourceExperience
		}
	}

	return model.SourceAnecdote
}

// nearestClaim picks the claim whose sentence sits closest to the
// evidence sentence, preferring the preceding claim on ties. Returns -1
// when no claim falls within the window.
func nearestClaim(sentence int, claimSentences []int, window int) int {
	best := -1
	bestDist := window + 1

	for ci, cs := range claimSentences {
		dist := cs - sentence
		if dist < 0 {
			dist = -dist
		}
		// Strict less-than keeps the first (preceding) claim on ties,
		// since claim sentences arrive in ascending order.
		if dist < bestDist {
			bestDist = dist
			best = ci
		}
	}

	return best
}
