package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// abbreviations that should not terminate a sentence. Legal citations in
// comments lean on these heavily ("Cap. 486", "Sec. 12", "Hon. Mwangi").
var abbreviations = map[string]bool{
	"hon":  true,
	"dr":   true,
	"mr":   true,
	"mrs":  true,
	"ms":   true,
	"prof": true,
	"st":   true,
	"no":   true,
	"cap":  true,
	"sec":  true,
	"art":  true,
	"e.g":  true,
	"i.e":  true,
	"etc":  true,
	"vs":   true,
}

// splitSentences splits comment text into sentences (simple heuristic).
// Citizen comments are short free text, so unlike web-page prose there is
// no minimum sentence length beyond discarding bare punctuation.
func splitSentences(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")

	var sentences []string
	var current strings.Builder

	flush := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 2 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Only split when the terminator is followed by whitespace or
		// ends the text; "3.5" and "Article 28.1(b)" stay intact.
		atEnd := i+1 >= len(text)
		if !atEnd && text[i+1] != ' ' && text[i+1] != '\t' {
			continue
		}

		if r == '.' && abbreviations[lastWord(current.String())] {
			continue
		}

		flush()
	}

	flush()
	return sentences
}

// lastWord returns the lowercased final word of s minus its trailing dot,
// for the abbreviation check.
func lastWord(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".")
	if idx := strings.LastIndexByte(s, ' '); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.ToLower(s)
}

// tokenize lowercases and splits text into word tokens, trimming
// surrounding punctuation
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Trim(f, ".,;:!?\"'()[]{}")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// stripMarkup extracts visible text from comments that arrive with HTML
// markup, skipping script and style subtrees. Plain text passes through
// unchanged.
func stripMarkup(text string) string {
	if !strings.Contains(text, "<") || !strings.Contains(text, ">") {
		return text
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return text
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				buf.WriteString(t)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String())
}
