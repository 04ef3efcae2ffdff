package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chanuka/mjadala/internal/logging"
	"github.com/chanuka/mjadala/internal/model"
)

// maxLineBytes bounds a single comment line. Submissions run long but a
// line past this is corrupt input, not a comment.
const maxLineBytes = 1024 * 1024

// ReadComments parses comments from r in JSON Lines form, one comment
// object per line. Blank lines and lines starting with # are skipped,
// and duplicate comment IDs keep the first occurrence. A line that is
// not valid JSON fails the whole read.
func ReadComments(r io.Reader) ([]model.Comment, error) {
	var comments []model.Comment
	seen := make(map[string]bool)

	lineNo := 0
	dupes := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var c model.Comment
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		if c.ID != "" {
			if seen[c.ID] {
				dupes++
				continue
			}
			seen[c.ID] = true
		}
		comments = append(comments, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	if dupes > 0 {
		logging.Debug("Skipped duplicate comment IDs", "count", dupes)
	}

	return comments, nil
}

// ReadCommentsFile reads comments from a JSONL file
func ReadCommentsFile(path string) ([]model.Comment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open comments file: %w", err)
	}
	defer func() { _ = file.Close() }()

	comments, err := ReadComments(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return comments, nil
}
