package library

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/retrieval"
)

// ReadFile decodes a JSON array of documents.
func ReadFile(path string) ([]retrieval.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus %s: %w", path, err)
	}
	var docs []retrieval.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("decoding corpus %s: %w", path, err)
	}
	return docs, nil
}

// ExpandGlob returns the files matching pattern in lexical order. Patterns
// may use ** to cross directories. A pattern without metacharacters is
// returned as is so a missing file surfaces as a read error.
func ExpandGlob(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[{") {
		return []string{pattern}, nil
	}
	base, pat := doublestar.SplitPattern(pattern)
	matches, err := doublestar.Glob(os.DirFS(base), pat, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", pattern, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if base == "." {
			paths = append(paths, m)
		} else {
			paths = append(paths, base+"/"+m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadGlob reads every corpus file matching pattern into l and returns the
// number of documents added.
func (l *Library) LoadGlob(pattern string) (int, error) {
	paths, err := ExpandGlob(pattern)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, p := range paths {
		docs, err := ReadFile(p)
		if err != nil {
			return added, err
		}
		n := l.AddAll(docs)
		added += n
		l.logger.Info("corpus file loaded", "path", p, "documents", n)
	}
	return added, nil
}
