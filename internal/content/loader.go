package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	logx "lexibot/pkg/logx"
)

// EnrichedPrefix is prepended to the source name for enriched copies.
const EnrichedPrefix = "enriched_"

// ErrLoad wraps every loader failure (missing file, bad JSON, wrong shape).
var ErrLoad = errors.New("content: load failed")

// Loader reads content files from a single directory.
type Loader struct {
	dir string
	log logx.Logger
}

func NewLoader(dir string, log logx.Logger) *Loader {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{dir: dir, log: log.With(logx.String("comp", "content"))}
}

func (l *Loader) Dir() string { return l.dir }

// Normalize trims and lowercases name, drops any directory part and
// ensures a ".json" suffix. "  Quiz1 " becomes "quiz1.json".
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = filepath.Base(filepath.Clean("/" + n))
	if n == "/" || n == "." {
		n = ""
	}
	if !strings.HasSuffix(n, ".json") {
		n += ".json"
	}
	return n
}

// Path returns the on-disk location of a normalized name.
func (l *Loader) Path(normalized string) string {
	return filepath.Join(l.dir, normalized)
}

// LoadIdioms loads an idiom list. On failure it returns an empty slice,
// the normalized name and an error wrapping ErrLoad.
func (l *Loader) LoadIdioms(name string) ([]Idiom, string, error) {
	norm := Normalize(name)
	var items []Idiom
	if err := l.readArray(norm, &items); err != nil {
		return []Idiom{}, norm, err
	}
	return items, norm, nil
}

// LoadQuiz loads a quiz question list with the same failure contract as
// LoadIdioms.
func (l *Loader) LoadQuiz(name string) ([]QuizQuestion, string, error) {
	norm := Normalize(name)
	var items []QuizQuestion
	if err := l.readArray(norm, &items); err != nil {
		return []QuizQuestion{}, norm, err
	}
	return items, norm, nil
}

func (l *Loader) readArray(norm string, out any) error {
	if norm == ".json" {
		return fmt.Errorf("%w: empty name", ErrLoad)
	}
	path := l.Path(norm)
	b, err := os.ReadFile(path)
	if err != nil {
		l.log.Warn("content file unreadable", logx.String("file", norm), logx.Err(err))
		return fmt.Errorf("%w: %s: %w", ErrLoad, norm, err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		l.log.Warn("content file is not a valid JSON array", logx.String("file", norm), logx.Err(err))
		return fmt.Errorf("%w: %s: %w", ErrLoad, norm, err)
	}
	return nil
}

// SaveEnriched writes qs to "enriched_<normalized>" beside the source file
// and returns the written path. The source file is left untouched.
func (l *Loader) SaveEnriched(normalized string, qs []QuizQuestion) (string, error) {
	path := l.Path(EnrichedPrefix + Normalize(normalized))

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(qs); err != nil {
		return "", fmt.Errorf("content: encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("content: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("content: write %s: %w", path, err)
	}
	l.log.Info("enriched copy written", logx.String("path", path), logx.Int("items", len(qs)))
	return path, nil
}

// Sample returns min(n, len(items)) distinct items in random order.
// n <= 0 returns every item, shuffled.
func Sample[T any](items []T, n int, r *rand.Rand) []T {
	out := append([]T(nil), items...)
	shuffle := rand.Shuffle
	if r != nil {
		shuffle = r.Shuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
