// Package vocabulary hands out phrases from a flat text file, one per line.
package vocabulary

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
)

// DefaultMaxLength is the longest phrase, in runes, the store returns.
const DefaultMaxLength = 60

var (
	ErrNotFound        = errors.New("vocabulary: file not found")
	ErrEmpty           = errors.New("vocabulary: file has no phrases")
	ErrNoFittingPhrase = errors.New("vocabulary: no phrase fits the length limit")
)

// Options configures a Store.
type Options struct {
	Shuffle   bool
	MaxLength int
	// IntN picks a random index in [0,n); defaults to math/rand/v2.
	IntN func(n int) int
}

// Store is a refillable phrase queue bound to one source file at a time.
type Store struct {
	mu     sync.Mutex
	source string
	queue  []string

	shuffle   bool
	maxLength int
	intN      func(int) int
}

// New returns an empty Store; the first Next call loads the file.
func New(opts Options) *Store {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	return &Store{shuffle: opts.Shuffle, maxLength: opts.MaxLength, intN: opts.IntN}
}

// Next pops the next phrase from path, trimmed and lower-cased. The queue is
// refilled from disk when it runs dry and dropped when path changes. Phrases
// longer than the limit are discarded.
func (s *Store) Next(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if path != s.source {
		s.source = path
		s.queue = nil
	}

	refilled := false
	for {
		if len(s.queue) == 0 {
			if refilled {
				return "", fmt.Errorf("%w (max %d runes): %s", ErrNoFittingPhrase, s.maxLength, path)
			}
			lines, err := load(path)
			if err != nil {
				return "", err
			}
			s.queue = lines
			refilled = true
			metrics.VocabularyReloads.Inc()
			logger.LogEvent(context.Background(), logger.Vocab, slog.LevelDebug, "vocabulary.reload",
				slog.String("status", "ok"),
				slog.String("source", path),
				slog.Int("count", len(lines)),
			)
		}

		if s.shuffle && len(s.queue) > 1 {
			i := s.intN(len(s.queue))
			s.queue[0], s.queue[i] = s.queue[i], s.queue[0]
		}
		phrase := strings.ToLower(s.queue[0])
		s.queue = s.queue[1:]

		if utf8.RuneCountInString(phrase) <= s.maxLength {
			return phrase, nil
		}
	}
}

// Len reports how many phrases remain before the next refill.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Source returns the file the queue was loaded from.
func (s *Store) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func load(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("vocabulary: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocabulary: read %s: %w", path, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return lines, nil
}
