// Package tokenizer abstracts over tokenizer backends so token costs can be
// compared and reported across target models (GPT-family, Claude, and a
// word-count heuristic fallback for anything else).
package tokenizer

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/hpungsan/promptshrink/internal/errors"
)

// Backend counts tokens in text for a single tokenizer.
type Backend interface {
	// ID returns the database-facing identifier for this tokenizer.
	ID() string
	// CountTokens returns the token count for text.
	CountTokens(text string) int
}

// Registry resolves a tokenizer id to a Backend, lazily initializing the
// underlying encoder the first time each id is requested.
type Registry struct {
	mu       sync.Mutex
	backends map[string]Backend
	factory  map[string]func() (Backend, error)
}

// NewRegistry returns a Registry pre-wired with the cl100k_base, claude, and
// word_heuristic backends. Tiktoken-backed entries are built lazily so a
// missing BPE rank file only breaks the tokenizer that needs it.
func NewRegistry() *Registry {
	r := &Registry{
		backends: make(map[string]Backend),
		factory:  make(map[string]func() (Backend, error)),
	}
	r.factory["cl100k_base"] = func() (Backend, error) { return newTiktokenBackend("cl100k_base", "cl100k_base") }
	r.factory["claude"] = func() (Backend, error) { return newTiktokenBackend("claude", "cl100k_base") }
	r.backends["word_heuristic"] = wordHeuristicBackend{}
	return r
}

// Register installs a custom backend, overriding any built-in of the same id.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.ID()] = b
}

// Get resolves id to a Backend, building and caching tiktoken-backed entries
// on first use. Returns ErrUnknownTokenizer if id has no registered backend.
func (r *Registry) Get(id string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[id]; ok {
		return b, nil
	}
	if f, ok := r.factory[id]; ok {
		b, err := f()
		if err != nil {
			return nil, errors.NewConfigurationError("failed to initialize tokenizer " + id + ": " + err.Error())
		}
		r.backends[id] = b
		return b, nil
	}
	return nil, errors.NewUnknownTokenizer(id)
}

// Count resolves id to a Backend and counts text, replacing invalid UTF-8
// sequences before measurement so no input can make a backend panic.
func (r *Registry) Count(id, text string) (int, error) {
	b, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return b.CountTokens(strings.ToValidUTF8(text, "")), nil
}

// Available returns the ids of all backends currently resolvable, without
// forcing lazy factories to run.
func (r *Registry) Available() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool)
	ids := make([]string, 0, len(r.backends)+len(r.factory))
	for id := range r.backends {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range r.factory {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// tiktokenBackend wraps pkoukk/tiktoken-go's BPE encoder.
type tiktokenBackend struct {
	id  string
	enc *tiktoken.Tiktoken
}

func newTiktokenBackend(id, encoding string) (Backend, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &tiktokenBackend{id: id, enc: enc}, nil
}

func (b *tiktokenBackend) ID() string { return b.id }

func (b *tiktokenBackend) CountTokens(text string) int {
	return len(b.enc.Encode(text, nil, nil))
}

// wordHeuristicBackend estimates token count from whitespace-delimited word
// count. It is used only when a request names the word_heuristic id; the
// registry does not substitute it for a tiktoken backend that fails to load.
type wordHeuristicBackend struct{}

func (wordHeuristicBackend) ID() string { return "word_heuristic" }

func (wordHeuristicBackend) CountTokens(text string) int {
	words := 0
	inWord := false
	for _, r := range text {
		isSpace := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if isSpace {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	// Empirically, BPE tokenizers produce roughly 1.3 tokens per word.
	return int(float64(words)*1.3 + 0.5)
}
