package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Recaller turns Search hits into a block of text for prompt injection.
//
// It decides:
//   - How to query (single search within a tag namespace)
//   - Which memories to keep (score threshold)
//   - How to format them within a character budget
type Recaller struct {
	store  Store
	config *RecallConfig
	logger *slog.Logger
}

// RecallConfig holds Recaller configuration.
type RecallConfig struct {
	// Enabled toggles recall on/off.
	// Default: true.
	Enabled bool

	// MinScore drops results whose score is present and lower.
	// Results without a score are always kept.
	// Default: 0.3 (hashing and small local models score low).
	MinScore float64

	// Limit is the number of memories searched for.
	// Default: 10.
	Limit int

	// MaxChars is the total character budget of the formatted block.
	// Default: 2000.
	MaxChars int
}

// DefaultRecallConfig returns sensible defaults.
var DefaultRecallConfig = &RecallConfig{
	Enabled:  true,
	MinScore: 0.3,
	Limit:    DefaultSearchLimit,
	MaxChars: 2000,
}

// NewRecaller creates a Recaller over store.
func NewRecaller(store Store, config *RecallConfig, logger *slog.Logger) *Recaller {
	if config == nil {
		config = DefaultRecallConfig
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recaller{
		store:  store,
		config: config,
		logger: logger.With("component", "memory.recall"),
	}
}

// Retrieve finds memories relevant to message and returns them formatted.
// An empty string means nothing relevant was found.
func (r *Recaller) Retrieve(ctx context.Context, message string, tags ...string) (string, error) {
	if !r.config.Enabled {
		return "", nil
	}

	results, err := r.store.Search(ctx, message, WithTags(tags...), WithLimit(r.config.Limit))
	if err != nil {
		return "", fmt.Errorf("recall: %w", err)
	}

	kept := results[:0:0]
	for _, res := range results {
		if res.Score != nil && *res.Score < r.config.MinScore {
			continue
		}
		kept = append(kept, res)
	}

	r.logger.Debug("memories recalled",
		"query", truncate(message, 50), "tags", tags, "hits", len(results), "kept", len(kept))
	if len(kept) == 0 {
		return "", nil
	}

	return r.format(kept), nil
}

// format renders results as a numbered block.
func (r *Recaller) format(results []Result) string {
	var b strings.Builder
	b.WriteString("=== RELEVANT MEMORIES ===\n")

	perMemory := r.config.MaxChars / len(results)
	if perMemory < 100 {
		perMemory = 100
	}

	for i, res := range results {
		fmt.Fprintf(&b, "%d. %s", i+1, truncate(res.Content, perMemory))
		if res.Score != nil {
			fmt.Fprintf(&b, " (relevance %.2f)", *res.Score)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// truncate shortens s to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
