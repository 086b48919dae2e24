// Package topics discovers candidate topics from external feeds and
// filters out near-duplicates of previously used topics.
package topics

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/store"
)

// DefaultThreshold is the similarity score above which a candidate is
// considered already covered by history.
const DefaultThreshold = 0.7

// historySeparator joins the niche qualifier and the topic text in
// stored history entries.
const historySeparator = "|"

// Filter selects topics that are sufficiently novel for a niche.
type Filter struct {
	store     *store.Store
	logger    logger.Logger
	threshold float64
}

// NewFilter creates a Filter with the given similarity threshold.
// A non-positive threshold falls back to DefaultThreshold.
func NewFilter(s *store.Store, log logger.Logger, threshold float64) *Filter {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Filter{
		store:     s,
		logger:    log,
		threshold: threshold,
	}
}

// historyEntry formats a niche-qualified history record.
func historyEntry(niche, topic string) string {
	return niche + historySeparator + topic
}

// historyForNiche extracts the topics previously used for niche.
func historyForNiche(entries []string, niche string) []string {
	prefix := niche + historySeparator
	topics := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry, prefix) {
			topics = append(topics, strings.TrimPrefix(entry, prefix))
		}
	}
	return topics
}

// SelectUnique returns the first candidate, in supplied order, whose
// maximum similarity against the niche's history is at or below the
// threshold, and appends it to history. When no candidate qualifies it
// returns ("", false, nil): a legitimate empty outcome, not an error.
func (f *Filter) SelectUnique(ctx context.Context, niche string, candidates []string) (string, bool, error) {
	entries, err := store.Read[[]string](ctx, f.store, store.KeyTopicHistory)
	if err != nil {
		return "", false, fmt.Errorf("load topic history: %w", err)
	}
	history := historyForNiche(entries, niche)

	for _, candidate := range candidates {
		if isNearDuplicate(candidate, history, f.threshold) {
			continue
		}

		if err := store.Append(ctx, f.store, store.KeyTopicHistory, historyEntry(niche, candidate)); err != nil {
			return "", false, fmt.Errorf("record topic: %w", err)
		}

		f.logger.Debug("selected unique topic",
			logger.String("niche", niche),
			logger.String("topic", candidate),
		)
		return candidate, true, nil
	}

	return "", false, nil
}

// isNearDuplicate reports whether candidate exceeds the threshold
// against any historical topic.
func isNearDuplicate(candidate string, history []string, threshold float64) bool {
	for _, past := range history {
		if Similarity(candidate, past) > threshold {
			return true
		}
	}
	return false
}
