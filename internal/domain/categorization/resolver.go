// Package categorization maps institution-specific bank category labels onto
// canonical CoinPurse categories. Mappings are priority-ordered and a label may
// map to several categories; resolution exposes the full candidate list and
// defaults to the highest-priority one. Unknown or empty labels fall back to
// the Uncategorized category.
package categorization

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrUncategorizedMissing means the canonical fallback category does not exist.
// This is an environment bug: inventing a category id here would corrupt the
// ledger, so it is raised instead of defaulted.
var ErrUncategorizedMissing = errors.New("Uncategorized category not found; run database seeding")

// MappingRepository loads mapping tables and the fallback category.
type MappingRepository interface {
	// ActiveMappingTable returns bank label (normalized lowercase, trimmed) ->
	// canonical category ids ordered by descending priority.
	ActiveMappingTable(ctx context.Context, institutionID uuid.UUID) (map[string][]uuid.UUID, error)
	// UncategorizedID returns the id of the active "Uncategorized" category,
	// or ErrUncategorizedMissing.
	UncategorizedID(ctx context.Context) (uuid.UUID, error)
}

// Resolution is the outcome for one label. CandidateIDs is empty when the
// label had no mapping and CategoryID is the Uncategorized fallback.
type Resolution struct {
	CategoryID   uuid.UUID
	CandidateIDs []uuid.UUID
}

// Resolver resolves labels with per-instance memoization of the mapping table
// and the Uncategorized id. Resolvers are per-request instances; ClearCache
// must be called when mappings may have changed under a live instance.
type Resolver struct {
	repo MappingRepository

	mu            sync.Mutex
	mappings      map[uuid.UUID]map[string][]uuid.UUID
	uncategorized *uuid.UUID
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo MappingRepository) *Resolver {
	return &Resolver{repo: repo}
}

func (r *Resolver) uncategorizedID(ctx context.Context) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uncategorized != nil {
		return *r.uncategorized, nil
	}
	id, err := r.repo.UncategorizedID(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	r.uncategorized = &id
	return id, nil
}

func (r *Resolver) mappingTable(ctx context.Context, institutionID uuid.UUID) (map[string][]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if table, ok := r.mappings[institutionID]; ok {
		return table, nil
	}
	table, err := r.repo.ActiveMappingTable(ctx, institutionID)
	if err != nil {
		return nil, fmt.Errorf("load category mappings: %w", err)
	}
	if r.mappings == nil {
		r.mappings = make(map[uuid.UUID]map[string][]uuid.UUID)
	}
	r.mappings[institutionID] = table
	return table, nil
}

// ResolveOne maps a single bank label.
func (r *Resolver) ResolveOne(ctx context.Context, institutionID uuid.UUID, label *string) (Resolution, error) {
	resolutions, err := r.ResolveBatch(ctx, institutionID, []*string{label})
	if err != nil {
		return Resolution{}, err
	}
	return resolutions[0], nil
}

// ResolveBatch maps every label, returning one resolution per label in order.
func (r *Resolver) ResolveBatch(ctx context.Context, institutionID uuid.UUID, labels []*string) ([]Resolution, error) {
	uncategorized, err := r.uncategorizedID(ctx)
	if err != nil {
		return nil, err
	}
	table, err := r.mappingTable(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	resolutions := make([]Resolution, len(labels))
	for i, label := range labels {
		if label == nil || strings.TrimSpace(*label) == "" {
			resolutions[i] = Resolution{CategoryID: uncategorized}
			continue
		}
		candidates := table[normalizeLabel(*label)]
		if len(candidates) == 0 {
			resolutions[i] = Resolution{CategoryID: uncategorized}
			continue
		}
		ids := make([]uuid.UUID, len(candidates))
		copy(ids, candidates)
		resolutions[i] = Resolution{CategoryID: ids[0], CandidateIDs: ids}
	}
	return resolutions, nil
}

// SuggestLabels ranks the institution's known bank labels by fuzzy similarity
// to an unmapped label. Advisory only: suggestions never affect resolution.
func (r *Resolver) SuggestLabels(ctx context.Context, institutionID uuid.UUID, label string, limit int) ([]string, error) {
	table, err := r.mappingTable(ctx, institutionID)
	if err != nil {
		return nil, err
	}

	known := make([]string, 0, len(table))
	for name := range table {
		known = append(known, name)
	}

	ranks := fuzzy.RankFindNormalizedFold(normalizeLabel(label), known)
	sort.Sort(ranks)

	suggestions := make([]string, 0, limit)
	for _, rank := range ranks {
		if limit > 0 && len(suggestions) >= limit {
			break
		}
		suggestions = append(suggestions, rank.Target)
	}
	return suggestions, nil
}

// ClearCache drops memoized state so the next call re-reads the repository.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = nil
	r.uncategorized = nil
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
