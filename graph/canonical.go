package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docmindhq/docmind/store"
)

// Canonicalizer resolves raw (name, type) mentions to canonical entities,
// deduplicating via exact, alias, and fuzzy matching.
type Canonicalizer struct {
	store          *store.Store
	fuzzyThreshold float64
}

// NewCanonicalizer creates a Canonicalizer. fuzzyThreshold is the minimum
// containment score for a fuzzy match, typically around 0.6.
func NewCanonicalizer(s *store.Store, fuzzyThreshold float64) *Canonicalizer {
	return &Canonicalizer{store: s, fuzzyThreshold: fuzzyThreshold}
}

// normalizeName lowercases, trims, and collapses internal whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// fuzzyScore scores two normalized names by containment: if one is a
// substring of the other, the score is len(shorter)/len(longer), else 0.
// "acme" against "acme corp" scores 4/9; unrelated names score 0.
func fuzzyScore(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.Contains(long, short) {
		return 0
	}
	return float64(len(short)) / float64(len(long))
}

// Resolve maps a raw mention to a canonical entity, creating one when no
// match is found. Matching order: exact normalized name+type, then alias,
// then containment fuzzy against the configured threshold. On a match the
// entity's mention_count is incremented and the raw form is recorded as an
// alias when it differs from the canonical name. Safe to call concurrently
// within one batch; last writer wins on mention_count.
func (c *Canonicalizer) Resolve(ctx context.Context, name, entityType string) (*store.CanonicalEntity, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		return nil, fmt.Errorf("resolving entity: empty name")
	}
	if !validEntityTypes[entityType] {
		return nil, fmt.Errorf("resolving entity %q: unknown type %q", name, entityType)
	}

	// Exact match
	e, err := c.store.FindEntityExact(ctx, normalized, entityType)
	if err != nil {
		return nil, fmt.Errorf("exact lookup for %q: %w", normalized, err)
	}
	if e != nil {
		return c.touch(ctx, e, normalized)
	}

	// Alias and fuzzy passes both scan the type's entities once.
	candidates, err := c.store.ListEntitiesByType(ctx, entityType)
	if err != nil {
		return nil, fmt.Errorf("listing %s entities: %w", entityType, err)
	}

	for i := range candidates {
		for _, alias := range candidates[i].Aliases {
			if normalizeName(alias) == normalized {
				return c.touch(ctx, &candidates[i], normalized)
			}
		}
	}

	var best *store.CanonicalEntity
	bestScore := 0.0
	for i := range candidates {
		s := fuzzyScore(normalized, candidates[i].CanonicalName)
		if s > bestScore {
			bestScore = s
			best = &candidates[i]
		}
	}
	if best != nil && bestScore >= c.fuzzyThreshold {
		slog.Debug("graph: fuzzy entity match",
			"raw", normalized, "canonical", best.CanonicalName, "score", bestScore)
		return c.touch(ctx, best, normalized)
	}

	// No match: create a new canonical entity.
	id, err := c.store.InsertEntity(ctx, store.CanonicalEntity{
		CanonicalName: normalized,
		EntityType:    entityType,
	})
	if err != nil {
		// A concurrent resolver may have created it between our lookup and
		// insert; re-query before giving up.
		if retry, rerr := c.store.FindEntityExact(ctx, normalized, entityType); rerr == nil && retry != nil {
			return c.touch(ctx, retry, normalized)
		}
		return nil, fmt.Errorf("creating entity %q: %w", normalized, err)
	}
	return c.store.GetEntity(ctx, id)
}

// ResolveBatch resolves many mentions with one exact-match query pass
// across all inputs before falling back to per-item resolution. The result
// maps each input's raw name to its canonical entity; unresolvable inputs
// are omitted and logged.
func (c *Canonicalizer) ResolveBatch(ctx context.Context, mentions []ExtractedEntity) (map[string]*store.CanonicalEntity, error) {
	resolved := make(map[string]*store.CanonicalEntity, len(mentions))
	if len(mentions) == 0 {
		return resolved, nil
	}

	names := make([]string, 0, len(mentions))
	for _, m := range mentions {
		if n := normalizeName(m.Name); n != "" {
			names = append(names, n)
		}
	}

	exact, err := c.store.FindEntitiesExact(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("batch exact lookup: %w", err)
	}
	byKey := make(map[string]*store.CanonicalEntity, len(exact))
	for i := range exact {
		byKey[exact[i].CanonicalName+"\x00"+exact[i].EntityType] = &exact[i]
	}

	for _, m := range mentions {
		normalized := normalizeName(m.Name)
		if normalized == "" || !validEntityTypes[m.Type] {
			slog.Debug("graph: skipping unresolvable mention", "name", m.Name, "type", m.Type)
			continue
		}
		if _, done := resolved[m.Name]; done {
			continue
		}

		if hit, ok := byKey[normalized+"\x00"+m.Type]; ok {
			e, err := c.touch(ctx, hit, normalized)
			if err != nil {
				slog.Warn("graph: touching entity failed", "name", normalized, "error", err)
				continue
			}
			resolved[m.Name] = e
			continue
		}

		e, err := c.Resolve(ctx, m.Name, m.Type)
		if err != nil {
			slog.Warn("graph: resolving mention failed", "name", m.Name, "error", err)
			continue
		}
		resolved[m.Name] = e
		byKey[e.CanonicalName+"\x00"+e.EntityType] = e
	}

	return resolved, nil
}

// touch records another mention: appends the raw form as an alias when it
// differs from the canonical name and is not already present, then
// increments mention_count. Returns the entity with updated fields.
func (c *Canonicalizer) touch(ctx context.Context, e *store.CanonicalEntity, rawForm string) (*store.CanonicalEntity, error) {
	aliases := e.Aliases
	if rawForm != e.CanonicalName {
		present := false
		for _, a := range aliases {
			if normalizeName(a) == rawForm {
				present = true
				break
			}
		}
		if !present {
			aliases = append(aliases, rawForm)
		}
	}

	if err := c.store.TouchEntity(ctx, e.ID, aliases); err != nil {
		return nil, fmt.Errorf("recording mention for entity %d: %w", e.ID, err)
	}

	updated := *e
	updated.Aliases = aliases
	updated.MentionCount = e.MentionCount + 1
	return &updated, nil
}
