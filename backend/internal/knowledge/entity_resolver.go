package knowledge

import (
	"context"
	"fmt"
	"time"

	apperrors "mindfulme/backend/pkg/errors"
	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// ============================================================================
// Entity Resolver
// ============================================================================

// EntityResolver merges candidate entity mentions into the profile's graph,
// one node per (profile, entity type, canonical name)
type EntityResolver struct {
	store  Store
	logger *zap.Logger
}

// NewEntityResolver creates an entity resolver over the given store
func NewEntityResolver(store Store) *EntityResolver {
	return &EntityResolver{
		store:  store,
		logger: logger.Get(),
	}
}

// Resolve deduplicates candidates within the batch, then upserts each one.
// Two candidates resolving to the same canonical entity collapse into a
// single write before anything is persisted. The returned map is keyed by
// canonical mention name for the relation resolver.
func (r *EntityResolver) Resolve(ctx context.Context, profileID string, candidates []CandidateEntity) (map[string]*KnowledgeNode, error) {
	now := time.Now().UTC()
	merged := dedupeCandidates(candidates)

	resolved := make(map[string]*KnowledgeNode, len(merged))
	for _, c := range merged {
		canonical := Canonicalize(c.Name)
		if canonical == "" {
			r.logger.Debug("Dropping unresolvable mention",
				zap.String("profile_id", profileID),
				zap.String("mention", c.Name),
			)
			continue
		}

		node, err := r.upsertWithRetry(ctx, NodeUpsert{
			ProfileID:     profileID,
			EntityType:    c.Type,
			EntityName:    c.Name,
			CanonicalName: canonical,
			Confidence:    c.Confidence,
			ObservedAt:    now,
		})
		if err != nil {
			// One bad candidate never fails the batch
			r.logger.Warn("Abandoning entity candidate",
				zap.String("profile_id", profileID),
				zap.String("mention", c.Name),
				zap.Error(err),
			)
			continue
		}

		resolved[canonical] = node
	}

	return resolved, nil
}

// upsertWithRetry retries a conflicted upsert exactly once: the store
// re-reads and re-merges on the second pass, so the losing writer's evidence
// is still folded in
func (r *EntityResolver) upsertWithRetry(ctx context.Context, up NodeUpsert) (*KnowledgeNode, error) {
	node, err := r.store.UpsertNode(ctx, up)
	if err == nil {
		return node, nil
	}
	if !apperrors.IsStorageConflict(err) {
		return nil, err
	}

	r.logger.Debug("Upsert conflict, retrying once",
		zap.String("profile_id", up.ProfileID),
		zap.String("canonical_name", up.CanonicalName),
	)

	node, err = r.store.UpsertNode(ctx, up)
	if err != nil {
		return nil, fmt.Errorf("upsert abandoned after conflict retry: %w", err)
	}
	return node, nil
}

// dedupeCandidates collapses same-canonical-entity candidates in one batch
// into a single candidate carrying the highest confidence, so a batch never
// double-counts a mention
func dedupeCandidates(candidates []CandidateEntity) []CandidateEntity {
	if len(candidates) <= 1 {
		return candidates
	}

	seen := make(map[string]int) // canonical key -> index in out
	var out []CandidateEntity
	for _, c := range candidates {
		key := string(c.Type) + "|" + Canonicalize(c.Name)
		if i, ok := seen[key]; ok {
			if c.Confidence > out[i].Confidence {
				out[i].Confidence = c.Confidence
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, c)
	}
	return out
}
