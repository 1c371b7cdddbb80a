package knowledge

import (
	"context"
	"time"

	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// ============================================================================
// Relation Resolver
// ============================================================================

// RelationResolver merges candidate relations into the profile's graph, one
// edge per (profile, source, target, relationship type)
type RelationResolver struct {
	store  Store
	logger *zap.Logger
}

// NewRelationResolver creates a relation resolver over the given store
func NewRelationResolver(store Store) *RelationResolver {
	return &RelationResolver{
		store:  store,
		logger: logger.Get(),
	}
}

// Resolve maps each candidate's source/target mentions onto the nodes the
// entity resolver produced and upserts the edge. Unresolvable mentions,
// self-loops, and relationship types outside the vocabulary are skipped and
// logged, never raised.
func (r *RelationResolver) Resolve(ctx context.Context, profileID string, candidates []CandidateRelation, resolvedNodes map[string]*KnowledgeNode) []KnowledgeEdge {
	now := time.Now().UTC()

	var edges []KnowledgeEdge
	for _, c := range candidates {
		if !ValidRelationshipType(c.Type) {
			r.logger.Debug("Skipping relation outside vocabulary",
				zap.String("profile_id", profileID),
				zap.String("type", c.Type),
			)
			continue
		}

		source, ok := resolvedNodes[Canonicalize(c.Source)]
		if !ok {
			r.logger.Debug("Skipping relation with unresolved source",
				zap.String("profile_id", profileID),
				zap.String("source", c.Source),
			)
			continue
		}
		target, ok := resolvedNodes[Canonicalize(c.Target)]
		if !ok {
			r.logger.Debug("Skipping relation with unresolved target",
				zap.String("profile_id", profileID),
				zap.String("target", c.Target),
			)
			continue
		}

		if source.ID == target.ID {
			r.logger.Debug("Skipping self-referential relation",
				zap.String("profile_id", profileID),
				zap.String("node_id", source.ID),
				zap.String("type", c.Type),
			)
			continue
		}

		edge, err := r.store.UpsertEdge(ctx, EdgeUpsert{
			ProfileID:        profileID,
			SourceNodeID:     source.ID,
			TargetNodeID:     target.ID,
			RelationshipType: c.Type,
			Confidence:       c.Confidence,
			ObservedAt:       now,
		})
		if err != nil {
			r.logger.Warn("Abandoning relation candidate",
				zap.String("profile_id", profileID),
				zap.String("type", c.Type),
				zap.Error(err),
			)
			continue
		}

		edges = append(edges, *edge)
	}

	return edges
}
