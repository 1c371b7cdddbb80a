package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"mindfulme/backend/internal/graph"
	"mindfulme/backend/internal/knowledge"
	"mindfulme/backend/pkg/config"
	"mindfulme/backend/pkg/logger"
)

// Seeds a demo profile with a small knowledge graph, one conversation, and a
// few mood logs, so the app has something to show against a fresh database.
func main() {
	profileID := flag.String("profile-id", "default", "Profile ID to seed")
	flag.Parse()

	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting database seeding...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create Neo4j driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify Neo4j connectivity", zap.Error(err))
	}

	repo := graph.NewRepository(driver)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to ensure schema", zap.Error(err))
	}

	if _, err := repo.GetOrCreateProfile(ctx, *profileID); err != nil {
		log.Fatal("Failed to create profile", zap.Error(err))
	}

	now := time.Now().UTC()
	seedNodes := []knowledge.NodeUpsert{
		{ProfileID: *profileID, EntityType: knowledge.EntityPerson, EntityName: "Sarah", CanonicalName: "sarah", Confidence: 0.9, ObservedAt: now.Add(-48 * time.Hour)},
		{ProfileID: *profileID, EntityType: knowledge.EntityActivity, EntityName: "yoga", CanonicalName: "yoga", Confidence: 0.85, ObservedAt: now.Add(-24 * time.Hour)},
		{ProfileID: *profileID, EntityType: knowledge.EntityEmotion, EntityName: "calm", CanonicalName: "calm", Confidence: 0.8, ObservedAt: now.Add(-24 * time.Hour)},
		{ProfileID: *profileID, EntityType: knowledge.EntityPlace, EntityName: "work", CanonicalName: "work", Confidence: 0.8, ObservedAt: now.Add(-12 * time.Hour)},
		{ProfileID: *profileID, EntityType: knowledge.EntityEmotion, EntityName: "stressed", CanonicalName: "stressed", Confidence: 0.75, ObservedAt: now.Add(-12 * time.Hour)},
	}

	nodeIDs := make(map[string]string, len(seedNodes))
	for _, up := range seedNodes {
		node, err := repo.UpsertNode(ctx, up)
		if err != nil {
			log.Fatal("Failed to seed node", zap.String("name", up.EntityName), zap.Error(err))
		}
		nodeIDs[up.CanonicalName] = node.ID
		log.Info("Seeded node", zap.String("name", node.EntityName), zap.String("type", string(node.EntityType)))
	}

	seedEdges := []struct {
		source, target, relType string
	}{
		{"yoga", "calm", "helps"},
		{"work", "stressed", "causes"},
		{"yoga", "sarah", "involves"},
	}
	for _, e := range seedEdges {
		if _, err := repo.UpsertEdge(ctx, knowledge.EdgeUpsert{
			ProfileID:        *profileID,
			SourceNodeID:     nodeIDs[e.source],
			TargetNodeID:     nodeIDs[e.target],
			RelationshipType: e.relType,
			Confidence:       0.7,
			ObservedAt:       now,
		}); err != nil {
			log.Fatal("Failed to seed edge", zap.String("type", e.relType), zap.Error(err))
		}
		log.Info("Seeded edge", zap.String("source", e.source), zap.String("target", e.target), zap.String("type", e.relType))
	}

	conv, err := repo.CreateConversation(ctx, *profileID, graph.ConversationChat)
	if err != nil {
		log.Fatal("Failed to seed conversation", zap.Error(err))
	}
	if err := repo.AppendMessages(ctx, *profileID, conv.ID, []graph.Message{
		{Role: "user", Content: "I tried yoga again yesterday and felt really calm afterwards."},
		{Role: "assistant", Content: "That's wonderful to hear. What do you think made this session feel so calming?"},
	}); err != nil {
		log.Fatal("Failed to seed messages", zap.Error(err))
	}

	moods := []graph.MoodLog{
		{ProfileID: *profileID, Mood: "good", Intensity: 7, Note: "Yoga evening", Timestamp: now.Add(-24 * time.Hour)},
		{ProfileID: *profileID, Mood: "okay", Intensity: 5, Note: "Long day at work", Timestamp: now.Add(-12 * time.Hour)},
	}
	for _, m := range moods {
		if _, err := repo.CreateMood(ctx, &m); err != nil {
			log.Fatal("Failed to seed mood", zap.Error(err))
		}
	}

	log.Info("Seeding complete",
		zap.String("profile_id", *profileID),
		zap.Int("nodes", len(seedNodes)),
		zap.Int("edges", len(seedEdges)),
	)
}
