package knowledge

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"mindfulme/backend/pkg/logger"
	"go.uber.org/zap"
)

// ============================================================================
// Extraction Pipeline
// ============================================================================

const (
	maxUnderstandAttempts = 3
	understandBackoff     = 2 * time.Second
	turnTextLogLimit      = 500
)

// ExtractionJob is one conversation turn queued for background extraction
type ExtractionJob struct {
	ProfileID      string
	ConversationID string
	TurnText       string
	ContextWindow  []string
}

// PipelineOptions tunes the background extraction pipeline
type PipelineOptions struct {
	Workers           int
	QueueDepth        int
	UnderstandTimeout time.Duration
}

// Pipeline runs extraction off the conversational critical path: jobs are
// enqueued fire-and-forget and drained by a bounded worker pool. A full queue
// drops the turn rather than blocking the reply, and every failure stays
// local to its own run.
type Pipeline struct {
	understander Understander
	entities     *EntityResolver
	relations    *RelationResolver
	store        Store
	logger       *zap.Logger

	opts    PipelineOptions
	jobs    chan ExtractionJob
	group   *errgroup.Group
	cancel  context.CancelFunc
	dropped atomic.Int64
}

// NewPipeline creates and starts the extraction worker pool
func NewPipeline(store Store, understander Understander, opts PipelineOptions) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 2
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = 64
	}
	if opts.UnderstandTimeout <= 0 {
		opts.UnderstandTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	p := &Pipeline{
		understander: understander,
		entities:     NewEntityResolver(store),
		relations:    NewRelationResolver(store),
		store:        store,
		logger:       logger.Get(),
		opts:         opts,
		jobs:         make(chan ExtractionJob, opts.QueueDepth),
		group:        group,
		cancel:       cancel,
	}

	for i := 0; i < opts.Workers; i++ {
		group.Go(func() error {
			p.worker(ctx)
			return nil
		})
	}

	return p
}

// Enqueue submits a turn for background extraction without blocking. When the
// queue is saturated the job is dropped and counted; backpressure is an
// observable condition, not a stall on the reply path.
func (p *Pipeline) Enqueue(job ExtractionJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("Extraction queue full, dropping turn",
			zap.String("profile_id", job.ProfileID),
			zap.Int64("dropped_total", p.dropped.Load()),
		)
		return false
	}
}

// Dropped returns the number of turns dropped under backpressure
func (p *Pipeline) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting jobs and waits for in-flight runs to finish, so a
// successful run's log entry is never lost on shutdown
func (p *Pipeline) Close() {
	close(p.jobs)
	_ = p.group.Wait()
	p.cancel()
}

func (p *Pipeline) worker(ctx context.Context) {
	for job := range p.jobs {
		p.Extract(ctx, job)
	}
}

// Extract runs one extraction pass for a single turn. Failures are recorded
// in the extraction log and swallowed; nothing here ever surfaces to the user
// or blocks later turns.
func (p *Pipeline) Extract(ctx context.Context, job ExtractionJob) {
	understanding, err := p.understand(ctx, job)
	if err != nil {
		p.logger.Warn("Extraction run failed",
			zap.String("profile_id", job.ProfileID),
			zap.Error(err),
		)
		p.appendLog(ctx, job, nil, nil, "", ExtractionFailed, err)
		return
	}

	if len(understanding.Entities) == 0 {
		p.appendLog(ctx, job, nil, nil, understanding.Raw, ExtractionSkipped, nil)
		return
	}

	resolvedNodes, err := p.entities.Resolve(ctx, job.ProfileID, understanding.Entities)
	if err != nil {
		p.logger.Warn("Entity resolution failed",
			zap.String("profile_id", job.ProfileID),
			zap.Error(err),
		)
		p.appendLog(ctx, job, nil, nil, understanding.Raw, ExtractionFailed, err)
		return
	}

	edges := p.relations.Resolve(ctx, job.ProfileID, understanding.Relations, resolvedNodes)

	nodeIDs := make([]string, 0, len(resolvedNodes))
	for _, node := range resolvedNodes {
		nodeIDs = append(nodeIDs, node.ID)
	}
	edgeIDs := make([]string, 0, len(edges))
	for _, edge := range edges {
		edgeIDs = append(edgeIDs, edge.ID)
	}

	// The success log entry is the last step: a partially applied run never
	// appears successful
	p.appendLog(ctx, job, nodeIDs, edgeIDs, understanding.Raw, ExtractionSuccess, nil)

	p.logger.Info("Extraction run completed",
		zap.String("profile_id", job.ProfileID),
		zap.Int("nodes", len(nodeIDs)),
		zap.Int("edges", len(edgeIDs)),
	)
}

// understand calls the capability with a bounded timeout and a small, fixed
// retry budget
func (p *Pipeline) understand(ctx context.Context, job ExtractionJob) (*Understanding, error) {
	var lastErr error
	for attempt := 0; attempt < maxUnderstandAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * understandBackoff
			p.logger.Debug("Retrying understand call",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, p.opts.UnderstandTimeout)
		understanding, err := p.understander.Understand(callCtx, job.TurnText, job.ContextWindow)
		cancel()
		if err == nil {
			return understanding, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *Pipeline) appendLog(ctx context.Context, job ExtractionJob, nodeIDs, edgeIDs []string, raw string, status ExtractionStatus, runErr error) {
	entry := ExtractionLogEntry{
		ID:             uuid.New().String(),
		ProfileID:      job.ProfileID,
		ConversationID: job.ConversationID,
		TurnText:       truncate(job.TurnText, turnTextLogLimit),
		RawOutput:      raw,
		NodeIDs:        nodeIDs,
		EdgeIDs:        edgeIDs,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}

	if err := p.store.AppendExtractionLog(ctx, entry); err != nil {
		p.logger.Error("Failed to append extraction log",
			zap.String("profile_id", job.ProfileID),
			zap.Error(err),
		)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit])
}
