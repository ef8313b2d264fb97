package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bazaarlive/backend/pkg/queue"
)

// Presence is the slice of the presence tracker the worker needs.
type Presence interface {
	Purge(ctx context.Context, sessionID uuid.UUID) error
	SweepStale(ctx context.Context) error
}

// SessionFinalizer processes finalize jobs for ended sessions and runs the
// periodic stale-viewer sweep.
type SessionFinalizer struct {
	presence      Presence
	queue         *queue.Queue
	sweepInterval time.Duration
	logger        *zap.Logger
}

// NewSessionFinalizer creates a session finalize worker.
func NewSessionFinalizer(presence Presence, q *queue.Queue, sweepInterval time.Duration, logger *zap.Logger) *SessionFinalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &SessionFinalizer{presence: presence, queue: q, sweepInterval: sweepInterval, logger: logger}
}

// Process executes one finalize job: drop presence state so a reopened page
// cannot rejoin a dead room, and zero the mirrored viewer count.
func (f *SessionFinalizer) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeSessionFinalize {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.SessionFinalizePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := f.presence.Purge(ctx, payload.SessionID); err != nil {
		return fmt.Errorf("purge session %s: %w", payload.SessionID, err)
	}

	f.logger.Info("session finalized",
		zap.String("session_id", payload.SessionID.String()),
		zap.String("seller_id", payload.SellerID.String()))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (f *SessionFinalizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("finalize worker stopping")
			return
		default:
		}

		job, err := f.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		f.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := f.Process(ctx, job); err != nil {
			f.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := f.queue.Retry(ctx, job); reErr != nil {
				f.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}

// RunSweeper periodically releases viewers whose heartbeats have expired.
func (f *SessionFinalizer) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(f.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.logger.Info("presence sweeper stopping")
			return
		case <-ticker.C:
			if err := f.presence.SweepStale(ctx); err != nil {
				f.logger.Warn("stale sweep failed", zap.Error(err))
			}
		}
	}
}
