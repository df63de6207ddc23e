package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/hostel-market/internal/database"
	"github.com/benvon/hostel-market/internal/models"
	"github.com/benvon/hostel-market/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRetryDelay = 5 * time.Minute

// InteractionWriter persists interactions
type InteractionWriter interface {
	Create(ctx context.Context, interaction *models.Interaction) error
}

// InteractionRecorder consumes track_interaction jobs and writes them to the store
type InteractionRecorder struct {
	interactions InteractionWriter
	views        database.ViewCounter
	jobQueue     queue.JobQueue
	logger       *zap.Logger
	retryDelay   func(retry int) time.Duration
}

// NewInteractionRecorder creates a recorder. views may be nil to skip view counting;
// jobQueue may be nil, in which case failed jobs are requeued in place.
func NewInteractionRecorder(interactions InteractionWriter, views database.ViewCounter, jobQueue queue.JobQueue, logger *zap.Logger) *InteractionRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionRecorder{
		interactions: interactions,
		views:        views,
		jobQueue:     jobQueue,
		logger:       logger,
		retryDelay:   backoff,
	}
}

// backoff doubles from 5s per retry, capped at maxRetryDelay
func backoff(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<retry)*5*time.Second, maxRetryDelay)
}

// ProcessJob handles one queue message and acknowledges it.
// The returned error is for logging; the message has already been settled.
func (r *InteractionRecorder) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		r.nack(msg, false)
		return errors.New("message carries no job")
	}

	switch job.Type {
	case queue.JobTypeTrackInteraction:
		interaction, err := job.Interaction()
		if err != nil {
			// Malformed jobs never succeed; send straight to the DLQ
			r.nack(msg, false)
			return fmt.Errorf("invalid interaction job %s: %w", job.ID, err)
		}

		if err := r.record(ctx, interaction); err != nil {
			return r.handleJobError(ctx, msg, job, err)
		}

		if err := msg.Ack(); err != nil {
			return fmt.Errorf("failed to ack job: %w", err)
		}
		return nil

	default:
		r.nack(msg, false)
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (r *InteractionRecorder) record(ctx context.Context, interaction *models.Interaction) error {
	err := r.interactions.Create(ctx, interaction)
	if errors.Is(err, database.ErrAlreadyExists) {
		// Redelivery of a job that was stored before its ack was lost
		r.logger.Debug("interaction_already_recorded", zap.String("interaction_id", interaction.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}

	if interaction.Kind == models.InteractionView && r.views != nil {
		if err := r.views.IncrementViews(ctx, interaction.ProductID); err != nil {
			// The interaction is stored; a missed counter bump is not worth a retry
			r.logger.Warn("failed_to_increment_views",
				zap.String("product_id", interaction.ProductID.String()),
				zap.Error(err),
			)
		}
	}

	r.logger.Debug("interaction_recorded",
		zap.String("interaction_id", interaction.ID.String()),
		zap.String("kind", string(interaction.Kind)),
	)
	return nil
}

// handleJobError retries the job with backoff while budget remains, then dead-letters it
func (r *InteractionRecorder) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Error(err),
	}

	if !job.CanRetry() {
		r.logger.Error("interaction_job_exhausted_retries", fields...)
		r.nack(msg, false)
		return fmt.Errorf("job %s exhausted retries: %w", job.ID, err)
	}

	if r.jobQueue == nil {
		r.logger.Warn("interaction_job_requeued", fields...)
		r.nack(msg, true)
		return fmt.Errorf("job %s requeued: %w", job.ID, err)
	}

	delay := r.retryDelay(job.RetryCount)
	if enqueueErr := r.jobQueue.Enqueue(ctx, job.Retry(delay)); enqueueErr != nil {
		r.logger.Error("failed_to_reenqueue_interaction_job", append(fields, zap.NamedError("enqueue_error", enqueueErr))...)
		r.nack(msg, true)
		return fmt.Errorf("job %s failed and could not be re-enqueued: %w", job.ID, errors.Join(err, enqueueErr))
	}

	if ackErr := msg.Ack(); ackErr != nil {
		r.logger.Warn("failed_to_ack_retried_job", zap.String("job_id", job.ID.String()), zap.Error(ackErr))
	}
	r.logger.Info("interaction_job_scheduled_for_retry", append(fields, zap.Duration("delay", delay))...)
	return fmt.Errorf("job %s will be retried: %w", job.ID, err)
}

func (r *InteractionRecorder) nack(msg queue.MessageInterface, requeue bool) {
	if err := msg.Nack(requeue); err != nil {
		var jobID uuid.UUID
		if job := msg.GetJob(); job != nil {
			jobID = job.ID
		}
		r.logger.Warn("failed_to_nack_job", zap.String("job_id", jobID.String()), zap.Bool("requeue", requeue), zap.Error(err))
	}
}
