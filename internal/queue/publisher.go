package queue

import (
	"context"
	"fmt"

	"github.com/benvon/hostel-market/internal/models"
)

// InteractionPublisher hands interactions to the worker through the job queue
type InteractionPublisher struct {
	queue JobQueue
}

// NewInteractionPublisher creates a publisher over q
func NewInteractionPublisher(q JobQueue) *InteractionPublisher {
	return &InteractionPublisher{queue: q}
}

// Submit enqueues a track_interaction job for the interaction
func (p *InteractionPublisher) Submit(ctx context.Context, interaction *models.Interaction) error {
	if interaction == nil {
		return fmt.Errorf("interaction is nil")
	}
	job := NewTrackInteractionJob(interaction)
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue interaction %s: %w", interaction.ID, err)
	}
	return nil
}
