package queue

import (
	"fmt"
	"time"

	"github.com/benvon/hostel-market/internal/models"
	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeTrackInteraction persists one user interaction
	JobTypeTrackInteraction JobType = "track_interaction"

	// DefaultMaxRetries is the retry budget of a new job
	DefaultMaxRetries = 3
)

// Job represents a job in the queue
type Job struct {
	ID            uuid.UUID  `json:"id"`
	Type          JobType    `json:"type"`
	UserID        uuid.UUID  `json:"user_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	InteractionID uuid.UUID  `json:"interaction_id"`
	Kind          string     `json:"kind"`
	OccurredAt    time.Time  `json:"occurred_at"`
	NotBefore     *time.Time `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter      *time.Time `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt     time.Time  `json:"created_at"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
}

// NewTrackInteractionJob wraps an interaction in a job
func NewTrackInteractionJob(interaction *models.Interaction) *Job {
	occurred := interaction.CreatedAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return &Job{
		ID:            uuid.New(),
		Type:          JobTypeTrackInteraction,
		UserID:        interaction.UserID,
		ProductID:     interaction.ProductID,
		InteractionID: interaction.ID,
		Kind:          string(interaction.Kind),
		OccurredAt:    occurred,
		CreatedAt:     time.Now(),
		MaxRetries:    DefaultMaxRetries,
	}
}

// Interaction rebuilds the interaction carried by a track_interaction job
func (j *Job) Interaction() (*models.Interaction, error) {
	if j.Type != JobTypeTrackInteraction {
		return nil, fmt.Errorf("job %s is %s, not %s", j.ID, j.Type, JobTypeTrackInteraction)
	}
	kind, err := models.ParseInteractionKind(j.Kind)
	if err != nil {
		return nil, err
	}
	if j.UserID == uuid.Nil || j.ProductID == uuid.Nil {
		return nil, fmt.Errorf("job %s is missing user or product", j.ID)
	}

	id := j.InteractionID
	if id == uuid.Nil {
		id = j.ID
	}
	return &models.Interaction{
		ID:        id,
		UserID:    j.UserID,
		ProductID: j.ProductID,
		Kind:      kind,
		CreatedAt: j.OccurredAt,
	}, nil
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry returns a copy of the job scheduled after delay with the retry count incremented
func (j *Job) Retry(delay time.Duration) *Job {
	next := *j
	next.RetryCount++
	if delay > 0 {
		notBefore := time.Now().Add(delay)
		next.NotBefore = &notBefore
	}
	return &next
}
