package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// CredentialPurger removes attempt records that can no longer influence
// verification. The current and previous periods are always retained.
type CredentialPurger interface {
	PurgeStale(ctx context.Context) (int64, error)
}

// CredentialPurgeJob drops attempt records from expired periods.
type CredentialPurgeJob struct {
	purger CredentialPurger
	logger *slog.Logger
}

// NewCredentialPurgeJob constructs the purge job.
func NewCredentialPurgeJob(purger CredentialPurger, logger *slog.Logger) *CredentialPurgeJob {
	return &CredentialPurgeJob{purger: purger, logger: logger}
}

// Handle processes TaskCredentialPurge tasks.
func (j *CredentialPurgeJob) Handle(ctx context.Context, _ *asynq.Task) error {
	deleted, err := j.purger.PurgeStale(ctx)
	if err != nil {
		j.logger.Error("credential purge", slog.Any("error", err))
		return err
	}
	j.logger.Info("credential purge complete", slog.Int64("deleted", deleted))
	return nil
}
