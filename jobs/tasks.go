package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCredentialPurge is the task type for purging stale attempt records.
	TaskCredentialPurge = "credential:purge_stale"
)

// NewCredentialPurgeTask constructs an Asynq task for the stale-record purge.
func NewCredentialPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskCredentialPurge, nil)
}
