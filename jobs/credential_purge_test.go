package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubPurger struct {
	deleted int64
	err     error
	calls   int
}

func (s *stubPurger) PurgeStale(ctx context.Context) (int64, error) {
	s.calls++
	return s.deleted, s.err
}

func TestCredentialPurgeJobHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	purger := &stubPurger{deleted: 4}
	job := NewCredentialPurgeJob(purger, logger)

	err := job.Handle(context.Background(), NewCredentialPurgeTask())
	require.NoError(t, err)
	require.Equal(t, 1, purger.calls)
}

func TestCredentialPurgeJobHandleError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	purger := &stubPurger{err: errors.New("db down")}
	job := NewCredentialPurgeJob(purger, logger)

	err := job.Handle(context.Background(), NewCredentialPurgeTask())
	require.Error(t, err)
}
