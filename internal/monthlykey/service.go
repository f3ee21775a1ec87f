package monthlykey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// Config carries the externally configured verification policy. Salt is a
// server-side secret and must never appear in logs or responses.
type Config struct {
	Salt         string
	MaxAttempts  int
	LockDuration time.Duration
}

// Defaults applied when a zero value slips through configuration.
const (
	DefaultMaxAttempts  = 3
	DefaultLockDuration = 30 * time.Minute
)

// casRetries bounds the retry loop around the version-guarded update. Two
// simultaneous wrong submissions cannot both observe attempts one short of
// the limit: the loser rereads and sees the winner's increment.
const casRetries = 3

// Metrics receives credential verification outcomes. Implemented by
// observability.Metrics; a nil Metrics disables reporting.
type Metrics interface {
	CredentialVerification(outcome string)
	CredentialLockout()
}

// InvalidKeyError reports a failed verification and what the caller may
// still do about it.
type InvalidKeyError struct {
	AttemptsRemaining int
	Locked            bool
	LockedUntil       time.Time
}

func (e *InvalidKeyError) Error() string {
	if e.Locked {
		return fmt.Sprintf("monthly key invalid, locked until %s", e.LockedUntil.Format(time.RFC3339))
	}
	return fmt.Sprintf("monthly key invalid, %d attempts remaining", e.AttemptsRemaining)
}

// Unwrap ties the error into the shared taxonomy.
func (e *InvalidKeyError) Unwrap() error {
	if e.Locked {
		return shared.ErrKeyLocked
	}
	return shared.ErrKeyInvalid
}

// LockedError reports an active lockout. The attempt is refused before any
// comparison happens and nothing is recorded.
type LockedError struct {
	LockedUntil time.Time
	Remaining   time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("monthly key locked for another %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return shared.ErrKeyLocked }

// Status describes the caller's verification state for the current period.
type Status struct {
	Verified    bool       `json:"verified"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"lockedUntil"`
}

// VerifyResult is returned on a successful verification.
type VerifyResult struct {
	ValidUntil time.Time `json:"validUntil"`
}

// OverviewRow is one principal's state in the operator overview.
type OverviewRow struct {
	PrincipalID int64      `json:"principalId"`
	Username    string     `json:"username"`
	CurrentKey  string     `json:"currentKey"`
	Verified    bool       `json:"verified"`
	Attempts    int        `json:"attempts"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"lockedUntil"`
}

// Service implements monthly key verification with attempt lockout.
type Service struct {
	repo    Repository
	cfg     Config
	logger  *slog.Logger
	audit   *shared.AuditLogger
	metrics Metrics
	now     func() time.Time
}

// NewService constructs a Service. audit and metrics may be nil.
func NewService(repo Repository, cfg Config, logger *slog.Logger, audit *shared.AuditLogger, metrics Metrics) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = DefaultLockDuration
	}
	return &Service{
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		audit:   audit,
		metrics: metrics,
		now:     time.Now,
	}
}

// Status reports the verification state of a principal for the current
// period. A success recorded in a prior period reads as unverified.
func (s *Service) Status(ctx context.Context, userID int64) (Status, error) {
	now := s.now().UTC()
	period := CurrentPeriod(now)
	st := Status{MaxAttempts: s.cfg.MaxAttempts}

	rec, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return st, nil
		}
		return Status{}, err
	}

	st.Verified = rec.VerifiedIn(period)
	if rec.LockedAt(now) {
		st.Locked = true
		st.LockedUntil = rec.LockedUntil
		st.Attempts = rec.Attempts
		return st, nil
	}
	// An expired lock reads as cleared with attempts restarted, the same
	// reset the next verification applies.
	if rec.LockedUntil == nil && rec.Period().Equal(period) {
		st.Attempts = rec.Attempts
	}
	return st, nil
}

// Verify checks a submitted key against the derived value for the current
// period and records the outcome. Concurrent submissions for the same
// principal are serialized through the repository's version guard.
func (s *Service) Verify(ctx context.Context, userID int64, key string) (VerifyResult, error) {
	var lastErr error
	for i := 0; i < casRetries; i++ {
		res, err := s.verifyOnce(ctx, userID, key)
		if errors.Is(err, shared.ErrVersionConflict) {
			lastErr = err
			continue
		}
		return res, err
	}
	return VerifyResult{}, fmt.Errorf("monthlykey: verify contention for user %d: %w", userID, lastErr)
}

func (s *Service) verifyOnce(ctx context.Context, userID int64, key string) (VerifyResult, error) {
	now := s.now().UTC()
	period := CurrentPeriod(now)

	rec, fresh, err := s.loadOrInit(ctx, userID, period)
	if err != nil {
		return VerifyResult{}, err
	}

	// Active lock: refuse before comparing, change nothing.
	if rec.LockedAt(now) {
		s.count("locked")
		return VerifyResult{}, &LockedError{
			LockedUntil: *rec.LockedUntil,
			Remaining:   rec.LockedUntil.Sub(now),
		}
	}

	// An expired lock clears naturally; attempts restart from zero.
	if rec.LockedUntil != nil {
		rec.Attempts = 0
		rec.LockedUntil = nil
	}

	// Attempts count per period; a record carried over from a prior month
	// starts the new period clean.
	if !rec.Period().Equal(period) {
		rec.Year, rec.Month = period.Year, period.Month
		rec.Attempts = 0
		rec.IsValid = false
	}

	expected := Derive(strconv.FormatInt(userID, 10), period.Year, period.Month, s.cfg.Salt)
	if NormalizeKey(key) != expected {
		return VerifyResult{}, s.recordFailure(ctx, rec, fresh, now)
	}

	rec.Attempts = 0
	rec.LockedUntil = nil
	rec.LastVerifiedAt = now
	rec.IsValid = true
	if err := s.persist(ctx, rec, fresh); err != nil {
		return VerifyResult{}, err
	}
	s.count("success")
	s.auditRecord(ctx, userID, shared.AuditKeyVerified, map[string]any{
		"year": period.Year, "month": period.Month,
	})
	return VerifyResult{ValidUntil: period.End()}, nil
}

func (s *Service) recordFailure(ctx context.Context, rec *AttemptRecord, fresh bool, now time.Time) error {
	rec.Attempts++
	rec.IsValid = false

	locked := rec.Attempts >= s.cfg.MaxAttempts
	if locked {
		until := now.Add(s.cfg.LockDuration)
		rec.LockedUntil = &until
	}
	if err := s.persist(ctx, rec, fresh); err != nil {
		return err
	}

	if locked {
		s.count("failure")
		if s.metrics != nil {
			s.metrics.CredentialLockout()
		}
		s.auditRecord(ctx, rec.UserID, shared.AuditKeyLocked, map[string]any{
			"attempts": rec.Attempts, "lockedUntil": rec.LockedUntil,
		})
		if s.logger != nil {
			s.logger.Warn("monthly key lockout",
				slog.Int64("user_id", rec.UserID),
				slog.Int("attempts", rec.Attempts),
				slog.Time("locked_until", *rec.LockedUntil))
		}
		return &InvalidKeyError{Locked: true, LockedUntil: *rec.LockedUntil}
	}

	s.count("failure")
	s.auditRecord(ctx, rec.UserID, shared.AuditKeyFailed, map[string]any{
		"attempts": rec.Attempts,
	})
	return &InvalidKeyError{AttemptsRemaining: s.cfg.MaxAttempts - rec.Attempts}
}

// AdminUnlock force-resets a principal's lockout state. It succeeds as a
// no-op when the principal has no record and never counts as an attempt. The
// sentinel timestamp guarantees the next status check reads unverified.
func (s *Service) AdminUnlock(ctx context.Context, actorID, targetID int64) error {
	var lastErr error
	for i := 0; i < casRetries; i++ {
		rec, err := s.repo.Get(ctx, targetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}
		rec.Attempts = 0
		rec.LockedUntil = nil
		rec.IsValid = false
		rec.LastVerifiedAt = unlockSentinel
		if err := s.repo.Update(ctx, rec); err != nil {
			if errors.Is(err, shared.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		s.auditEntry(ctx, actorID, targetID, shared.AuditKeyUnlocked, nil)
		return nil
	}
	return fmt.Errorf("monthlykey: unlock contention for user %d: %w", targetID, lastErr)
}

// Overview assembles the operator view: every known principal with their
// current-period derived key and verification state.
func (s *Service) Overview(ctx context.Context) ([]OverviewRow, error) {
	now := s.now().UTC()
	period := CurrentPeriod(now)

	principals, err := s.repo.ListPrincipals(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[int64]AttemptRecord, len(records))
	for _, rec := range records {
		byUser[rec.UserID] = rec
	}

	rows := make([]OverviewRow, 0, len(principals))
	for _, p := range principals {
		row := OverviewRow{
			PrincipalID: p.ID,
			Username:    p.Username,
			CurrentKey:  Derive(strconv.FormatInt(p.ID, 10), period.Year, period.Month, s.cfg.Salt),
		}
		if rec, ok := byUser[p.ID]; ok {
			row.Verified = rec.VerifiedIn(period)
			row.Attempts = rec.Attempts
			if rec.LockedAt(now) {
				row.Locked = true
				row.LockedUntil = rec.LockedUntil
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PurgeStale removes attempt records older than the previous period. Lock
// expiry stays lazy; this is storage hygiene only.
func (s *Service) PurgeStale(ctx context.Context) (int64, error) {
	period := CurrentPeriod(s.now())
	prev := Period{Year: period.Year, Month: period.Month - 1}
	if prev.Month == 0 {
		prev = Period{Year: period.Year - 1, Month: 12}
	}
	return s.repo.DeleteOlderThan(ctx, prev.Year, prev.Month)
}

func (s *Service) loadOrInit(ctx context.Context, userID int64, period Period) (*AttemptRecord, bool, error) {
	rec, err := s.repo.Get(ctx, userID)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}
	return &AttemptRecord{
		UserID:         userID,
		Year:           period.Year,
		Month:          period.Month,
		LastVerifiedAt: unlockSentinel,
	}, true, nil
}

func (s *Service) persist(ctx context.Context, rec *AttemptRecord, fresh bool) error {
	if fresh {
		return s.repo.Create(ctx, rec)
	}
	return s.repo.Update(ctx, rec)
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.CredentialVerification(outcome)
	}
}

func (s *Service) auditRecord(ctx context.Context, actorID int64, action string, meta map[string]any) {
	s.auditEntry(ctx, actorID, actorID, action, meta)
}

func (s *Service) auditEntry(ctx context.Context, actorID, subjectID int64, action string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "monthly_key",
		EntityID: strconv.FormatInt(subjectID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}
