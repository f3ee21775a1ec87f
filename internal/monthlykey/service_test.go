package monthlykey

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	records    map[int64]*AttemptRecord
	principals []PrincipalRef

	// Error injection
	getError    error
	updateError error

	// conflictOnce makes the next Update fail with a version conflict while
	// simulating the concurrent writer's increment, like a lost CAS race.
	conflictOnce bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{records: make(map[int64]*AttemptRecord)}
}

func (m *mockRepository) Get(ctx context.Context, userID int64) (*AttemptRecord, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	rec, ok := m.records[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, rec *AttemptRecord) error {
	if _, ok := m.records[rec.UserID]; ok {
		return shared.ErrVersionConflict
	}
	rec.Version = 1
	cp := *rec
	m.records[rec.UserID] = &cp
	return nil
}

func (m *mockRepository) Update(ctx context.Context, rec *AttemptRecord) error {
	if m.updateError != nil {
		return m.updateError
	}
	stored, ok := m.records[rec.UserID]
	if !ok || stored.Version != rec.Version {
		return shared.ErrVersionConflict
	}
	if m.conflictOnce {
		m.conflictOnce = false
		stored.Attempts++
		stored.Version++
		return shared.ErrVersionConflict
	}
	rec.Version++
	cp := *rec
	m.records[rec.UserID] = &cp
	return nil
}

func (m *mockRepository) ListPrincipals(ctx context.Context) ([]PrincipalRef, error) {
	return m.principals, nil
}

func (m *mockRepository) ListRecords(ctx context.Context) ([]AttemptRecord, error) {
	out := make([]AttemptRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (m *mockRepository) DeleteOlderThan(ctx context.Context, year, month int) (int64, error) {
	var n int64
	for id, rec := range m.records {
		if rec.Year*100+rec.Month < year*100+month {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

// ============================================================================
// HELPERS
// ============================================================================

const testSalt = "s"

func newTestService(repo Repository, at time.Time) *Service {
	svc := NewService(repo, Config{Salt: testSalt, MaxAttempts: 3, LockDuration: 30 * time.Minute}, nil, nil, nil)
	svc.now = func() time.Time { return at }
	return svc
}

func correctKey(userID int64, at time.Time) string {
	p := CurrentPeriod(at)
	return Derive(strconv.FormatInt(userID, 10), p.Year, p.Month, testSalt)
}

var may15 = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

// ============================================================================
// VERIFY
// ============================================================================

func TestVerifySuccess(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	res, err := svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC), res.ValidUntil)

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, st.Verified)
	assert.Equal(t, 0, st.Attempts)
	assert.False(t, st.Locked)
}

func TestVerifyAcceptsLowercaseWithWhitespace(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	submitted := "  " + strings.ToLower(correctKey(1, may15)) + "  "
	_, err := svc.Verify(context.Background(), 1, submitted)
	require.NoError(t, err)
}

func TestVerifyWrongKeyCountsAttempts(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	_, err := svc.Verify(context.Background(), 1, "WRONGKEY")
	var invalid *InvalidKeyError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.AttemptsRemaining)
	assert.True(t, errors.Is(err, shared.ErrKeyInvalid))

	_, err = svc.Verify(context.Background(), 1, "WRONGKEY")
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.AttemptsRemaining)
}

func TestThirdWrongKeyLocks(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	for i := 0; i < 2; i++ {
		_, err := svc.Verify(context.Background(), 1, "WRONGKEY")
		require.Error(t, err)
	}
	_, err := svc.Verify(context.Background(), 1, "WRONGKEY")
	var invalid *InvalidKeyError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, invalid.Locked)
	assert.Equal(t, may15.Add(30*time.Minute), invalid.LockedUntil)
	assert.True(t, errors.Is(err, shared.ErrKeyLocked))

	// Fourth submission inside the window is refused without incrementing.
	_, err = svc.Verify(context.Background(), 1, "WRONGKEY")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 3, repo.records[1].Attempts)

	// Even the correct key is refused while locked.
	_, err = svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.ErrorAs(t, err, &locked)
}

func TestLockExpiresLazily(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	for i := 0; i < 3; i++ {
		_, _ = svc.Verify(context.Background(), 1, "WRONGKEY")
	}

	// At the expiry instant the lock reads as cleared, no admin action needed.
	later := may15.Add(30 * time.Minute)
	svc.now = func() time.Time { return later }

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Locked)

	_, err = svc.Verify(context.Background(), 1, correctKey(1, later))
	require.NoError(t, err)
}

func TestExpiredLockResetsAttemptCount(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	for i := 0; i < 3; i++ {
		_, _ = svc.Verify(context.Background(), 1, "WRONGKEY")
	}
	later := may15.Add(31 * time.Minute)
	svc.now = func() time.Time { return later }

	_, err := svc.Verify(context.Background(), 1, "WRONGKEY")
	var invalid *InvalidKeyError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 2, invalid.AttemptsRemaining, "attempts restart after natural expiry")
}

func TestStatusAfterExpiredLockReportsAttemptsReset(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	for i := 0; i < 3; i++ {
		_, _ = svc.Verify(context.Background(), 1, "WRONGKEY")
	}
	later := may15.Add(31 * time.Minute)
	svc.now = func() time.Time { return later }

	// No verification has run since the lock lapsed; status must already
	// read as unlocked with attempts restarted.
	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.Nil(t, st.LockedUntil)
	assert.Equal(t, 0, st.Attempts)
}

func TestVerificationDoesNotCarryAcrossPeriods(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	_, err := svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.NoError(t, err)

	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return june }

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Verified, "a May success must read unverified in June")

	// The May key is rejected in June.
	_, err = svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.Error(t, err)

	// The June key succeeds.
	_, err = svc.Verify(context.Background(), 1, correctKey(1, june))
	require.NoError(t, err)
}

func TestConcurrentWrongKeysLockExactlyOnce(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	// Two wrong attempts already recorded; the next write loses its CAS to a
	// simulated concurrent wrong submission that raises attempts to 3.
	for i := 0; i < 2; i++ {
		_, _ = svc.Verify(context.Background(), 1, "WRONGKEY")
	}
	repo.conflictOnce = true

	_, err := svc.Verify(context.Background(), 1, "WRONGKEY")
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrKeyLocked), "retry after lost CAS must observe the lock threshold")
	require.NotNil(t, repo.records[1].LockedUntil)
}

func TestVerifyPropagatesStorageErrors(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)
	repo.getError = errors.New("connection refused")

	_, err := svc.Verify(context.Background(), 1, "ANYKEY")
	require.Error(t, err)
	assert.False(t, errors.Is(err, shared.ErrKeyInvalid), "transient failures are not credential decisions")
}

// ============================================================================
// STATUS
// ============================================================================

func TestStatusNeverAttempted(t *testing.T) {
	svc := newTestService(newMockRepository(), may15)
	st, err := svc.Status(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, Status{Verified: false, Attempts: 0, MaxAttempts: 3, Locked: false}, st)
}

// ============================================================================
// ADMIN UNLOCK
// ============================================================================

func TestAdminUnlockClearsLock(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	for i := 0; i < 3; i++ {
		_, _ = svc.Verify(context.Background(), 1, "WRONGKEY")
	}
	require.NoError(t, svc.AdminUnlock(context.Background(), 99, 1))

	rec := repo.records[1]
	assert.Equal(t, 0, rec.Attempts)
	assert.Nil(t, rec.LockedUntil)
	assert.False(t, rec.IsValid)
	assert.Equal(t, unlockSentinel, rec.LastVerifiedAt)

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Verified)
	assert.False(t, st.Locked)
}

func TestAdminUnlockInvalidatesCurrentVerification(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	_, err := svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.NoError(t, err)
	require.NoError(t, svc.AdminUnlock(context.Background(), 99, 1))

	st, err := svc.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, st.Verified, "unlock must leave the principal unverified")
}

func TestAdminUnlockNoRecordIsNoop(t *testing.T) {
	repo := newMockRepository()
	svc := newTestService(repo, may15)

	require.NoError(t, svc.AdminUnlock(context.Background(), 99, 42))

	st, err := svc.Status(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, st.Verified)
}

// ============================================================================
// OVERVIEW / PURGE
// ============================================================================

func TestOverviewListsAllPrincipals(t *testing.T) {
	repo := newMockRepository()
	repo.principals = []PrincipalRef{{ID: 1, Username: "alice"}, {ID: 2, Username: "bob"}}
	svc := newTestService(repo, may15)

	_, err := svc.Verify(context.Background(), 1, correctKey(1, may15))
	require.NoError(t, err)

	rows, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, correctKey(1, may15), rows[0].CurrentKey)
	assert.True(t, rows[0].Verified)
	assert.Equal(t, correctKey(2, may15), rows[1].CurrentKey)
	assert.False(t, rows[1].Verified, "never-attempted principal shows unverified")
}

func TestPurgeStaleKeepsCurrentAndPrevious(t *testing.T) {
	repo := newMockRepository()
	repo.records[1] = &AttemptRecord{UserID: 1, Year: 2024, Month: 5, Version: 1}
	repo.records[2] = &AttemptRecord{UserID: 2, Year: 2024, Month: 4, Version: 1}
	repo.records[3] = &AttemptRecord{UserID: 3, Year: 2024, Month: 2, Version: 1}
	svc := newTestService(repo, may15)

	n, err := svc.PurgeStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, repo.records, int64(1))
	assert.Contains(t, repo.records, int64(2))
	assert.NotContains(t, repo.records, int64(3))
}
