// Package monthlykey implements the rotating secondary credential: a short
// secret derived per principal per calendar month, verified with attempt
// counting and lockout.
package monthlykey

import "time"

// Period is the calendar rotation window. Months are resolved in UTC, the
// server reference time zone.
type Period struct {
	Year  int
	Month int
}

// CurrentPeriod returns the period containing now.
func CurrentPeriod(now time.Time) Period {
	now = now.UTC()
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// Equal reports whether two periods name the same calendar month.
func (p Period) Equal(o Period) bool {
	return p.Year == o.Year && p.Month == o.Month
}

// End returns the last instant of the period's month.
func (p Period) End() time.Time {
	return time.Date(p.Year, time.Month(p.Month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second)
}

// unlockSentinel is written into LastVerifiedAt by an administrative unlock.
// It is far enough in the past that no period comparison can read it as a
// current verification.
var unlockSentinel = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// AttemptRecord tracks verification attempts for one principal. No stored
// record means the principal has never attempted verification.
type AttemptRecord struct {
	UserID         int64
	Year           int
	Month          int
	Attempts       int
	LockedUntil    *time.Time
	LastVerifiedAt time.Time
	IsValid        bool

	// Version guards the read-modify-write of Attempts/LockedUntil against
	// concurrent submissions for the same principal.
	Version int64
}

// Period returns the record's calendar period.
func (r AttemptRecord) Period() Period {
	return Period{Year: r.Year, Month: r.Month}
}

// LockedAt reports whether a lockout is active at the given instant. Expiry
// is lazy: the stored timestamp is compared at read time, no timer clears it.
func (r AttemptRecord) LockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// VerifiedIn reports whether the record represents a successful verification
// for the given period. A success from a prior period reads as unverified;
// IsValid alone is never trusted across a period boundary.
func (r AttemptRecord) VerifiedIn(p Period) bool {
	return r.IsValid && r.Period().Equal(p)
}
