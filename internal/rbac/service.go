package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/SiroccoBreeze/pony-knows-sub001/internal/perm"
	"github.com/SiroccoBreeze/pony-knows-sub001/internal/shared"
)

// cacheTTL bounds staleness of the effective-permission cache. Role edits
// call Invalidate, so the TTL only covers writers that bypass this service.
const cacheTTL = 5 * time.Minute

// AuditRecorder captures cache invalidations in the audit trail.
// *shared.AuditLogger satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service resolves effective permissions for principals.
type Service struct {
	repo   Repository
	cache  *redis.Client
	logger *slog.Logger
	audit  AuditRecorder
	group  singleflight.Group
}

// NewService constructs a Service. cache and audit may be nil; without a
// cache every resolution hits storage.
func NewService(repo Repository, cache *redis.Client, logger *slog.Logger, audit AuditRecorder) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, audit: audit}
}

// EffectivePermissions returns the aggregate permission set for a user:
// every assigned role's raw permission field normalized and unioned.
// Concurrent resolutions for the same user collapse into one storage
// round-trip; results are cached in redis. Storage failures propagate, they
// are never papered over with a stale grant.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (perm.Set, error) {
	if tokens, ok := s.cacheGet(ctx, userID); ok {
		return perm.FromStrings(tokens), nil
	}

	v, err, _ := s.group.Do(cacheKey(userID), func() (any, error) {
		roles, err := s.repo.RolesForUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("rbac: roles for user %d: %w", userID, err)
		}
		grants := make([]perm.RoleGrant, len(roles))
		for i, role := range roles {
			grants[i] = perm.RoleGrant{Name: role.Name, Permissions: role.Permissions}
		}
		if malformed := perm.Malformed(grants); len(malformed) > 0 && s.logger != nil {
			// Malformed role data contributes nothing; operators need to know,
			// end users never see it.
			s.logger.Warn("malformed role permission data", slog.Any("roles", malformed))
		}
		set := perm.Aggregate(grants)
		s.cacheSet(ctx, userID, set.Tokens())
		return set.Tokens(), nil
	})
	if err != nil {
		return nil, err
	}
	return perm.FromStrings(v.([]string)), nil
}

// CheckSync compares a client-cached permission view against the
// authoritative set. The cached view is diagnostic input only and never
// feeds an authorization decision.
func (s *Service) CheckSync(ctx context.Context, userID int64, cached []string) (SyncReport, error) {
	authoritative, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return SyncReport{}, err
	}
	return SyncReport{
		Resync:      perm.NeedsResync(perm.FromStrings(cached), authoritative),
		Permissions: authoritative.Tokens(),
	}, nil
}

// Invalidate drops the cached permission set for a user. The external role
// manager calls this after editing roles or assignments.
func (s *Service) Invalidate(ctx context.Context, userID int64) error {
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(userID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("rbac: invalidate user %d: %w", userID, err)
		}
	}
	if s.audit != nil {
		entry := shared.AuditLog{
			Action:   shared.AuditPermsFlushed,
			Entity:   "user_permissions",
			EntityID: strconv.FormatInt(userID, 10),
		}
		if actorID, ok := shared.CurrentUserID(ctx); ok {
			entry.ActorID = actorID
		}
		if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
			s.logger.Warn("audit cache flush", slog.Any("error", err))
		}
	}
	return nil
}

func (s *Service) cacheGet(ctx context.Context, userID int64) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, cacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("permission cache read", slog.Any("error", err))
		}
		return nil, false
	}
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, false
	}
	return tokens, true
}

func (s *Service) cacheSet(ctx context.Context, userID int64, tokens []string) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(userID), data, cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Warn("permission cache write", slog.Any("error", err))
	}
}

func cacheKey(userID int64) string {
	return "rbac:perms:" + strconv.FormatInt(userID, 10)
}
