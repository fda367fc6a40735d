// Package entitlement decides whether a generation request may proceed and
// maintains the free-tier usage counters behind that decision.
package entitlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nuggs-ai/nuggs/internal/ports/outbound"
	"go.uber.org/zap"
)

// Identity describes the caller of a generation request: an authenticated
// user id, or a client IP for anonymous callers. Both may be absent.
type Identity struct {
	UserID *uuid.UUID
	IP     string
}

// IsAnonymous reports whether the request has no authenticated user
func (i Identity) IsAnonymous() bool {
	return i.UserID == nil
}

// Decision is the outcome of an entitlement check. Degraded marks decisions
// where metering could not be read or written; policy for that case lives in
// one place (here: allow), not scattered across callers.
type Decision struct {
	Allowed  bool
	Degraded bool

	// Limit and Remaining describe the free-tier window that produced the
	// decision. Remaining is -1 when usage is not metered (premium,
	// missing IP, degraded).
	Limit     int
	Remaining int

	// Message is the user-facing explanation on denial
	Message string

	// HistoryID references the audit row appended for an allowed attempt,
	// uuid.Nil when the append failed or was skipped
	HistoryID uuid.UUID
}

// Config holds the free-tier thresholds
type Config struct {
	FreeTries          int
	AnonymousFreeTries int
}

// Service evaluates entitlement for generation requests
type Service struct {
	profiles outbound.ProfileRepository
	usage    outbound.UsageRepository
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new entitlement service
func NewService(
	profiles outbound.ProfileRepository,
	usage outbound.UsageRepository,
	cfg Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		profiles: profiles,
		usage:    usage,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Check evaluates one generation attempt. Metering is best-effort by
// contract: any storage failure on this path degrades to "allow, do not
// meter" so quota bookkeeping is never the reason a user cannot generate.
func (s *Service) Check(ctx context.Context, identity Identity, promptText string) Decision {
	var decision Decision
	if identity.IsAnonymous() {
		decision = s.checkAnonymous(ctx, identity.IP)
	} else {
		decision = s.checkAuthenticated(ctx, *identity.UserID)
	}

	if decision.Allowed {
		decision.HistoryID = s.appendHistory(ctx, identity, promptText)
	}

	return decision
}

func (s *Service) checkAuthenticated(ctx context.Context, userID uuid.UUID) Decision {
	now := s.now()

	p, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		// Fail-open: a profile we cannot read must not block generation.
		s.logger.Warn("entitlement check degraded, allowing unmetered",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return Decision{Allowed: true, Degraded: true, Remaining: -1}
	}

	if p.HasActivePremium(now) {
		return Decision{Allowed: true, Remaining: -1}
	}

	observed := p.DailyUsageCount()
	if !p.RecordUse(now, s.cfg.FreeTries) {
		return Decision{
			Allowed:   false,
			Limit:     s.cfg.FreeTries,
			Remaining: 0,
			Message: fmt.Sprintf(
				"You have reached your daily limit of %d free recipe generations. Upgrade to premium for unlimited generations.",
				s.cfg.FreeTries,
			),
		}
	}

	if err := s.profiles.UpdateUsage(ctx, userID, observed, p.DailyUsageCount(), p.DailyUsageResetAt()); err != nil {
		s.logger.Warn("failed to persist usage counter",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return Decision{Allowed: true, Degraded: true, Remaining: -1}
	}

	return Decision{
		Allowed:   true,
		Limit:     s.cfg.FreeTries,
		Remaining: p.RemainingUses(now, s.cfg.FreeTries),
	}
}

func (s *Service) checkAnonymous(ctx context.Context, ip string) Decision {
	if ip == "" {
		// No identity to meter against
		return Decision{Allowed: true, Remaining: -1}
	}

	count, err := s.usage.CountAnonymousSince(ctx, ip, startOfDay(s.now()))
	if err != nil {
		// Includes "table does not exist" on a misconfigured store: allow
		// and make the misconfiguration visible in logs.
		s.logger.Warn("anonymous usage count failed, allowing unmetered",
			zap.String("ip", ip),
			zap.Error(err),
		)
		return Decision{Allowed: true, Degraded: true, Remaining: -1}
	}

	if count >= int64(s.cfg.AnonymousFreeTries) {
		return Decision{
			Allowed:   false,
			Limit:     s.cfg.AnonymousFreeTries,
			Remaining: 0,
			Message: fmt.Sprintf(
				"You have reached the daily limit of %d free generations for guests. Create a free account to keep cooking.",
				s.cfg.AnonymousFreeTries,
			),
		}
	}

	if err := s.usage.InsertAnonymous(ctx, ip); err != nil {
		s.logger.Warn("failed to record anonymous usage",
			zap.String("ip", ip),
			zap.Error(err),
		)
		return Decision{Allowed: true, Degraded: true, Remaining: -1}
	}

	return Decision{
		Allowed:   true,
		Limit:     s.cfg.AnonymousFreeTries,
		Remaining: s.cfg.AnonymousFreeTries - int(count) - 1,
	}
}

func (s *Service) appendHistory(ctx context.Context, identity Identity, promptText string) uuid.UUID {
	entry := outbound.UsageHistoryEntry{
		UserID:      identity.UserID,
		PromptText:  promptText,
		IsAnonymous: identity.IsAnonymous(),
	}

	id, err := s.usage.AppendHistory(ctx, entry)
	if err != nil {
		s.logger.Warn("failed to append usage history", zap.Error(err))
		return uuid.Nil
	}

	return id
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
