package domain

import (
	"context"
	"time"
)

// CacheRepository defines caching operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}

// EventPublisher defines domain event emission. Implementations deliver
// events to external subscribers (the notification collaborator); commands
// never fail because delivery failed.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data map[string]interface{})
}

// AuditLogger defines audit trail operations consumed by the domain services
type AuditLogger interface {
	LogVerificationReviewed(ctx context.Context, affiliateID uint, decision, note, nameCheck, actor string) error
	LogCreditApplied(ctx context.Context, affiliateID uint, entryID uint, amount int64, note, actor string) error
	LogPayoutRequested(ctx context.Context, affiliateID uint, requestID uint, amount int64) error
	LogPayoutSettled(ctx context.Context, affiliateID uint, requestID uint, amount int64, transactionRef, nameCheck, actor string) error
	LogPayoutRejected(ctx context.Context, affiliateID uint, requestID uint, reason, actor string) error
	LogAffiliateDeactivated(ctx context.Context, affiliateID uint, actor string) error
}
