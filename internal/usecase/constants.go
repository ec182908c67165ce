package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// ReportCacheTTL is how long aggregated report payloads are cached
	ReportCacheTTL = 30 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// reportCacheKey builds the cache key for a report scope. The empty
// group is the company-wide report.
func reportCacheKey(groupID string) string {
	if groupID == "" {
		return "report:global"
	}
	return "report:group:" + groupID
}
