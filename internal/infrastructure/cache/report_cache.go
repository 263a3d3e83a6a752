package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veloxpos/audit-engine/internal/domain/audit"
	"github.com/veloxpos/audit-engine/internal/domain/errors"
	"github.com/veloxpos/audit-engine/internal/infrastructure/config"
)

// reportKeyPrefix namespaces report entries in Redis.
const reportKeyPrefix = "posaudit:report:"

// DefaultReportTTL bounds how long an identical period can be served
// from cache before the detector runs again.
const DefaultReportTTL = 15 * time.Minute

// ReportCache is a Redis-backed cache for generated security reports.
// It degrades gracefully; callers treat every miss and error the same.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewReportCache wraps a Redis client. A non-positive TTL falls back to
// DefaultReportTTL.
func NewReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCache {
	if ttl <= 0 {
		ttl = DefaultReportTTL
	}
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.NewUnavailableError("redis", "ping failed").WithCause(err)
	}
	return client, nil
}

// GetReport returns the cached report for the exact period, or nil on a
// miss.
func (c *ReportCache) GetReport(ctx context.Context, start, end time.Time) (*audit.SecurityReport, error) {
	data, err := c.client.Get(ctx, reportKey(start, end)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewUnavailableError("report cache", "reading cached report").WithCause(err)
	}

	var report audit.SecurityReport
	if err := json.Unmarshal(data, &report); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.logger.Warn("discarding undecodable cached report", zap.Error(err))
		c.client.Del(ctx, reportKey(start, end))
		return nil, nil
	}

	return &report, nil
}

// SetReport stores a report under its period key.
func (c *ReportCache) SetReport(ctx context.Context, report *audit.SecurityReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return errors.NewInternalError("failed to marshal report").WithCause(err)
	}

	key := reportKey(report.PeriodStart, report.PeriodEnd)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return errors.NewUnavailableError("report cache", "writing cached report").WithCause(err)
	}
	return nil
}

func reportKey(start, end time.Time) string {
	return fmt.Sprintf("%s%d:%d", reportKeyPrefix, start.UTC().Unix(), end.UTC().Unix())
}
