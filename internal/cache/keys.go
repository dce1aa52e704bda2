package cache

import (
	"strings"
	"time"

	"github.com/weiway668/my-stock-system-sub002/internal/config"
)

// Namespace is the Redis key prefix for backtest data.
const Namespace = "backtest"

const defaultMetricsTTL = 24 * time.Hour

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// RunMetricsKey holds the performance metrics of a stored run.
func RunMetricsKey(runID string) string {
	return formatKey("run", runID, "metrics")
}

// MetricsTTL converts the configured seconds, falling back to a day.
func MetricsTTL(cfg config.CacheConf) time.Duration {
	if cfg.MetricsTTL <= 0 {
		return defaultMetricsTTL
	}
	return time.Duration(cfg.MetricsTTL) * time.Second
}
