package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

// PushMetrics pushes the default registry to a pushgateway at url every period
// until the context is canceled. Transient gateway failures are retried.
func PushMetrics(ctx context.Context, logger *zap.Logger, url string, period time.Duration, instance string) {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	client.RetryWaitMax = period / 4
	pusher := push.New(url, "vdfcache").
		Client(client.StandardClient()).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("instance", instance)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pusher.PushContext(ctx); err != nil {
				logger.Warn("failed to push metrics", zap.String("url", url), zap.Error(err))
			}
		}
	}
}
