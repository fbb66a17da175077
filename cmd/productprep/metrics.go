package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"productprep/internal/metrics"
	"productprep/internal/metrics/datadog"
	"productprep/internal/metrics/prompush"
)

const defaultPushGatewayURL = "http://localhost:9091"

// resolveMetricsBackend picks the backend name: flag, then env
// METRICS_BACKEND, then "none".
func (a *app) resolveMetricsBackend() string {
	if a.metricsBackend != "" {
		return a.metricsBackend
	}
	if v := a.getenv("METRICS_BACKEND"); v != "" {
		return v
	}
	return "none"
}

func (a *app) resolvePushGatewayURL() string {
	if a.pushGatewayURL != "" {
		return a.pushGatewayURL
	}
	if v := a.getenv("PUSHGATEWAY_URL"); v != "" {
		return v
	}
	return defaultPushGatewayURL
}

// setupMetrics installs the selected metrics backend and returns the
// function that flushes and detaches it. A backend that fails to start is
// logged and metrics stay disabled.
func (a *app) setupMetrics(ctx context.Context, job string) func() {
	name := a.resolveMetricsBackend()
	log := a.logger.With(zap.String("backend", name), zap.String("job", job))

	switch name {
	case "pushgateway":
		url := a.resolvePushGatewayURL()
		b, err := prompush.NewBackend(job, url)
		if err != nil {
			log.Warn("metrics: push backend init failed; using nop", zap.Error(err))
			return func() {}
		}
		log.Info("metrics enabled", zap.String("url", url))
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				log.Warn("metrics: flush failed", zap.Error(err))
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		tags := datadog.ParseTagsCSV(a.getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Warn("metrics: datadog backend init failed; using nop", zap.Error(err))
			return func() {}
		}
		log.Info("metrics enabled", zap.Strings("tags", tags))
		metrics.SetBackend(b)
		// Close stops the flush loop and submits what is still buffered.
		return func() {
			if err := b.Close(); err != nil {
				log.Warn("metrics: datadog close failed", zap.Error(err))
			}
			metrics.SetBackend(nil)
		}

	case "none":
		log.Debug("metrics disabled")
	default:
		log.Warn("metrics: unknown backend; metrics disabled")
	}
	return func() {}
}
