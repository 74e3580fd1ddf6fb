// Package metrics exposes the event store's component statistics as
// Prometheus gauges/counters over an HTTP /metrics endpoint, wired through
// fx with a lifecycle-managed Prometheus registry, promhttp handler, and
// background poller.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	appconfig "github.com/abdoElHodaky/eventstore-core/internal/config"
)

// Module provides the Prometheus registry, the event store Recorder, and
// the /metrics HTTP endpoint.
var Module = fx.Options(
	fx.Provide(
		NewPrometheusRegistry,
		NewRecorder,
		NewPoller,
	),
	fx.Invoke(registerMetricsServer, registerPoller),
)

// NewPrometheusRegistry creates a registry isolated from the global default,
// so tests can construct their own Recorder without colliding on metric names.
func NewPrometheusRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func registerMetricsServer(lc fx.Lifecycle, cfg *appconfig.Config, registry *prometheus.Registry, logger *zap.Logger) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting metrics server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping metrics server")
			return server.Shutdown(ctx)
		},
	})
}
