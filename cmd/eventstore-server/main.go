// Command eventstore-server runs the event store's background components:
// the Performance Optimizer's maintenance loop, the Dead-Letter Queue retry
// driver, and the Prometheus metrics endpoint. There is no client-facing API
// surface here; callers of the Event Log and Resilient Wrapper are expected
// to embed this module in their own process, grounded on
// cmd/marketdata/main.go's fx.New/fx.Supply(logger)/app.Run() shape.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	eventstorefx "github.com/abdoElHodaky/eventstore-core/internal/architecture/fx/eventstore"
	"github.com/abdoElHodaky/eventstore-core/internal/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	app := fx.New(
		fx.Supply(logger),
		eventstorefx.Module,
		metrics.Module,
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		logger.Fatal("failed to start event store", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down event store")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		logger.Error("failed to stop event store cleanly", zap.Error(err))
	}
}
