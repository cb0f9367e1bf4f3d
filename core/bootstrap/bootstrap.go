// Package bootstrap initialises process-wide infrastructure shared by every
// entry point: logging, error reporting and the metrics endpoint.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	coreconfig "github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/errreport"
	"github.com/m3rciful/discordbot/core/logger"
	"github.com/m3rciful/discordbot/core/metrics"
)

// Options control the generic bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit   func(*coreconfig.Config) error
	ReporterInit func(*coreconfig.Config) error
	MetricsStart func(addr string) (*metrics.Server, error)
	// SkipMetrics keeps one-shot commands from binding the metrics port.
	SkipMetrics bool
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	Metrics *metrics.Server
}

// Run initializes the logger, error reporting and the metrics server.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	reporterInit := opts.ReporterInit
	if reporterInit == nil {
		reporterInit = errreport.Init
	}
	if err := reporterInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: error reporting init failed: %w", err)
	}

	res := &Result{}
	if opts.SkipMetrics {
		return res, nil
	}
	start := opts.MetricsStart
	if start == nil {
		start = metrics.Start
	}
	srv, err := start(opts.Config.Metrics.Listen)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: metrics server failed: %w", err)
	}
	res.Metrics = srv
	return res, nil
}

// Close stops the metrics server and flushes pending error reports.
func (r *Result) Close(ctx context.Context) {
	if r == nil {
		return
	}
	if err := r.Metrics.Shutdown(ctx); err != nil {
		logger.LogEvent(ctx, logger.L, slog.LevelWarn, "metrics.shutdown",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	errreport.Flush()
}
