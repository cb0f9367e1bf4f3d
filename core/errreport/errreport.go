// Package errreport forwards unexpected failures to Sentry when a DSN is configured.
package errreport

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/m3rciful/discordbot/core/buildinfo"
	coreconfig "github.com/m3rciful/discordbot/core/config"
	"github.com/m3rciful/discordbot/core/logger"
)

var enabled atomic.Bool

// Init configures the Sentry client. An empty DSN leaves reporting disabled.
func Init(cfg *coreconfig.Config) error {
	if cfg == nil || cfg.Sentry.DSN == "" {
		enabled.Store(false)
		return nil
	}
	env := cfg.Sentry.Environment
	if env == "" {
		env = "production"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: env,
		Release:     "discordbot@" + buildinfo.Version,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	enabled.Store(true)
	logger.L.Info("sentry enabled",
		slog.String("event", "errreport.init"),
		slog.String("mode", env),
	)
	return nil
}

// Enabled reports whether events are forwarded.
func Enabled() bool { return enabled.Load() }

// Flush waits for buffered events to be delivered.
func Flush() {
	if Enabled() {
		sentry.Flush(2 * time.Second)
	}
}

// CaptureError sends err with the given tags. It is a no-op when disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(recovered any, tags map[string]string) {
	if recovered == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CurrentHub().Recover(recovered)
	})
}
