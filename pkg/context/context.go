package context

import (
	"context"
	"os"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
)

type contextKey int

const (
	loggerKey contextKey = iota
	registryKey
)

var (
	defaultLogger = log.NewLogfmtLogger(os.Stderr)
)

func WithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func Logger(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerKey).(log.Logger); ok {
		return logger
	}
	return defaultLogger
}

func WithRegistry(ctx context.Context, registry prometheus.Registerer) context.Context {
	return context.WithValue(ctx, registryKey, registry)
}

// Registry returns the registerer of ctx, or nil when metrics are not
// collected.
func Registry(ctx context.Context) prometheus.Registerer {
	if registry, ok := ctx.Value(registryKey).(prometheus.Registerer); ok {
		return registry
	}
	return nil
}

// WrapThread labels the metrics and log lines of work done for one thread
// of a profile.
func WrapThread(ctx context.Context, thread string) context.Context {
	if reg := Registry(ctx); reg != nil {
		ctx = WithRegistry(ctx, prometheus.WrapRegistererWith(
			prometheus.Labels{"thread": thread},
			reg,
		))
	}
	return WithLogger(ctx, log.With(Logger(ctx), "thread", thread))
}
