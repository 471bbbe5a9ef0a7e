package virtualizer

import (
	"log/slog"

	"github.com/hupe1980/virtualizer/codec"
)

type options struct {
	serializer         codec.Serializer
	metricsCollector   MetricsCollector
	logger             *Logger
	cleanupConcurrency int
}

// Option configures Virtualizer constructor behavior.
type Option func(*options)

// WithSerializer configures how object data is written to and read from
// stores. If nil is passed, a serializer over codec.Default is used.
func WithSerializer(s codec.Serializer) Option {
	return func(o *options) {
		if s == nil {
			s = codec.NewSerializer(nil)
		}
		o.serializer = s
	}
}

// WithCodec configures a codec-backed serializer.
// Convenience wrapper for WithSerializer(codec.NewSerializer(c)).
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		o.serializer = codec.NewSerializer(c)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &virtualizer.BasicMetricsCollector{}
//	v, _ := virtualizer.New(100, factory, virtualizer.WithMetricsCollector(metrics))
//	// ... use v ...
//	stats := metrics.GetStats()
//	fmt.Printf("Page outs: %d, Avg latency: %dns\n", stats.PageOutCount, stats.PageOutAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := virtualizer.NewJSONLogger(slog.LevelInfo)
//	v, _ := virtualizer.New(100, factory, virtualizer.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithCleanupConcurrency limits how many stores Cleanup disposes in parallel.
// Values <= 0 select the default of 4.
func WithCleanupConcurrency(n int) Option {
	return func(o *options) {
		o.cleanupConcurrency = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		serializer:       codec.NewSerializer(nil),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.cleanupConcurrency <= 0 {
		o.cleanupConcurrency = 4
	}
	return o
}
