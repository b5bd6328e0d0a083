package modpipe

import (
	"io"
	"time"

	"go.uber.org/zap"

	"modpipe/middleware"
)

// Option customizes a Module at construction time.
type Option func(*Module)

// WithTimeout sets the keepalive timeout: how long the router may stay
// silent before the module presumes it orphaned and shuts down.
func WithTimeout(d time.Duration) Option {
	return func(m *Module) { m.cfg.KeepaliveTimeout = d }
}

// WithShutdownGrace bounds how long in-flight calls may keep flushing
// already-queued chunks once shutdown has begun.
func WithShutdownGrace(d time.Duration) Option {
	return func(m *Module) { m.cfg.ShutdownGrace = d }
}

// WithConfig applies a loaded Config wholesale.
func WithConfig(cfg Config) Option {
	return func(m *Module) { m.cfg = cfg }
}

// WithLogger sets the runtime logger. The default is a no-op logger;
// modules that want logs should pass one built with NewLogger, which
// writes to stderr — stdout belongs to the protocol.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Module) { m.logger = logger }
}

// WithMiddleware wraps the dispatch service with the given middlewares,
// outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(m *Module) { m.middlewares = append(m.middlewares, mws...) }
}

// WithStreams replaces the standard streams. Production modules never need
// this; tests bind the runtime to in-memory pipes.
func WithStreams(in io.Reader, out io.Writer) Option {
	return func(m *Module) {
		m.in = in
		m.out = out
	}
}
