// Package modpipe is a runtime for building worker processes ("modules")
// that a router spawns as children and drives over the inherited
// stdin/stdout pipe pair.
//
// A module implements dispatch.Service (usually via dispatch.Mux), then
// hands it to a Module to run:
//
//	mux := dispatch.NewMux()
//	mux.Handle("echo", func(ctx context.Context, args *payload.Payload) (*stream.Receiver, error) {
//		tx, rx := stream.New()
//		if args != nil {
//			tx.Send(*args)
//		}
//		tx.Close()
//		return rx, nil
//	})
//
//	modpipe.New().Run(mux)
//
// The runtime frames calls off stdin, dispatches each one, streams result
// chunks back over stdout, and supervises its own liveness: if the router
// stops sending frames for longer than the keepalive timeout, the module
// shuts down in an orderly way instead of lingering as an orphan.
package modpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modpipe/dispatch"
	"modpipe/middleware"
	"modpipe/transport"
	"modpipe/watchdog"
)

var (
	// ErrInvalidConfig reports a fatal setup problem: Start refuses to do
	// any work.
	ErrInvalidConfig = errors.New("modpipe: invalid configuration")

	// ErrKeepaliveTimeout reports that the module shut down because the
	// router went silent past the keepalive timeout.
	ErrKeepaliveTimeout = errors.New("modpipe: keepalive timeout")
)

// Process exit codes, distinguishing why the module terminated.
const (
	ExitGraceful         = 0 // router closed the connection
	ExitFatal            = 1 // configuration/setup error or corrupted stream
	ExitKeepaliveTimeout = 2 // liveness timeout, module self-terminated
)

// Module owns the runtime configuration and orchestrates the transport
// adapter and the keepalive watchdog. Create one with New.
type Module struct {
	cfg         Config
	logger      *zap.Logger
	in          io.Reader
	out         io.Writer
	middlewares []middleware.Middleware
}

// New builds a Module bound to the process's standard streams, with the
// default five-minute keepalive timeout. Options override the defaults.
func New(opts ...Option) *Module {
	m := &Module{
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		in:     os.Stdin,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start runs the module until the router closes the connection (returns
// nil), the watchdog expires (returns ErrKeepaliveTimeout), or a fatal
// setup/stream error occurs.
//
// On every exit path, in-flight calls get to flush already-queued chunks
// within the shutdown grace period; no new calls are accepted once
// shutdown has begun.
func (m *Module) Start(svc dispatch.Service) error {
	if err := m.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if svc == nil {
		return fmt.Errorf("%w: nil service", ErrInvalidConfig)
	}

	// Correlates this process's log lines when a router fans out over many
	// module instances.
	logger := m.logger.With(zap.String("instance_id", uuid.NewString()))

	if len(m.middlewares) > 0 {
		svc = middleware.Apply(svc, m.middlewares...)
	}

	wd := watchdog.New(m.cfg.KeepaliveTimeout)

	adapter, err := transport.New(transport.Config{
		Reader:        m.in,
		Writer:        m.out,
		Service:       svc,
		OnSignal:      wd.Signal,
		ShutdownGrace: m.cfg.ShutdownGrace,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger.Info("module starting",
		zap.Duration("keepalive_timeout", m.cfg.KeepaliveTimeout),
		zap.Duration("shutdown_grace", m.cfg.ShutdownGrace),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Watchdog expiry returns an error, which cancels ctx and puts the
	// adapter on its drain path.
	g.Go(func() error {
		return wd.Run(ctx)
	})

	// A transport that ends on its own (EOF, corruption) must also stop
	// the watchdog, hence the explicit cancel on the nil-error path.
	g.Go(func() error {
		defer cancel()
		return adapter.Serve(ctx)
	})

	err = g.Wait()
	switch {
	case err == nil:
		logger.Info("router closed the connection, exiting")
		return nil
	case errors.Is(err, watchdog.ErrExpired):
		logger.Warn("no keepalive from router, exiting",
			zap.Duration("keepalive_timeout", m.cfg.KeepaliveTimeout))
		return fmt.Errorf("%w after %s", ErrKeepaliveTimeout, m.cfg.KeepaliveTimeout)
	default:
		logger.Error("transport failed", zap.Error(err))
		return err
	}
}

// ExitCode maps a Start result onto the process exit code contract:
// graceful termination, liveness-timeout termination, and fatal error are
// distinguishable by the router's process supervisor.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitGraceful
	case errors.Is(err, ErrKeepaliveTimeout):
		return ExitKeepaliveTimeout
	default:
		return ExitFatal
	}
}

// Run is the convenience entry point for a module's main: Start, then exit
// the process with the matching code.
func (m *Module) Run(svc dispatch.Service) {
	err := m.Start(svc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}
