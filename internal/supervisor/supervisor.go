// Package supervisor owns the listener lifecycle: bind, serve, and
// signal-driven shutdown with confirmed listener closure.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// State is the supervisor lifecycle. Transitions are one-way:
// Running -> ShuttingDown -> Terminated.
type State int32

const (
	Running State = iota
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Supervisor runs an http.Server on a listener it owns and sequences
// shutdown. Shutdown is idempotent: duplicate triggers (repeated
// signals) collapse into one sequence and never double-close.
type Supervisor struct {
	server   *http.Server
	listener net.Listener
	grace    time.Duration
	logger   zerolog.Logger

	state    atomic.Int32
	shutdown sync.Once
}

// New wraps server. grace bounds how long in-flight HTTP requests may
// drain after the listener closes; handed-off WebSocket sessions are
// never awaited.
func New(server *http.Server, grace time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		server: server,
		grace:  grace,
		logger: logger,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

// Listen binds the address. A bind failure is surfaced to the caller;
// there is no retry.
func (s *Supervisor) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = lis
	return nil
}

// Addr returns the bound listener address. Valid after Listen.
func (s *Supervisor) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Run serves until ctx is cancelled (the termination signal) or the
// server fails, then runs the shutdown sequence and blocks until the
// listener's closure is confirmed by Serve returning. A nil return
// means a clean, signal-driven exit.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("supervisor: Run called before Listen")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(s.listener)
	}()
	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("server listening")

	select {
	case err := <-serveErr:
		// Serve failed on its own; the listener is already gone.
		s.state.Store(int32(Terminated))
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutdown signal received")
	s.Shutdown()

	// Serve returns http.ErrServerClosed only after the listener is
	// closed; waiting on it is the closure confirmation.
	err := <-serveErr
	s.state.Store(int32(Terminated))
	s.logger.Info().Msg("listener closed, supervisor terminated")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes the listener (no new connections are accepted) and
// drains in-flight requests for at most the grace period before hard
// closing. Safe to call any number of times from any goroutine; only
// the first call acts.
func (s *Supervisor) Shutdown() {
	s.shutdown.Do(func() {
		s.state.Store(int32(ShuttingDown))
		ctx, cancel := context.WithTimeout(context.Background(), s.grace)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("drain grace expired, closing remaining connections")
			_ = s.server.Close()
		}
	})
}
