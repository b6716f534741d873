// Package server orchestrates all components: trace recorders, the service manager,
// demo traffic, and the HTTP health and trace viewer.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/oklog/run"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/SuperID/nanoservices/internal/config"
	"github.com/SuperID/nanoservices/internal/demo"
	"github.com/SuperID/nanoservices/pkg/commsutil"
	"github.com/SuperID/nanoservices/pkg/dispatcher"
	"github.com/SuperID/nanoservices/pkg/recorder"
	"github.com/SuperID/nanoservices/pkg/trace"
)

const logPrefix = "server:server"

// Server is the nanoservices orchestrator.
type Server struct {
	cfg     *config.Config
	manager *dispatcher.Manager

	buffer  *trace.Buffer
	store   *recorder.StoreRecorder
	nc      *comms.Conn
	pool    *pgxpool.Pool
	tp      *sdktrace.TracerProvider
	logFile *os.File
	stdout  io.Writer

	ready atomic.Bool
}

// Run starts the server, blocks until ctx is done or a shutdown signal arrives, then
// cleans up. Trace lines without a TRACE_LOG_FILE go to stdout; logs go to stderr.
func Run(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	ConfigureLogging(stderr, cfg.LogLevel)

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting nanoservices", logPrefix))

	s, err := newServer(ctx, cfg, stdout)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			slog.Error(fmt.Sprintf("%s - shutdown: %v", logPrefix, err))
		}
	}()

	return s.Serve(ctx)
}

// ConfigureLogging installs the default slog text logger at the given level.
func ConfigureLogging(w io.Writer, level string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLogLevel(level)})))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the configured recorders and a manager with the demo services
// registered. On error everything already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	return newServer(ctx, cfg, os.Stdout)
}

func newServer(ctx context.Context, cfg *config.Config, stdout io.Writer) (*Server, error) {
	s := &Server{cfg: cfg, stdout: stdout}

	rec, err := s.buildRecorders(ctx)
	if err != nil {
		s.Close(ctx)
		return nil, err
	}

	m, err := dispatcher.NewManager(dispatcher.NewManagerParams{
		Recorder:        rec,
		RequestIDLength: cfg.RequestIDLength,
	})
	if err != nil {
		s.Close(ctx)
		return nil, fmt.Errorf("%s - failed to create manager: %w", logPrefix, err)
	}
	if err := demo.Register(m, demo.Options{Latency: 50 * time.Millisecond}); err != nil {
		s.Close(ctx)
		return nil, err
	}
	s.manager = m

	slog.Info(fmt.Sprintf("%s - Registered %d services", logPrefix, len(m.Services())))
	return s, nil
}

// Manager returns the server's service manager.
func (s *Server) Manager() *dispatcher.Manager {
	return s.manager
}

// Serve runs the HTTP server and the demo traffic loop until ctx is done or a
// shutdown signal arrives.
func (s *Server) Serve(ctx context.Context) error {
	addr := s.cfg.HTTPAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", s.cfg.HTTPPort)
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s - failed to listen on %s: %w", logPrefix, addr, err)
	}

	var g run.Group

	{
		httpServer := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Add(func() error {
			s.ready.Store(true)
			slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, ln.Addr()))
			if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s - HTTP server: %w", logPrefix, err)
			}
			return nil
		}, func(error) {
			s.ready.Store(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		})
	}

	if s.cfg.DemoInterval > 0 {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return demo.Run(ctx, s.manager, s.cfg.DemoInterval, nil)
		}, func(error) {
			cancel()
		})
	}

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	slog.Info(fmt.Sprintf("%s - nanoservices is ready", logPrefix))

	err = g.Run()
	var sigErr run.SignalError
	switch {
	case errors.As(err, &sigErr):
		slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sigErr.Signal))
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	}
	return err
}

// Close flushes and releases every resource the recorders hold. Events recorded
// after Close are dropped.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	commsutil.Close(s.nc)
	if s.pool != nil {
		s.pool.Close()
	}
	if s.tp != nil {
		if err := s.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s - tracer provider shutdown: %w", logPrefix, err))
		}
	}
	if s.logFile != nil {
		if err := s.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s - close trace log: %w", logPrefix, err))
		}
	}
	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return errors.Join(errs...)
}
