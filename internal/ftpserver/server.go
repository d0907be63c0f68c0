// Package ftpserver runs the lab FTP server: the github.com/gonzalop/ftp
// server engine with lab-specific authentication, permission letters and a
// console plus file record of every session event.
package ftpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gonzalop/ftp/server"
	"go.uber.org/zap"

	"github.com/gonzalop/ftplab/internal/config"
	"github.com/gonzalop/ftplab/internal/logging"
)

// ShutdownTimeout bounds how long Run waits for open sessions on shutdown.
const ShutdownTimeout = 5 * time.Second

// Server is a configured, not yet running, lab FTP server.
type Server struct {
	cfg     *config.Server
	out     io.Writer
	debug   io.Writer
	metrics *Metrics
	ln      net.Listener
	now     func() time.Time

	logPath string
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics reports engine activity to m.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDebugOutput mirrors every log record, including the engine's debug
// records, to w.
func WithDebugOutput(w io.Writer) Option {
	return func(s *Server) { s.debug = w }
}

// WithListener serves on ln instead of binding cfg.Addr().
func WithListener(ln net.Listener) Option {
	return func(s *Server) { s.ln = ln }
}

// New returns a server for cfg writing its console output to out.
func New(cfg *config.Server, out io.Writer, opts ...Option) *Server {
	s := &Server{cfg: cfg, out: out, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogPath returns the log file of the current run, once Run has started.
func (s *Server) LogPath() string { return s.logPath }

func (s *Server) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *Server) stamp() string {
	return s.now().Format(logging.TimeLayout)
}

// Run starts the server and blocks until ctx is done or serving fails. On
// cancellation open sessions are given ShutdownTimeout to finish.
func (s *Server) Run(ctx context.Context) error {
	start := s.now()
	cfg := s.cfg

	logger, err := logging.NewFileLogger(cfg.LogDir, start, s.debug)
	if err != nil {
		return err
	}
	defer logger.Close()
	s.logPath = logger.Path

	s.printBanner()

	root, err := PrepareRoot(cfg.Root, start, s.out)
	if err != nil {
		return err
	}

	events := NewEvents(s.out, logger.Logger)
	driver, err := NewDriver(root, cfg, events)
	if err != nil {
		return err
	}
	driver.metrics = s.metrics

	xferPath := filepath.Join(cfg.LogDir, "xferlog_"+start.Format("20060102_150405")+".log")
	xfer, err := os.OpenFile(xferPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transfer log: %w", err)
	}
	defer xfer.Close()

	opts := []server.Option{
		server.WithDriver(driver),
		server.WithWelcomeMessage(cfg.Banner),
		server.WithLogger(logging.Slog(logger.Logger, "engine")),
		server.WithMaxConnections(cfg.MaxConnections, cfg.MaxConnectionsPerIP),
		server.WithTransferLog(driver.TransferLog(xfer)),
	}
	if cfg.IdleTimeout > 0 {
		opts = append(opts, server.WithMaxIdleTime(cfg.IdleTimeout))
	}
	if s.metrics != nil {
		opts = append(opts, server.WithMetricsCollector(s.metrics))
	}
	if cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		opts = append(opts, server.WithTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}))
	}

	ln := s.ln
	if ln == nil {
		ln, err = net.Listen("tcp", cfg.Addr())
		if err != nil {
			s.printBindError(err)
			return fmt.Errorf("failed to bind %s: %w", cfg.Addr(), err)
		}
	}

	srv, err := server.NewServer(ln.Addr().String(), opts...)
	if err != nil {
		ln.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	s.printf("\n[%s] Starting FTP server...", s.stamp())
	s.printf("Server listening on %s:%d", cfg.Host, cfg.Port)
	s.printf("Press Ctrl+C to stop the server")
	if cfg.TLSEnabled() {
		s.printf("\nExplicit FTPS (AUTH TLS) is available on this server.")
	} else {
		s.printf("\nWARNING: This server transmits data unencrypted for lab purposes!")
	}
	s.printf("Monitor traffic with Wireshark on port %d", cfg.Port)
	s.printf("%s", strings.Repeat("-", 60))
	logger.Info("server started",
		zap.String("addr", ln.Addr().String()),
		zap.String("root", root),
		zap.String("permissions", string(cfg.Permissions)),
	)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(newTrackingListener(ln, events, s.metrics))
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, server.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.printf("\n[%s] Server shutdown requested...", s.stamp())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Warn("shutdown failed", zap.Error(err))
	}
	if err := <-serveErr; err != nil && !errors.Is(err, server.ErrServerClosed) {
		logger.Warn("serve returned", zap.Error(err))
	}
	logger.Info("server stopped")
	s.printf("FTP Server stopped.")
	return nil
}

func (s *Server) printBanner() {
	cfg := s.cfg
	rule := strings.Repeat("=", 60)
	s.printf("%s", rule)
	s.printf("           FTP SERVER - CYBERSECURITY LAB")
	s.printf("%s", rule)
	s.printf("Server Host: %s", cfg.Host)
	s.printf("Server Port: %d", cfg.Port)
	s.printf("Username: %s", cfg.User)
	s.printf("Password: %s", cfg.Password)
	s.printf("Server Root: %s", cfg.Root)
	s.printf("Permissions: %s", cfg.Permissions)
	s.printf("Log File: %s", s.logPath)
	s.printf("%s", rule)
}

func (s *Server) printBindError(err error) {
	if errors.Is(err, os.ErrPermission) {
		s.printf("ERROR: Permission denied to bind to port %d", s.cfg.Port)
		s.printf("Try running as administrator or use a port > 1024")
		return
	}
	s.printf("ERROR: Cannot start server - %v", err)
	s.printf("Make sure the port is not already in use")
}
