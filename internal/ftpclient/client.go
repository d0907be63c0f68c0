// Package ftpclient is the lab FTP client. It wraps github.com/gonzalop/ftp
// and reports every step to an output writer, so the same code serves the
// one-shot CLI and the interactive shell.
package ftpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gonzalop/ftp"
	"go.uber.org/zap"

	"github.com/gonzalop/ftplab/internal/config"
	"github.com/gonzalop/ftplab/internal/logging"
	"github.com/gonzalop/ftplab/internal/ratelimit"
)

// ErrNotConnected is returned by operations that need a logged-in session.
var ErrNotConnected = errors.New("not connected to FTP server")

// Client is a single FTP session plus the settings used to open it.
type Client struct {
	cfg     config.Client
	out     io.Writer
	logger  *zap.Logger
	limiter *ratelimit.Limiter

	conn     *ftp.Client
	greeting string
}

// New returns a disconnected client. Messages are written to out.
func New(cfg config.Client, out io.Writer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		out:     out,
		logger:  logger,
		limiter: ratelimit.New(cfg.RateLimit),
	}
}

// Host returns the configured server host.
func (c *Client) Host() string { return c.cfg.Host }

// Port returns the configured server port.
func (c *Client) Port() int { return c.cfg.Port }

// Username returns the configured login name.
func (c *Client) Username() string { return c.cfg.User }

// Config returns a copy of the settings the client was built with.
func (c *Client) Config() config.Client { return c.cfg }

// Connected reports whether a session is open.
func (c *Client) Connected() bool { return c.conn != nil }

// Greeting returns the server banner received on the last Connect.
func (c *Client) Greeting() string { return c.greeting }

func (c *Client) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format+"\n", args...)
}

// Connect dials the server and logs in.
func (c *Client) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.printf("Connecting to FTP server %s:%d...", c.cfg.Host, c.cfg.Port)

	recorder := newGreetingRecorder(logging.Slog(c.logger, "ftp").Handler())
	opts := []ftp.Option{
		ftp.WithTimeout(c.cfg.Timeout),
		ftp.WithLogger(slog.New(recorder)),
	}
	switch c.cfg.TLS {
	case config.TLSExplicit:
		opts = append(opts, ftp.WithExplicitTLS(c.tlsConfig()))
	case config.TLSImplicit:
		opts = append(opts, ftp.WithImplicitTLS(c.tlsConfig()))
	}

	conn, err := ftp.Dial(c.cfg.Addr(), opts...)
	if err != nil {
		c.printf("Connection failed: %s", describe(err))
		c.conn = nil
		return fmt.Errorf("connect %s: %w", c.cfg.Addr(), err)
	}

	c.printf("Logging in as user: %s", c.cfg.User)
	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		_ = conn.Quit()
		c.printf("Connection failed: %s", describe(err))
		c.conn = nil
		return fmt.Errorf("login as %s: %w", c.cfg.User, err)
	}

	c.conn = conn
	c.greeting = recorder.Greeting()
	c.logger.Debug("logged in", zap.String("addr", c.cfg.Addr()), zap.String("user", c.cfg.User))
	c.printf("Connected successfully!")
	c.printf("Server message: %s", c.greeting)
	return nil
}

func (c *Client) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName:         c.cfg.Host,
		InsecureSkipVerify: c.cfg.TLSInsecure, //nolint:gosec // lab servers use self-signed certificates
		MinVersion:         tls.VersionTLS12,
	}
}

// Disconnect sends QUIT and drops the session. Errors while quitting are
// ignored; the client is always left disconnected.
func (c *Client) Disconnect() {
	if c.conn == nil {
		return
	}
	conn := c.conn
	c.conn = nil
	if err := conn.Quit(); err != nil {
		c.logger.Debug("quit failed", zap.Error(err))
		return
	}
	c.printf("Disconnected from FTP server.")
}

func (c *Client) requireConn() error {
	if c.conn == nil {
		c.printf("Error: Not connected to FTP server")
		return ErrNotConnected
	}
	return nil
}

// Upload stores localPath on the server as remotePath. An empty remotePath
// defaults to the base name of localPath.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) error {
	if err := c.requireConn(); err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		c.printf("Error: Local file '%s' not found", localPath)
		return fmt.Errorf("upload: %w", err)
	}
	if info.IsDir() {
		c.printf("Error: Local path '%s' is a directory", localPath)
		return fmt.Errorf("upload: %s is a directory", localPath)
	}

	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}
	c.printf("Uploading '%s' to '%s'...", localPath, remotePath)

	f, err := os.Open(localPath)
	if err != nil {
		c.printf("Upload failed: %v", err)
		return fmt.Errorf("upload: %w", err)
	}
	defer f.Close()

	bar := c.newProgress(info.Size(), "upload "+remotePath)
	var src io.Reader = ratelimit.NewReader(ctx, f, c.limiter)
	if bar != nil {
		src = io.TeeReader(src, bar)
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Abort() })
	defer stop()

	if err := conn.Store(remotePath, src); err != nil {
		bar.abort()
		c.printf("Upload failed: %s", describe(err))
		return fmt.Errorf("upload %s: %w", localPath, err)
	}
	bar.finish()

	c.logger.Debug("upload complete", zap.String("local", localPath), zap.String("remote", remotePath), zap.Int64("bytes", info.Size()))
	c.printf("Upload successful: %s -> %s", localPath, remotePath)
	return nil
}

// Download retrieves remotePath into localPath. An empty localPath defaults
// to the base name of remotePath in the current directory. When the transfer
// fails the partial data is discarded and an existing localPath is kept.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) error {
	if err := c.requireConn(); err != nil {
		return err
	}

	if localPath == "" {
		localPath = path.Base(remotePath)
	}
	c.printf("Downloading '%s' to '%s'...", remotePath, localPath)

	var bar *progress
	if c.cfg.Progress {
		size, err := c.conn.Size(remotePath)
		if err != nil {
			size = -1
		}
		bar = c.newProgress(size, "download "+remotePath)
	}

	// Write next to the target and rename on success so a failed transfer
	// never clobbers an existing file.
	f, err := os.CreateTemp(filepath.Dir(localPath), "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		c.printf("Download failed: %v", err)
		return fmt.Errorf("download: %w", err)
	}
	tmpPath := f.Name()

	var dst io.Writer = f
	if bar != nil {
		dst = io.MultiWriter(f, bar)
	}
	dst = ratelimit.NewWriter(ctx, dst, c.limiter)

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Abort() })
	defer stop()

	err = conn.Retrieve(remotePath, dst)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil {
		err = replaceFile(tmpPath, localPath)
	}
	if err != nil {
		bar.abort()
		_ = os.Remove(tmpPath)
		c.printf("Download failed: %s", describe(err))
		return fmt.Errorf("download %s: %w", remotePath, err)
	}
	bar.finish()

	c.printf("Download successful: %s -> %s", remotePath, localPath)
	return nil
}

// List prints the raw directory listing of dir (default ".").
func (c *Client) List(dir string) error {
	if err := c.requireConn(); err != nil {
		return err
	}
	if dir == "" {
		dir = "."
	}

	c.printf("Directory listing for: %s", dir)
	c.printf("%s", strings.Repeat("-", 40))

	entries, err := c.conn.List(dir)
	if err != nil {
		c.printf("List failed: %s", describe(err))
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, e := range entries {
		line := e.Raw
		if line == "" {
			line = e.Name
		}
		c.printf("%s", line)
	}
	return nil
}

// CurrentDir returns the server-side working directory.
func (c *Client) CurrentDir() (string, error) {
	if err := c.requireConn(); err != nil {
		return "", err
	}
	dir, err := c.conn.CurrentDir()
	if err != nil {
		c.printf("PWD failed: %s", describe(err))
		return "", fmt.Errorf("pwd: %w", err)
	}
	return dir, nil
}

// ChangeDir changes the server-side working directory.
func (c *Client) ChangeDir(dir string) error {
	if err := c.requireConn(); err != nil {
		return err
	}
	if err := c.conn.ChangeDir(dir); err != nil {
		c.printf("Change directory failed: %s", describe(err))
		return fmt.Errorf("cd %s: %w", dir, err)
	}
	c.printf("Changed directory to: %s", dir)
	return nil
}

// Status returns the server's STAT reply as "<code> <text>".
func (c *Client) Status() (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}
	resp, err := c.conn.Quote("STAT")
	if err != nil {
		return "", fmt.Errorf("stat: %w", err)
	}
	if !resp.Is2xx() {
		return "", &ftp.ProtocolError{Command: "STAT", Response: resp.Message, Code: resp.Code}
	}
	return strconv.Itoa(resp.Code) + " " + resp.Message, nil
}

// describe renders protocol errors the way FTP users read them: the reply
// code followed by the server text.
func describe(err error) string {
	var pe *ftp.ProtocolError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%d %s", pe.Code, pe.Response)
	}
	return err.Error()
}

// replaceFile moves tmp over dst, keeping dst's mode when it already exists.
func replaceFile(tmp, dst string) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(dst); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp, mode); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
