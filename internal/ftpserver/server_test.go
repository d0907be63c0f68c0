package ftpserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	jftp "github.com/jlaffaye/ftp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/ftplab/internal/config"
)

type runningServer struct {
	addr string
	cfg  *config.Server
	out  *syncBuffer
	srv  *Server
	stop func() error
}

func startTestServer(t *testing.T, cfg *config.Server, opts ...Option) *runningServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	out := &syncBuffer{}
	srv := New(cfg, out, append(opts, WithListener(ln))...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	var stopped bool
	stop := func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
	t.Cleanup(func() { _ = stop() })

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("Server listening on"))
	}, 5*time.Second, 10*time.Millisecond)

	return &runningServer{addr: ln.Addr().String(), cfg: cfg, out: out, srv: srv, stop: stop}
}

func (r *runningServer) dial(t *testing.T) *jftp.ServerConn {
	t.Helper()
	c, err := jftp.Dial(r.addr, jftp.DialWithTimeout(5*time.Second))
	require.NoError(t, err)
	return c
}

func (r *runningServer) waitFor(t *testing.T, text string) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(r.out.String()), []byte(text))
	}, 5*time.Second, 10*time.Millisecond, "console never showed %q\n%s", text, r.out.String())
}

func TestServerSession(t *testing.T) {
	metrics := NewMetrics()
	rs := startTestServer(t, testServerConfig(t), WithMetrics(metrics))

	c := rs.dial(t)
	require.NoError(t, c.Login("labuser", "labpass123"))
	rs.waitFor(t, "CLIENT CONNECTED: 127.0.0.1:")
	rs.waitFor(t, "LOGIN SUCCESS: User 'labuser' from 127.0.0.1")

	require.NoError(t, c.ChangeDir("uploads"))
	rs.waitFor(t, "COMMAND: CWD 'uploads' by labuser")

	dir, err := c.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/uploads", dir)
	rs.waitFor(t, "COMMAND: PWD by labuser")

	require.NoError(t, c.Stor("report.txt", bytes.NewBufferString("lab report")))
	rs.waitFor(t, "FILE UPLOADED: '/uploads/report.txt' by labuser")

	stored, err := os.ReadFile(filepath.Join(rs.cfg.Root, "uploads", "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "lab report", string(stored))

	entries, err := c.List("/")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Subset(t, names, []string{"uploads", "downloads", "shared", "welcome.txt"})
	rs.waitFor(t, "COMMAND: LIST '/' by labuser")

	resp, err := c.Retr("/welcome.txt")
	require.NoError(t, err)
	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	require.NoError(t, resp.Close())
	assert.Contains(t, string(body), "Welcome to the FTP Server!")
	rs.waitFor(t, "FILE DOWNLOADED: '/welcome.txt' by labuser")

	require.NoError(t, c.Quit())
	rs.waitFor(t, "LOGOUT: User 'labuser' from 127.0.0.1")
	rs.waitFor(t, "CLIENT DISCONNECTED: 127.0.0.1:")

	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.authentications.WithLabelValues("success")), 1.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.commands.WithLabelValues("STOR", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.commands.WithLabelValues("CWD", "success")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.commands.WithLabelValues("RETR", "success")), 1.0)

	require.NoError(t, rs.stop())
	out := rs.out.String()
	assert.Contains(t, out, "FTP SERVER - CYBERSECURITY LAB")
	assert.Contains(t, out, "Created FTP server directory: ")
	assert.Contains(t, out, "Server shutdown requested...")
	assert.Contains(t, out, "FTP Server stopped.")

	logData, err := os.ReadFile(rs.srv.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(logData), "[LOGIN] User 'labuser' logged in from 127.0.0.1")
	assert.Contains(t, string(logData), "[UPLOAD] File '/uploads/report.txt' uploaded by labuser")

	xferLogs, err := filepath.Glob(filepath.Join(rs.cfg.LogDir, "xferlog_*.log"))
	require.NoError(t, err)
	assert.Len(t, xferLogs, 1)
}

func TestServerRejectsBadLogin(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.MaxLoginAttempts = 2
	rs := startTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		c := rs.dial(t)
		assert.Error(t, c.Login("labuser", "letmein"))
		_ = c.Quit()
	}
	rs.waitFor(t, "LOGIN FAILED: User 'labuser' from 127.0.0.1")
	rs.waitFor(t, "LOGIN LOCKED: User 'labuser' from 127.0.0.1")

	c := rs.dial(t)
	assert.Error(t, c.Login("labuser", "labpass123"), "locked out address")
	_ = c.Quit()

	require.NoError(t, rs.stop())
	logData, err := os.ReadFile(rs.srv.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(logData), "Password: 'letmein'")
	assert.NotContains(t, rs.out.String(), "letmein")
}

func TestServerReadOnlyPermissions(t *testing.T) {
	cfg := testServerConfig(t)
	cfg.Permissions = "elr"
	rs := startTestServer(t, cfg)

	c := rs.dial(t)
	defer c.Quit()
	require.NoError(t, c.Login("labuser", "labpass123"))

	assert.Error(t, c.Stor("nope.txt", bytes.NewBufferString("x")))
	assert.Error(t, c.MakeDir("newdir"))

	_, err := os.Stat(filepath.Join(rs.cfg.Root, "nope.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestServerBindError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testServerConfig(t)
	cfg.Port = busy.Addr().(*net.TCPAddr).Port

	out := &syncBuffer{}
	err = New(cfg, out).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, out.String(), "ERROR: Cannot start server - ")
	assert.Contains(t, out.String(), "Make sure the port is not already in use")
}

func TestServerStorWithoutDataConnection(t *testing.T) {
	metrics := NewMetrics()
	rs := startTestServer(t, testServerConfig(t), WithMetrics(metrics))

	conn, err := textproto.Dial("tcp", rs.addr)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadResponse(220)
	require.NoError(t, err)
	_, err = conn.Cmd("USER labuser")
	require.NoError(t, err)
	_, _, err = conn.ReadResponse(331)
	require.NoError(t, err)
	_, err = conn.Cmd("PASS labpass123")
	require.NoError(t, err)
	_, _, err = conn.ReadResponse(230)
	require.NoError(t, err)

	_, err = conn.Cmd("STOR never.txt")
	require.NoError(t, err)
	code, _, err := conn.ReadResponse(0)
	require.NoError(t, err)
	assert.True(t, code >= 400 && code < 500, "STOR without a data connection got %d", code)

	rs.waitFor(t, "FILE UPLOAD INCOMPLETE: '/never.txt' by labuser")
	assert.NotContains(t, rs.out.String(), "FILE UPLOADED")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.commands.WithLabelValues("STOR", "failure")))
	assert.Zero(t, testutil.ToFloat64(metrics.commands.WithLabelValues("STOR", "success")))

	_, err = conn.Cmd("QUIT")
	require.NoError(t, err)
}
