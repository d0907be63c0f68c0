package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clientKeys = []string{
	"FTP_HOST", "FTP_PORT", "FTP_USER", "FTP_PASSWORD", "FTP_TIMEOUT",
	"FTP_TLS", "FTP_TLS_INSECURE", "FTP_RATE_LIMIT", "FTP_PROGRESS",
}

var serverKeys = []string{
	"FTP_HOST", "FTP_PORT", "FTP_USER", "FTP_PASSWORD", "FTP_SERVER_ROOT",
	"FTP_PERMISSIONS", "FTP_LOG_DIR", "FTP_BANNER", "FTP_PUBLIC_HOST",
	"FTP_PASV_MIN_PORT", "FTP_PASV_MAX_PORT", "FTP_MAX_CONNECTIONS",
	"FTP_MAX_CONNECTIONS_PER_IP", "FTP_MAX_LOGIN_ATTEMPTS", "FTP_LOGIN_LOCKOUT",
	"FTP_IDLE_TIMEOUT", "FTP_ALLOW_ANONYMOUS", "FTP_METRICS_ADDR",
	"FTP_TLS_CERT_FILE", "FTP_TLS_KEY_FILE",
}

// clearEnv unsets keys for the duration of the test. t.Setenv registers the
// restore of the original value before the key is removed.
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env.development")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadClient_Defaults(t *testing.T) {
	clearEnv(t, clientKeys)

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	want := &Client{
		Host:      "127.0.0.1",
		Port:      2121,
		User:      "labuser",
		Password:  "labpass123",
		Timeout:   30 * time.Second,
		TLS:       TLSNone,
		RateLimit: 0,
		Progress:  true,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("LoadClient() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "127.0.0.1:2121", cfg.Addr())
}

func TestLoadClient_FileAndEnvPrecedence(t *testing.T) {
	clearEnv(t, clientKeys)
	path := writeEnvFile(t, "FTP_HOST=10.0.0.5\nFTP_PORT=2222\nFTP_USER=fileuser\nFTP_TLS=EXPLICIT\n")
	t.Setenv("FTP_USER", "envuser")

	cfg, err := LoadClient(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Host)
	assert.Equal(t, 2222, cfg.Port)
	assert.Equal(t, "envuser", cfg.User, "environment must win over the env file")
	assert.Equal(t, TLSExplicit, cfg.TLS)
}

func TestLoadClient_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"port out of range", map[string]string{"FTP_PORT": "70000"}},
		{"port not a number", map[string]string{"FTP_PORT": "ftp"}},
		{"unknown tls mode", map[string]string{"FTP_TLS": "sometimes"}},
		{"negative rate", map[string]string{"FTP_RATE_LIMIT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, clientKeys)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadClient("")
			assert.Error(t, err)
		})
	}
}

func TestLoadServer_Defaults(t *testing.T) {
	clearEnv(t, serverKeys)

	cfg, err := LoadServer("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:2121", cfg.Addr())
	assert.Equal(t, "labuser", cfg.User)
	assert.Equal(t, "labpass123", cfg.Password)
	assert.Equal(t, "ftp_server_root", cfg.Root)
	assert.Equal(t, Permissions("elradfmwMT"), cfg.Permissions)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, 60000, cfg.PasvMinPort)
	assert.Equal(t, 65534, cfg.PasvMaxPort)
	assert.Equal(t, 256, cfg.MaxConnections)
	assert.Equal(t, 5, cfg.MaxConnectionsPerIP)
	assert.Equal(t, 3, cfg.MaxLoginAttempts)
	assert.Equal(t, 30*time.Second, cfg.LoginLockout)
	assert.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	assert.False(t, cfg.AllowAnonymous)
	assert.False(t, cfg.TLSEnabled())
}

func TestLoadServer_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad permission letter", map[string]string{"FTP_PERMISSIONS": "elrx"}},
		{"repeated permission", map[string]string{"FTP_PERMISSIONS": "ee"}},
		{"inverted passive range", map[string]string{"FTP_PASV_MIN_PORT": "61000", "FTP_PASV_MAX_PORT": "60000"}},
		{"cert without key", map[string]string{"FTP_TLS_CERT_FILE": "cert.pem"}},
		{"empty user", map[string]string{"FTP_USER": ""}},
		{"negative limit", map[string]string{"FTP_MAX_CONNECTIONS": "-4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, serverKeys)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadServer("")
			assert.Error(t, err)
		})
	}
}

func TestPermissions(t *testing.T) {
	p := Permissions("elr")
	require.NoError(t, p.Validate())
	assert.True(t, p.Allows(PermChangeDir))
	assert.True(t, p.Allows(PermRead))
	assert.False(t, p.Allows(PermWrite))
	assert.False(t, p.Writable())

	assert.True(t, Permissions("elrw").Writable())
	assert.True(t, Permissions("T").Writable())
	assert.False(t, Permissions("").Writable())
	assert.NoError(t, Permissions("").Validate())
}

func TestDescribe(t *testing.T) {
	text := Describe(&Server{})
	assert.Contains(t, text, "FTP_SERVER_ROOT")
	assert.Contains(t, text, "FTP_PERMISSIONS")
}
