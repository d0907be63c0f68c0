// Package config loads the settings shared by the lab client and server.
//
// Settings come from three layers, lowest precedence first:
//
//  1. the env-default tags on the structs below,
//  2. an optional dotenv file (a missing file is not an error),
//  3. the process environment.
//
// Command-line flags are applied on top by the cmd packages.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Default dotenv files. The interactive client historically reads .env while
// the one-shot client and the server read .env.development.
const (
	InteractiveEnvFile = ".env"
	DevelopmentEnvFile = ".env.development"
)

// TLSMode selects how the client secures the control connection.
type TLSMode string

const (
	TLSNone     TLSMode = "none"
	TLSExplicit TLSMode = "explicit"
	TLSImplicit TLSMode = "implicit"
)

// Client holds the FTP client settings.
type Client struct {
	Host        string        `env:"FTP_HOST" env-default:"127.0.0.1" env-description:"FTP server host"`
	Port        int           `env:"FTP_PORT" env-default:"2121" env-description:"FTP server port"`
	User        string        `env:"FTP_USER" env-default:"labuser" env-description:"FTP username"`
	Password    string        `env:"FTP_PASSWORD" env-default:"labpass123" env-description:"FTP password"`
	Timeout     time.Duration `env:"FTP_TIMEOUT" env-default:"30s" env-description:"Dial and command timeout"`
	TLS         TLSMode       `env:"FTP_TLS" env-default:"none" env-description:"Control channel security: none, explicit or implicit"`
	TLSInsecure bool          `env:"FTP_TLS_INSECURE" env-default:"false" env-description:"Skip server certificate verification"`
	RateLimit   int64         `env:"FTP_RATE_LIMIT" env-default:"0" env-description:"Transfer limit in bytes per second (0 = unlimited)"`
	Progress    bool          `env:"FTP_PROGRESS" env-default:"true" env-description:"Show a progress bar during transfers"`
}

// Addr returns the host:port pair of the configured endpoint.
func (c *Client) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the client settings.
func (c *Client) Validate() error {
	if c.Host == "" {
		return errors.New("FTP_HOST must not be empty")
	}
	if err := validatePort("FTP_PORT", c.Port); err != nil {
		return err
	}
	switch c.TLS {
	case TLSNone, TLSExplicit, TLSImplicit:
	default:
		return fmt.Errorf("FTP_TLS: unknown mode %q (want none, explicit or implicit)", c.TLS)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("FTP_RATE_LIMIT must not be negative, got %d", c.RateLimit)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("FTP_TIMEOUT must not be negative, got %s", c.Timeout)
	}
	return nil
}

// Server holds the lab FTP server settings.
type Server struct {
	Host                string        `env:"FTP_HOST" env-default:"127.0.0.1" env-description:"Listen address"`
	Port                int           `env:"FTP_PORT" env-default:"2121" env-description:"Listen port"`
	User                string        `env:"FTP_USER" env-default:"labuser" env-description:"Account username"`
	Password            string        `env:"FTP_PASSWORD" env-default:"labpass123" env-description:"Account password"`
	Root                string        `env:"FTP_SERVER_ROOT" env-default:"ftp_server_root" env-description:"Directory served to the account"`
	Permissions         Permissions   `env:"FTP_PERMISSIONS" env-default:"elradfmwMT" env-description:"Permission letters (elradfmwMT)"`
	LogDir              string        `env:"FTP_LOG_DIR" env-default:"logs" env-description:"Directory for timestamped log files"`
	Banner              string        `env:"FTP_BANNER" env-default:"FTP Server ready for cybersecurity analysis." env-description:"Greeting sent to clients"`
	PublicHost          string        `env:"FTP_PUBLIC_HOST" env-description:"Address advertised in PASV replies"`
	PasvMinPort         int           `env:"FTP_PASV_MIN_PORT" env-default:"60000" env-description:"First passive data port"`
	PasvMaxPort         int           `env:"FTP_PASV_MAX_PORT" env-default:"65534" env-description:"Last passive data port"`
	MaxConnections      int           `env:"FTP_MAX_CONNECTIONS" env-default:"256" env-description:"Maximum concurrent connections"`
	MaxConnectionsPerIP int           `env:"FTP_MAX_CONNECTIONS_PER_IP" env-default:"5" env-description:"Maximum concurrent connections per IP"`
	MaxLoginAttempts    int           `env:"FTP_MAX_LOGIN_ATTEMPTS" env-default:"3" env-description:"Failed logins before an address is locked out (0 = unlimited)"`
	LoginLockout        time.Duration `env:"FTP_LOGIN_LOCKOUT" env-default:"30s" env-description:"Lockout window after too many failed logins"`
	IdleTimeout         time.Duration `env:"FTP_IDLE_TIMEOUT" env-default:"5m" env-description:"Idle control connection timeout"`
	AllowAnonymous      bool          `env:"FTP_ALLOW_ANONYMOUS" env-default:"false" env-description:"Allow read-only anonymous logins"`
	MetricsAddr         string        `env:"FTP_METRICS_ADDR" env-description:"Address for the Prometheus /metrics endpoint (empty = disabled)"`
	TLSCertFile         string        `env:"FTP_TLS_CERT_FILE" env-description:"PEM certificate enabling explicit FTPS"`
	TLSKeyFile          string        `env:"FTP_TLS_KEY_FILE" env-description:"PEM private key enabling explicit FTPS"`
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// TLSEnabled reports whether a certificate pair was configured.
func (s *Server) TLSEnabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

// Validate checks the server settings.
func (s *Server) Validate() error {
	if err := validatePort("FTP_PORT", s.Port); err != nil {
		return err
	}
	if s.User == "" {
		return errors.New("FTP_USER must not be empty")
	}
	if s.Root == "" {
		return errors.New("FTP_SERVER_ROOT must not be empty")
	}
	if err := s.Permissions.Validate(); err != nil {
		return fmt.Errorf("FTP_PERMISSIONS: %w", err)
	}
	if s.PasvMinPort != 0 || s.PasvMaxPort != 0 {
		if err := validatePort("FTP_PASV_MIN_PORT", s.PasvMinPort); err != nil {
			return err
		}
		if err := validatePort("FTP_PASV_MAX_PORT", s.PasvMaxPort); err != nil {
			return err
		}
		if s.PasvMinPort > s.PasvMaxPort {
			return fmt.Errorf("passive port range is inverted: %d > %d", s.PasvMinPort, s.PasvMaxPort)
		}
	}
	if s.MaxConnections < 0 || s.MaxConnectionsPerIP < 0 || s.MaxLoginAttempts < 0 {
		return errors.New("connection and login limits must not be negative")
	}
	if (s.TLSCertFile == "") != (s.TLSKeyFile == "") {
		return errors.New("FTP_TLS_CERT_FILE and FTP_TLS_KEY_FILE must be set together")
	}
	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in 1..65535, got %d", name, port)
	}
	return nil
}

// LoadClient reads the client settings from envFile (if present) and the
// process environment.
func LoadClient(envFile string) (*Client, error) {
	var cfg Client
	if err := load(envFile, &cfg); err != nil {
		return nil, err
	}
	cfg.TLS = TLSMode(strings.ToLower(string(cfg.TLS)))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return &cfg, nil
}

// LoadServer reads the server settings from envFile (if present) and the
// process environment.
func LoadServer(envFile string) (*Server, error) {
	var cfg Server
	if err := load(envFile, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return &cfg, nil
}

// Describe renders the environment variables understood by cfg, for use in
// command help.
func Describe(cfg any) string {
	header := "Environment variables:"
	text, err := cleanenv.GetDescription(cfg, &header)
	if err != nil {
		return ""
	}
	return text
}

func load(envFile string, cfg any) error {
	if err := applyEnvFile(envFile); err != nil {
		return err
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("cannot read config: %w", err)
	}
	return nil
}

// applyEnvFile exports the variables of a dotenv file that are not already
// present in the environment. The environment always wins.
func applyEnvFile(path string) error {
	if path == "" {
		return nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cannot read env file %s: %w", path, err)
	}
	for key, value := range vars {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("cannot export %s: %w", key, err)
		}
	}
	return nil
}
