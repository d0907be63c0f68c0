// Command ftpclient is the lab FTP client. Without arguments it starts an
// interactive shell; with a command it connects, runs that one operation and
// exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gonzalop/ftplab/internal/config"
	"github.com/gonzalop/ftplab/internal/ftpclient"
	"github.com/gonzalop/ftplab/internal/logging"
	"github.com/gonzalop/ftplab/internal/shell"
)

// errReported marks failures that were already printed for the user.
var errReported = errors.New("reported")

func reported(err error) error {
	return fmt.Errorf("%w: %w", errReported, err)
}

type options struct {
	host        string
	port        int
	user        string
	password    string
	envFile     string
	verbose     bool
	timeout     time.Duration
	limit       int64
	noProgress  bool
	tls         string
	tlsInsecure bool
}

type app struct {
	opts   options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "ftpclient [command] [args...]",
		Short: "FTP Client - Cybersecurity Lab",
		Long: `FTP Client - Cybersecurity Lab

Run without arguments for the interactive shell (settings from .env), or
give a command to run it once (settings from .env.development).`,
		Example: `  ftpclient upload test.txt
  ftpclient download welcome.txt
  ftpclient upload ftp_test_data/app_config.json uploads/config.json
  ftpclient ls uploads
  ftpclient connect 192.168.1.100 2121 testuser testpass`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				fmt.Fprintf(a.stdout, "Unknown command: %s\n", args[0])
				_ = cmd.Help()
				return reported(fmt.Errorf("unknown command %q", args[0]))
			}
			return a.runShell(cmd)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.host, "host", "", "FTP server host (overrides FTP_HOST)")
	flags.IntVar(&a.opts.port, "port", 0, "FTP server port (overrides FTP_PORT)")
	flags.StringVar(&a.opts.user, "user", "", "FTP username (overrides FTP_USER)")
	flags.StringVar(&a.opts.password, "password", "", "FTP password (overrides FTP_PASSWORD)")
	flags.StringVar(&a.opts.envFile, "env-file", "", "dotenv file to read instead of the mode default")
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "log protocol traffic to stderr")
	flags.DurationVar(&a.opts.timeout, "timeout", 0, "dial and command timeout (overrides FTP_TIMEOUT)")
	flags.Int64Var(&a.opts.limit, "limit", 0, "transfer limit in bytes per second (overrides FTP_RATE_LIMIT)")
	flags.BoolVar(&a.opts.noProgress, "no-progress", false, "hide transfer progress bars")
	flags.StringVar(&a.opts.tls, "tls", "", "control channel security: none, explicit or implicit")
	flags.BoolVar(&a.opts.tlsInsecure, "tls-insecure", false, "skip server certificate verification")

	root.SetHelpTemplate(root.HelpTemplate() + "\n" + config.Describe(&config.Client{}) + "\n")

	root.AddCommand(
		&cobra.Command{
			Use:   "upload <local_file> [remote_file]",
			Short: "Upload a file",
			RunE: a.oneShot(func(ctx context.Context, c *ftpclient.Client, args []string) error {
				if len(args) < 1 {
					fmt.Fprintln(a.stdout, "Usage: upload <local_file> [remote_file]")
					return reported(errors.New("missing local file"))
				}
				return c.Upload(ctx, args[0], argAt(args, 1))
			}),
		},
		&cobra.Command{
			Use:   "download <remote_file> [local_file]",
			Short: "Download a file",
			RunE: a.oneShot(func(ctx context.Context, c *ftpclient.Client, args []string) error {
				if len(args) < 1 {
					fmt.Fprintln(a.stdout, "Usage: download <remote_file> [local_file]")
					return reported(errors.New("missing remote file"))
				}
				return c.Download(ctx, args[0], argAt(args, 1))
			}),
		},
		&cobra.Command{
			Use:     "ls [directory]",
			Aliases: []string{"list"},
			Short:   "List a remote directory",
			RunE: a.oneShot(func(_ context.Context, c *ftpclient.Client, args []string) error {
				return c.List(argAt(args, 0))
			}),
		},
		&cobra.Command{
			Use:   "connect [host] [port] [username] [password]",
			Short: "Check that the server accepts the configured login",
			RunE: a.oneShot(func(context.Context, *ftpclient.Client, []string) error {
				fmt.Fprintln(a.stdout, "Already connected for command execution")
				return nil
			}),
		},
	)
	return root
}

// loadConfig reads the settings for the given mode and applies any flags
// set on the command line.
func (a *app) loadConfig(cmd *cobra.Command, defaultEnvFile string) (*config.Client, error) {
	envFile := defaultEnvFile
	if a.opts.envFile != "" {
		envFile = a.opts.envFile
	}
	cfg, err := config.LoadClient(envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = a.opts.host
	}
	if flags.Changed("port") {
		cfg.Port = a.opts.port
	}
	if flags.Changed("user") {
		cfg.User = a.opts.user
	}
	if flags.Changed("password") {
		cfg.Password = a.opts.password
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.opts.timeout
	}
	if flags.Changed("limit") {
		cfg.RateLimit = a.opts.limit
	}
	if a.opts.noProgress {
		cfg.Progress = false
	}
	if flags.Changed("tls") {
		cfg.TLS = config.TLSMode(strings.ToLower(a.opts.tls))
	}
	if flags.Changed("tls-insecure") {
		cfg.TLSInsecure = a.opts.tlsInsecure
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, nil
}

func (a *app) logger() *zap.Logger {
	return logging.NewConsole(a.stderr, a.opts.verbose)
}

func (a *app) runShell(cmd *cobra.Command) error {
	cfg, err := a.loadConfig(cmd, config.InteractiveEnvFile)
	if err != nil {
		return err
	}
	logger := a.logger()
	defer logger.Sync() //nolint:errcheck

	return shell.New(*cfg, a.stdin, a.stdout, logger).Run(cmd.Context())
}

// oneShot wraps an operation so it runs inside a fresh session: connect,
// run, always disconnect.
func (a *app) oneShot(op func(ctx context.Context, c *ftpclient.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := a.loadConfig(cmd, config.DevelopmentEnvFile)
		if err != nil {
			return err
		}
		logger := a.logger()
		defer logger.Sync() //nolint:errcheck

		c := ftpclient.New(*cfg, a.stdout, logger)
		if err := c.Connect(cmd.Context()); err != nil {
			return reported(err)
		}
		defer c.Disconnect()

		if err := op(cmd.Context(), c, args); err != nil {
			if errors.Is(err, errReported) {
				return err
			}
			return reported(err)
		}
		return nil
	}
}

func argAt(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
