// Command ftpserver runs the lab FTP server until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gonzalop/ftplab/internal/config"
	"github.com/gonzalop/ftplab/internal/ftpserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		envFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "ftpserver",
		Short: "FTP Server - Cybersecurity Lab",
		Long: `FTP Server - Cybersecurity Lab

Serves a single lab account from FTP_SERVER_ROOT and records every session
event on the console and in a timestamped file under FTP_LOG_DIR.

WARNING: login failures are logged with the attempted password. Lab use only.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer(envFile)
			if err != nil {
				return err
			}
			var debug io.Writer
			if verbose {
				debug = stderr
			}
			return run(cmd.Context(), cfg, stdout, debug)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&envFile, "env-file", config.DevelopmentEnvFile, "dotenv file with server settings")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "mirror all log records, including engine debug output, to stderr")
	cmd.SetHelpTemplate(cmd.HelpTemplate() + "\n" + config.Describe(&config.Server{}) + "\n")
	return cmd
}

// run serves FTP and, when configured, Prometheus metrics until ctx is done
// or either server fails.
func run(ctx context.Context, cfg *config.Server, stdout, debug io.Writer) error {
	opts := []ftpserver.Option{}
	if debug != nil {
		opts = append(opts, ftpserver.WithDebugOutput(debug))
	}

	var metricsSrv *http.Server
	var metricsLn net.Listener
	if cfg.MetricsAddr != "" {
		metrics := ftpserver.NewMetrics()
		opts = append(opts, ftpserver.WithMetrics(metrics))

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		var err error
		metricsLn, err = net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to bind metrics endpoint %s: %w", cfg.MetricsAddr, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ftpserver.New(cfg, stdout, opts...).Run(ctx)
	})

	if metricsSrv != nil {
		fmt.Fprintf(stdout, "Metrics available at http://%s/metrics\n", metricsLn.Addr())
		g.Go(func() error {
			if err := metricsSrv.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), ftpserver.ShutdownTimeout)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
