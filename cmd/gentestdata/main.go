// Command gentestdata writes sample CSV, JSON, log, text and ini files for
// exercising uploads and downloads against the lab server.
package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/spf13/cobra"

	"github.com/gonzalop/ftplab/internal/datagen"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		dir  string
		seed uint64
	)

	cmd := &cobra.Command{
		Use:           "gentestdata",
		Short:         "Generate FTP test data",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			var opts []datagen.Option
			if seed != 0 {
				opts = append(opts, datagen.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}
			summary, err := datagen.New(dir, stdout, opts...).GenerateAll()
			if err != nil {
				return err
			}
			if n := summary.Failed(); n > 0 {
				return fmt.Errorf("%d of %d files failed", n, len(summary.Results))
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&dir, "dir", datagen.DefaultDir, "output directory")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible output (0 uses the clock)")
	return cmd
}
