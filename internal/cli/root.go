// Package cli implements the inkwell-seed command line.
//
//	inkwell-seed [--driver sqlite|mongo] [--db path] [-v] prompts
//	inkwell-seed [--driver sqlite|mongo] [--db path] [-v] demo [--email e] [--name n] [--external-id id]
//
// The commands read the same environment as the server (see config), so
// pointing them at a running deployment's store only needs its .env.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver  string
	DBPath  string
	Verbose bool
}

// NewRootCommand creates the root command of the seed CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "inkwell-seed",
		Short:         "Seed an inkwell store with prompts and demo content",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Driver != "" && opts.Driver != config.DriverSQLite && opts.Driver != config.DriverMongo {
				return fmt.Errorf("invalid driver %q: must be %s or %s", opts.Driver, config.DriverSQLite, config.DriverMongo)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver (sqlite|mongo), defaults to STORE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "SQLite file, defaults to DB_PATH")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewPromptsCommand(opts))
	cmd.AddCommand(NewDemoCommand(opts))

	return cmd
}

// openStore resolves configuration from the environment, applies flag
// overrides and opens the store.
func openStore(opts *RootOptions) (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.StoreDriver = opts.Driver
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	return storage.Open(cfg)
}

// newLogger writes to stderr so stdout stays a clean summary line. Without
// -v only warnings show.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
