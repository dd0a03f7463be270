// Copyright (c) 2026 Keymaster Team
// dbdispatch - unified database dispatch with blocking-call offload
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/dbdispatch/internal/config"
	"github.com/toeirei/dbdispatch/internal/db"
	"github.com/toeirei/dbdispatch/internal/i18n"
	"github.com/toeirei/dbdispatch/internal/logging"
	"github.com/toeirei/dbdispatch/internal/offload"
)

const shutdownTimeout = 10 * time.Second

// app carries the state shared by the commands of one root command.
type app struct {
	cfgFile string
	verbose bool
	cfg     config.Config
}

// setup runs before every command: configuration first, then the services
// that depend on it.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		if _, err := os.Stat(a.cfgFile); err != nil {
			return fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
		}
	}
	cfg, err := config.Load(cmd, a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	a.cfg = cfg

	if err := logging.Setup(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	i18n.Init(cfg.Language)
	db.SetDebug(cfg.Log.DBDebug || a.verbose)

	err = offload.Init(offload.Options{
		Name:          "default",
		Workers:       cfg.Pool.Workers,
		QueueSize:     cfg.Pool.QueueSize,
		SubmitRetries: cfg.Pool.SubmitRetries,
		SubmitBackoff: cfg.Pool.SubmitBackoff,
	})
	if err != nil && !errors.Is(err, offload.ErrAlreadyInitialized) {
		return fmt.Errorf("error starting offload pool: %w", err)
	}
	logging.Debugf("config loaded: database=%s mode=%q workers=%d", cfg.Database.Type, cfg.Database.Mode, cfg.Pool.Workers)
	return nil
}

// openSession opens the configured database on the process-wide pool.
func (a *app) openSession(ctx context.Context) (db.Session, error) {
	return db.Open(ctx, a.cfg.Database, offload.Default())
}

// NewRootCmd creates and configures a new root cobra command.
// Each call returns an independent command tree, so tests can build as many
// as they like.
func NewRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:               "dbdispatch",
		Short:             i18n.T("cli.root.short"),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	cmd.Version = versionString()

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/dbdispatch/dbdispatch.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable DB debug logging")
	flags.String("database.type", "sqlite", `Database type ("sqlite", "mysql", "postgres")`)
	flags.String("database.dsn", "dbdispatch.db", "Database connection string (DSN)")
	flags.String("database.mode", "", `Adapter mode ("blocking", "native"); empty picks the backend default`)
	flags.Int("pool.workers", offload.DefaultWorkers, "Number of offload workers")
	flags.String("log.level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("log.json", false, "Log as JSON")
	flags.String("language", "en", `CLI language ("en", "de")`)

	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newExecCmd(a))
	cmd.AddCommand(newBenchCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	return cmd
}

// Run executes the CLI with args and shuts the process-wide pool down
// afterwards, whether or not the command succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := offload.Shutdown(shutdownCtx); serr != nil {
		logging.Errorf("offload shutdown: %v", serr)
		if err == nil {
			err = serr
		}
	}
	return err
}

// Execute runs the CLI entrypoint. The main package should call this
// function and handle process exit.
func Execute() error {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}
