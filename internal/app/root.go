// Package app wires configuration, credentials and the sync engine into the
// feed2imap command line.
package app

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nhle/feed2imap/internal/logger"
	"github.com/nhle/feed2imap/internal/model"
)

// App holds state shared by every command.
type App struct {
	configPath string
	logLevel   string
	logFormat  string

	stdout io.Writer
	stderr io.Writer

	logger *slog.Logger
}

// New creates an App writing regular output to stdout and logs to stderr.
func New(stdout, stderr io.Writer) *App {
	return &App{
		stdout: stdout,
		stderr: stderr,
		logger: logger.Discard(),
	}
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "feed2imap",
		Short:         "Deliver RSS and Atom feeds to an IMAP folder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", model.DefaultConfigPath(), "path to the configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "", "override log.format (text, json)")

	root.AddCommand(
		a.newSyncCommand(),
		a.newAddCommand(),
		a.newRemoveCommand(),
		a.newListCommand(),
		a.newInitCommand(),
		a.newDefaultConfigCommand(),
		a.newHistoryCommand(),
	)

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return root
}

// Execute runs the command line with args.
func (a *App) Execute(ctx context.Context, args []string) error {
	root := a.RootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Logger returns the logger configured by the last loaded config.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// loadConfig reads the configuration, applies the logging flags and
// installs the resulting logger.
func (a *App) loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	a.logger = logger.SetupDefault(a.stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

// isTerminal reports whether v is a file attached to a terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
