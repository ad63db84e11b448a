package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/lazytime/internal/app"
	"github.com/Joseda-hg/lazytime/internal/config"
	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

var (
	configPath    string
	dbPath        string
	historyDBPath string
	verbose       bool

	cfg config.Config
	env *app.Env
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "lazytime",
	Short: "Hierarchical time tracker",
	Long: `lazytime tracks time spent on nested tasks.

Tasks are named by paths such as "work::client::meeting"; starting a path
creates the tasks it is missing.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite db path")
	rootCmd.PersistentFlags().StringVar(&historyDBPath, "history-db", "", "history sqlite db path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func setup(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultConfigPath(); err != nil {
			return err
		}
	}

	var err error
	if cfg, err = config.Load(path); err != nil {
		return err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if historyDBPath != "" {
		cfg.HistoryDBPath = historyDBPath
	}

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	log = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	env, err = app.Open(cfg, app.WithLogger(log), app.WithClock(clock))
	return err
}

func teardown(*cobra.Command, []string) error {
	if env == nil {
		return nil
	}
	err := env.Close()
	env = nil
	return err
}

// update runs fn in a committed transaction.
func update(cmd *cobra.Command, fn func(context.Context, *core.Tracker) error) error {
	ctx := cmd.Context()
	return env.Update(ctx, func(tr *core.Tracker) error { return fn(ctx, tr) })
}

// view runs fn in a transaction that is rolled back.
func view(cmd *cobra.Command, fn func(context.Context, *core.Tracker) error) error {
	ctx := cmd.Context()
	return env.View(ctx, func(tr *core.Tracker) error { return fn(ctx, tr) })
}

// Execute runs the root command and prints any error to stderr.
func Execute(version string) error {
	rootCmd.Version = version
	err := rootCmd.ExecuteContext(context.Background())
	if env != nil {
		_ = teardown(rootCmd, nil)
	}
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return err
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err)

	var running *core.RunningError
	if errors.As(err, &running) {
		fmt.Fprintln(w, "Stop or cancel it first.")
	}
	if verbose {
		if stack := orm.Stack(err); stack != "" {
			fmt.Fprintln(w, strings.TrimRight(stack, "\n"))
		}
	}
}
