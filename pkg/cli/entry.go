// Package cli is the loopviz command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/funvibe/loopviz/internal/config"
	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/explain"
	"github.com/funvibe/loopviz/internal/logging"
	"github.com/funvibe/loopviz/internal/progress"
	"github.com/funvibe/loopviz/internal/render"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/funvibe/loopviz/internal/session"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
)

// Version is set at build time with -ldflags "-X github.com/funvibe/loopviz/pkg/cli.Version=...".
var Version = "dev"

// app carries the state shared by all subcommands.
type app struct {
	configPath   string
	verbosity    int
	color        string
	scenarioDirs []string

	cfg     *config.Config
	catalog *scenario.Catalog
	log     commonlog.Logger
}

// Main runs the command line and exits with its status.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the loopviz command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "loopviz",
		Short: "Step through JavaScript execution contexts and the event loop",
		Long: `loopviz replays instruction scripts that model how a JavaScript engine
runs code: execution contexts, hoisting, the temporal dead zone, closures,
and the microtask and macrotask queues of the event loop.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to loopviz.yaml (default: searched from the working directory)")
	flags.CountVarP(&a.verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringVar(&a.color, "color", "", "color output: auto, always or never")
	flags.StringArrayVar(&a.scenarioDirs, "scenarios", nil, "extra directory with scenario files (repeatable)")

	root.AddCommand(
		a.listCommand(),
		a.showCommand(),
		a.runCommand(),
		a.debugCommand(),
		a.exportCommand(),
		a.serveCommand(),
		a.remoteCommand(),
		a.progressCommand(),
		a.conceptsCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(a.configPath, wd)
	if err != nil {
		return err
	}
	if a.color != "" {
		cfg.Color = a.color
	}
	if a.verbosity > 0 {
		cfg.Log.Verbosity = a.verbosity
	}
	cfg.Scenarios.Dirs = append(cfg.Scenarios.Dirs, a.scenarioDirs...)
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logging.Configure(cfg.Log.Verbosity, cfg.Log.File)
	a.log = logging.Get("cli")
	if cfg.Path != "" {
		a.log.Infof("using configuration %s", cfg.Path)
	}

	a.catalog, err = scenario.Load(cfg.Scenarios.Dirs...)
	return err
}

func (a *app) printer(w io.Writer) *render.Printer {
	f, _ := w.(*os.File)
	return render.NewPrinter(w, render.ColorEnabled(a.cfg.Color, f))
}

func (a *app) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithExplainer(explain.Default()),
		engine.WithMaxCallDepth(a.cfg.Engine.MaxCallDepth),
	}
}

// sessionOptions configures controllers and records completed runs in store
// when it is not nil.
func (a *app) sessionOptions(ctx context.Context, store *progress.Store) []session.Option {
	opts := []session.Option{
		session.WithEngineOptions(a.engineOptions()...),
		session.WithAutoReset(a.cfg.Play.AutoReset),
	}
	if store != nil {
		opts = append(opts, session.WithCompletion(func(s *scenario.Scenario, final engine.State) {
			if err := store.MarkCompleted(ctx, s.ID, final.StepsExecuted); err != nil {
				a.log.Warningf("recording progress for %s: %s", s.ID, err)
			}
		}))
	}
	return opts
}

// openProgress opens the progress database. Failure is logged and yields
// nil, since progress is a convenience.
func (a *app) openProgress() *progress.Store {
	store, err := progress.Open(a.cfg.Progress.Path)
	if err != nil {
		a.log.Warningf("progress disabled: %s", err)
		return nil
	}
	return store
}

func closeProgress(store *progress.Store) {
	if store != nil {
		store.Close()
	}
}
