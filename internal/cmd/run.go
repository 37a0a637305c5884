package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/orchard/internal/chain"
	"github.com/Iron-Ham/orchard/internal/config"
	"github.com/Iron-Ham/orchard/internal/dataset"
	"github.com/Iron-Ham/orchard/internal/event"
	"github.com/Iron-Ham/orchard/internal/logging"
	"github.com/Iron-Ham/orchard/internal/metrics"
	"github.com/Iron-Ham/orchard/internal/progress"
	"github.com/Iron-Ham/orchard/internal/report"
	"github.com/Iron-Ham/orchard/internal/search"
	"github.com/Iron-Ham/orchard/internal/tui/progressbar"
)

var runCmd = &cobra.Command{
	Use:   "run <file.ssm>",
	Short: "Run an ensemble search over a read-count file",
	Long: `Run an ensemble search over a read-count file.

Each chain derives its seed from --seed and its index, so a run is
reproducible for a fixed seed, chain count, and model. At most --pool-size
chains search at once. If any chain fails the run stops and reports which
chain failed and why.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

// runFlags maps flag names to config keys.
var runFlags = []struct {
	flag string
	key  string
}{
	{"chains", "run.chains"},
	{"pool-size", "run.pool_size"},
	{"seed", "run.seed"},
	{"randomize-nodes", "run.randomize_nodes"},
	{"model", "model.kind"},
	{"beam-width", "model.beam_width"},
	{"max-placements", "model.max_placements"},
	{"format", "output.format"},
	{"top", "output.top"},
	{"progress", "progress.style"},
	{"log-dir", "logging.dir"},
	{"log-level", "logging.level"},
	{"metrics-addr", "metrics.addr"},
}

func init() {
	rootCmd.AddCommand(runCmd)

	defaults := config.Default()
	f := runCmd.Flags()
	f.IntP("chains", "n", defaults.Run.Chains, "Number of independently seeded chains")
	f.IntP("pool-size", "p", defaults.Run.PoolSize, "Maximum concurrent chains (0 = one per CPU)")
	f.Int64P("seed", "s", defaults.Run.Seed, "Base seed for all chains")
	f.Bool("randomize-nodes", defaults.Run.RandomizeNodes, "Sample a node order per chain")
	f.String("model", defaults.Model.Kind, "Search model: beam or stochastic")
	f.IntP("beam-width", "w", defaults.Model.BeamWidth, "Partial trees kept per step")
	f.Int("max-placements", defaults.Model.MaxPlacements, "Candidate parents per step (0 = unlimited)")
	f.StringP("format", "f", defaults.Output.Format, "Output format: table, markdown, json, yaml")
	f.Int("top", defaults.Output.Top, "Trees to print (0 = all)")
	f.String("progress", defaults.Progress.Style, "Progress style: auto, bar, plain, none")
	f.String("log-dir", defaults.Logging.Dir, "Write debug.log here instead of stderr")
	f.String("log-level", defaults.Logging.Level, "Log level: debug, info, warn, error")
	f.String("metrics-addr", defaults.Metrics.Addr, "Serve Prometheus metrics on this address during the run")

	for _, b := range runFlags {
		_ = viper.BindPFlag(b.key, f.Lookup(b.flag))
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	kind, err := search.ParseKind(cfg.Model.Kind)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	data, err := dataset.Load(args[0])
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(reg)
	if cfg.Metrics.Addr != "" {
		exporter := metrics.NewExporter(cfg.Metrics.Addr, reg)
		if err := exporter.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		logger.Info("serving metrics", "addr", exporter.Addr())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = exporter.Stop(ctx)
		}()
	}

	bus := event.NewBus(logger)
	bus.SubscribeAll(func(e event.Event) {
		logger.Debug("event", "type", e.EventType())
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg, err := chain.RunParallel(ctx, kind, cfg.SearchParams(), data, cfg.ChainRunConfig(),
		chain.WithLogger(logger),
		chain.WithBus(bus),
		chain.WithMetrics(recorder),
		chain.WithIndicator(newIndicator(cfg.Progress.Style, cmd.ErrOrStderr())),
		chain.WithChannelCapacity(cfg.Progress.ChannelCapacity),
		chain.WithPushTimeout(cfg.Progress.PushTimeout()),
	)
	if err != nil {
		return fmt.Errorf("ensemble run failed: %w", err)
	}

	return report.Render(cmd.OutOrStdout(), agg, report.Options{Format: format, Top: cfg.Output.Top})
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Dir, logging.ParseLevel(cfg.Level))
}

// newIndicator picks the progress indicator for style. "auto" draws a bar
// only when w is a terminal.
func newIndicator(style string, w io.Writer) progress.Indicator {
	switch style {
	case "none":
		return progress.Nop{}
	case "plain":
		return progress.NewPlain(w, 10)
	case "bar":
		return progressbar.New(w, "searching")
	default:
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return progressbar.New(w, "searching")
		}
		return progress.NewPlain(w, 10)
	}
}
