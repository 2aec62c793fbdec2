// Command streamwatch monitors oceanographic data stream health: it
// ingests particle/byte counters, classifies each stream against its
// thresholds, and delivers status-change events to the asset event
// service through a durable outbox.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/oceanobs/streamwatch/internal/api"
	"github.com/oceanobs/streamwatch/internal/conf"
	"github.com/oceanobs/streamwatch/internal/datastore"
	"github.com/oceanobs/streamwatch/internal/datastore/repository"
	"github.com/oceanobs/streamwatch/internal/ingest"
	"github.com/oceanobs/streamwatch/internal/logger"
	"github.com/oceanobs/streamwatch/internal/monitor"
	"github.com/oceanobs/streamwatch/internal/notifier"
	"github.com/oceanobs/streamwatch/internal/observability/metrics"
	"github.com/oceanobs/streamwatch/internal/resample"
	"github.com/oceanobs/streamwatch/internal/scheduler"
)

var (
	configFile string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "streamwatch",
		Short:         "Stream health monitor for oceanographic data counters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(runCommand(), loadExpectedCommand(), migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() logger.Logger {
	level := logger.LogLevelInfo
	if debug {
		level = logger.LogLevelDebug
	}
	return logger.NewSlogLogger(os.Stderr, level, nil)
}

// refdesNames adapts the stream repository to the ingest poller's
// instrument listing.
type refdesNames struct {
	streams repository.StreamRepository
}

func (r *refdesNames) ListRefDesNames(ctx context.Context) ([]string, error) {
	refs, err := r.streams.ListRefDes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for i := range refs {
		names = append(names, refs[i].Name)
	}
	return names, nil
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor, outbox delivery, resampler, and query API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := newLogger()
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}

			db, err := datastore.Open(&settings.Database)
			if err != nil {
				return err
			}
			if err := datastore.Migrate(db); err != nil {
				return err
			}

			streams := repository.NewStreamRepository(db)
			counts := repository.NewCountRepository(db)
			status := repository.NewStatusRepository(db)

			registry := prometheus.NewRegistry()
			collectors := metrics.NewCollectors(registry)

			engine := monitor.NewEngine(streams, counts, status, &settings.Monitor, collectors, log)
			worker := notifier.NewWorker(status, &settings.Notifier, collectors, log)
			resampler := resample.NewResampler(counts, &settings.Resample, collectors, log)

			var source ingest.Source = ingest.NewHTTPSource(&settings.Ingest.HTTP, &refdesNames{streams: streams}, log)
			defer func() { _ = source.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			jobs := scheduler.New(log)
			jobs.Add("ingest-and-classify", settings.Monitor.CheckInterval.Std(), func(ctx context.Context) error {
				readings, err := source.Gather(ctx)
				if err != nil {
					return err
				}
				if err := engine.Ingest(ctx, readings); err != nil {
					return err
				}
				return engine.CheckAll(ctx)
			})
			if settings.Ingest.MQTT.Enabled {
				portSource, err := ingest.NewMQTTSource(&settings.Ingest.MQTT, log)
				if err != nil {
					return err
				}
				defer func() { _ = portSource.Close() }()
				jobs.Add("collect-port-stats", settings.Monitor.CheckInterval.Std(), func(ctx context.Context) error {
					stats, err := portSource.Gather(ctx)
					if err != nil {
						return err
					}
					return engine.IngestPortStats(ctx, stats)
				})
			}
			jobs.Add("deliver-outbox", settings.Notifier.Interval.Std(), worker.Process)
			jobs.Add("resample", settings.Resample.Interval.Std(), resampler.Run)
			jobs.Start(ctx)
			defer jobs.Stop()

			rollupOrder := make([]monitor.Status, 0, len(settings.Monitor.RollupOrder))
			for _, s := range settings.Monitor.RollupOrder {
				rollupOrder = append(rollupOrder, monitor.Status(s))
			}
			windows := make([]time.Duration, 0, len(settings.Monitor.Windows))
			for _, w := range settings.Monitor.Windows {
				windows = append(windows, w.Std())
			}
			queries := monitor.NewQueries(streams, status, monitor.NewWindowEngine(counts, windows), rollupOrder)

			e := echo.New()
			e.HideBanner = true
			api.NewController(e, queries, streams, counts, registry, log)

			go func() {
				<-ctx.Done()
				_ = e.Close()
			}()

			log.Info("streamwatch started",
				logger.String("listen", settings.API.Listen),
				logger.Bool("port_stats", settings.Ingest.MQTT.Enabled))
			if err := e.Start(settings.API.Listen); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}

func loadExpectedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load-expected <csv-file>",
		Short: "Seed expected stream definitions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}
			db, err := datastore.Open(&settings.Database)
			if err != nil {
				return err
			}
			if err := datastore.Migrate(db); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = f.Close() }()

			streams := repository.NewStreamRepository(db)
			loaded, err := ingest.LoadExpectedCSV(cmd.Context(), f, streams, log)
			if err != nil {
				return err
			}
			log.Info("expected streams loaded", logger.Int("count", loaded))
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := conf.Load(configFile)
			if err != nil {
				return err
			}
			db, err := datastore.Open(&settings.Database)
			if err != nil {
				return err
			}
			return datastore.Migrate(db)
		},
	}
}
