package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	apiserver "github.com/rentscope/market-planner/internal/api_server"
	"github.com/rentscope/market-planner/internal/config"
	"github.com/rentscope/market-planner/internal/events"
	"github.com/rentscope/market-planner/internal/service"
	"github.com/rentscope/market-planner/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator, the completion consumer, the timeout scanner and the batch scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, teardown := setup()
		defer teardown()

		zap.S().Info("Starting market planner")
		defer zap.S().Info("Market planner stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if err := s.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		writer, reader, err := newBus(cfg)
		if err != nil {
			zap.S().Fatalw("connecting to the bus", "error", err)
		}

		var workWriter events.Writer = writer
		if !cfg.Kafka.Enabled() {
			workWriter = &events.StdoutWriter{}
		}

		publisher := events.NewPublisher(workWriter,
			events.WithTopic(events.WorkRequestMessageKind, cfg.Kafka.WorkRequestTopic),
			events.WithPublishTimeout(cfg.Orchestrator.PublishTimeout),
		)
		// closing the producer closes the shared writer
		producer := events.NewEventProducer(writer, events.WithOutputTopic(cfg.Kafka.DataUpdatedTopic))
		defer producer.Close()

		orchestrator := service.NewOrchestrator(s, publisher)
		consumer := service.NewCompletionConsumer(orchestrator, reader, producer, cfg.Kafka.CompletionTopic, cfg.Kafka.FailureTopic)
		// the listener evicts what the analytics service caches
		analysisCache := store.NewMemoryAnalysisCache()
		analytics := service.NewAnalyticsService(s, analysisCache)
		cacheListener := service.NewCacheInvalidationListener(analysisCache, reader, cfg.Kafka.DataUpdatedTopic)
		scanner := service.NewTimeoutScanner(orchestrator, cfg.Orchestrator.JobTimeout, cfg.Orchestrator.TimeoutScanInterval)
		scheduler := service.NewBatchScheduler(s, orchestrator,
			cfg.Batch.Strategy,
			cfg.Batch.Delay(),
			cfg.Batch.StaleThreshold(),
			service.WithBatchInterval(cfg.Batch.Interval),
		)

		listener, err := newListener(cfg.Service.MetricsAddress)
		if err != nil {
			zap.S().Fatalw("creating listener", "error", err)
		}
		metricServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s, scheduler, analytics, cfg.Service.LogLevel)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return consumer.Run(ctx) })
		g.Go(func() error { return cacheListener.Run(ctx) })
		g.Go(func() error { return scanner.Run(ctx) })
		g.Go(func() error { return scheduler.Run(ctx) })
		g.Go(func() error { return metricServer.Run(ctx) })

		if err := g.Wait(); err != nil {
			zap.S().Errorw("market planner exited with error", "error", err)
			return err
		}
		return nil
	},
}

// newBus returns the kafka transport when brokers are configured and the in process bus otherwise.
func newBus(cfg *config.Config) (events.Writer, events.Reader, error) {
	if !cfg.Kafka.Enabled() {
		zap.S().Warn("no kafka broker configured, using the in process bus: work requests are only logged")
		bus := events.NewMemoryBus()
		return bus, bus, nil
	}

	kafkaCfg := events.KafkaConfig{
		Brokers:       cfg.Kafka.Brokers,
		ClientID:      cfg.Kafka.ClientID,
		ConsumerGroup: cfg.Kafka.ConsumerGroup,
		WriteTimeout:  cfg.Orchestrator.PublishTimeout,
	}
	writer, err := events.NewKafkaWriter(kafkaCfg)
	if err != nil {
		return nil, nil, err
	}
	zap.S().Infow("using kafka bus", "brokers", cfg.Kafka.Brokers)
	return writer, events.NewKafkaReader(kafkaCfg), nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
