package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/database"
	"example.com/flosla/services/registration/internal/messaging"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/paystack"
	"example.com/flosla/services/registration/internal/search"
	"example.com/flosla/services/registration/internal/services"
	"example.com/flosla/services/registration/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that periodically reconciles stale pending registrations against the payment provider`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		return err
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search indexing")
		elasticClient = nil
	}

	publisher, err := messaging.NewSettlementPublisher(cfg.Azure)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to close settlement publisher")
		}
	}()

	metricsCollector := metrics.NewMetrics()
	provider := paystack.NewClient(cfg.Paystack)

	paymentService := services.NewPaymentService(
		db, readOnlyDB, provider, publisher, indexerOrNil(elasticClient),
		metricsCollector, tracer, cfg.FrontendURL,
	)

	// The sweep is the safety net for webhook credits dropped during
	// storage outages: any registration the provider settled but the
	// service never credited gets picked up here.
	g.Go(func() error {
		log.Info().
			Dur("interval", cfg.Worker.SweepInterval).
			Dur("grace", cfg.Worker.SweepGrace).
			Msg("Starting payment reconciliation sweep")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.SweepInterval),
			gocron.NewTask(func() {
				if err := paymentService.ReconcilePending(ctx, cfg.Worker.SweepGrace, cfg.Worker.SweepBatch); err != nil {
					log.Error().Err(err).Msg("Reconciliation sweep failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()

		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
