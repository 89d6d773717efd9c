package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/api"
	"example.com/flosla/services/registration/internal/cache"
	"example.com/flosla/services/registration/internal/database"
	"example.com/flosla/services/registration/internal/messaging"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/paystack"
	"example.com/flosla/services/registration/internal/search"
	"example.com/flosla/services/registration/internal/services"
	"example.com/flosla/services/registration/internal/tracing"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for registrations, payments and receipts`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = nil
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

	svcs := api.Services{
		Payments: services.NewPaymentService(
			db, readOnlyDB, provider, publisher, indexerOrNil(elasticClient),
			metricsCollector, tracer, cfg.FrontendURL,
		),
		Registrations: services.NewRegistrationService(db, readOnlyDB, metricsCollector),
		Events:        services.NewEventService(db, readOnlyDB, redisCache),
		Receipts:      services.NewReceiptService(db, readOnlyDB, redisCache),
		Admins:        services.NewAdminService(db, readOnlyDB, cfg.Auth),
	}

	server := api.NewServer(cfg, svcs, metricsCollector)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	<-ctx.Done()

	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

// indexerOrNil keeps a typed-nil *ElasticClient out of the PaymentIndexer
// interface value.
func indexerOrNil(client *search.ElasticClient) services.PaymentIndexer {
	if client == nil {
		return nil
	}
	return client
}
