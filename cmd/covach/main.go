package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"covach/internal/app/ledger"
	"covach/internal/app/policies"
	"covach/internal/app/search"
	"covach/internal/app/sweep"
	domainlisting "covach/internal/domain/listing"
	domainrange "covach/internal/domain/shared/daterange"
	"covach/internal/domain/shared/money"
	"covach/internal/infra/broker/kafka"
	"covach/internal/infra/config"
	mongodb "covach/internal/infra/db/mongo"
	ginserver "covach/internal/infra/http/gin"
	"covach/internal/infra/notify"
	"covach/internal/infra/obs"
	infraoutbox "covach/internal/infra/outbox"
	"covach/internal/infra/storage/memory"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Ready: app.ready}, ginserver.Handlers{
		Reservation: ginserver.ReservationHandler{Ledger: app.ledger},
		Search:      ginserver.SearchHandler{Svc: app.search},
	})

	runner := &sweep.Runner{Ledger: app.ledger, Interval: cfg.SweepInterval, Logger: logger}
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sweep runner stopped", "error", err)
		}
	}()

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	ledger       *ledger.Service
	search       *search.Service
	outboxWorker *infraoutbox.Worker
	ready        func() error
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	switch cfg.StorageMode {
	case "mongo":
		return buildMongoApplication(ctx, cfg, logger)
	default:
		return buildMemoryApplication(cfg, logger)
	}
}

func buildMongoApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}
	factory := mongodb.Factory{
		DB:               client.DB,
		ListingsRepo:     mongodb.NewListingRepository(client.DB),
		BlocksRepo:       mongodb.NewBlockRepository(client.DB),
		ReservationsRepo: mongodb.NewReservationRepository(client.DB),
		EventsRepo:       mongodb.NewEventLog(client.DB),
	}
	hostProfiles := mongodb.NewHostProfileDirectory(client.DB)
	outboxStore := infraoutbox.NewStore(client.DB)

	svc := &ledger.Service{
		UoW:          factory,
		HostProfiles: hostProfiles,
		Notifier:     notify.NewStoreNotifier(client.DB, logger),
		Outbox:       outboxStore,
		RequestTTL:   cfg.RequestTTL,
		Logger:       logger,
	}

	app := &application{
		ledger: svc,
		search: &search.Service{UoW: factory, HostProfiles: hostProfiles},
		ready:  func() error { return client.Ping(ctx) },
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, err
		}
		app.outboxWorker = &infraoutbox.Worker{
			Store:       outboxStore,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      "app://covach",
		}
	} else {
		logger.Warn("KAFKA_BROKERS unset: reservation events stay in the outbox")
	}
	return app, nil
}

func buildMemoryApplication(cfg config.Config, logger *slog.Logger) (*application, error) {
	listings := memory.NewListingRepository()
	blocks := memory.NewBlockRepository()
	reservations := memory.NewReservationRepository()
	events := memory.NewEventLog()
	hostProfiles := memory.NewHostProfileDirectory()
	factory := &memory.Factory{
		ListingsRepo:     listings,
		BlocksRepo:       blocks,
		ReservationsRepo: reservations,
		Events:           events,
	}

	seedDemoData(listings, blocks, hostProfiles)

	svc := &ledger.Service{
		UoW:          factory,
		HostProfiles: hostProfiles,
		Notifier:     notify.LogNotifier{Logger: logger},
		Outbox:       memory.NewOutbox(),
		RequestTTL:   cfg.RequestTTL,
		Logger:       logger,
	}
	return &application{
		ledger: svc,
		search: &search.Service{UoW: factory, HostProfiles: hostProfiles},
		ready:  func() error { return nil },
	}, nil
}

// seedDemoData gives the in-memory mode something to book against.
func seedDemoData(listings *memory.ListingRepository, blocks *memory.BlockRepository, hostProfiles *memory.HostProfileDirectory) {
	now := time.Now().UTC()
	hostProfiles.Set("host-demo", policies.HostProfileApproved)
	listings.Put(&domainlisting.Listing{
		ID:                 "lst-demo-loft",
		HostID:             "host-demo",
		Title:              "Riverside loft",
		PropertyType:       domainlisting.PropertyApartment,
		City:               "Portland",
		Country:            "United States",
		NightlyRate:        money.FromDollars(120),
		MaxGuests:          4,
		Status:             domainlisting.StatusPublished,
		CancellationPolicy: domainlisting.PolicyModerate,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	listings.Put(&domainlisting.Listing{
		ID:                 "lst-demo-cabin",
		HostID:             "host-demo",
		Title:              "Spruce cabin",
		PropertyType:       domainlisting.PropertyCabin,
		City:               "Bend",
		Country:            "United States",
		NightlyRate:        money.FromDollars(180),
		MaxGuests:          6,
		Status:             domainlisting.StatusPublished,
		CancellationPolicy: domainlisting.PolicyStrict,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
	blockStart := domainrange.Date(now).AddDate(0, 1, 0)
	blocks.Put(&domainlisting.AvailabilityBlock{
		ID:        "blk-demo-cabin",
		ListingID: "lst-demo-cabin",
		Range:     domainrange.DateRange{CheckIn: blockStart, CheckOut: blockStart.AddDate(0, 0, 7)},
		Reason:    "Owner visit",
		CreatedAt: now,
	})
}
