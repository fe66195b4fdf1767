// README: Entry point; loads config, wires services, starts HTTP server and the pending-trip scheduler.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ridequick/internal/config"
	"ridequick/internal/geo"
	httptransport "ridequick/internal/http"
	"ridequick/internal/infra"
	"ridequick/internal/maps"
	"ridequick/internal/modules/driver"
	"ridequick/internal/modules/matching"
	"ridequick/internal/modules/pricing"
	"ridequick/internal/modules/trip"
)

type stores struct {
	drivers driver.Store
	cabs    pricing.Store
	trips   trip.Store
	close   func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := infra.NewLogger(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rnd := geo.NewLockedRand(seed)

	var index driver.Index
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		index = driver.NewRedisIndex(redisClient)
	}

	driverSvc := driver.NewService(st.drivers, index, rnd, logger.Named("driver"))
	pricingSvc := pricing.NewService(st.cabs, logger.Named("pricing"))
	if cfg.Storage.Seed {
		if n, err := pricingSvc.Seed(ctx); err != nil {
			return err
		} else if n > 0 {
			logger.Info("seeded cab types", zap.Int("count", n))
		}
		if n, err := driverSvc.Seed(ctx); err != nil {
			return err
		} else if n > 0 {
			logger.Info("seeded drivers", zap.Int("count", n))
		}
	}
	if index != nil {
		if err := driverSvc.SyncIndex(ctx); err != nil {
			logger.Warn("driver index sync failed, queries fall back to the store", zap.Error(err))
		}
	}

	matchingSvc := matching.NewService(driverSvc, cfg.Matching, logger.Named("matching"))

	var events trip.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		events = trip.NewKafkaPublisher(writer)
	}

	tripSvc := trip.NewService(trip.Deps{
		Store:            st.trips,
		Drivers:          driverSvc,
		Dispatcher:       matchingSvc,
		Pricing:          pricingSvc,
		Events:           events,
		Rand:             rnd,
		Logger:           logger.Named("trip"),
		ArrivalJitterDeg: cfg.Matching.ArrivalJitterDeg,
	})

	verifier := infra.NewDevVerifier()
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("RIDEQUICK_FIREBASE_PROJECT_ID not set, bearer tokens are accepted as user ids")
	}

	deps := httptransport.ServerDeps{
		Trips:    tripSvc,
		Drivers:  driverSvc,
		Pricing:  pricingSvc,
		Verifier: verifier,
		Logger:   logger.Named("http"),
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return err
		}
		deps.Routes = routes
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httptransport.NewServer(deps).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go matchingSvc.RunScheduler(ctx, tripSvc)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTP.Addr), zap.String("backend", cfg.Storage.Backend))
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return nil, err
		}
		return &stores{
			drivers: driver.NewPGStore(db),
			cabs:    pricing.NewPGStore(db),
			trips:   trip.NewPGStore(db),
			close:   db.Close,
		}, nil
	case config.BackendMongo:
		client, err := infra.NewMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.Mongo.Database)
		return &stores{
			drivers: driver.NewMongoStore(db),
			cabs:    pricing.NewMongoStore(db),
			trips:   trip.NewMongoStore(db),
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := client.Disconnect(closeCtx); err != nil {
					logger.Warn("mongo disconnect", zap.Error(err))
				}
			},
		}, nil
	default:
		return &stores{
			drivers: driver.NewMemoryStore(),
			cabs:    pricing.NewMemoryStore(),
			trips:   trip.NewMemoryStore(),
			close:   func() {},
		}, nil
	}
}
