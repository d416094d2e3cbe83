package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gcligateway/internal/config"
	"gcligateway/internal/constants"
	"gcligateway/internal/credential"
	"gcligateway/internal/crypto"
	"gcligateway/internal/dispatcher"
	"gcligateway/internal/events"
	"gcligateway/internal/logging"
	"gcligateway/internal/models"
	tracing "gcligateway/internal/monitoring/tracing"
	"gcligateway/internal/oauth"
	"gcligateway/internal/quota"
	srv "gcligateway/internal/server"
	"gcligateway/internal/storage"
	"gcligateway/internal/upstream/gemini"
	"gcligateway/internal/usage"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug mode")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Warn("failed to load configuration file, using defaults")
		cfg = config.Defaults()
	}
	if *debug {
		cfg.Debug = true
	}

	if err := logging.Setup(&cfg); err != nil {
		log.WithError(err).Fatal("failed to configure logging")
	}

	store := config.NewStore(cfg)
	getCfg := store.Get

	eventHub := events.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traceShutdown, err := tracing.Init(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to initialize tracing")
	}
	if traceShutdown != nil {
		defer func() {
			if err := traceShutdown(context.Background()); err != nil {
				log.WithError(err).Warn("failed to shutdown tracing")
			}
		}()
	}

	if err := config.WatchFile(ctx, *configPath, store, eventHub); err != nil {
		log.WithError(err).Warn("config file watch disabled")
	}

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		log.WithError(err).Fatal("database migration failed")
	}
	db, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	vault, err := crypto.NewVault(cfg.CryptoSecret)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize credential vault")
	}

	pool := credential.NewPool(db,
		func() config.CooldownConfig { return getCfg().Cooldown },
		func() config.PoolMode { return getCfg().PoolMode },
		func() config.QuotaConfig { return getCfg().Quota },
	)
	guard := quota.NewGuard(db, func() config.QuotaConfig { return getCfg().Quota })
	refresher := oauth.NewRefresher()
	resolver := oauth.NewProjectResolver()
	usageLogger := usage.NewLogger(db, eventHub)

	clients := map[storage.Variant]*gemini.Client{
		storage.Variant(models.VariantA): gemini.NewClient(models.VariantA, "gateway"),
		storage.Variant(models.VariantB): gemini.NewClient(models.VariantB, "gateway"),
	}

	disp := &dispatcher.Dispatcher{
		DB:        db,
		Pool:      pool,
		Guard:     guard,
		Vault:     vault,
		Refresher: refresher,
		Resolver:  resolver,
		Clients:   clients,
		Usage:     usageLogger,
		Cfg:       getCfg,
	}

	engine := srv.BuildEngine(srv.Dependencies{
		DB:         db,
		Dispatcher: disp,
		Cfg:        getCfg,
		Events:     eventHub,
	})

	httpSrv := &http.Server{Addr: getCfg().ListenAddr, Handler: engine}

	go func() {
		log.Infof("gateway listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("server stopped unexpectedly")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constants.ServerShutdownTimeout)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown error")
	}
	time.Sleep(constants.ServerGracefulWait)
	log.Info("server stopped")
}
