// Command worldserver wires the repository, capability store, interpreter
// registry, scheduler, and session dispatcher into one running process and
// serves the wire protocol over gorilla/websocket.
//
// Grounded on the teacher's cmd/appserver/main.go: flag-driven DSN/addr
// resolution, optional embedded migrations, signal-triggered graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/worldcore/internal/capability"
	"github.com/R3E-Network/worldcore/internal/dispatcher"
	"github.com/R3E-Network/worldcore/internal/hoststats"
	"github.com/R3E-Network/worldcore/internal/interp"
	"github.com/R3E-Network/worldcore/internal/opcodes"
	"github.com/R3E-Network/worldcore/internal/scheduler"
	"github.com/R3E-Network/worldcore/internal/storage"
	"github.com/R3E-Network/worldcore/internal/storage/postgres"
	"github.com/R3E-Network/worldcore/internal/storage/postgres/migrations"
	"github.com/R3E-Network/worldcore/internal/system"
	"github.com/R3E-Network/worldcore/internal/transport"
	"github.com/R3E-Network/worldcore/pkg/config"
	"github.com/R3E-Network/worldcore/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "HTTP/WS listen address (defaults to config or :8080)")
	dsn := flag.String("dsn", "", "PostgreSQL DSN (overrides config/env; in-memory storage when empty)")
	configPath := flag.String("config", "", "Path to configuration file (YAML or JSON)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if trimmed := strings.TrimSpace(*configPath); trimmed != "" {
		cfg, err = loadConfigFile(trimmed)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logEntry := logrus.NewEntry(logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}).Logger)

	repo, closeStore := openStore(resolveDSN(*dsn, cfg), cfg.Database.MigrateOnStart, logEntry)
	defer closeStore()

	capStore := capability.New(repo, logEntry)

	// registry starts empty; Runner and Scheduler only hold a pointer to it,
	// so they can be built before opcodes.Register populates its handler
	// table below — Register must run before any verb actually executes,
	// not before these pointers are taken.
	registry := interp.NewRegistry()
	runner := dispatcher.NewRunner(repo, registry)

	sched := scheduler.New(runner, logEntry.WithField("component", "scheduler"), 100*time.Millisecond, interp.DefaultGas)
	cronSched := scheduler.NewCron(runner, logEntry.WithField("component", "cron"), interp.DefaultGas)

	opcodes.Register(registry, opcodes.Env{
		Repo:      repo,
		Caps:      capStore,
		Scheduler: sched,
		Host:      hoststats.New(),
		Log:       logEntry,
	})

	var issuer *transport.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		issuer = transport.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), 24*time.Hour)
	}

	var hub *transport.Hub
	if cfg.Redis.Addr != "" {
		hub = transport.NewHub(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	}

	manager := system.NewManager()
	mustRegister(manager, sched)
	mustRegister(manager, cronSched)

	listenAddr := determineAddr(*addr, cfg)
	srv := transport.NewServer(transport.Config{
		Addr:        listenAddr,
		Runner:      runner,
		Repo:        repo,
		Issuer:      issuer,
		Hub:         hub,
		Log:         logEntry.WithField("component", "transport"),
		Gas:         interp.DefaultGas,
		Descriptors: manager.Descriptors,
	})
	mustRegister(manager, srv)

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}
	logEntry.WithField("addr", listenAddr).Info("worldserver started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	if hub != nil {
		_ = hub.Close()
	}
}

func mustRegister(m *system.Manager, svc system.Service) {
	if err := m.Register(svc); err != nil {
		log.Fatalf("register %s: %v", svc.Name(), err)
	}
}

func openStore(dsn string, migrate bool, log *logrus.Entry) (storage.Store, func()) {
	if dsn == "" {
		log.Warn("no database DSN configured; using in-memory storage")
		return storage.NewMemory(), func() {}
	}
	db, err := postgres.Open(context.Background(), dsn)
	if err != nil {
		logrusFatal(log, "connect to postgres", err)
	}
	if migrate {
		if err := migrations.Apply(db.DB); err != nil {
			logrusFatal(log, "apply migrations", err)
		}
		log.Info("migrations applied")
	}
	return postgres.New(db), func() { _ = db.Close() }
}

func resolveDSN(flagDSN string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagDSN); trimmed != "" {
		return trimmed
	}
	if cfg != nil {
		return strings.TrimSpace(cfg.Database.DSN)
	}
	return ""
}

func determineAddr(flagAddr string, cfg *config.Config) string {
	if trimmed := strings.TrimSpace(flagAddr); trimmed != "" {
		return trimmed
	}
	if cfg != nil && cfg.Server.Port != 0 {
		host := strings.TrimSpace(cfg.Server.Host)
		if host == "" {
			host = "0.0.0.0"
		}
		return host + ":" + strconv.Itoa(cfg.Server.Port)
	}
	return ":8080"
}

func loadConfigFile(path string) (*config.Config, error) {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return config.LoadConfig(path)
	}
	return config.LoadFile(path)
}

func logrusFatal(log *logrus.Entry, action string, err error) {
	log.WithError(err).Fatal(action)
}

