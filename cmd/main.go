package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"tableside/internal/auth"
	"tableside/internal/config"
	"tableside/internal/docstore"
	"tableside/internal/logger"
	"tableside/internal/menu"
	"tableside/internal/messaging"
	"tableside/internal/persist"
	"tableside/internal/sales"
	"tableside/internal/settings"
	possync "tableside/internal/sync"
	"tableside/internal/table"
	"tableside/internal/terminal"
	"tableside/internal/togo"
)

// syncedCollections are the document collections a terminal reconciles over
// the change bus.
var syncedCollections = []string{
	table.Collection,
	sales.Collection,
	settings.Collection,
	menu.Collection,
	togo.Collection,
}

func main() {
	var (
		mode       = flag.String("mode", "", "Service mode (terminal, listener)")
		terminalID = flag.String("terminal-id", "", "Terminal identifier (defaults to a generated id)")
		operator   = flag.String("operator", "", "Signed-in operator name; without one all mutations stay local")
		prefetch   = flag.Int("prefetch", 1, "RabbitMQ prefetch count")
	)
	flag.Parse()

	if *mode == "" {
		fmt.Fprintf(os.Stderr, "Error: --mode flag is required\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	id := *terminalID
	if id == "" {
		id = "term-" + logger.GenerateRequestID()[:8]
	}

	log := logger.New(*mode)
	requestID := logger.GenerateRequestID()

	log.Info("service_started", fmt.Sprintf("Starting %s", *mode), requestID, map[string]interface{}{
		"mode":        *mode,
		"terminal_id": id,
		"restaurant":  cfg.POS.RestaurantName,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("graceful_shutdown", "Received shutdown signal", requestID, nil)
		cancel()
	}()

	switch *mode {
	case "terminal":
		if err := runTerminal(ctx, cfg, log, id, *operator, *prefetch); err != nil && err != context.Canceled {
			log.Error("service_failed", "Terminal failed", requestID, err, nil)
			os.Exit(1)
		}
	case "listener":
		if err := runListener(ctx, cfg, log, id, *prefetch); err != nil && err != context.Canceled {
			log.Error("service_failed", "Listener failed", requestID, err, nil)
			os.Exit(1)
		}
	default:
		log.Error("validation_failed", fmt.Sprintf("Unknown mode: %s", *mode), requestID, nil, nil)
		os.Exit(1)
	}

	log.Info("service_stopped", "Service stopped gracefully", requestID, nil)
}

// runTerminal runs a full point-of-sale terminal: local table state, the
// persistence machinery, the batched snapshot flusher, and the change-bus
// reconciler.
func runTerminal(ctx context.Context, cfg *config.Config, log *logger.Logger, id, operator string, prefetch int) error {
	requestID := logger.GenerateRequestID()

	store, err := docstore.NewPostgres(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	defer store.Close()

	log.Info("db_connected", "Connected to PostgreSQL database", requestID, nil)

	if err := store.RunMigrations(ctx, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
		DB:   cfg.Redis.DB,
	})
	defer rdb.Close()

	registry := table.NewRegistry(cfg.POS.TableCount)
	settingsSvc := settings.NewService(log)
	if cfg.POS.SeatedAlertMinutes > 0 {
		local := settingsSvc.Current()
		local.SeatedAlertMin = cfg.POS.SeatedAlertMinutes
		if err := settingsSvc.Update(local); err != nil {
			return err
		}
	}
	catalog := menu.NewCatalog(rdb, 0, log)
	cart := togo.NewCart()
	publisher := messaging.NewPublisher(conn, log)
	manager := persist.NewManager(store, publisher, id, log)

	flushInterval := time.Duration(cfg.POS.FlushIntervalSeconds) * time.Second
	if flushInterval <= 0 {
		flushInterval = 30 * time.Second
	}
	flusher, err := persist.NewFlusher(flushInterval, log)
	if err != nil {
		return fmt.Errorf("failed to create snapshot flusher: %w", err)
	}

	svc := terminal.NewService(terminal.Deps{
		ID:       id,
		Registry: registry,
		Settings: settingsSvc,
		Catalog:  catalog,
		Cart:     cart,
		Manager:  manager,
		Flusher:  flusher,
		Logger:   log,
		Strategy: persist.Merge,
	})

	if err := svc.LoadState(ctx, store); err != nil {
		return fmt.Errorf("failed to load persisted state: %w", err)
	}
	svc.RegisterFlushers()
	if err := flusher.Start(ctx); err != nil {
		return err
	}

	if operator != "" {
		ctx = auth.WithActor(ctx, auth.Actor{ID: operator, Name: operator, Role: "server"})
	}

	queue, err := conn.DeclareTerminalQueue(id, syncedCollections)
	if err != nil {
		return fmt.Errorf("failed to declare terminal queue: %w", err)
	}
	consumer := messaging.NewConsumer(conn, log, queue, id, prefetch)
	listener := possync.NewListener(id, registry, settingsSvc, catalog, cart, log)

	errCh := make(chan error, 1)
	go func() { errCh <- listener.Run(ctx, consumer) }()

	go watchSeatedTables(ctx, svc, log)

	log.Info("terminal_ready", "Terminal is serving", requestID, map[string]interface{}{
		"tables":   cfg.POS.TableCount,
		"queue":    queue,
		"operator": operator,
	})

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-errCh:
		runErr = err
	}

	// Final flush so batched edits survive the shutdown.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := flusher.Stop(stopCtx); err != nil {
		log.Error("flush_on_shutdown_failed", "Final snapshot flush failed", requestID, err, nil)
	}
	return runErr
}

// runListener runs a consume-only reconciler: it mirrors remote changes into
// memory and logs them, which is enough for a kitchen display or a manager
// dashboard feed.
func runListener(ctx context.Context, cfg *config.Config, log *logger.Logger, id string, prefetch int) error {
	requestID := logger.GenerateRequestID()

	conn, err := messaging.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer conn.Close()

	queue, err := conn.DeclareTerminalQueue(id, syncedCollections)
	if err != nil {
		return fmt.Errorf("failed to declare terminal queue: %w", err)
	}

	registry := table.NewRegistry(cfg.POS.TableCount)
	settingsSvc := settings.NewService(log)
	listener := possync.NewListener(id, registry, settingsSvc, nil, nil, log)
	consumer := messaging.NewConsumer(conn, log, queue, id, prefetch)

	log.Info("listener_ready", "Mirroring changes", requestID, map[string]interface{}{
		"queue":       queue,
		"collections": strings.Join(syncedCollections, ","),
	})
	return listener.Run(ctx, consumer)
}

// watchSeatedTables periodically logs tables whose parties have been seated
// past the alert threshold.
func watchSeatedTables(ctx context.Context, svc *terminal.Service, log *logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if overdue := svc.SeatedLong(now); len(overdue) > 0 {
				log.Info("seated_alert", "Tables seated past the alert threshold", "", map[string]interface{}{
					"tables": overdue,
				})
			}
		}
	}
}
