package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskboard/internal/app"
	"taskboard/internal/authpw"
	"taskboard/internal/board"
	"taskboard/internal/cleanup"
	"taskboard/internal/config"
	"taskboard/internal/search"
	"taskboard/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	dataStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	var queue cleanup.Queue
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for the cleanup queue")
		redisQueue, err := cleanup.NewRedisQueue(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisQueue.Close()
		queue = redisQueue
	} else {
		log.Printf("Using an in-memory cleanup queue")
		queue = cleanup.NewMemoryQueue()
	}
	worker := cleanup.NewWorker(queue, dataStore, cleanup.WorkerOptions{
		MaxAttempts: cfg.Cleanup.MaxAttempts,
		BaseBackoff: cfg.Cleanup.Backoff,
	})

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}

	boardService := board.NewService(dataStore, board.Options{
		Limits:  cfg.Limits,
		Cleanup: worker,
		Index:   search.NewService(meiliClient),
	})

	scheduler := cleanup.NewScheduler(time.Minute)
	err = scheduler.ScheduleInterval("cleanup", cfg.Cleanup.Interval, func(ctx context.Context) error {
		n, err := worker.RunOnce(ctx)
		if n > 0 {
			log.Printf("cleanup: attempted %d jobs", n)
		}
		return err
	})
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if cfg.RepairSchedule != "" {
		err = scheduler.Schedule("repair", cfg.RepairSchedule, func(ctx context.Context) error {
			report, err := boardService.Repair(ctx)
			if report.Changed() {
				log.Printf("repair: %+v", report)
			}
			return err
		})
		if err != nil {
			log.Fatalf("scheduler: %v", err)
		}
	}
	scheduler.Start()

	httpServer := app.NewHTTPServer(app.Deps{
		Board:      boardService,
		Auth:       authpw.NewService(dataStore),
		Store:      dataStore,
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		CORSOrigin: cfg.CORSOrigin,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Taskboard API listening on %s (store=%s)", cfg.Addr, cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	scheduler.Stop()
	worker.Wait()
}

// openStore returns the configured backend and a func that releases it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.MigrationsDir)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	case "mongo":
		m, err := store.OpenMongo(ctx, cfg.MongoURL, cfg.MongoDatabase, cfg.MongoTransactions)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo connection failed: %w", err)
		}
		return m, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.Close(closeCtx)
		}, nil
	case "memory":
		log.Printf("WARNING: using the in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
