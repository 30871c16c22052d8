package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"scribe/api/internal/app"
	"scribe/api/internal/config"
	"scribe/api/internal/email"
	"scribe/api/internal/events"
	"scribe/api/internal/export"
	"scribe/api/internal/revisions"
	"scribe/api/internal/search"
	"scribe/api/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.RevisionsDir, 0o755); err != nil {
		log.Fatalf("failed to create revisions dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	revisionService := revisions.New(cfg.RevisionsDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}
	searchService.Reindex(ctx)

	// Scheduled events ride a Redis queue; without one they are logged and
	// dropped, which their delivery contract allows.
	var queue *events.Queue
	if strings.TrimSpace(cfg.RedisURL) != "" {
		queue, err = events.NewQueue(cfg.RedisURL, cfg.EventQueueKey)
		if err != nil {
			log.Printf("WARNING: redis unavailable, scheduled events will be dropped: %v", err)
			queue = nil
		} else {
			defer queue.Close()
		}
	}
	recorder := events.NewLog(dataStore, queue)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
		AppURL:   cfg.AppURL,
	})
	var service *app.Service
	if mailer.IsConfigured() {
		service = app.New(cfg, dataStore, recorder, searchService, revisionService, mailer)
	} else {
		log.Printf("SMTP not configured, mention emails disabled")
		service = app.New(cfg, dataStore, recorder, searchService, revisionService, nil)
	}
	if _, err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	if queue != nil {
		logHandler := events.HandlerFunc(func(_ context.Context, event store.Event) error {
			log.Printf("event dispatched name=%s document=%s actor=%s", event.Name, event.DocumentID, event.ActorID)
			return nil
		})
		// Title changes skip persistence-triggered reindexing, so the
		// dispatcher refreshes the search index for them.
		reindexHandler := events.HandlerFunc(func(ctx context.Context, event store.Event) error {
			if event.Name != events.DocumentTitleChange {
				return nil
			}
			document, err := dataStore.GetDocument(ctx, event.DocumentID)
			if err != nil {
				return err
			}
			return searchService.IndexDocument(ctx, document)
		})
		dispatcher := events.NewDispatcher(queue, logHandler, reindexHandler)
		go dispatcher.Run(dispatchCtx)
	}

	httpServer := app.NewHTTPServer(service, export.NewService(), cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Scribe API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopDispatch()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
