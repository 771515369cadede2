package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/db"
	"github.com/marcus-crane/crowdqueue/events"
	"github.com/marcus-crane/crowdqueue/jobs"
	"github.com/marcus-crane/crowdqueue/metadata"
	"github.com/marcus-crane/crowdqueue/migrations"
	"github.com/marcus-crane/crowdqueue/notify"
	"github.com/marcus-crane/crowdqueue/playback"
	"github.com/marcus-crane/crowdqueue/routes"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.GetLogLevel()})))

	if err := run(cfg); err != nil {
		slog.Error("Crowdqueue exited with an error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	if m, ok := store.(db.Migrator); ok {
		if err := m.ApplyMigrations(migrations.GetMigrations()); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	var resolvers []metadata.Resolver
	if cfg.YouTube.Token != "" {
		resolvers = append(resolvers, metadata.NewYouTubeClient(cfg.YouTube.Token))
	} else {
		slog.Warn("YOUTUBE_API_KEY is not set. YouTube titles will be scraped from the watch page.")
	}
	resolvers = append(resolvers, metadata.NewPageClient())

	ps := playback.NewPlaybackSystem(store, playback.Options{
		Resolver:         metadata.NewService(resolvers...),
		PlaceholderTitle: cfg.GetPlaceholderTitle(),
		RejectDuplicates: cfg.RejectDuplicates(),
		ResolveTimeout:   cfg.GetResolveTimeout(),
	})

	events.Init()
	ps.Subscribe(events.QueueListener(ps))
	if notifier := notify.NewNotifier(cfg.Pushover); notifier != nil {
		ps.Subscribe(notifier.Listener())
	}

	if err := ps.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore playback state: %w", err)
	}

	jobScheduler := jobs.SetupInBackground(ps)
	if cfg.Crowdqueue.BackgroundJobsEnabled {
		jobScheduler.StartAsync()
		slog.Info("Background jobs have started up in the background.")
	} else {
		slog.Info("Background jobs are disabled.")
	}
	defer jobScheduler.Stop()

	router := routes.Register(http.NewServeMux(), ps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Crowdqueue.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("Crowdqueue is running", slog.String("address", "http://localhost:"+cfg.Crowdqueue.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	slog.Info("Gracefully shutting down...")
	events.Server.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
