package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfintake/internal/api"
	cfgpkg "github.com/local/pdfintake/internal/config"
	"github.com/local/pdfintake/internal/document"
	"github.com/local/pdfintake/internal/events"
	"github.com/local/pdfintake/internal/identity"
	"github.com/local/pdfintake/internal/intake"
	logpkg "github.com/local/pdfintake/internal/logger"
	"github.com/local/pdfintake/internal/metrics"
	"github.com/local/pdfintake/internal/notify"
	"github.com/local/pdfintake/internal/preview"
	"github.com/local/pdfintake/internal/publish"
	"github.com/local/pdfintake/internal/selection"
	"github.com/local/pdfintake/internal/statuscheck"
	"github.com/local/pdfintake/internal/worklist"
)

func main() {
	cfg := cfgpkg.Load()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	parser, err := document.NewParser(cfg.Intake.Parser)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid parser")
	}
	validator := document.NewValidator(parser, document.Options{
		ExpectedType: cfg.Intake.ExpectedType,
		MaxBytes:     cfg.Intake.MaxFileBytes(),
	})

	color := preview.ColorRGB
	if cfg.Preview.Gray {
		color = preview.ColorGray
	}
	renderer := preview.New(preview.Options{DPI: cfg.Preview.DPI, Quality: cfg.Preview.Quality, Color: color})

	ids := identity.New()
	coord := selection.New(ids)
	bridge := publish.NewBridge()
	latest := &publish.Latest{}
	bridge.Subscribe(latest)
	feed := notify.NewFeed(cfg.Intake.FeedSize)
	hub := notify.NewHub(notify.LogSink{}, feed)

	// Events mirror (optional)
	var redisPing statuscheck.RedisPinger
	if cfg.Events.Enabled {
		sink, err := events.NewRedisSink(cfg.Events.RedisURL, events.Channels{
			Snapshots:     cfg.Events.SnapshotChannel,
			Notifications: cfg.Events.NotificationChannel,
			Selections:    cfg.Events.SelectionChannel,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer sink.Close()
		bridge.Subscribe(sink)
		hub.Add(sink)
		coord.AddSurface(sink)
		redisPing = sink
	}

	svc, err := intake.New(intake.Dependencies{
		Validator: validator,
		Selector:  coord,
		Store:     worklist.NewStore(),
		Bridge:    bridge,
		Notifier:  hub,
		IDs:       ids,
	}, intake.Options{Prefetch: cfg.Intake.Prefetch})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init intake service")
	}

	mux := http.NewServeMux()
	api.New(api.Dependencies{
		Intake:         svc,
		Selection:      coord,
		Latest:         latest,
		Feed:           feed,
		Renderer:       renderer,
		Health:         statuscheck.New(statuscheck.Options{Redis: redisPing, Parser: parser, Renderer: renderer}),
		MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
	}).RegisterRoutes(mux)

	// Outstanding selections end with the base context on shutdown.
	baseCtx, stopRequests := context.WithCancel(context.Background())
	defer stopRequests()
	srv := &http.Server{
		Addr:        ":" + cfg.HTTP.Port,
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		log.Info().Str("parser", parser.Name()).Bool("events", cfg.Events.Enabled).Msgf("HTTP server listening on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopRequests()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
