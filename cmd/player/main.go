package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hlsengine/internal/abr"
	"hlsengine/internal/api"
	"hlsengine/internal/cache"
	"hlsengine/internal/config"
	"hlsengine/internal/fetch"
	"hlsengine/internal/logger"
	"hlsengine/internal/media/memory"
	"hlsengine/internal/metrics"
	"hlsengine/internal/playback"
)

const playheadTick = 250 * time.Millisecond

func main() {
	// 1. Parse command-line arguments
	listenAddr := flag.String("l", ":8080", "HTTP listen address for the control API")
	logLevel := flag.String("L", "", "Log level (error, warn, info, debug); overrides the config")
	configFile := flag.String("c", "", "Path to a YAML config file")
	envFile := flag.String("e", ".env", "Path to an env file with HLS_* overrides")
	url := flag.String("u", "", "Multivariant playlist URL to load on start")
	flag.Parse()

	// 2. Load configuration
	if err := config.LoadEnvFile(*envFile); err != nil {
		logger.NewLogger("error").Errorf("Failed to load env file: %v", err)
		os.Exit(1)
	}
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			logger.NewLogger("error").Errorf("Failed to load configuration: %v", err)
			os.Exit(1)
		}
		cfg = *loaded
	}
	cfg.ApplyEnv()
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// 3. Initialize logger
	var log logger.Logger
	if cfg.LogFile != "" {
		log = logger.NewFileLogger(cfg.LogLevel, logger.FileOptions{Path: cfg.LogFile})
	} else {
		log = logger.NewLogger(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Errorf("Invalid configuration: %v", err)
		os.Exit(1)
	}
	log.Infof("Starting HLS playback engine...")
	log.Infof("Log level set to: %s", cfg.LogLevel)

	// 4. Initialize services
	m := metrics.New()
	estimator := abr.NewEstimator(cfg.InitialBandwidth)
	client := fetch.NewClient(log, fetch.Options{
		UserAgent:  cfg.UserAgent,
		Attempts:   cfg.FetchAttempts,
		OnTransfer: estimator.Sample,
	})
	segments := cache.New(log, nil, cfg.CacheEvictionInterval)

	element := memory.NewElement()
	sess := playback.NewSession(playback.Options{
		Config:    &cfg,
		Fetcher:   fetch.NewCachingFetcher(client, segments),
		Backend:   &memory.Backend{},
		Logger:    log,
		Metrics:   m,
		Estimator: estimator,
		Cache:     segments,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	segments.Start()
	sess.Start(ctx)
	sess.AttachElement(element)
	if *url != "" {
		log.Infof("Loading %s", *url)
		sess.Load(*url)
	}
	go runPlayhead(ctx, sess, playheadTick)

	// 5. Set up and run the HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    *listenAddr,
		Handler: api.New(sess, log, m),
	}

	go func() {
		log.Infof("Control API listening on %s", *listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Could not listen on %s: %v", *listenAddr, err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infof("Player is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
	stop()
	sess.Close()
	segments.Stop()

	log.Infof("Player exited gracefully")
}

// runPlayhead stands in for a rendering element: once play is requested it
// advances the current time in real time, never past the buffered end.
func runPlayhead(ctx context.Context, sess *playback.Session, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last).Seconds()
			last = now
			if !sess.State().PlayRequested {
				continue
			}
			next, ok := advance(sess.CurrentTime(), elapsed, sess.Platform())
			if ok {
				sess.UpdateTime(next)
			}
		}
	}
}

// advance returns the playhead after elapsed seconds, capped at the earliest
// buffered end across track buffers. ok is false when playback is stalled.
func advance(current, elapsed float64, pf playback.Platform) (float64, bool) {
	limit := -1.0
	for _, tb := range []*playback.TrackBuffer{pf.Video, pf.Audio} {
		if tb == nil {
			continue
		}
		end := tb.BufferedEnd()
		if limit < 0 || end < limit {
			limit = end
		}
	}
	if limit <= current {
		return current, false
	}
	return min(current+elapsed, limit), true
}
