// Package main is the entry point for the melodygen API server
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/james-see/melodygen/pkg/api"
	"github.com/james-see/melodygen/pkg/composer"
	"github.com/james-see/melodygen/pkg/config"
)

const sentryFlushTimeout = 2 * time.Second

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	srv := config.LoadServer()
	defaultPort, err := strconv.Atoi(srv.Port)
	if err != nil {
		defaultPort = 8080
	}
	port := flag.Int("port", defaultPort, "Server port")
	configPath := flag.String("config", srv.ConfigPath, "Config file with default parameters and presets")
	flag.Parse()

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if srv.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, nil)
		gin.SetMode(gin.ReleaseMode)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	useSentry := false
	if srv.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              srv.SentryDSN,
			Environment:      srv.Environment,
			Release:          "melodygen@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			Debug:            !srv.IsProduction(),
		}); err != nil {
			logger.Error("Failed to initialize Sentry", "error", err)
		} else {
			logger.Info("Sentry initialized", "environment", srv.Environment, "release", releaseVersion)
			useSentry = true
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	presets, err := cfg.Registry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	studio := composer.NewStudio(composer.New(presets, logger))

	fmt.Printf("Starting melodygen API server on port %d...\n", *port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", *port)

	if err := api.StartServer(*port, studio, api.Options{
		Defaults: &cfg.Defaults,
		Logger:   logger,
		Sentry:   useSentry,
	}); err != nil {
		sentry.CaptureException(err)
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		sentry.Flush(sentryFlushTimeout)
		os.Exit(1)
	}
}
