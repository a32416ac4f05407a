package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/opspulse/pulsefeed/api/handlers"
	"github.com/opspulse/pulsefeed/internal/config"
	"github.com/opspulse/pulsefeed/internal/history"
	"github.com/opspulse/pulsefeed/internal/logging"
	"github.com/opspulse/pulsefeed/internal/relay"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"

	configPath string
	listenFlag string
	tokenFlag  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "pulse-relay",
	Short:   "Pulsefeed relay - realtime event fan-out for dashboards",
	Long:    "Pulse-relay accepts websocket subscribers, tracks room membership,\nfans published events out to room members, and serves event history over REST.",
	Version: Version,
	RunE:    runServe,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "pulsefeed.yaml", "path to config file")
	rootCmd.Flags().StringVar(&listenFlag, "listen", "", "listen address (overrides config)")
	rootCmd.Flags().StringVar(&tokenFlag, "token", "", "bearer token clients must present (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenFlag != "" {
		cfg.Relay.Listen = listenFlag
	}
	if tokenFlag != "" {
		cfg.Relay.Token = tokenFlag
	}

	logger := logging.New(logging.Config{Level: cfg.Relay.LogLevel, JSON: cfg.Relay.LogJSON})

	if err := os.MkdirAll(filepath.Dir(cfg.Relay.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := history.InitDB(cfg.Relay.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer history.CloseDB()

	repo := history.NewRepository(database)
	hub := relay.NewHub(cfg.Relay.RecentPerRoom, logging.WithComponent(logger, "hub"))
	defer hub.Close()

	relayHandler := relay.NewHandler(hub, cfg.Relay.Token, repo, logging.WithComponent(logger, "relay"))

	attachHandler := handlers.NewAttachHandler(relayHandler)
	historyHandler := handlers.NewHistoryHandler(repo, hub)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		attachHandler.RegisterRoutes(api)
		historyHandler.RegisterRoutes(api)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutting down relay")
		hub.Close()
		history.CloseDB()
		os.Exit(0)
	}()

	logger.Info().Str("listen", cfg.Relay.Listen).Msg("starting relay")
	if err := r.Run(cfg.Relay.Listen); err != nil {
		return fmt.Errorf("failed to start relay: %w", err)
	}
	return nil
}
