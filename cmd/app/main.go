package main

import (
	"flag"
	"log"
	"os"

	"FinSignal/internal/di"
	"FinSignal/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s intake=%s notify=%s dedup=%s",
		cfg.Environment, cfg.Intake.Backend, cfg.Notify.Backend, cfg.Engine.Dedup.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	log.Printf("engine ready: timeframes=%v policy=%s thresholds=%s",
		cfg.Engine.Timeframes, cfg.Engine.Aggregation.Policy, cfg.Engine.Thresholds.Source)

	// Blocks until SIGINT/SIGTERM.
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
