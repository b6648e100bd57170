package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"signalwatch/config"
	"signalwatch/internal/app"
	"signalwatch/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default: ./config/config.yaml)")
	pflag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NeedsSecrets() {
		fetcher, err := config.NewSSMFetcher(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := cfg.ResolveSecrets(ctx, fetcher); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if err := cfg.CheckSecrets(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// zap logger
	log, err := logger.New(cfg.Environment, cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to build watcher", zap.Error(err))
	}
	defer a.Close()

	log.Info("watcher starting", zap.String("env", cfg.Environment))
	if err := a.Run(ctx); err != nil {
		log.Error("watcher failed", zap.Error(err))
		a.Close()
		log.Sync()
		os.Exit(1)
	}
}
