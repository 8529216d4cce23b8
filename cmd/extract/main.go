package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sshcollectorpro/devextract/addone/dialect"
	"github.com/sshcollectorpro/devextract/addone/parse/platforms"
	"github.com/sshcollectorpro/devextract/internal/config"
	"github.com/sshcollectorpro/devextract/internal/detect"
	"github.com/sshcollectorpro/devextract/internal/service"
	"github.com/sshcollectorpro/devextract/pkg/logger"
)

const banner = "--- Extracted Information ---"

func main() {
	host := pflag.String("host", "", "device address, optionally host:port")
	username := pflag.StringP("username", "u", "", "login username")
	password := pflag.StringP("password", "p", "", "login password")
	configPath := pflag.StringP("config", "c", "", "config file (configs/config.yaml when empty)")
	commands := pflag.String("commands", "", "command catalog file, overrides catalog.path")
	strategy := pflag.String("strategy", "", "platform detection: autodetect | introspect")
	forced := pflag.String("dialect", "", "skip detection and use this platform")
	pflag.Parse()

	if *host == "" || *username == "" {
		fmt.Fprintln(os.Stderr, "usage: extract --host <addr> --username <user> [--password <pass>]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *commands != "" {
		cfg.Catalog.Path = *commands
	}
	if *strategy != "" {
		cfg.Detect.Strategy = *strategy
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	archiver, err := service.NewArchiver(cfg.Storage)
	if err != nil {
		logger.Warnf("Raw output archive disabled: %v", err)
	}

	deps := service.Deps{
		Parsers:  platforms.Registry(),
		Archiver: archiver,
	}
	if *forced != "" {
		deps.Detector = detect.Static(dialect.Normalize(*forced))
	}
	svc, err := service.NewExtractService(cfg, deps)
	if err != nil {
		logger.Fatalf("Failed to create extract service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := svc.Execute(ctx, service.Target{
		Host:     *host,
		Username: *username,
		Password: *password,
	})

	b, err := json.MarshalIndent(out.Document(), "", "  ")
	if err != nil {
		logger.Fatalf("Failed to encode result: %v", err)
	}
	fmt.Println(banner)
	fmt.Println(string(b))
	fmt.Println(banner)

	if out.Err != nil {
		stop()
		os.Exit(1)
	}
}
