package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sshcollectorpro/devextract/pkg/logger"
	sshc "github.com/sshcollectorpro/devextract/pkg/ssh"
	"github.com/sshcollectorpro/devextract/simulate"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "simulator config file (builtin devices when empty)")
	listen := pflag.String("listen", "127.0.0.1:22001", "listen address")
	banner := pflag.String("banner", "Cisco-1.25", "SSH server version banner")
	probe := pflag.String("probe", "", "connect as this device, autodetect its platform and exit")
	pflag.Parse()

	_ = logger.Init(logger.Config{Level: "info", Output: "console"})

	cfg := simulate.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = simulate.LoadConfig(*configPath); err != nil {
			logger.Fatalf("Failed to load simulator config: %v", err)
		}
	}
	if pflag.CommandLine.Changed("listen") || *configPath == "" {
		cfg.Listen = *listen
	}
	if pflag.CommandLine.Changed("banner") || cfg.Banner == "" {
		cfg.Banner = *banner
	}

	srv, err := simulate.Start(cfg)
	if err != nil {
		logger.Fatalf("Failed to start simulator: %v", err)
	}

	if *probe != "" {
		code := runProbe(srv, *probe, cfg.Password)
		srv.Stop()
		os.Exit(code)
	}
	defer srv.Stop()

	for name, dev := range cfg.Devices {
		fmt.Printf("device %-12s type=%s user=%s password=%s\n", name, dev.DeviceType, name, cfg.Password)
	}
	fmt.Printf("listening on %s\n", srv.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}

func runProbe(srv *simulate.Server, device, password string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := sshc.NewClient(&sshc.Config{Timeout: 3 * time.Second, CommandTimeout: 5 * time.Second})
	if err := client.Connect(ctx, &sshc.ConnectionInfo{
		Host:     "127.0.0.1",
		Port:     srv.Port(),
		Username: device,
		Password: password,
	}); err != nil {
		fmt.Println("connect error:", err)
		return 1
	}
	defer client.Close()

	fmt.Println("server version:", client.ServerVersion())
	dt, err := client.Autodetect(ctx, nil)
	if err != nil {
		fmt.Println("autodetect error:", err)
		return 1
	}
	fmt.Println("detected:", dt)
	return 0
}
