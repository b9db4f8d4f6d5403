package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/circleguard/pkg/circleguard"
	"github.com/himanishpuri/circleguard/pkg/logger"
)

var (
	addr           string
	allowedOrigins string
	bootstrapWait  time.Duration
)

func main() {
	log := logger.GetLogger()

	envCfg, err := circleguard.LoadEnvConfig()
	if err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	flag.StringVar(&addr, "addr", envCfg.Addr, "HTTP listen address (env: CIRCLEGUARD_ADDR)")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.DurationVar(&bootstrapWait, "bootstrap-timeout", 30*time.Minute, "Upper bound for a snapshot download")
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	service, err := circleguard.NewService(envCfg.Options()...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Addr:             addr,
		AllowedOrigins:   origins,
		BootstrapTimeout: bootstrapWait,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		return
	}
	log.Infof("Server stopped")
}
