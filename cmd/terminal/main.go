package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"syntra-pos/config"
	"syntra-pos/internal/gateway/clients"
)

func main() {
	var (
		gatewayURL = flag.StringP("gateway", "g", "http://localhost:8080", "POS gateway base URL")
		healthAddr = flag.String("health-addr", "localhost:50053", "gateway gRPC health address, empty to skip the check")
		timeout    = flag.DurationP("timeout", "t", 10*time.Second, "per-request timeout")
		method     = flag.StringP("payment", "p", "Card", "default payment method for pay (Card, Cash, QR)")
		logLevel   = flag.String("log-level", "warn", "log level")
	)
	flag.Parse()

	logger, err := config.NewLogger("development", *logLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *healthAddr != "" {
		if err := checkGateway(ctx, *healthAddr, *timeout); err != nil {
			logger.Fatal("gateway not ready", zap.String("addr", *healthAddr), zap.Error(err))
		}
	}

	s := newSession(clients.NewPOSClient(*gatewayURL, *timeout), os.Stdout, *timeout, logger)
	if err := s.refresh(ctx); err != nil {
		logger.Fatal("failed to load catalog", zap.Error(err))
	}

	s.list()
	s.printf("type help for commands\n")
	if err := s.run(ctx, os.Stdin, *method); err != nil && ctx.Err() == nil {
		logger.Fatal("terminal stopped", zap.Error(err))
	}
}

func checkGateway(ctx context.Context, addr string, timeout time.Duration) error {
	hc, err := clients.NewHealthClient(addr)
	if err != nil {
		return err
	}
	defer hc.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := hc.Check(ctx, "pos")
	if err != nil {
		return err
	}
	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("status %s", status)
	}
	return nil
}
