package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"syntra-pos/config"
	"syntra-pos/internal/database"
	"syntra-pos/internal/gateway/handlers"
	"syntra-pos/internal/gateway/middleware"
	catalogHandler "syntra-pos/internal/services/catalog/handler"
	posHandler "syntra-pos/internal/services/pos/handler"
	settingsHandler "syntra-pos/internal/services/settings/handler"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, envLoaded := config.LoadConfig()

	logger, err := config.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if !envLoaded {
		logger.Info("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(cfg.DB.DSN, database.PoolConfig{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}

	if err := database.MigratePOSDB(db); err != nil {
		logger.Fatal("failed to migrate POS database", zap.Error(err))
	}

	redisClient, err := config.NewRedisClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	catalog := catalogHandler.NewCatalogHandler(db, redisClient, logger)
	settings := settingsHandler.NewSettingsHandler(db, logger)
	pos := posHandler.NewPOSHandler(db, redisClient, logger, catalog, settings)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limit, err := middleware.RateLimit(cfg.Server.RateLimit)
	if err != nil {
		logger.Fatal("invalid rate limit", zap.String("rate", cfg.Server.RateLimit), zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(limit)

	handlers.RegisterRoutes(r.Group("/api/v1"),
		handlers.NewCatalogHTTPHandler(catalog, cfg.Server.RequestTimeout),
		handlers.NewSettingsHTTPHandler(settings, cfg.Server.RequestTimeout),
		handlers.NewPOSHTTPHandler(pos, cfg.Server.RequestTimeout),
	)

	checks := &healthChecks{db: db, redis: redisClient}
	r.GET("/health", healthCheckHandler(checks))
	r.GET("/health/detailed", detailedHealthCheckHandler(checks))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCHealthPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", cfg.Server.GRPCHealthPort), zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("POS gateway listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		watchHealth(gctx, checks, healthServer, logger)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
