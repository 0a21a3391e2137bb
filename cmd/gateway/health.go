package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"gorm.io/gorm"

	"syntra-pos/internal/database"
)

const (
	healthCheckTimeout  = 5 * time.Second
	healthWatchInterval = 10 * time.Second
)

type healthChecks struct {
	db    *gorm.DB
	redis *redis.Client
}

// check pings each dependency. The database is required for sales; redis
// only backs the catalog cache and event feed, so losing it degrades.
func (h *healthChecks) check(ctx context.Context) map[string]error {
	return map[string]error{
		"database": database.Ping(h.db),
		"redis":    h.redis.Ping(ctx).Err(),
	}
}

func overallStatus(results map[string]error) string {
	if results["database"] != nil {
		return "unhealthy"
	}
	for _, err := range results {
		if err != nil {
			return "degraded"
		}
	}
	return "healthy"
}

func healthCheckHandler(h *healthChecks) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		results := h.check(ctx)
		status := overallStatus(results)

		unavailable := []string{}
		for name, err := range results {
			if err != nil {
				unavailable = append(unavailable, name)
			}
		}

		httpStatus := http.StatusOK
		if status == "unhealthy" {
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailable,
			"timestamp":            time.Now(),
		})
	}
}

func detailedHealthCheckHandler(h *healthChecks) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		results := h.check(ctx)
		services := make(map[string]interface{}, len(results))
		for name, err := range results {
			services[name] = serviceHealth(err)
		}

		c.JSON(http.StatusOK, gin.H{
			"overall_status": overallStatus(results),
			"services":       services,
			"timestamp":      time.Now(),
		})
	}
}

func serviceHealth(err error) map[string]interface{} {
	if err != nil {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": err.Error(),
		}
	}
	return map[string]interface{}{
		"status":  "healthy",
		"message": "Service is responding",
	}
}

// watchHealth mirrors the dependency checks into the gRPC health server
// until ctx is done.
func watchHealth(ctx context.Context, h *healthChecks, hs *health.Server, logger *zap.Logger) {
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		defer cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if overallStatus(h.check(checkCtx)) == "unhealthy" {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			logger.Warn("database unreachable, reporting NOT_SERVING")
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus("pos", status)
	}

	update()
	ticker := time.NewTicker(healthWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
