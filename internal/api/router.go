// Package api exposes the read-only ops HTTP surface: health and stats.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/dealwatch/internal/config"
	"github.com/jonesrussell/dealwatch/internal/domain"
	"github.com/jonesrussell/dealwatch/internal/logger"
	"github.com/jonesrussell/dealwatch/internal/metrics"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
)

// RecordStatsSource provides record-store counts and connectivity checks.
type RecordStatsSource interface {
	Stats(ctx context.Context) (*domain.StoreStats, error)
	Ping(ctx context.Context) error
}

// CursorSource provides the current scan position.
type CursorSource interface {
	Get(ctx context.Context) (int64, error)
}

// Router holds the API dependencies.
type Router struct {
	records     RecordStatsSource
	cursor      CursorSource
	metrics     *metrics.Tracker
	redisClient redis.UniversalClient
	logger      logger.Logger
}

// NewRouter creates a new API router.
func NewRouter(
	records RecordStatsSource,
	cursor CursorSource,
	tracker *metrics.Tracker,
	redisClient redis.UniversalClient,
	log logger.Logger,
) *Router {
	return &Router{
		records:     records,
		cursor:      cursor,
		metrics:     tracker,
		redisClient: redisClient,
		logger:      log,
	}
}

// Engine builds the gin engine with all routes registered.
func (r *Router) Engine(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", r.handleHealth)
	engine.GET("/stats", r.handleStats)

	return engine
}

// NewServer wraps the engine in an http.Server with the configured timeouts.
func (r *Router) NewServer(cfg config.ServerConfig, debug bool) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      r.Engine(debug),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}

func (r *Router) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := healthStatusHealthy
	checks := gin.H{"database": "ok", "redis": "ok"}

	if err := r.records.Ping(ctx); err != nil {
		status = healthStatusDegraded
		checks["database"] = err.Error()
	}
	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		status = healthStatusDegraded
		checks["redis"] = err.Error()
	}

	code := http.StatusOK
	if status != healthStatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

func (r *Router) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	storeStats, err := r.records.Stats(ctx)
	if err != nil {
		r.logger.Error("failed to read store stats", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store stats unavailable"})
		return
	}

	cursor, err := r.cursor.Get(ctx)
	if err != nil {
		r.logger.Error("failed to read scan cursor", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cursor unavailable"})
		return
	}

	response := gin.H{
		"records": storeStats,
		"cursor":  cursor,
	}

	if r.metrics != nil {
		counters, statsErr := r.metrics.GetStats(ctx)
		if statsErr != nil {
			r.logger.Warn("failed to read metrics counters", logger.Error(statsErr))
		} else {
			response["counters"] = counters
		}
	}

	c.JSON(http.StatusOK, response)
}
