package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"asteroidradar/internal/models"
	"asteroidradar/internal/service"
	redispkg "asteroidradar/pkg/redis"
)

type SystemHandler struct {
	service  service.AsteroidService
	redis    *redis.Client
	dbDriver string
	started  time.Time
	log      zerolog.Logger
}

// NewSystemHandler takes a nil redisClient when the in-memory cache is used.
func NewSystemHandler(service service.AsteroidService, redisClient *redis.Client, dbDriver string, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		service:  service,
		redis:    redisClient,
		dbDriver: dbDriver,
		started:  time.Now(),
		log:      log.With().Str("handler", "system").Logger(),
	}
}

func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	status, err := h.service.Status(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get status")
		respondError(c, http.StatusInternalServerError, "failed to get stats", err)
		return
	}

	cacheInfo := gin.H{"backend": "memory"}
	if h.redis != nil {
		cacheInfo["backend"] = "redis"
		if stats, err := redispkg.GetStats(ctx, h.redis); err != nil {
			h.log.Warn().Err(err).Msg("failed to get redis stats")
		} else {
			cacheInfo["redis"] = stats
		}
	}

	respondOK(c, gin.H{
		"store":    status,
		"database": h.dbDriver,
		"cache":    cacheInfo,
	})
}

// Refresh runs both refreshes now. Registered in debug mode only.
func (h *SystemHandler) Refresh(c *gin.Context) {
	report := h.service.RefreshAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": report.Failed() == 0,
		"data":    report,
	})
}

// Cleanup runs the cleanup operations now. Registered in debug mode only.
func (h *SystemHandler) Cleanup(c *gin.Context) {
	report := h.service.CleanupAll(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"success": report.Failed() == 0,
		"data":    report,
	})
}

// LatestSnapshot returns the newest raw payload archived for source
// (neo_feed by default). Registered in debug mode only.
func (h *SystemHandler) LatestSnapshot(c *gin.Context) {
	source := c.DefaultQuery("source", models.SnapshotSourceFeed)
	if source != models.SnapshotSourceFeed && source != models.SnapshotSourceAPOD {
		respondError(c, http.StatusBadRequest, "unknown snapshot source", nil)
		return
	}

	snapshot, err := h.service.LatestSnapshot(c.Request.Context(), source)
	if err != nil {
		h.log.Error().Err(err).Str("source", source).Msg("failed to get snapshot")
		respondError(c, http.StatusInternalServerError, "failed to get snapshot", err)
		return
	}
	if snapshot == nil {
		respondError(c, http.StatusNotFound, "no snapshot archived", nil)
		return
	}

	respondOK(c, gin.H{
		"source":     snapshot.Source,
		"fetched_at": snapshot.FetchedAt,
		"payload":    snapshot.Payload,
	})
}
