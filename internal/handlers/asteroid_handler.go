package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"asteroidradar/internal/models"
	"asteroidradar/internal/service"
	"asteroidradar/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AsteroidHandler struct {
	service service.AsteroidService
	log     zerolog.Logger
}

func NewAsteroidHandler(service service.AsteroidService, log zerolog.Logger) *AsteroidHandler {
	return &AsteroidHandler{
		service: service,
		log:     log.With().Str("handler", "asteroids").Logger(),
	}
}

func filterFromQuery(c *gin.Context) (models.AsteroidFilter, bool) {
	filter, err := models.ParseAsteroidFilter(c.Query("filter"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid filter, use saved, today or week", err)
		return "", false
	}
	return filter, true
}

// GetAsteroids returns cached asteroids ordered by close-approach date.
func (h *AsteroidHandler) GetAsteroids(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}

	asteroids, err := h.service.GetAsteroids(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Str("filter", string(filter)).Msg("failed to get asteroids")
		respondError(c, http.StatusInternalServerError, "failed to get asteroids", err)
		return
	}

	respondOK(c, gin.H{
		"filter":    filter,
		"count":     len(asteroids),
		"asteroids": asteroids,
	})
}

// StreamAsteroids pushes a fresh list on every change of the asteroid table.
func (h *AsteroidHandler) StreamAsteroids(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}

	updates := make(chan []models.Asteroid, 1)
	unsubscribe, err := h.service.WatchAsteroids(c.Request.Context(), filter, func(asteroids []models.Asteroid) {
		offerLatest(updates, asteroids)
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to watch asteroids", err)
		return
	}
	defer unsubscribe()

	streamEvents(c, h.log, "asteroids", updates, func(asteroids []models.Asteroid) interface{} {
		return asteroids
	})
}

// ExportAsteroids returns the filtered list as an xlsx workbook.
func (h *AsteroidHandler) ExportAsteroids(c *gin.Context) {
	filter, ok := filterFromQuery(c)
	if !ok {
		return
	}

	asteroids, err := h.service.GetAsteroids(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to get asteroids", err)
		return
	}

	now := time.Now().UTC()
	var buf bytes.Buffer
	if err := utils.WriteAsteroidsExcel(&buf, asteroids, filter, now); err != nil {
		h.log.Error().Err(err).Msg("failed to render asteroid export")
		respondError(c, http.StatusInternalServerError, "failed to export asteroids", err)
		return
	}

	filename := fmt.Sprintf("asteroids_%s_%s.xlsx", filter, utils.FormatDay(now))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
