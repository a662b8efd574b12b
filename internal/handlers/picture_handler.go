package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"asteroidradar/internal/models"
	"asteroidradar/internal/service"
)

type PictureHandler struct {
	service service.AsteroidService
	log     zerolog.Logger
}

func NewPictureHandler(service service.AsteroidService, log zerolog.Logger) *PictureHandler {
	return &PictureHandler{
		service: service,
		log:     log.With().Str("handler", "picture_of_day").Logger(),
	}
}

func (h *PictureHandler) GetPictureOfDay(c *gin.Context) {
	picture, err := h.service.GetPictureOfDay(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to get picture of day")
		respondError(c, http.StatusInternalServerError, "failed to get picture of day", err)
		return
	}
	if picture == nil {
		respondError(c, http.StatusNotFound, "picture of day not cached yet", nil)
		return
	}

	respondOK(c, picture)
}

func (h *PictureHandler) StreamPictureOfDay(c *gin.Context) {
	updates := make(chan *models.PictureOfDay, 1)
	unsubscribe, err := h.service.WatchPictureOfDay(c.Request.Context(), func(picture *models.PictureOfDay) {
		offerLatest(updates, picture)
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to watch picture of day", err)
		return
	}
	defer unsubscribe()

	streamEvents(c, h.log, "picture", updates, func(picture *models.PictureOfDay) interface{} {
		if picture == nil {
			return "null"
		}
		return picture
	})
}
