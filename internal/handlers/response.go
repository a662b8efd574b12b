package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func respondError(c *gin.Context, status int, message string, err error) {
	body := gin.H{"error": message}
	if err != nil {
		body["message"] = err.Error()
	}
	c.JSON(status, body)
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{
		"success": true,
		"data":    data,
	})
}

// offerLatest hands v to a single-slot channel, replacing a value the reader
// has not taken yet.
func offerLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// streamEvents writes SSE events taken from updates until the client goes away.
func streamEvents[T any](c *gin.Context, log zerolog.Logger, event string, updates <-chan T, encode func(T) interface{}) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(200)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("event", event).Msg("stream closed by client")
			return
		case v := <-updates:
			c.SSEvent(event, encode(v))
			c.Writer.Flush()
		}
	}
}
