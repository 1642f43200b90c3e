// routes_misc.go - Hilfsfunktionen fuer Handler
// Enthaelt: bindRequest, errorStatus, abortWithError, streamResponse,
// waitForStream

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lora-inspector/inspector/api"
	"github.com/lora-inspector/inspector/engine"
	"github.com/lora-inspector/inspector/fs/safetensors"
	"github.com/lora-inspector/inspector/keys"
	"github.com/lora-inspector/inspector/lora"
	"github.com/lora-inspector/inspector/worker"
)

// bindRequest dekodiert den JSON-Body nach req und bricht bei Fehlern mit 400 ab
func bindRequest(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	switch {
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return false
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// errorStatus bildet Sentinel-Fehler auf HTTP-Status ab
func errorStatus(err error) int {
	switch {
	case errors.Is(err, worker.ErrActorUnavailable),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, lora.ErrNoWeights),
		errors.Is(err, safetensors.ErrTensorNotFound):
		return http.StatusNotFound
	case errors.Is(err, worker.ErrIngestionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, keys.ErrUnrecognizedKeyFormat),
		errors.Is(err, safetensors.ErrInvalidHeader),
		errors.Is(err, engine.ErrUnsupportedDType),
		errors.Is(err, lora.ErrIncompleteWeights):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrUnknownMetric),
		errors.Is(err, worker.ErrUnknownMessageType):
		return http.StatusBadRequest
	case errors.Is(err, worker.ErrActorTerminated),
		errors.Is(err, worker.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// errorLine ist die Fehler-Zeile eines Streams
func errorLine(err error) gin.H {
	return gin.H{"error": err.Error(), "status": errorStatus(err)}
}

// waitForStream sammelt einen Stream und antwortet nur mit dem Ergebnis
func waitForStream(c *gin.Context, ch chan any) {
	c.Header("Content-Type", "application/json")

	var result any
	for resp := range ch {
		switch r := resp.(type) {
		case api.ProgressResponse:
			// Fortschritt wird ohne Stream verworfen
		case gin.H:
			status, ok := r["status"].(int)
			if !ok {
				status = http.StatusInternalServerError
			}
			errorMsg, ok := r["error"].(string)
			if !ok {
				errorMsg = "unknown error"
			}
			c.JSON(status, gin.H{"error": errorMsg})
			return
		default:
			result = r
		}
	}

	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no result"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// streamResponse streamt ndjson Responses
func streamResponse(c *gin.Context, ch chan any) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Stream(func(w io.Writer) bool {
		val, ok := <-ch
		if !ok {
			return false
		}

		if h, ok := val.(gin.H); ok {
			if e, ok := h["error"].(string); ok {
				status, ok := h["status"].(int)
				if !ok {
					status = http.StatusInternalServerError
				}

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.JSON(status, gin.H{"error": e})
				} else if err := json.NewEncoder(c.Writer).Encode(gin.H{"error": e}); err != nil {
					slog.Error("streamResponse failed to encode json error", "error", err)
				}

				return false
			}
		}

		bts, err := json.Marshal(val)
		if err != nil {
			slog.Info(fmt.Sprintf("streamResponse: json.Marshal failed with %s", err))
			return false
		}

		bts = append(bts, '\n')
		if _, err := w.Write(bts); err != nil {
			slog.Info(fmt.Sprintf("streamResponse: w.Write failed with %s", err))
			return false
		}

		return true
	})
}
