// Package health reports process liveness and readiness, adapted from the
// teacher's health handler (internal/v1/health/handler.go) but scoped to
// this server's own directories — room/peer/track counts — since there is
// no Redis bus or SFU dependency left to probe.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Reporter is the minimal view of hub state health needs to report counts.
type Reporter interface {
	RoomCount() int
	PeerCount() int
	TrackCount() int
}

// LivenessResponse is served by /health/live: the process is alive, no
// dependency checks.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse is served by /health/ready, with the in-memory counts
// a caller would want to see: this process has no external dependency
// whose absence would make it live-but-not-ready, so readiness here is
// just a richer liveness snapshot.
type ReadinessResponse struct {
	Status    string `json:"status"`
	Rooms     int    `json:"rooms"`
	Peers     int    `json:"peers"`
	Tracks    int    `json:"tracks"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the liveness/readiness endpoints.
type Handler struct {
	reporter Reporter
}

// New builds a Handler reporting counts from reporter.
func New(reporter Reporter) *Handler {
	return &Handler{reporter: reporter}
}

// Liveness handles GET /health/live.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness handles GET /health/ready.
func (h *Handler) Readiness(c *gin.Context) {
	c.JSON(http.StatusOK, ReadinessResponse{
		Status:    "ready",
		Rooms:     h.reporter.RoomCount(),
		Peers:     h.reporter.PeerCount(),
		Tracks:    h.reporter.TrackCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
