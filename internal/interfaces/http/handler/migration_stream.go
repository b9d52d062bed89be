package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appmigration "github.com/agencyboard/backend/internal/application/migration"
	"github.com/agencyboard/backend/internal/interfaces/http/dto"
)

// MigrationStreamHandler serves job progress over Server-Sent Events. One
// stream on a parent job carries the events of every child board import.
type MigrationStreamHandler struct {
	BaseHandler
	service   *appmigration.JobService
	logger    *zap.Logger
	heartbeat time.Duration
}

// MigrationStreamOption configures the stream handler
type MigrationStreamOption func(*MigrationStreamHandler)

// WithStreamLogger sets the handler's logger
func WithStreamLogger(logger *zap.Logger) MigrationStreamOption {
	return func(h *MigrationStreamHandler) { h.logger = logger }
}

// WithStreamHeartbeat sets the keep-alive interval
func WithStreamHeartbeat(interval time.Duration) MigrationStreamOption {
	return func(h *MigrationStreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewMigrationStreamHandler creates a new MigrationStreamHandler
func NewMigrationStreamHandler(service *appmigration.JobService, opts ...MigrationStreamOption) *MigrationStreamHandler {
	h := &MigrationStreamHandler{
		service:   service,
		logger:    zap.NewNop(),
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the stream route
func (h *MigrationStreamHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/migrations/:id/stream", h.Stream)
}

// Stream subscribes the client to a job's progress events
func (h *MigrationStreamHandler) Stream(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	// Snapshot first so the client has the current state even if the job is
	// already terminal and will emit nothing further
	detail, err := h.service.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	events, unsubscribe, err := h.service.Subscribe(c.Request.Context(), jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	log := h.logger.With(zap.String("job_id", jobID.String()))
	log.Info("progress stream connected")

	if err := h.sendJSON(c.Writer, "snapshot", dto.ToMigrationJobDetailResponse(detail)); err != nil {
		return
	}
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("progress stream disconnected")
			return
		case <-ticker.C:
			// Comment frame: keeps idle proxies from dropping the connection
			// without waking up event-typed client listeners
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(c.Writer, event); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

// send writes one hub event. Lifecycle events carry the fixed payloads
// clients key on; progress and snapshot frames carry the full event JSON.
func (h *MigrationStreamHandler) send(w io.Writer, event appmigration.Event) error {
	switch event.Type {
	case appmigration.EventStarted:
		_, err := fmt.Fprint(w, "event: started\ndata: {\"started\":true}\n\n")
		return err
	case appmigration.EventCompleted:
		_, err := fmt.Fprint(w, "event: completed\ndata: {\"completed\":true}\n\n")
		return err
	case appmigration.EventFailed:
		payload, err := json.Marshal(map[string]string{"error": event.Error})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "event: error\ndata: %s\n\n", payload)
		return err
	default:
		return h.sendJSON(w, string(event.Type), event)
	}
}

// sendJSON writes one SSE event with a JSON payload
func (h *MigrationStreamHandler) sendJSON(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to marshal stream event", zap.Error(err))
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
