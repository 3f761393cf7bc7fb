package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/permission"
)

// SSE event names.
const (
	EventConnected = "connected"
	EventPrompt    = "prompt"
)

// Prompt is the payload of a prompt event.
type Prompt struct {
	ID          string         `json:"id"`
	Permissions permission.Set `json:"permissions"`
}

// PromptRequester shows prompts by broadcasting them to connected SSE
// clients. It implements permission.Requester.
type PromptRequester struct {
	hub *Hub
	log *logger.Logger
}

// NewPromptRequester creates a requester over hub.
func NewPromptRequester(hub *Hub) *PromptRequester {
	return &PromptRequester{hub: hub, log: logger.WithComponent("prompt_requester")}
}

// RequestPermissions broadcasts a prompt event. It fails with REQUEST_FAILED
// when no client accepted the event, since nobody could answer it.
func (r *PromptRequester) RequestPermissions(ctx context.Context, permissions permission.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := sseFrame(EventPrompt, Prompt{ID: uuid.New().String(), Permissions: permissions})
	if err != nil {
		return errors.RequestFailed(err)
	}
	n := r.hub.Broadcast(frame)
	if n == 0 {
		return errors.RequestFailed(fmt.Errorf("no prompt client connected"))
	}
	r.log.Debug("prompt dispatched", logger.Fields(
		logger.FieldPermissions, permissions,
		"clients", n,
	))
	return nil
}

func sseFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data), nil
}

// streamPrompts serves the SSE connection for one client until the request
// context ends or the hub closes.
func streamPrompts(c *gin.Context, hub *Hub, keepAlive time.Duration, log *logger.Logger) {
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(c, errors.Internal(fmt.Errorf("streaming not supported")))
		return
	}

	// Long-lived stream; the server's write timeout must not cut it.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not disable write deadline", logger.ErrorFields("stream_prompts", err))
	}

	clientID := c.GetString(requestIDKey)
	if clientID == "" {
		clientID = uuid.New().String()
	}
	cl, ok := hub.register(clientID)
	if !ok {
		respondWithError(c, errors.ServiceUnavailable("prompt stream"))
		return
	}
	defer hub.unregister(cl)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	hello, _ := sseFrame(EventConnected, map[string]string{"client_id": clientID})
	_, _ = w.Write(hello)
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-cl.events:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				log.Debug("client write failed", logger.Fields(logger.FieldClientID, clientID, logger.FieldError, err.Error()))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
