package bridge

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/observability"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/version"
)

func (s *Server) routes() {
	s.engine.Use(recovery(s.log), requestID(), requestLogger(s.log))

	s.engine.GET("/health", s.health)
	s.engine.GET("/info", s.info)

	v1 := s.engine.Group("/v1/permissions")
	v1.GET("/prompts", s.prompts)
	v1.GET("/status", s.status)
	v1.POST("/results", requireToken(s.verifier), rateLimit(s.limiter, "results"), s.results)
}

// resultPayload is the body of POST /v1/permissions/results.
type resultPayload struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
	Outcomes    []string `json:"outcomes" validate:"required,min=1,eqfield=Permissions,dive,oneof=granted denied"`
}

func (p resultPayload) response() permission.Response {
	outcomes := make([]permission.Outcome, len(p.Outcomes))
	for i, o := range p.Outcomes {
		// Already validated by the oneof rule.
		outcomes[i], _ = permission.ParseOutcome(o)
	}
	return permission.Response{Permissions: permission.Set(p.Permissions), Outcomes: outcomes}
}

type deliveryResult struct {
	Listeners int `json:"listeners"`
}

func (s *Server) results(c *gin.Context) {
	var payload resultPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := validateStruct(payload); err != nil {
		respondWithError(c, err)
		return
	}

	listeners := s.deps.Session.Listeners()
	s.deps.Session.DeliverResponse(c.Request.Context(), payload.response())
	s.log.Debug("result delivered", logger.Fields(
		logger.FieldRequestID, c.GetString(requestIDKey),
		logger.FieldPermissions, payload.Permissions,
		logger.FieldOutcomes, payload.Outcomes,
	))
	respondAccepted(c, deliveryResult{Listeners: listeners})
}

func (s *Server) prompts(c *gin.Context) {
	streamPrompts(c, s.deps.Hub, s.keepAlive, s.log)
}

// statusEntry reports one permission in the status table.
type statusEntry struct {
	Permission string `json:"permission"`
	Outcome    string `json:"outcome"`
	Known      bool   `json:"known"`
}

func (s *Server) status(c *gin.Context) {
	if p := c.Query("permission"); p != "" {
		outcome, known := s.deps.Table.Lookup(p)
		entry := statusEntry{Permission: p, Known: known}
		if known {
			entry.Outcome = outcome.String()
		}
		respondOK(c, entry)
		return
	}

	snapshot := s.deps.Table.Snapshot()
	out := make(map[string]string, len(snapshot))
	for p, o := range snapshot {
		out[p] = o.String()
	}
	respondOK(c, out)
}

func (s *Server) health(c *gin.Context) {
	h := observability.Check(c.Request.Context(), s.deps.Service, version.Short(), s.deps.Session, s.deps.Hub)
	status := http.StatusOK
	if h.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}

func (s *Server) info(c *gin.Context) {
	respondOK(c, version.Get())
}
