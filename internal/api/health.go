package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// health reports store reachability and the rollover's state. It returns
// 503 when the store does not answer.
func (s *Server) health(c *gin.Context) {
	body := gin.H{"status": "ok", "store": "ok"}
	status := http.StatusOK

	if p, ok := s.deps.Ledger.(pinger); ok {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("health check: store ping failed", "error", err)
			body["status"] = "degraded"
			body["store"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	if sched := s.deps.Scheduler; sched != nil {
		rollover := gin.H{"state": sched.State()}
		if run, ok := sched.LastRun(); ok {
			rollover["last_run"] = run
		}
		if next := sched.Next(); !next.IsZero() {
			rollover["next_run"] = next
		}
		body["rollover"] = rollover
	}
	c.JSON(status, body)
}
