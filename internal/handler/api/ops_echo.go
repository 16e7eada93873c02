package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/internal/hub"
	mid "IgniteX/internal/middleware"
	"IgniteX/internal/scheduler"
	"IgniteX/internal/usecase"
	xhttp "IgniteX/pkg/http"
	xlogger "IgniteX/pkg/logger"
)

// OpsEchoHandler exposes the operational surface: runtime gate tuning,
// per-tier stats, manual drops and scheduler lifecycle control.
type OpsEchoHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.SignalPipeline
	ingest   *mid.IngestPipeline
	sched    *scheduler.Scheduler
	quota    domrepo.QuotaRegistry
	hub      *hub.Hub
}

func NewOpsEchoHandler(
	logger *xlogger.Logger,
	pipeline *usecase.SignalPipeline,
	ingest *mid.IngestPipeline,
	sched *scheduler.Scheduler,
	quota domrepo.QuotaRegistry,
	h *hub.Hub,
) *OpsEchoHandler {
	return &OpsEchoHandler{logger: logger, pipeline: pipeline, ingest: ingest, sched: sched, quota: quota, hub: h}
}

func (h *OpsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/thresholds", h.GetThresholds)
	g.PUT("/thresholds", h.SetThresholds)
	g.GET("/stats", h.Stats)
	g.GET("/quota", h.Quota)
	g.POST("/drops/:tier", h.ForceDrop)
	g.POST("/scheduler/start", h.StartScheduler)
	g.POST("/scheduler/stop", h.StopScheduler)
	g.POST("/candidates", h.SubmitCandidate)

	e.GET("/ws/signals", h.hub.ServeWS)
}

func (h *OpsEchoHandler) GetThresholds(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pipeline.Chain().Thresholds())
}

func (h *OpsEchoHandler) SetThresholds(c echo.Context) error {
	req := &models.ThresholdsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	next := h.pipeline.Chain().SetThresholds(req.Quality, req.MLProbability, req.WinRate)
	return xhttp.SuccessResponse(c, next)
}

func (h *OpsEchoHandler) Stats(c echo.Context) error {
	stats := h.sched.Stats(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"tiers":       stats,
		"subscribers": h.hub.ClientCount(),
	})
}

func (h *OpsEchoHandler) Quota(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return xhttp.BadRequestResponse(c, "user_id is required")
	}
	status, err := h.quota.Status(c.Request().Context(), userID)
	if err != nil {
		h.logger.Error("quota status error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *OpsEchoHandler) ForceDrop(c echo.Context) error {
	req := &models.DropRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tier := models.Tier(req.Tier)
	res, err := h.sched.ForceDrop(c.Request().Context(), tier)
	if err != nil {
		h.logger.Error("force drop error", xlogger.String("tier", req.Tier), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OpsEchoHandler) StartScheduler(c echo.Context) error {
	// the scheduler outlives the request; its loop is bound to process
	// lifetime, not the HTTP context
	if err := h.sched.Start(context.Background()); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]bool{"running": true})
}

func (h *OpsEchoHandler) StopScheduler(c echo.Context) error {
	h.sched.Stop()
	return xhttp.SuccessResponse(c, map[string]bool{"running": false})
}

// SubmitCandidate accepts a raw candidate over HTTP, an alternative ingress
// to the Kafka topic used by detectors during development and backfills.
// Goes through the same ingest pipeline as the Kafka path so HTTP
// submissions obey the per-strategy throttle.
func (h *OpsEchoHandler) SubmitCandidate(c echo.Context) error {
	req := &models.RawCandidate{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	out, err := h.ingest.Process(c.Request().Context(), req)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if out == nil {
		// over the strategy rate: queued for paced replay
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]interface{}{"queued": true})
	}
	resp := map[string]interface{}{
		"candidate_id": out.Candidate.ID,
		"passed":       out.Passed,
	}
	if rej := out.RejectedAt(); rej != nil {
		resp["rejected_stage"] = rej.Stage.String()
		resp["reason"] = rej.Reason
	}
	return xhttp.DataResponse(c, http.StatusCreated, resp)
}
