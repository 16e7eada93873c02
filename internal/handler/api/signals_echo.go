package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	xhttp "IgniteX/pkg/http"
	xlogger "IgniteX/pkg/logger"
)

// SignalsEchoHandler serves the persisted-signal read surface consumed by
// dashboards. Clients must treat expires_at as authoritative freshness.
type SignalsEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.SignalStore
}

func NewSignalsEchoHandler(logger *xlogger.Logger, store domrepo.SignalStore) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, store: store}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.List)
}

func (h *SignalsEchoHandler) List(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	from := xhttp.ParseTimeDefault(req.From, time.Time{})
	to := xhttp.ParseTimeDefault(req.To, time.Time{})
	from, to = xhttp.ClampRange(from, to, time.Now(), 24*time.Hour)

	signals, err := h.store.ListByUser(c.Request().Context(), req.UserID, req.ActiveOnly, from, to, req.Limit)
	if err != nil {
		h.logger.Error("list signals error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}
