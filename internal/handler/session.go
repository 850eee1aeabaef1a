package handler

import (
	"net/http"

	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/middleware"
	"github.com/ally-360/pos-terminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SessionHandler exposes the whole engine state and the event stream.
type SessionHandler struct {
	state *service.StateManager
	hub   *infra.Hub
}

func NewSessionHandler(state *service.StateManager, hub *infra.Hub) *SessionHandler {
	return &SessionHandler{state: state, hub: hub}
}

// State godoc
// @Summary Returns the register, open windows and sale history in one call
// @Tags session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Snapshot
// @Router /v1/state [get]
func (h *SessionHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

// Logout godoc
// @Summary Drops the local state and clears every persisted key
// @Tags session
// @Security BearerAuth
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/session/logout [post]
func (h *SessionHandler) Logout(c *gin.Context) {
	if err := h.state.Reset(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("cashier", middleware.GetClaims(c).CashierID).Msg("session: local state cleared on logout")
	c.Status(http.StatusNoContent)
}

// Events godoc
// @Summary Websocket stream of state events
// @Tags session
// @Security BearerAuth
// @Router /v1/events [get]
func (h *SessionHandler) Events(c *gin.Context) {
	h.hub.ServeHTTP(c.Writer, c.Request)
}
