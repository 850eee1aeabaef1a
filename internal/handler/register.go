package handler

import (
	"net/http"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/middleware"
	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/service"

	"github.com/gin-gonic/gin"
)

type RegisterHandler struct{ svc *service.RegisterService }

func NewRegisterHandler(svc *service.RegisterService) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

// Current godoc
// @Summary Returns the local register session
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.RegisterResponseLocal
// @Router /v1/register [get]
func (h *RegisterHandler) Current(c *gin.Context) {
	c.JSON(http.StatusOK, dto.RegisterResponseLocal{Register: h.svc.Current()})
}

// Open godoc
// @Summary Opens the register, or adopts the session already open for this PDV
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenRegisterLocalRequest true "Opening float"
// @Success 201 {object} dto.RegisterResponseLocal
// @Failure 409 {object} apierror.APIError
// @Failure 502 {object} apierror.APIError
// @Router /v1/register/open [post]
func (h *RegisterHandler) Open(c *gin.Context) {
	var req dto.OpenRegisterLocalRequest
	if !bindAndValidate(c, &req) {
		return
	}
	reg, err := h.svc.Open(c.Request.Context(), service.OpenRegisterInput{
		OpeningBalance: req.OpeningBalance,
		Notes:          req.Notes,
		OpenedBy:       middleware.GetClaims(c).CashierID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.RegisterResponseLocal{Register: reg})
}

// Sync godoc
// @Summary Reconciles the local session with the backend
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.RegisterResponseLocal
// @Router /v1/register/sync [post]
func (h *RegisterHandler) Sync(c *gin.Context) {
	reg, err := h.svc.Sync(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponseLocal{Register: reg})
}

// RecordMovement godoc
// @Summary Records a manual cash movement on the open register
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovementRequest true "Movement"
// @Success 201 {object} model.Movement
// @Router /v1/register/movements [post]
func (h *RegisterHandler) RecordMovement(c *gin.Context) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	mv, err := h.svc.RecordMovement(c.Request.Context(), model.MovementType(req.Type), req.Amount, req.Reference)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mv)
}

// InitiateClose godoc
// @Summary Starts the close: register goes RECONCILING and the summary is fetched
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.ReconciliationSummary
// @Failure 502 {object} apierror.APIError
// @Router /v1/register/close [post]
func (h *RegisterHandler) InitiateClose(c *gin.Context) {
	summary, err := h.svc.InitiateClose(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Summary godoc
// @Summary Fetches the closing summary again
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.ReconciliationSummary
// @Router /v1/register/close/summary [get]
func (h *RegisterHandler) Summary(c *gin.Context) {
	summary, err := h.svc.RefreshSummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ConfirmClose godoc
// @Summary Confirms the close with the counted drawer amount
// @Description A non-zero difference requires closing notes.
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ConfirmCloseRequest true "Count"
// @Success 200 {object} dto.RegisterResponseLocal
// @Failure 422 {object} apierror.APIError
// @Router /v1/register/close/confirm [post]
func (h *RegisterHandler) ConfirmClose(c *gin.Context) {
	var req dto.ConfirmCloseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	reg, err := h.svc.ConfirmClose(c.Request.Context(), req.CountedBalance, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponseLocal{Register: reg})
}

// DismissClose godoc
// @Summary Abandons the close and returns the register to OPEN
// @Tags register
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.RegisterResponseLocal
// @Router /v1/register/close/dismiss [post]
func (h *RegisterHandler) DismissClose(c *gin.Context) {
	reg, err := h.svc.DismissClose(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterResponseLocal{Register: reg})
}
