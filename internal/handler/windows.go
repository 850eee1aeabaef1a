package handler

import (
	"errors"
	"net/http"

	"github.com/ally-360/pos-terminal/internal/dto"
	"github.com/ally-360/pos-terminal/internal/model"
	"github.com/ally-360/pos-terminal/internal/service"

	"github.com/gin-gonic/gin"
)

type WindowsHandler struct{ svc *service.SaleService }

func NewWindowsHandler(svc *service.SaleService) *WindowsHandler { return &WindowsHandler{svc: svc} }

// Create godoc
// @Summary Opens a new sale window and makes it active
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Success 201 {object} model.SaleWindow
// @Router /v1/windows [post]
func (h *WindowsHandler) Create(c *gin.Context) {
	w, err := h.svc.CreateWindow(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

// List godoc
// @Summary Lists open sale windows in creation order
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.WindowListResponse
// @Router /v1/windows [get]
func (h *WindowsHandler) List(c *gin.Context) {
	windows, active := h.svc.ListWindows()
	c.JSON(http.StatusOK, dto.WindowListResponse{Windows: windows, ActiveWindowID: active})
}

// Get godoc
// @Summary Returns one sale window
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 200 {object} model.SaleWindow
// @Failure 404 {object} apierror.APIError
// @Router /v1/windows/{id} [get]
func (h *WindowsHandler) Get(c *gin.Context) {
	w, err := h.svc.GetWindow(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// SetActive godoc
// @Summary Switches the active window
// @Tags windows
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 204
// @Router /v1/windows/{id}/active [put]
func (h *WindowsHandler) SetActive(c *gin.Context) {
	if err := h.svc.SetActive(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Cancel godoc
// @Summary Cancels a window and discards its cart
// @Tags windows
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 204
// @Failure 409 {object} apierror.APIError
// @Router /v1/windows/{id} [delete]
func (h *WindowsHandler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddItem godoc
// @Summary Adds a product line to the cart
// @Tags windows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param body body dto.AddItemRequest true "Line"
// @Success 201 {object} dto.WindowMutationResponse
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/windows/{id}/items [post]
func (h *WindowsHandler) AddItem(c *gin.Context) {
	var req dto.AddItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	w, lineID, err := h.svc.AddItem(c.Request.Context(), c.Param("id"), service.LineItemInput{
		ProductID: req.ProductID,
		Name:      req.Name,
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		TaxRate:   req.TaxRate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.WindowMutationResponse{Window: w, LineID: lineID})
}

// UpdateQuantity godoc
// @Summary Changes the quantity of a line
// @Tags windows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param lineId path string true "Line ID"
// @Param body body dto.UpdateQuantityRequest true "Quantity"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/items/{lineId} [patch]
func (h *WindowsHandler) UpdateQuantity(c *gin.Context) {
	var req dto.UpdateQuantityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	w, err := h.svc.UpdateQuantity(c.Request.Context(), c.Param("id"), c.Param("lineId"), req.Quantity)
	h.respond(c, w, err)
}

// RemoveItem godoc
// @Summary Removes a line from the cart
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param lineId path string true "Line ID"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/items/{lineId} [delete]
func (h *WindowsHandler) RemoveItem(c *gin.Context) {
	w, err := h.svc.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("lineId"))
	h.respond(c, w, err)
}

// BindCustomer godoc
// @Summary Binds the customer the sale is invoiced to
// @Tags windows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param body body dto.BindCustomerRequest true "Customer"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/customer [put]
func (h *WindowsHandler) BindCustomer(c *gin.Context) {
	var req dto.BindCustomerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	w, err := h.svc.BindCustomer(c.Request.Context(), c.Param("id"), req.CustomerID, req.CustomerName)
	h.respond(c, w, err)
}

// UnbindCustomer godoc
// @Summary Clears the bound customer
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/customer [delete]
func (h *WindowsHandler) UnbindCustomer(c *gin.Context) {
	w, err := h.svc.UnbindCustomer(c.Request.Context(), c.Param("id"))
	h.respond(c, w, err)
}

// SetAdjustments godoc
// @Summary Sets the window-level discount and shipping
// @Tags windows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param body body dto.AdjustmentsRequest true "Adjustments"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/adjustments [put]
func (h *WindowsHandler) SetAdjustments(c *gin.Context) {
	var req dto.AdjustmentsRequest
	if !bindAndValidate(c, &req) {
		return
	}
	w, err := h.svc.SetAdjustments(c.Request.Context(), c.Param("id"), req.Discount, req.Shipping)
	h.respond(c, w, err)
}

// AddPayment godoc
// @Summary Records a tender against the window
// @Tags windows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param body body dto.AddPaymentRequest true "Payment"
// @Success 201 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/payments [post]
func (h *WindowsHandler) AddPayment(c *gin.Context) {
	var req dto.AddPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	w, paymentID, err := h.svc.AddPayment(c.Request.Context(), c.Param("id"), model.Payment{
		Method:    model.PaymentMethod(req.Method),
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.WindowMutationResponse{Window: w, PaymentID: paymentID})
}

// RemovePayment godoc
// @Summary Removes a recorded tender
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Param paymentId path string true "Payment ID"
// @Success 200 {object} dto.WindowMutationResponse
// @Router /v1/windows/{id}/payments/{paymentId} [delete]
func (h *WindowsHandler) RemovePayment(c *gin.Context) {
	w, err := h.svc.RemovePayment(c.Request.Context(), c.Param("id"), c.Param("paymentId"))
	h.respond(c, w, err)
}

// Confirmation godoc
// @Summary Validates the window and returns what the confirmation dialog shows
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 200 {object} service.Confirmation
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/windows/{id}/confirmation [get]
func (h *WindowsHandler) Confirmation(c *gin.Context) {
	conf, err := h.svc.PrepareCompletion(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conf)
}

// Complete godoc
// @Summary Submits the sale to the backend
// @Description On a backend failure the window is left untouched and the call can be retried.
// @Tags windows
// @Produce json
// @Security BearerAuth
// @Param id path string true "Window ID"
// @Success 201 {object} dto.CompleteSaleResponse
// @Failure 502 {object} apierror.APIError
// @Router /v1/windows/{id}/complete [post]
func (h *WindowsHandler) Complete(c *gin.Context) {
	sale, err := h.svc.Complete(c.Request.Context(), c.Param("id"))
	if err != nil && !(sale != nil && errors.Is(err, service.ErrLateSubmission)) {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CompleteSaleResponse{Sale: *sale, Late: err != nil})
}

func (h *WindowsHandler) respond(c *gin.Context, w model.SaleWindow, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.WindowMutationResponse{Window: w})
}
