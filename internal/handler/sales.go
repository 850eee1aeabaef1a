package handler

import (
	"net/http"

	"github.com/ally-360/pos-terminal/internal/infra"
	"github.com/ally-360/pos-terminal/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type SalesHandler struct {
	svc  *service.SaleService
	opts infra.ReceiptOptions
}

func NewSalesHandler(svc *service.SaleService, opts infra.ReceiptOptions) *SalesHandler {
	return &SalesHandler{svc: svc, opts: opts}
}

// History godoc
// @Summary Lists the retained completed sales, newest first
// @Tags sales
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.CompletedSale
// @Router /v1/sales [get]
func (h *SalesHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.History())
}

// Receipt godoc
// @Summary Renders the receipt of a retained sale
// @Tags sales
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Sale ID or number"
// @Success 200 {file} binary
// @Failure 404 {object} apierror.APIError
// @Router /v1/sales/{id}/receipt [get]
func (h *SalesHandler) Receipt(c *gin.Context) {
	sale, err := h.svc.Sale(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	pdf, err := infra.RenderReceiptPDF(sale, h.opts)
	if err != nil {
		log.Error().Err(err).Str("sale_id", sale.SaleID).Msg("receipt render failed")
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="receipt-`+sale.Number+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
