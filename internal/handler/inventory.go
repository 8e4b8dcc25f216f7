package handler

import (
	"net/http"

	"storefront/internal/dto"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// Restock godoc
// @Summary      Ingresar stock
// @Tags         inventario
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RestockRequest true "Producto y cantidad"
// @Success      200  {object} dto.StockLevelResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/inventario/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	var req dto.RestockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Restock(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// WriteOff godoc
// @Summary      Dar de baja unidades devueltas
// @Description  Saca de circulacion unidades vendidas que volvieron dañadas. No vuelven a disponible.
// @Tags         inventario
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.WriteOffRequest true "Producto, cantidad y motivo"
// @Success      200  {object} dto.StockLevelResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/inventario/write-off [post]
func (h *InventoryHandler) WriteOff(c *gin.Context) {
	var req dto.WriteOffRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.WriteOff(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLog godoc
// @Summary      Movimientos de inventario
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Param        product_id query string false "UUID del producto"
// @Param        action     query string false "ADD | RESERVE | RELEASE | SELL | RETURN"
// @Param        page       query int    false "Pagina (default 1)"
// @Param        limit      query int    false "Registros por pagina (default 100)"
// @Success      200        {object} dto.InventoryLogListResponse
// @Router       /v1/inventario/movimientos [get]
func (h *InventoryHandler) ListLog(c *gin.Context) {
	var filter dto.InventoryLogFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListLog(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Alerts godoc
// @Summary      Alertas de stock bajo
// @Tags         inventario
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.LowStockAlertResponse
// @Router       /v1/inventario/alertas [get]
func (h *InventoryHandler) Alerts(c *gin.Context) {
	resp, err := h.svc.Alerts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Availability godoc
// @Summary      Disponibilidad publica
// @Description  Contadores de stock de un producto. Sin autenticacion, cacheado en Redis.
// @Tags         stock
// @Produce      json
// @Param        productId path     string true "UUID del producto"
// @Success      200       {object} dto.StockLevelResponse
// @Failure      404       {object} apierror.APIError
// @Router       /v1/stock/{productId} [get]
func (h *InventoryHandler) Availability(c *gin.Context) {
	id, ok := uuidParam(c, "productId")
	if !ok {
		return
	}
	resp, err := h.svc.Availability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
