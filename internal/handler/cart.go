package handler

import (
	"net/http"

	"storefront/internal/dto"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type CartHandler struct{ svc service.CartService }

func NewCartHandler(svc service.CartService) *CartHandler { return &CartHandler{svc: svc} }

// Get godoc
// @Summary      Ver carrito
// @Description  Devuelve el carrito del usuario autenticado (lo crea vacio si no existe).
// @Tags         carrito
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.CartResponse
// @Failure      401 {object} apierror.APIError
// @Router       /v1/cart [get]
func (h *CartHandler) Get(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AddItem godoc
// @Summary      Agregar producto al carrito
// @Description  Reserva las unidades y las suma a la linea del producto. 409 si no hay stock suficiente.
// @Tags         carrito
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.AddCartItemRequest true "Producto y cantidad"
// @Success      200  {object} dto.CartResponse
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddItem(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateItem godoc
// @Summary      Cambiar cantidad
// @Description  Fija la cantidad de una linea; reserva o libera la diferencia. Cantidad <= 0 elimina la linea.
// @Tags         carrito
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        itemId path string                   true "UUID de la linea"
// @Param        body   body dto.UpdateCartItemRequest true "Nueva cantidad"
// @Success      200    {object} dto.CartResponse
// @Failure      404    {object} apierror.APIError
// @Failure      409    {object} apierror.APIError
// @Router       /v1/cart/items/{itemId} [patch]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}
	var req dto.UpdateCartItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetQuantity(c.Request.Context(), middleware.UserID(c), itemID, *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RemoveItem godoc
// @Summary      Quitar linea
// @Tags         carrito
// @Produce      json
// @Security     BearerAuth
// @Param        itemId path string true "UUID de la linea"
// @Success      200    {object} dto.CartResponse
// @Failure      404    {object} apierror.APIError
// @Router       /v1/cart/items/{itemId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}
	resp, err := h.svc.RemoveItem(c.Request.Context(), middleware.UserID(c), itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Clear godoc
// @Summary      Vaciar carrito
// @Description  Libera todas las reservas del carrito.
// @Tags         carrito
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.CartResponse
// @Router       /v1/cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	resp, err := h.svc.Clear(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
