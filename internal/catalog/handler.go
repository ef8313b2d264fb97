package catalog

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bazaarlive/backend/pkg/response"
)

// AddRequest is the body for POST /lives/:id/products.
type AddRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
}

// ReorderRequest is the body for PATCH /lives/:id/products/:productId/reorder.
type ReorderRequest struct {
	NewOrder int `json:"new_order"`
}

// SaleRequest is the body for POST /lives/:id/products/:productId/sale.
type SaleRequest struct {
	Qty int `json:"qty" binding:"required"`
}

// PricingRequest is the body for PATCH /lives/:id/products/:productId.
type PricingRequest struct {
	SpecialPrice *int64 `json:"special_price"`
	StockLimit   *int   `json:"stock_limit"`
	IsActive     *bool  `json:"is_active"`
}

// Handler handles featured product HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func parseIDs(c *gin.Context) (sessionID, productID uuid.UUID, ok bool) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, uuid.Nil, false
	}
	productID, err = uuid.Parse(c.Param("productId"))
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return uuid.Nil, uuid.Nil, false
	}
	return sessionID, productID, true
}

// List handles GET /lives/:id/products.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"products": list})
}

// Add handles POST /lives/:id/products.
func (h *Handler) Add(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.service.Add(c.Request.Context(), sessionID, req.ProductID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, p)
}

// Remove handles DELETE /lives/:id/products/:productId.
func (h *Handler) Remove(c *gin.Context) {
	sessionID, productID, ok := parseIDs(c)
	if !ok {
		return
	}
	if err := h.service.Remove(c.Request.Context(), sessionID, productID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reorder handles PATCH /lives/:id/products/:productId/reorder.
func (h *Handler) Reorder(c *gin.Context) {
	sessionID, productID, ok := parseIDs(c)
	if !ok {
		return
	}
	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.service.Reorder(c.Request.Context(), sessionID, productID, req.NewOrder)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// RecordSale handles POST /lives/:id/products/:productId/sale.
func (h *Handler) RecordSale(c *gin.Context) {
	sessionID, productID, ok := parseIDs(c)
	if !ok {
		return
	}
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.service.RecordSale(c.Request.Context(), sessionID, productID, req.Qty)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}

// Update handles PATCH /lives/:id/products/:productId (pricing, visibility).
func (h *Handler) Update(c *gin.Context) {
	sessionID, productID, ok := parseIDs(c)
	if !ok {
		return
	}
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.IsActive != nil {
		p, err := h.service.SetActive(c.Request.Context(), sessionID, productID, *req.IsActive)
		if err != nil {
			response.Error(c, err)
			return
		}
		if req.SpecialPrice == nil && req.StockLimit == nil {
			response.OK(c, p)
			return
		}
	}
	p, err := h.service.SetPricing(c.Request.Context(), sessionID, productID, req.SpecialPrice, req.StockLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, p)
}
