package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/flosla/services/registration/internal/services"
)

// ReceiptHandler handles receipt lookups
type ReceiptHandler struct {
	receiptService *services.ReceiptService
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(receiptService *services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

// HandleGetReceipt returns the receipt view for a settled reference
func (h *ReceiptHandler) HandleGetReceipt(c *gin.Context) {
	reference := c.Param("reference")

	receipt, err := h.receiptService.GetReceipt(c.Request.Context(), reference)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": receipt})
}

// HandleVerifyReceipt reports whether a reference corresponds to a paid
// registration.
func (h *ReceiptHandler) HandleVerifyReceipt(c *gin.Context) {
	reference := c.Param("reference")

	status, err := h.receiptService.VerifyReceipt(c.Request.Context(), reference)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

// RegisterRoutes registers the handler's routes
func (h *ReceiptHandler) RegisterRoutes(api *gin.RouterGroup) {
	receipts := api.Group("/receipts")
	receipts.GET("/:reference", h.HandleGetReceipt)
	receipts.GET("/:reference/verify", h.HandleVerifyReceipt)
}
