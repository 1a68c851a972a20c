package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/kraalmart/kraalmart/internal/checkout/domain"
)

type previewRequest struct {
	Cart     []checkoutdomain.CartLine `json:"cart"`
	Currency string                    `json:"currency"`
}

func (s *Server) PreviewCheckout(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	preview, err := s.checkoutSvc.Preview(c.Request.Context(), req.Cart, req.Currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"preview": preview,
	})
}

func (s *Server) CreateCheckout(c *gin.Context) {
	var req checkoutdomain.CheckoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.checkoutSvc.Checkout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":           true,
		"reference":         result.Reference,
		"authorization_url": result.AuthorizationURL,
		"orders":            result.Orders,
		"preview":           result.Preview,
	})
}

func (s *Server) GetFeeBreakdown(c *gin.Context) {
	amountMinor, err := strconv.ParseInt(strings.TrimSpace(c.Query("amount")), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be an integer of minor units"))
		return
	}
	export, _ := strconv.ParseBool(c.DefaultQuery("export", "false"))

	result, svcErr := s.checkoutSvc.Breakdown(c.Request.Context(), amountMinor, c.Query("species"), export)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"breakdown": result.Lines,
		"config_used": gin.H{
			"id":    result.FeeConfigID,
			"name":  result.Label,
			"model": "percentage_commission",
		},
	})
}
