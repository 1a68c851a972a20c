package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type refundRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) ReleaseEscrow(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("orderId")))
	if err != nil {
		AbortWithError(c, newValidationError("orderId", "invalid_id", "invalid order id"))
		return
	}

	escrow, svcErr := s.escrowSvc.Release(c.Request.Context(), orderID, "admin")
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

func (s *Server) RefundEscrow(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("orderId")))
	if err != nil {
		AbortWithError(c, newValidationError("orderId", "invalid_id", "invalid order id"))
		return
	}

	// Reason is optional; an empty body means an unspecified refund.
	var req refundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	escrow, svcErr := s.escrowSvc.Refund(c.Request.Context(), orderID, "admin", req.Reason)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

func (s *Server) ListEscrows(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	escrows, err := s.escrowSvc.List(c.Request.Context(), strings.TrimSpace(c.Query("status")), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escrows": escrows})
}
