package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/kraalmart/kraalmart/internal/order/domain"
)

func (s *Server) GetOrder(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	order, svcErr := s.orderRepo.FindByID(c.Request.Context(), s.db, id)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}
	if order == nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) GetOrderEscrow(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid order id"))
		return
	}

	escrow, svcErr := s.escrowSvc.GetByOrderID(c.Request.Context(), id)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, escrow)
}
