package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	feeconfigdomain "github.com/kraalmart/kraalmart/internal/feeconfig/domain"
)

func (s *Server) CreateFeeConfig(c *gin.Context) {
	var req feeconfigdomain.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cfg, err := s.feeConfig.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) ListFeeConfigs(c *gin.Context) {
	configs, err := s.feeConfig.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"fee_configs": configs})
}

func (s *Server) GetFeeConfig(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid fee config id"))
		return
	}

	cfg, svcErr := s.feeConfig.GetByID(c.Request.Context(), id)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (s *Server) ActivateFeeConfig(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid fee config id"))
		return
	}

	cfg, svcErr := s.feeConfig.Activate(c.Request.Context(), id)
	if svcErr != nil {
		AbortWithError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// GetActiveFeeConfig exposes the live pricing so storefronts can show fees
// before a preview is requested.
func (s *Server) GetActiveFeeConfig(c *gin.Context) {
	cfg, err := s.feeConfig.GetActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}
