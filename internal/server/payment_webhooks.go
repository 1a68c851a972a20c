package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kraalmart/kraalmart/internal/payment/adapters/paystack"
	paymentdomain "github.com/kraalmart/kraalmart/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	signature := c.GetHeader(paystack.SignatureHeader)
	result, err := s.webhookSvc.Ingest(c.Request.Context(), provider, payload, signature)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			// Acknowledge event types we don't act on so the provider
			// stops redelivering them.
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"duplicate": result.Duplicate,
	})
}
