package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train4best-api/internal/models"
	"github.com/noah-isme/train4best-api/pkg/response"
)

type bankAccountLister interface {
	List(ctx context.Context) ([]models.BankAccount, error)
}

// BankAccountHandler exposes the transfer destinations shown to registrants.
type BankAccountHandler struct {
	service bankAccountLister
}

// NewBankAccountHandler constructs the handler.
func NewBankAccountHandler(svc bankAccountLister) *BankAccountHandler {
	return &BankAccountHandler{service: svc}
}

// List godoc
// @Summary List active bank accounts
// @Tags Payment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /bank-accounts [get]
func (h *BankAccountHandler) List(c *gin.Context) {
	accounts, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, nil)
}
