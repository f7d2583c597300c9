package handler

import (
	"net/http"

	"debitcard_back/models"
	"debitcard_back/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// QuoteTopUp takes {usd_amount} and returns the transfer the wallet has to sign.
func (h *Handler) QuoteTopUp(c *gin.Context) {
	var input models.QuoteInput
	if err := c.BindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid_amount", "invalid request body")
		return
	}

	quote, err := h.service.TopUp.Quote(c.Request.Context(), middleware.Wallet(c), input.USDAmount)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": quote,
	})
}

// SubmitTopUp takes {raw_tx}, the signed transfer, and broadcasts it.
func (h *Handler) SubmitTopUp(c *gin.Context) {
	var input models.SubmitInput
	if err := c.BindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid_request", "raw_tx is required")
		return
	}

	topUp, err := h.service.TopUp.Submit(c.Request.Context(), middleware.Wallet(c), input.RawTx)
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": topUp,
	})
}

func (h *Handler) RejectTopUp(c *gin.Context) {
	topUp, err := h.service.TopUp.Reject(c.Request.Context(), middleware.Wallet(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": topUp,
	})
}

func (h *Handler) GetTopUp(c *gin.Context) {
	topUp, err := h.service.TopUp.Pending(c.Request.Context(), middleware.Wallet(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": topUp,
	})
}

// CancelTopUp is the disconnect path: the slot is dropped and nothing on
// chain is undone.
func (h *Handler) CancelTopUp(c *gin.Context) {
	if err := h.service.TopUp.Cancel(c.Request.Context(), middleware.Wallet(c)); err != nil {
		serviceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
