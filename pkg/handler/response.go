package handler

import (
	"net/http"

	"debitcard_back/pkg/service"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Error struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func newErrorResponse(c *gin.Context, statusCode int, code, message string) {
	if statusCode >= http.StatusInternalServerError {
		logrus.Error(message)
	} else {
		logrus.Warn(message)
	}
	c.AbortWithStatusJSON(statusCode, Error{Message: message, Code: code})
}

// errorStatus maps service errors to the status and code the dashboard switches on.
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "Access denied. Your wallet address is not registered in our system."
	case errors.Is(err, service.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount", service.ErrInvalidAmount.Error()
	case errors.Is(err, service.ErrTopUpInFlight):
		return http.StatusConflict, "topup_in_flight", service.ErrTopUpInFlight.Error()
	case errors.Is(err, service.ErrNoPendingTopUp):
		return http.StatusConflict, "no_pending_topup", service.ErrNoPendingTopUp.Error()
	case errors.Is(err, service.ErrPriceUnavailable):
		return http.StatusServiceUnavailable, "price_unavailable", service.ErrPriceUnavailable.Error()
	case errors.Is(err, service.ErrTransferRejected):
		return http.StatusUnprocessableEntity, "transfer_rejected", err.Error()
	case errors.Is(err, service.ErrTransferFailed):
		return http.StatusBadGateway, "transfer_failed", "Transaction failed. Please try again."
	case errors.Is(err, service.ErrLedgerUpdate):
		return http.StatusInternalServerError, "ledger_error", service.ErrLedgerUpdate.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "signature verification failed"
	case errors.Is(err, service.ErrSessionsDisabled):
		return http.StatusNotFound, "sessions_disabled", service.ErrSessionsDisabled.Error()
	}
	return http.StatusInternalServerError, "internal", "something went wrong"
}

func serviceError(c *gin.Context, err error) {
	status, code, message := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logrus.Errorf("%s %s: %s", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, Error{Message: message, Code: code})
}

func wrapOkJSON(c *gin.Context, response map[string]interface{}) {
	c.JSON(http.StatusOK, response)
}
