package handler

import (
	"net/http"
	"time"

	"debitcard_back/models"

	"github.com/gin-gonic/gin"
)

// SignInMessage returns the text the wallet has to sign for a session.
func (h *Handler) SignInMessage(c *gin.Context) {
	wrapOkJSON(c, map[string]interface{}{
		"message": h.service.Session.SignInMessage(time.Now()),
		"enabled": h.service.Session.Enabled(),
	})
}

func (h *Handler) CreateSession(c *gin.Context) {
	var input models.SessionInput
	if err := c.BindJSON(&input); err != nil {
		newErrorResponse(c, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	token, expires, err := h.service.Session.Login(c.Request.Context(), input)
	if err != nil {
		serviceError(c, err)
		return
	}

	wrapOkJSON(c, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
	})
}
