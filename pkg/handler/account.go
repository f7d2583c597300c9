package handler

import (
	"debitcard_back/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// GetAccount returns the dashboard of the connected wallet. ?reveal=true
// shows the full card details, but only to a signed-in session.
func (h *Handler) GetAccount(c *gin.Context) {
	dashboard, err := h.service.Account.Dashboard(c.Request.Context(), middleware.Wallet(c), h.reveal(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": dashboard,
	})
}

func (h *Handler) ReloadBalance(c *gin.Context) {
	dashboard, err := h.service.Account.RequestReload(c.Request.Context(), middleware.Wallet(c), h.reveal(c))
	if err != nil {
		serviceError(c, err)
		return
	}
	wrapOkJSON(c, map[string]interface{}{
		"data": dashboard,
	})
}

// reveal is false under header identity: the header proves nothing.
func (h *Handler) reveal(c *gin.Context) bool {
	return h.service.Session.Enabled() && c.Query("reveal") == "true"
}
