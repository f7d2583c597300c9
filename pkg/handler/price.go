package handler

import (
	"github.com/gin-gonic/gin"
)

func (h *Handler) GetConfig(c *gin.Context) {
	wrapOkJSON(c, map[string]interface{}{
		"data": h.service.Public,
	})
}

func (h *Handler) GetPrice(c *gin.Context) {
	ctx := c.Request.Context()
	wrapOkJSON(c, map[string]interface{}{
		"price":   h.service.Price.Current(ctx),
		"options": h.service.Price.Options(ctx),
	})
}

func (h *Handler) RefreshPrice(c *gin.Context) {
	ctx := c.Request.Context()
	wrapOkJSON(c, map[string]interface{}{
		"price":   h.service.Price.Refresh(ctx),
		"options": h.service.Price.Options(ctx),
	})
}
