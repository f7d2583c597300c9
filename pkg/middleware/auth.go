package middleware

import (
	"net/http"
	"strings"

	"debitcard_back/internal/wallet"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	WalletHeader = "X-Wallet-Address"
	walletCtx    = "wallet"
)

// TokenParser turns a session token into the wallet it was issued to.
type TokenParser interface {
	Enabled() bool
	Parse(token string) (string, error)
}

// AuthMiddleware resolves the caller's wallet. With sessions enabled only a
// Bearer token is accepted; otherwise the X-Wallet-Address header is trusted.
func AuthMiddleware(sessions TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var address string
		if sessions.Enabled() {
			header := c.GetHeader("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				abort(c, "missing bearer token")
				return
			}
			parsed, err := sessions.Parse(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				abort(c, "invalid or expired session")
				return
			}
			address = parsed
		} else {
			normalized, err := wallet.Normalize(c.GetHeader(WalletHeader))
			if err != nil {
				abort(c, "wallet address is required in '"+WalletHeader+"' header")
				return
			}
			address = normalized
		}

		logrus.Debugf("AuthMiddleware: wallet: %s", address)
		c.Set(walletCtx, address)
		c.Next()
	}
}

// Wallet returns the address set by AuthMiddleware.
func Wallet(c *gin.Context) string {
	return c.GetString(walletCtx)
}

func abort(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": message, "code": "unauthorized"})
}
