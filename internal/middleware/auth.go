package middleware

import (
	"net/http"
	"strings"

	"github.com/ally-360/pos-terminal/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ClaimsKey = "claims"
)

// CashierClaims are carried by the token the backend issues at login. The
// terminal only reads them; it never signs tokens.
type CashierClaims struct {
	CashierID string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"rol"`
	PDVID     *int   `json:"punto_de_venta"`
	jwt.RegisteredClaims
}

// Anonymous is the identity used when no secret is configured.
var Anonymous = &CashierClaims{CashierID: "local", Username: "local", Role: "cajero"}

// CashierAuth validates the Bearer token on every /v1 route. With an empty
// secret every request runs as Anonymous.
func CashierAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Set(ClaimsKey, Anonymous)
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			// Browsers cannot set headers on a websocket handshake.
			tokenStr = c.Query("access_token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
			return
		}

		claims := &CashierClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims retrieves the cashier identity from the Gin context.
func GetClaims(c *gin.Context) *CashierClaims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*CashierClaims); ok {
			return claims
		}
	}
	return Anonymous
}
