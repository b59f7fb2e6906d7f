package webserver

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const callerKey = "addr"

func JWTMiddleware(secret []byte) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "missing token"})
			return
		}
		tok, err := parser.Parse(h[7:], func(t *jwt.Token) (interface{}, error) { return secret, nil })
		if err != nil || !tok.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid token"})
			return
		}
		addr, _ := tok.Claims.(jwt.MapClaims)["addr"].(string)
		if !common.IsHexAddress(addr) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"err": "invalid token"})
			return
		}
		c.Set(callerKey, common.HexToAddress(addr).Hex())
		c.Next()
	}
}

// caller is the account the request is authenticated as.
func caller(c *gin.Context) common.Address {
	return common.HexToAddress(c.GetString(callerKey))
}
