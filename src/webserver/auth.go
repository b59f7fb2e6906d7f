package webserver

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stake-plus/membership-dao/src/data"
)

type Auth struct {
	rdb       *redis.Client
	jwtSecret []byte
}

func NewAuth(rdb *redis.Client, secret []byte) Auth {
	return Auth{rdb: rdb, jwtSecret: secret}
}

// Challenge issues a nonce the wallet signs with personal_sign.
func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad address"})
		return
	}
	addr := common.HexToAddress(req.Address)
	nonce := uuid.NewString()
	if err := data.SetNonce(c, a.rdb, addr.Hex(), nonce); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "challenge store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": loginMessage(nonce)})
}

// Verify exchanges a signed challenge for a session token.
func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad address"})
		return
	}
	addr := common.HexToAddress(req.Address)
	nonce, err := data.GetAndDelNonce(c, a.rdb, addr.Hex())
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err := verifySignature(addr, req.Signature, loginMessage(nonce)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(addr, a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
