package webserver

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/membership-dao/src/dao"
)

type Members struct{ engine *dao.Engine }

func NewMembers(engine *dao.Engine) Members { return Members{engine: engine} }

// Join buys a membership for the caller out of its ledger balance. The
// optional value defaults to the membership price.
func (m Members) Join(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, err)
		return
	}
	payment := m.engine.MembershipPrice()
	if req.Value != "" {
		v, ok := math.ParseBig256(req.Value)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"err": "bad value"})
			return
		}
		payment = v
	}
	if err := m.engine.Join(c, caller(c), payment); err != nil {
		respondError(c, err)
		return
	}
	member, _ := m.engine.Member(caller(c))
	c.JSON(http.StatusCreated, gin.H{"address": member.Account.Hex(), "joinedAt": member.JoinedAt})
}

func (m Members) Get(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad address"})
		return
	}
	member, ok := m.engine.Member(common.HexToAddress(raw))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"err": "not a member"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": member.Account.Hex(), "joinedAt": member.JoinedAt})
}

// Domain describes what a wallet needs to build and sign ballots.
func (m Members) Domain(c *gin.Context) {
	rules := m.engine.Rules()
	c.JSON(http.StatusOK, gin.H{
		"domain":          m.engine.Domain(),
		"membershipPrice": m.engine.MembershipPrice().String(),
		"members":         m.engine.MemberCount(),
		"votingWindow":    rules.VotingWindow.String(),
		"quorumBps":       rules.QuorumBps,
		"treasury":        m.engine.Treasury().String(),
	})
}
