package webserver

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/membership-dao/src/dao"
)

type Votes struct{ engine *dao.Engine }

func NewVotes(engine *dao.Engine) Votes { return Votes{engine: engine} }

// Cast records the caller's own vote.
func (v Votes) Cast(c *gin.Context) {
	id, ok := proposalParam(c)
	if !ok {
		return
	}
	var req struct {
		Choice dao.VoteChoice `json:"choice" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := v.engine.CastVote(c, caller(c), id, req.Choice); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tallyOf(v.engine, id))
}

type ballotRequest struct {
	ProposalID dao.ProposalID `json:"proposalId" binding:"required"`
	Choice     dao.VoteChoice `json:"choice"     binding:"required"`
	Signature  string         `json:"signature"  binding:"required"`
}

// Relay submits one signed ballot on behalf of its signer.
func (v Votes) Relay(c *gin.Context) {
	var req ballotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		badRequest(c, err)
		return
	}
	voter, err := v.engine.CastVoteFromSignature(c, caller(c), req.ProposalID, req.Choice, sig)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"voter": voter.Hex(), "tally": tallyOf(v.engine, req.ProposalID)})
}

// RelayBatch submits many signed ballots; either all count or none does.
func (v Votes) RelayBatch(c *gin.Context) {
	var req struct {
		Ballots []ballotRequest `json:"ballots" binding:"required,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ids := make([]dao.ProposalID, len(req.Ballots))
	choices := make([]dao.VoteChoice, len(req.Ballots))
	sigs := make([][]byte, len(req.Ballots))
	for i, b := range req.Ballots {
		sig, err := hexutil.Decode(b.Signature)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": err.Error(), "ballot": i})
			return
		}
		ids[i], choices[i], sigs[i] = b.ProposalID, b.Choice, sig
	}
	voters, err := v.engine.BatchCastVotesFromSignatures(c, caller(c), ids, choices, sigs)
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]string, len(voters))
	for i, voter := range voters {
		out[i] = voter.Hex()
	}
	c.JSON(http.StatusCreated, gin.H{"voters": out})
}

func (v Votes) HasVoted(c *gin.Context) {
	id, ok := proposalParam(c)
	if !ok {
		return
	}
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "bad address"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": v.engine.HasVoted(id, common.HexToAddress(raw))})
}

func tallyOf(engine *dao.Engine, id dao.ProposalID) dao.Tally {
	view, _ := engine.Proposal(id)
	return view.Votes
}
