package webserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gin-gonic/gin"

	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/data"
)

type Proposals struct {
	engine  *dao.Engine
	archive *data.Archive
}

func NewProposals(engine *dao.Engine, archive *data.Archive) Proposals {
	return Proposals{engine: engine, archive: archive}
}

type callRequest struct {
	Target  string `json:"target"  binding:"required"`
	Value   string `json:"value"`
	Payload string `json:"payload"`
}

type descriptorRequest struct {
	Calls         []callRequest `json:"calls" binding:"required"`
	Disambiguator string        `json:"disambiguator"`
}

func (r descriptorRequest) descriptor() (dao.Descriptor, error) {
	d := dao.Descriptor{Calls: make([]dao.Call, len(r.Calls))}
	for i, call := range r.Calls {
		if !common.IsHexAddress(call.Target) {
			return d, fmt.Errorf("call %d: bad target %q", i, call.Target)
		}
		d.Calls[i].Target = common.HexToAddress(call.Target)
		if call.Value != "" {
			v, ok := math.ParseBig256(call.Value)
			if !ok {
				return d, fmt.Errorf("call %d: bad value %q", i, call.Value)
			}
			d.Calls[i].Value = v
		}
		if call.Payload != "" {
			payload, err := hexutil.Decode(call.Payload)
			if err != nil {
				return d, fmt.Errorf("call %d: payload: %w", i, err)
			}
			d.Calls[i].Payload = payload
		}
	}
	if r.Disambiguator != "" {
		v, ok := math.ParseBig256(r.Disambiguator)
		if !ok {
			return d, fmt.Errorf("bad disambiguator %q", r.Disambiguator)
		}
		d.Disambiguator = v
	}
	return d, nil
}

func bindDescriptor(c *gin.Context) (dao.Descriptor, bool) {
	var req descriptorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return dao.Descriptor{}, false
	}
	d, err := req.descriptor()
	if err != nil {
		badRequest(c, err)
		return dao.Descriptor{}, false
	}
	return d, true
}

func proposalParam(c *gin.Context) (dao.ProposalID, bool) {
	id, err := dao.ParseProposalID(c.Param("id"))
	if err != nil {
		badRequest(c, err)
		return id, false
	}
	return id, true
}

func (p Proposals) DeriveID(c *gin.Context) {
	d, ok := bindDescriptor(c)
	if !ok {
		return
	}
	id, err := p.engine.GetProposalID(d)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": p.engine.GetProposalStatus(id)})
}

func (p Proposals) Create(c *gin.Context) {
	d, ok := bindDescriptor(c)
	if !ok {
		return
	}
	id, err := p.engine.Propose(c, caller(c), d)
	if err != nil {
		respondError(c, err)
		return
	}
	view, _ := p.engine.Proposal(id)
	c.JSON(http.StatusCreated, view)
}

func (p Proposals) Get(c *gin.Context) {
	id, ok := proposalParam(c)
	if !ok {
		return
	}
	view, found := p.engine.Proposal(id)
	if !found {
		respondError(c, dao.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (p Proposals) Revoke(c *gin.Context) {
	id, ok := proposalParam(c)
	if !ok {
		return
	}
	if err := p.engine.RevokeProposal(c, caller(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": p.engine.GetProposalStatus(id)})
}

func (p Proposals) Execute(c *gin.Context) {
	d, ok := bindDescriptor(c)
	if !ok {
		return
	}
	if err := p.engine.Execute(c, caller(c), d); err != nil {
		respondError(c, err)
		return
	}
	id, _ := p.engine.GetProposalID(d)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": p.engine.GetProposalStatus(id)})
}

var errNoArchive = errors.New("history is not configured")

func (p Proposals) List(c *gin.Context) {
	if p.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": errNoArchive.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := p.archive.RecentProposals(c, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	for i := range records {
		p.refresh(&records[i])
	}
	c.JSON(http.StatusOK, records)
}

// refresh overwrites the archived tally and status with the engine's, since
// a closing window changes the status without an event.
func (p Proposals) refresh(rec *data.ProposalRecord) {
	id, err := dao.ParseProposalID(rec.ID)
	if err != nil {
		return
	}
	view, ok := p.engine.Proposal(id)
	if !ok {
		return
	}
	rec.VotesFor = view.Votes.For
	rec.VotesAgainst = view.Votes.Against
	rec.VotesAbstain = view.Votes.Abstain
	rec.Status = view.Status.String()
}

func (p Proposals) Events(c *gin.Context) {
	id, ok := proposalParam(c)
	if !ok {
		return
	}
	if p.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": errNoArchive.Error()})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := p.archive.ProposalEvents(c, id, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}
