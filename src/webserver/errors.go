package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/dao/chain"
)

// statusFor maps an engine error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, dao.ErrNotFound) {
		return http.StatusNotFound
	}
	switch dao.Kind(err) {
	case dao.KindAuthorization:
		return http.StatusForbidden
	case dao.KindState:
		return http.StatusConflict
	case dao.KindInput:
		return http.StatusBadRequest
	case dao.KindExecution:
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, chain.ErrInsufficientFunds) {
		return http.StatusPaymentRequired
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	body := gin.H{"err": err.Error(), "kind": dao.Kind(err).String()}
	var execErr *dao.ExecutionError
	if errors.As(err, &execErr) {
		body["call"] = execErr.Index
	}
	var ballotErr *dao.BallotError
	if errors.As(err, &ballotErr) {
		body["ballot"] = ballotErr.Index
	}
	c.JSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
}
