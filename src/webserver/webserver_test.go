package webserver

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stake-plus/membership-dao/src/config"
	"github.com/stake-plus/membership-dao/src/dao"
	"github.com/stake-plus/membership-dao/src/dao/chain"
	"github.com/stake-plus/membership-dao/src/dao/targets"
	"github.com/stake-plus/membership-dao/src/data"
	"github.com/stake-plus/membership-dao/src/logging"
)

var counterAddr = common.HexToAddress("0x0000000000000000000000000000000000000c01")

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

type server struct {
	t       *testing.T
	router  *gin.Engine
	clock   *chain.ManualClock
	ledger  *chain.Ledger
	engine  *dao.Engine
	counter *targets.Counter
}

type wallet struct {
	key   *ecdsa.PrivateKey
	addr  common.Address
	token string
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerWith(t, nil)
}

// newServerWith builds a server whose engine feeds archive, when set.
func newServerWith(t *testing.T, archive *data.Archive) *server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	clock := chain.NewManualClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	ledger := chain.NewLedger(clock)
	engine, err := dao.New(ledger, dao.DefaultOptions())
	require.NoError(t, err)
	counter, err := targets.DeployCounter(ledger, counterAddr)
	require.NoError(t, err)
	if archive != nil {
		engine.AddObserver(archive)
	}

	cfg := config.Config{
		JWTSecret:   "0123456789abcdef0123456789abcdef",
		CORSOrigins: []string{"http://localhost:3000"},
	}
	return &server{
		t:       t,
		router:  New(cfg, engine, archive, rdb),
		clock:   clock,
		ledger:  ledger,
		engine:  engine,
		counter: counter,
	}
}

func (s *server) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

// login runs the challenge flow for a fresh wallet funded on the ledger.
func (s *server) login() wallet {
	s.t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(s.t, err)
	w := wallet{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}
	require.NoError(s.t, s.ledger.Mint(w.addr, new(big.Int).Mul(big.NewInt(5), big.NewInt(params.Ether))))

	code, body := s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": w.addr.Hex()})
	require.Equal(s.t, http.StatusOK, code)
	message := body["message"].(string)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(s.t, err)
	sig[64] += 27

	code, body = s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": w.addr.Hex(), "signature": hexutil.Encode(sig)})
	require.Equal(s.t, http.StatusOK, code, body)
	w.token = body["token"].(string)
	return w
}

func (s *server) join(w wallet) {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/v1/members", w.token, nil)
	require.Equal(s.t, http.StatusCreated, code, body)
}

func counterRequest(disambiguator string) gin.H {
	return gin.H{
		"calls": []gin.H{
			{"target": counterAddr.Hex(), "payload": hexutil.Encode(targets.IncrementPayload())},
			{"target": counterAddr.Hex(), "payload": hexutil.Encode(targets.IncrementPayload())},
			{"target": counterAddr.Hex(), "payload": hexutil.Encode(targets.IncrementByPayload(5))},
		},
		"disambiguator": disambiguator,
	}
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)
	w := s.login()
	assert.NotEmpty(t, w.token)

	t.Run("challenge is single use", func(t *testing.T) {
		code, _ := s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": w.addr.Hex(), "signature": "0x00"})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("wrong signer", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		code, body := s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": w.addr.Hex()})
		require.Equal(t, http.StatusOK, code)
		sig, err := crypto.Sign(accounts.TextHash([]byte(body["message"].(string))), other)
		require.NoError(t, err)
		code, _ = s.do(http.MethodPost, "/v1/auth/verify", "", gin.H{"address": w.addr.Hex(), "signature": hexutil.Encode(sig)})
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("secured routes need a token", func(t *testing.T) {
		code, _ := s.do(http.MethodPost, "/v1/members", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		code, _ = s.do(http.MethodPost, "/v1/members", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("bad address", func(t *testing.T) {
		code, _ := s.do(http.MethodPost, "/v1/auth/challenge", "", gin.H{"address": "nope"})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestProposalLifecycle(t *testing.T) {
	s := newServer(t)
	wallets := []wallet{s.login(), s.login(), s.login()}
	for _, w := range wallets {
		s.join(w)
	}
	code, body := s.do(http.MethodPost, "/v1/members", wallets[0].token, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "state", body["kind"])
	s.clock.Advance(time.Second)

	code, body = s.do(http.MethodPost, "/v1/proposals", wallets[0].token, counterRequest("0"))
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)
	assert.Equal(t, "ongoing_voting", body["status"])

	code, body = s.do(http.MethodPost, "/v1/proposal-id", "", counterRequest("0"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, body["id"])

	for _, w := range wallets {
		code, body = s.do(http.MethodPost, "/v1/proposals/"+id+"/votes", w.token, gin.H{"choice": "for"})
		require.Equal(t, http.StatusCreated, code, body)
	}
	assert.Equal(t, float64(3), body["for"])

	code, body = s.do(http.MethodPost, "/v1/proposals/"+id+"/votes", wallets[0].token, gin.H{"choice": "for"})
	assert.Equal(t, http.StatusConflict, code, body)

	code, _ = s.do(http.MethodPost, "/v1/executions", wallets[1].token, counterRequest("0"))
	assert.Equal(t, http.StatusConflict, code)

	s.clock.Advance(dao.DefaultVotingWindow)
	code, body = s.do(http.MethodGet, "/v1/proposals/"+id, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "passed", body["status"])

	code, body = s.do(http.MethodPost, "/v1/executions", wallets[1].token, counterRequest("0"))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "executed", body["status"])
	assert.Equal(t, int64(7), s.counter.Num().Int64())

	code, _ = s.do(http.MethodPost, "/v1/executions", wallets[1].token, counterRequest("0"))
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodGet, "/v1/proposals/"+id+"/events", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestOutsiderIsForbidden(t *testing.T) {
	s := newServer(t)
	member, outsider := s.login(), s.login()
	s.join(member)
	s.clock.Advance(time.Second)

	code, body := s.do(http.MethodPost, "/v1/proposals", outsider.token, counterRequest("1"))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "authorization", body["kind"])

	code, body = s.do(http.MethodPost, "/v1/proposals", member.token, counterRequest("1"))
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)

	code, _ = s.do(http.MethodPost, "/v1/proposals/"+id+"/votes", outsider.token, gin.H{"choice": "for"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = s.do(http.MethodPost, "/v1/proposals/"+id+"/revoke", outsider.token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = s.do(http.MethodPost, "/v1/proposals/"+id+"/revoke", member.token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "revoked", body["status"])
}

func TestRelayedBallots(t *testing.T) {
	s := newServer(t)
	members := []wallet{s.login(), s.login()}
	for _, w := range members {
		s.join(w)
	}
	relayer := s.login()
	s.clock.Advance(time.Second)

	code, body := s.do(http.MethodPost, "/v1/proposals", members[0].token, counterRequest("2"))
	require.Equal(t, http.StatusCreated, code)
	id, err := dao.ParseProposalID(body["id"].(string))
	require.NoError(t, err)

	ballot := func(w wallet, choice dao.VoteChoice) gin.H {
		sig, err := dao.SignBallot(s.engine.Domain(), dao.Ballot{ProposalID: id, Choice: choice}, w.key)
		require.NoError(t, err)
		return gin.H{"proposalId": id.Hex(), "choice": choice.String(), "signature": hexutil.Encode(sig)}
	}

	bad := ballot(members[1], dao.VoteFor)
	bad["signature"] = hexutil.Encode(make([]byte, 65))
	code, body = s.do(http.MethodPost, "/v1/ballots/batch", relayer.token, gin.H{"ballots": []gin.H{ballot(members[0], dao.VoteFor), bad}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, float64(1), body["ballot"])
	assert.Zero(t, s.engine.Tally(id, dao.VoteFor))

	code, body = s.do(http.MethodPost, "/v1/ballots/batch", relayer.token, gin.H{"ballots": []gin.H{ballot(members[0], dao.VoteFor), ballot(members[1], dao.VoteAgainst)}})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Len(t, body["voters"], 2)
	assert.Equal(t, uint64(1), s.engine.Tally(id, dao.VoteFor))
	assert.Equal(t, uint64(1), s.engine.Tally(id, dao.VoteAgainst))

	code, body = s.do(http.MethodGet, "/v1/proposals/"+id.Hex()+"/votes/"+members[1].addr.Hex(), "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["voted"])

	code, _ = s.do(http.MethodPost, "/v1/ballots", relayer.token, ballot(members[0], dao.VoteFor))
	assert.Equal(t, http.StatusConflict, code)
}

func TestDomainAndLookups(t *testing.T) {
	s := newServer(t)
	code, body := s.do(http.MethodGet, "/v1/domain", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1000000000000000000", body["membershipPrice"])
	domain := body["domain"].(map[string]any)
	assert.Equal(t, "MembershipDAO", domain["name"])
	assert.Equal(t, float64(31337), domain["chainId"])

	code, _ = s.do(http.MethodGet, "/v1/proposals/0x1234", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodGet, "/v1/proposals/"+dao.ProposalID{1}.Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, "/v1/members/"+common.HexToAddress("0x01").Hex(), "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	w := s.login()
	code, body = s.do(http.MethodPost, "/v1/members", w.token, gin.H{"value": "5"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "input", body["kind"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{dao.ErrNotFound, http.StatusNotFound},
		{dao.ErrNotAMember, http.StatusForbidden},
		{dao.ErrAlreadyVoted, http.StatusConflict},
		{dao.ErrBadSignature, http.StatusBadRequest},
		{&dao.ExecutionError{Err: dao.ErrPriceAboveCap}, http.StatusUnprocessableEntity},
		{chain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
	assert.NotContains(t, rl.requests, "b")
}

func TestRateLimitKeysByCaller(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(callerKey, c.GetHeader("X-Caller"))
		c.Next()
	}, RateLimitMiddleware(NewRateLimiter(1, time.Minute)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	get := func(who string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Caller", who)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("0xaa"))
	assert.Equal(t, http.StatusOK, get("0xbb"))
	assert.Equal(t, http.StatusTooManyRequests, get("0xaa"))
	// Without a caller the client IP is the key.
	assert.Equal(t, http.StatusOK, get(""))
	assert.Equal(t, http.StatusTooManyRequests, get(""))
}

func TestListReportsLiveStatus(t *testing.T) {
	db, err := data.Open(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")))
	require.NoError(t, err)
	archive := data.NewArchive(db)
	require.NoError(t, archive.Migrate())

	s := newServerWith(t, archive)
	wallets := []wallet{s.login(), s.login()}
	for _, w := range wallets {
		s.join(w)
	}
	s.clock.Advance(time.Second)

	code, body := s.do(http.MethodPost, "/v1/proposals", wallets[0].token, counterRequest("9"))
	require.Equal(t, http.StatusCreated, code, body)
	id := body["id"].(string)
	for _, w := range wallets {
		code, body = s.do(http.MethodPost, "/v1/proposals/"+id+"/votes", w.token, gin.H{"choice": "for"})
		require.Equal(t, http.StatusCreated, code, body)
	}

	list := func() []data.ProposalRecord {
		req := httptest.NewRequest(http.MethodGet, "/v1/proposals", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []data.ProposalRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 1)
		return out
	}
	got := list()
	assert.Equal(t, "ongoing_voting", got[0].Status)
	assert.Equal(t, uint64(2), got[0].VotesFor)

	s.clock.Advance(dao.DefaultVotingWindow)
	assert.Equal(t, "passed", list()[0].Status)

	stored, err := archive.RecentProposals(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "ongoing_voting", stored[0].Status)
}
