// End-to-end smoke run against a live daemon. The key must be funded
// through DAO_GENESIS_ALLOC; the default is the first hardhat dev account.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/stake-plus/membership-dao/src/dao/targets"
)

var (
	baseURL = getenv("API_URL", "http://localhost:8080/v1")
	devKey  = getenv("SMOKE_KEY", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	counter = getenv("DAO_COUNTER_ADDRESS", "0x0000000000000000000000000000000000000c01")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(devKey, "0x"))
	if err != nil {
		log.Fatalf("key: %v", err)
	}
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	token := login(addr, func(msg string) string {
		sig, err := crypto.Sign(accounts.TextHash([]byte(msg)), key)
		if err != nil {
			log.Fatalf("sign: %v", err)
		}
		sig[64] += 27
		return hexutil.Encode(sig)
	})

	// A rerun finds the account already joined.
	doReq("POST", "/members", token, nil, nil, http.StatusCreated, http.StatusConflict)

	id := uuid.New()
	body := map[string]any{
		"calls": []map[string]string{
			{"target": counter, "payload": hexutil.Encode(targets.IncrementPayload())},
		},
		"disambiguator": new(big.Int).SetBytes(id[:]).String(),
	}
	var created struct {
		ID     string
		Status string
	}
	doReq("POST", "/proposals", token, body, &created, http.StatusCreated)
	if created.Status != "ongoing_voting" {
		log.Fatalf("propose: status %q", created.Status)
	}

	// Joined in the same second as the proposal makes the vote ineligible;
	// both outcomes prove the route works.
	doReq("POST", "/proposals/"+created.ID+"/votes", token, map[string]string{"choice": "for"}, nil,
		http.StatusCreated, http.StatusForbidden)

	var voted struct{ Voted bool }
	doReq("GET", "/proposals/"+created.ID+"/votes/"+addr, "", nil, &voted, http.StatusOK)

	fmt.Printf("✓ proposal %s created, voted=%v\n", created.ID, voted.Voted)
}

func login(addr string, sign func(string) string) string {
	var ch struct{ Message string }
	doReq("POST", "/auth/challenge", "", map[string]string{"address": addr}, &ch, http.StatusOK)
	var resp struct{ Token string }
	doReq("POST", "/auth/verify", "", map[string]string{"address": addr, "signature": sign(ch.Message)}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("verify: empty token")
	}
	return resp.Token
}

func doReq(method, path, token string, body, out any, want ...int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	ok := false
	for _, code := range want {
		ok = ok || res.StatusCode == code
	}
	if !ok {
		log.Fatalf("%s %s: want %v got %d", method, path, want, res.StatusCode)
	}
	if out != nil && res.StatusCode == want[0] {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
