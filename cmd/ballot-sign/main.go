// Command ballot-sign signs a ballot for relaying, printing the JSON body
// POST /v1/ballots expects.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/stake-plus/membership-dao/src/dao"
)

var (
	keyFlag      = flag.String("key", os.Getenv("BALLOT_KEY"), "Hex private key of the voter (or BALLOT_KEY)")
	proposalFlag = flag.String("proposal", "", "Proposal id, 32-byte hex")
	choiceFlag   = flag.String("choice", "for", "for|against|abstain")
	nameFlag     = flag.String("name", "MembershipDAO", "Signing domain name")
	versionFlag  = flag.String("version", "1", "Signing domain version")
	chainFlag    = flag.String("chain-id", "31337", "Signing domain chain id")
	addressFlag  = flag.String("address", "0x0000000000000000000000000000000000000da0", "Engine address")
)

func main() {
	log.SetFlags(0)
	flag.Parse()

	key, err := crypto.HexToECDSA(strings.TrimPrefix(*keyFlag, "0x"))
	if err != nil {
		log.Fatalf("key: %v", err)
	}
	id, err := dao.ParseProposalID(*proposalFlag)
	if err != nil {
		log.Fatalf("proposal: %v", err)
	}
	choice, err := dao.ParseVoteChoice(*choiceFlag)
	if err != nil {
		log.Fatalf("choice: %v", err)
	}
	chainID, ok := math.ParseBig256(*chainFlag)
	if !ok {
		log.Fatalf("chain-id: %q is not an integer", *chainFlag)
	}
	if !common.IsHexAddress(*addressFlag) {
		log.Fatalf("address: %q is not an address", *addressFlag)
	}

	domain := dao.Domain{
		Name:              *nameFlag,
		Version:           *versionFlag,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(*addressFlag),
	}
	sig, err := dao.SignBallot(domain, dao.Ballot{ProposalID: id, Choice: choice}, key)
	if err != nil {
		log.Fatalf("sign: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]string{
		"proposalId": id.Hex(),
		"choice":     choice.String(),
		"signature":  hexutil.Encode(sig),
		"voter":      crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}); err != nil {
		log.Fatalf("encode: %v", err)
	}
}
