package webserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/golang-jwt/jwt/v5"
)

const tokenTTL = time.Hour

func loginMessage(nonce string) string {
	return "Sign in to the membership DAO: " + nonce
}

// verifySignature checks that sigHex is addr's personal_sign signature of
// message.
func verifySignature(addr common.Address, sigHex, message string) error {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length: %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", err)
	}
	if crypto.PubkeyToAddress(*pub) != addr {
		return errors.New("signature verification failed")
	}
	return nil
}

func issueJWT(addr common.Address, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"addr": addr.Hex(),
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
	return token.SignedString(secret)
}
