package config

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.TLSEnabled())

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, "MembershipDAO", opts.Name)
	assert.Equal(t, "1", opts.Version)
	assert.Equal(t, int64(31337), opts.ChainID.Int64())
	assert.Equal(t, "1000000000000000000", opts.MembershipPrice.String())
	assert.Equal(t, 120*time.Hour, opts.Rules.VotingWindow)
	assert.Zero(t, opts.Rules.QuorumBps)
	assert.Equal(t, common.HexToAddress("0xc03"), opts.Marketplace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DAO_NAME", "TestDAO")
	t.Setenv("DAO_CHAIN_ID", "0x1")
	t.Setenv("DAO_VOTING_WINDOW", "36h")
	t.Setenv("DAO_QUORUM_BPS", "2500")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("DAO_GENESIS_ALLOC", "0x00000000000000000000000000000000000000aa:5000,0x00000000000000000000000000000000000000bb:0x10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, "TestDAO", opts.Name)
	assert.Equal(t, int64(1), opts.ChainID.Int64())
	assert.Equal(t, 36*time.Hour, opts.Rules.VotingWindow)
	assert.Equal(t, uint32(2500), opts.Rules.QuorumBps)

	alloc, err := cfg.Genesis()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5000), alloc[common.HexToAddress("0xaa")])
	assert.Equal(t, big.NewInt(16), alloc[common.HexToAddress("0xbb")])
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"bad chain", map[string]string{"DAO_CHAIN_ID": "zero"}},
		{"zero price", map[string]string{"DAO_MEMBERSHIP_PRICE": "0"}},
		{"bad address", map[string]string{"DAO_ADDRESS": "0xnope"}},
		{"quorum", map[string]string{"DAO_QUORUM_BPS": "10001"}},
		{"window", map[string]string{"DAO_VOTING_WINDOW": "-1h"}},
		{"half tls", map[string]string{"TLS_CERT_FILE": "cert.pem"}},
		{"discord without channel", map[string]string{"DISCORD_TOKEN": "tok"}},
		{"genesis amount", map[string]string{"DAO_GENESIS_ALLOC": "0x00000000000000000000000000000000000000aa:lots"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestTargetAddresses(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DAO_NFT_ADDRESS", "0x00000000000000000000000000000000000000ff")
	cfg, err := Load()
	require.NoError(t, err)

	counter, nft, market, err := cfg.TargetAddresses()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xc01"), counter)
	assert.Equal(t, common.HexToAddress("0xff"), nft)
	assert.Equal(t, common.HexToAddress("0xc03"), market)
}

func TestConversionsReportErrors(t *testing.T) {
	// A Config built without Load is not validated, so callers must check.
	cfg := Config{
		ChainID:      "0",
		GenesisAlloc: map[string]string{"nope": "1"},
	}
	_, err := cfg.Genesis()
	assert.ErrorContains(t, err, "DAO_GENESIS_ALLOC")
	_, err = cfg.EngineOptions()
	assert.ErrorContains(t, err, "DAO_CHAIN_ID")
}
