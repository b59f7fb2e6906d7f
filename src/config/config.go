// Package config loads the daemon configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/stake-plus/membership-dao/src/dao"
)

type Config struct {
	Name            string        `env:"DAO_NAME"             envDefault:"MembershipDAO"`
	Version         string        `env:"DAO_VERSION"          envDefault:"1"`
	ChainID         string        `env:"DAO_CHAIN_ID"         envDefault:"31337"`
	Address         string        `env:"DAO_ADDRESS"          envDefault:"0x0000000000000000000000000000000000000da0"`
	MembershipPrice string        `env:"DAO_MEMBERSHIP_PRICE" envDefault:"1000000000000000000"`
	VotingWindow    time.Duration `env:"DAO_VOTING_WINDOW"    envDefault:"120h"`
	QuorumBps       uint32        `env:"DAO_QUORUM_BPS"       envDefault:"0"`

	// Reference targets deployed next to the engine.
	CounterAddress     string `env:"DAO_COUNTER_ADDRESS"     envDefault:"0x0000000000000000000000000000000000000c01"`
	NFTAddress         string `env:"DAO_NFT_ADDRESS"         envDefault:"0x0000000000000000000000000000000000000c02"`
	MarketplaceAddress string `env:"DAO_MARKETPLACE_ADDRESS" envDefault:"0x0000000000000000000000000000000000000c03"`

	// GenesisAlloc funds accounts at startup, as address:wei pairs.
	GenesisAlloc map[string]string `env:"DAO_GENESIS_ALLOC"`

	MySQLDSN  string `env:"MYSQL_DSN"`
	RedisURL  string `env:"REDIS_URL"`
	JWTSecret string `env:"JWT_SECRET,required"`
	Port      string `env:"PORT" envDefault:"8080"`

	TLSCertFile string   `env:"TLS_CERT_FILE"`
	TLSKeyFile  string   `env:"TLS_KEY_FILE"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DiscordToken     string `env:"DISCORD_TOKEN"`
	DiscordChannelID string `env:"DISCORD_CHANNEL_ID"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	if _, err := c.Genesis(); err != nil {
		return err
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.DiscordToken != "" && c.DiscordChannelID == "" {
		return errors.New("DISCORD_CHANNEL_ID is required with DISCORD_TOKEN")
	}
	return nil
}

// TLSEnabled reports whether a certificate pair is configured.
func (c Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// EngineOptions converts the configuration into engine options.
func (c Config) EngineOptions() (dao.Options, error) {
	chainID, ok := math.ParseBig256(c.ChainID)
	if !ok || chainID.Sign() <= 0 {
		return dao.Options{}, fmt.Errorf("DAO_CHAIN_ID %q is not a positive integer", c.ChainID)
	}
	price, ok := math.ParseBig256(c.MembershipPrice)
	if !ok || price.Sign() <= 0 {
		return dao.Options{}, fmt.Errorf("DAO_MEMBERSHIP_PRICE %q is not a positive integer", c.MembershipPrice)
	}
	engine, err := parseAddress("DAO_ADDRESS", c.Address)
	if err != nil {
		return dao.Options{}, err
	}
	market, err := parseAddress("DAO_MARKETPLACE_ADDRESS", c.MarketplaceAddress)
	if err != nil {
		return dao.Options{}, err
	}
	if c.QuorumBps > 10000 {
		return dao.Options{}, fmt.Errorf("DAO_QUORUM_BPS %d exceeds 10000", c.QuorumBps)
	}
	if c.VotingWindow <= 0 {
		return dao.Options{}, fmt.Errorf("DAO_VOTING_WINDOW %s must be positive", c.VotingWindow)
	}
	return dao.Options{
		Name:            c.Name,
		Version:         c.Version,
		ChainID:         chainID,
		Address:         engine,
		MembershipPrice: price,
		Rules:           dao.Rules{VotingWindow: c.VotingWindow, QuorumBps: c.QuorumBps},
		Marketplace:     market,
	}, nil
}

// TargetAddresses returns where the counter, NFT and marketplace live.
func (c Config) TargetAddresses() (counter, nft, market common.Address, err error) {
	if counter, err = parseAddress("DAO_COUNTER_ADDRESS", c.CounterAddress); err != nil {
		return
	}
	if nft, err = parseAddress("DAO_NFT_ADDRESS", c.NFTAddress); err != nil {
		return
	}
	market, err = parseAddress("DAO_MARKETPLACE_ADDRESS", c.MarketplaceAddress)
	return
}

// Genesis parses DAO_GENESIS_ALLOC.
func (c Config) Genesis() (map[common.Address]*big.Int, error) {
	out := make(map[common.Address]*big.Int, len(c.GenesisAlloc))
	for raw, amount := range c.GenesisAlloc {
		addr, err := parseAddress("DAO_GENESIS_ALLOC", raw)
		if err != nil {
			return nil, err
		}
		wei, ok := math.ParseBig256(strings.TrimSpace(amount))
		if !ok || wei.Sign() < 0 {
			return nil, fmt.Errorf("DAO_GENESIS_ALLOC: bad amount %q for %s", amount, raw)
		}
		out[addr] = wei
	}
	return out, nil
}

func parseAddress(key, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: %q is not an address", key, raw)
	}
	return common.HexToAddress(raw), nil
}
