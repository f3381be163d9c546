package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RPCUrl                    string `envconfig:"RPC_URL" default:"https://data-seed-prebsc-1-s1.binance.org:8545"`
	ChainID                   int64  `envconfig:"CHAIN_ID" default:"97"`
	InvoiceNFTAddress         string `envconfig:"INVOICE_NFT_ADDRESS"`
	InvoiceEscrowAddress      string `envconfig:"INVOICE_ESCROW_ADDRESS"`
	InvoiceMarketplaceAddress string `envconfig:"INVOICE_MARKETPLACE_ADDRESS"`
	ResearchPoolAddress       string `envconfig:"RESEARCH_POOL_ADDRESS"`
	PollInterval              int    `envconfig:"CHAIN_POLL_INTERVAL" default:"4"`   // seconds, only used for http endpoints
	ReconnectDelay            int    `envconfig:"CHAIN_RECONNECT_DELAY" default:"5"` // seconds
	LogBuffer                 int    `envconfig:"CHAIN_LOG_BUFFER" default:"256"`    // per contract group
}

func LoadConfig() (c *Config, err error) {
	c = &Config{}
	err = envconfig.Process("", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Address parses a configured contract address. An empty value reports ok=false.
func Address(value string) (addr common.Address, ok bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, false, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, false, fmt.Errorf("invalid contract address %q", value)
	}
	return common.HexToAddress(value), true, nil
}

// NormalizeAddress lower-cases a hex address the way it is stored.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
