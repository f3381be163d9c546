package chain

type Network struct {
	ChainID     int64
	Name        string
	RPCUrl      string
	ExplorerUrl string
}

var Networks = map[int64]Network{
	97: {
		ChainID:     97,
		Name:        "BSC Testnet",
		RPCUrl:      "https://data-seed-prebsc-1-s1.binance.org:8545",
		ExplorerUrl: "https://testnet.bscscan.com",
	},
	5611: {
		ChainID:     5611,
		Name:        "opBNB Testnet",
		RPCUrl:      "https://opbnb-testnet-rpc.bnbchain.org",
		ExplorerUrl: "https://testnet.opbnbscan.com",
	},
}

// RPCUrlFor resolves the endpoint for a known network, preferring the
// configured endpoint when it is the local chain.
func (c *Config) RPCUrlFor(chainID int64) (string, bool) {
	network, ok := Networks[chainID]
	if !ok {
		return "", false
	}
	if chainID == c.ChainID && c.RPCUrl != "" {
		return c.RPCUrl, true
	}
	return network.RPCUrl, true
}
