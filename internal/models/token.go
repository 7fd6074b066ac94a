package models

import (
	"github.com/defi-dashboard/internal/types"
)

// Token represents static token reference data seeded at startup.
type Token struct {
	ID              string        `json:"id"`
	Symbol          string        `json:"symbol"`
	Name            string        `json:"name"`
	LogoURL         string        `json:"logoUrl"`
	Decimals        int32         `json:"decimals"`
	ContractAddress *string       `json:"contractAddress,omitempty"`
	Network         types.Network `json:"network"`
	Stablecoin      bool          `json:"stablecoin"`
}

func stringPtr(s string) *string { return &s }

// DefaultTokens returns the static token registry. Symbols are globally
// unique and are the join key to the external price feed.
func DefaultTokens() []*Token {
	return []*Token{
		{
			ID:       "ethereum",
			Symbol:   "ETH",
			Name:     "Ethereum",
			LogoURL:  "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
			Decimals: 18,
			Network:  types.NetworkEthereum,
		},
		{
			ID:       "bitcoin",
			Symbol:   "BTC",
			Name:     "Bitcoin",
			LogoURL:  "https://assets.coingecko.com/coins/images/1/small/bitcoin.png",
			Decimals: 8,
			Network:  types.NetworkBitcoin,
		},
		{
			ID:              "tether",
			Symbol:          "USDT",
			Name:            "Tether",
			LogoURL:         "https://assets.coingecko.com/coins/images/325/small/Tether.png",
			Decimals:        6,
			ContractAddress: stringPtr("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			Network:         types.NetworkEthereum,
			Stablecoin:      true,
		},
		{
			ID:              "usd-coin",
			Symbol:          "USDC",
			Name:            "USD Coin",
			LogoURL:         "https://assets.coingecko.com/coins/images/6319/small/usdc.png",
			Decimals:        6,
			ContractAddress: stringPtr("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			Network:         types.NetworkEthereum,
			Stablecoin:      true,
		},
		{
			ID:       "binancecoin",
			Symbol:   "BNB",
			Name:     "BNB",
			LogoURL:  "https://assets.coingecko.com/coins/images/825/small/bnb-icon2_2x.png",
			Decimals: 18,
			Network:  types.NetworkBNB,
		},
		{
			ID:       "solana",
			Symbol:   "SOL",
			Name:     "Solana",
			LogoURL:  "https://assets.coingecko.com/coins/images/4128/small/solana.png",
			Decimals: 9,
			Network:  types.NetworkSolana,
		},
		{
			ID:              "matic-network",
			Symbol:          "MATIC",
			Name:            "Polygon",
			LogoURL:         "https://assets.coingecko.com/coins/images/4713/small/polygon.png",
			Decimals:        18,
			ContractAddress: stringPtr("0x7D1AfA7B718fb893dB30A3aBc0Cfc608AaCfeBB0"),
			Network:         types.NetworkPolygon,
		},
		{
			ID:              "chainlink",
			Symbol:          "LINK",
			Name:            "Chainlink",
			LogoURL:         "https://assets.coingecko.com/coins/images/877/small/chainlink-new-logo.png",
			Decimals:        18,
			ContractAddress: stringPtr("0x514910771AF9Ca656af840dff83E8264EcF986CA"),
			Network:         types.NetworkEthereum,
		},
	}
}
