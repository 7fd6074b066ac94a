package feed

import "strings"

// externalIDs maps ticker symbols to CoinGecko coin identifiers.
var externalIDs = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"USDT":  "tether",
	"USDC":  "usd-coin",
	"BNB":   "binancecoin",
	"SOL":   "solana",
	"MATIC": "matic-network",
	"LINK":  "chainlink",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"AVAX":  "avalanche-2",
	"UNI":   "uniswap",
	"XRP":   "ripple",
}

// ExternalID resolves a symbol to its feed identifier. Unknown symbols fall
// back to the lowercased symbol as a best effort.
func ExternalID(symbol string) string {
	if id, ok := externalIDs[strings.ToUpper(symbol)]; ok {
		return id
	}
	return strings.ToLower(symbol)
}
