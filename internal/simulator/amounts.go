package simulator

import (
	"crypto/rand"
	mrand "math/rand"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// swapOutput computes the destination amount for a swap at the implied
// market rate, truncated to the destination token's declared precision so a
// settlement never credits more precision than the token carries.
func swapOutput(fromAmount, fromPrice, toPrice decimal.Decimal, toDecimals int32) decimal.Decimal {
	return fromAmount.Mul(fromPrice).Div(toPrice).Truncate(toDecimals)
}

// swapRate is the implied exchange rate between the two quotes.
func swapRate(fromPrice, toPrice decimal.Decimal) decimal.Decimal {
	return fromPrice.Div(toPrice).Truncate(8)
}

// tradeTotal computes the base-token total for a spot trade at the
// caller-supplied price.
func tradeTotal(amount, price decimal.Decimal, baseDecimals int32) decimal.Decimal {
	return amount.Mul(price).Truncate(baseDecimals)
}

// priceImpactEstimate is a cosmetic figure: impact grows linearly with the
// trade's USD notional and is capped at 5%.
func priceImpactEstimate(notionalUSD decimal.Decimal) decimal.Decimal {
	impact := notionalUSD.Mul(decimal.NewFromFloat(0.00001))
	cap := decimal.NewFromInt(5)
	if impact.GreaterThan(cap) {
		return cap
	}
	return impact.Truncate(4)
}

// randomNetworkFee simulates a network fee between 0.001 and 0.01.
func randomNetworkFee(rng *mrand.Rand) decimal.Decimal {
	fee := 0.001 + rng.Float64()*0.009
	return decimal.NewFromFloat(fee).Truncate(6)
}

// randomTxHash generates a simulated transaction hash: 0x followed by 64
// random hex characters.
func randomTxHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hexutil.Encode(buf), nil
}
