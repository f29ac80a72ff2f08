package swap

import "math/big"

// Rates are fixed-point integers scaled by 1e18. Both legs of the swap are
// stable-value assets, so the rate is modeled as 1.0 plus a small time-derived
// oscillation standing in for bridge liquidity micro-variance. A real oracle
// feed can replace RateAt behind the same signature as long as the clamp band
// and scale are preserved.
const (
	// RateDecimals is the number of fractional digits carried by rate values.
	RateDecimals = 18

	rateCycleSeconds     = 60
	rateDriftPerCycleBps = 1
	rateBandBps          = 100
)

var (
	rateScale  = new(big.Int).Exp(big.NewInt(10), big.NewInt(RateDecimals), nil)
	bpsDivisor = big.NewInt(10000)
)

// RateAt returns the exchange rate in effect at the supplied unix timestamp.
// The function is pure: the same timestamp always yields the same rate, which
// keeps quotes reproducible for testing. The oscillation walks a triangle wave
// at rateDriftPerCycleBps per cycle and never leaves [0.99, 1.01].
func RateAt(ts int64) *big.Int {
	if ts < 0 {
		ts = 0
	}
	period := int64(4 * rateBandBps / rateDriftPerCycleBps)
	pos := (ts / rateCycleSeconds) % period
	var bps int64
	switch {
	case pos < period/4:
		bps = pos * rateDriftPerCycleBps
	case pos < 3*period/4:
		bps = rateBandBps - (pos-period/4)*rateDriftPerCycleBps
	default:
		bps = -rateBandBps + (pos-3*period/4)*rateDriftPerCycleBps
	}
	if bps > rateBandBps {
		bps = rateBandBps
	}
	if bps < -rateBandBps {
		bps = -rateBandBps
	}
	rate := new(big.Int).Mul(rateScale, big.NewInt(10000+bps))
	return rate.Div(rate, bpsDivisor)
}

// Quote is the result of a slippage-protected exchange estimate. All amounts
// are in the smallest stable-value unit; NetAmount is the post-fee principal
// the slippage cap is measured against.
type Quote struct {
	DestinationAmount *big.Int
	Fee               *big.Int
	NetAmount         *big.Int
	Rate              *big.Int
}

// QuoteAt computes the quote for the supplied source amount under the given
// configuration at the given timestamp. It has no side effects and may be
// called any number of times.
func QuoteAt(cfg *Config, amount *big.Int, ts int64) (*Quote, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Cmp(cfg.MinAmount) < 0 || amount.Cmp(cfg.MaxAmount) > 0 {
		return nil, ErrAmountOutOfRange
	}
	rate := RateAt(ts)
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(cfg.FeeBps))
	fee.Div(fee, bpsDivisor)
	net := new(big.Int).Sub(amount, fee)
	dest := new(big.Int).Mul(net, rate)
	dest.Div(dest, rateScale)
	return &Quote{
		DestinationAmount: dest,
		Fee:               fee,
		NetAmount:         net,
		Rate:              rate,
	}, nil
}

// realizedSlippageBps measures how far below the post-fee principal the caller
// is willing to settle, in basis points of that principal. Minimums at or above
// the principal yield zero; the protocol cap only bites on genuine shortfall.
func realizedSlippageBps(net, minDestination *big.Int) uint64 {
	if net == nil || net.Sign() <= 0 || minDestination == nil {
		return 0
	}
	if minDestination.Cmp(net) >= 0 {
		return 0
	}
	shortfall := new(big.Int).Sub(net, minDestination)
	shortfall.Mul(shortfall, bpsDivisor)
	shortfall.Div(shortfall, net)
	return shortfall.Uint64()
}
