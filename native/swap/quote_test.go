package swap

import (
	"math/big"
	"testing"
)

func TestRateAtDeterministicAndClamped(t *testing.T) {
	lower := new(big.Int).Mul(big.NewInt(9900), new(big.Int).Div(rateScale, big.NewInt(10000)))
	upper := new(big.Int).Mul(big.NewInt(10100), new(big.Int).Div(rateScale, big.NewInt(10000)))

	// Walk more than one full period at cycle granularity.
	for ts := int64(0); ts < 500*rateCycleSeconds; ts += rateCycleSeconds {
		rate := RateAt(ts)
		if rate.Cmp(lower) < 0 || rate.Cmp(upper) > 0 {
			t.Fatalf("rate %s at ts=%d escapes the clamp band", rate, ts)
		}
		if again := RateAt(ts); again.Cmp(rate) != 0 {
			t.Fatalf("rate not deterministic at ts=%d: %s vs %s", ts, rate, again)
		}
	}
}

func TestRateAtKnownPoints(t *testing.T) {
	one := new(big.Int).Set(rateScale)
	if rate := RateAt(0); rate.Cmp(one) != 0 {
		t.Fatalf("rate at origin: %s", rate)
	}
	// Same cycle, same rate.
	if a, b := RateAt(10), RateAt(59); a.Cmp(b) != 0 {
		t.Fatalf("rates differ within a cycle: %s vs %s", a, b)
	}
	peak := RateAt(100 * rateCycleSeconds)
	wantPeak := new(big.Int).Mul(big.NewInt(10100), new(big.Int).Div(rateScale, big.NewInt(10000)))
	if peak.Cmp(wantPeak) != 0 {
		t.Fatalf("peak rate %s, want %s", peak, wantPeak)
	}
	trough := RateAt(300 * rateCycleSeconds)
	wantTrough := new(big.Int).Mul(big.NewInt(9900), new(big.Int).Div(rateScale, big.NewInt(10000)))
	if trough.Cmp(wantTrough) != 0 {
		t.Fatalf("trough rate %s, want %s", trough, wantTrough)
	}
	if rate := RateAt(-5); rate.Cmp(RateAt(0)) != 0 {
		t.Fatalf("negative timestamps should clamp to the origin, got %s", rate)
	}
}

func TestQuoteAtMath(t *testing.T) {
	cfg := testConfig()
	quote, err := QuoteAt(cfg, big.NewInt(1000_000000), 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Fee.Cmp(big.NewInt(1_000000)) != 0 {
		t.Fatalf("fee %s", quote.Fee)
	}
	if quote.NetAmount.Cmp(big.NewInt(999_000000)) != 0 {
		t.Fatalf("net %s", quote.NetAmount)
	}
	// Rate is exactly 1.0 at the origin, so destination equals net.
	if quote.DestinationAmount.Cmp(quote.NetAmount) != 0 {
		t.Fatalf("destination %s, net %s", quote.DestinationAmount, quote.NetAmount)
	}
}

func TestQuoteAtFeeFloors(t *testing.T) {
	cfg := testConfig()
	cfg.MinAmount = big.NewInt(1)
	// 999 * 10 / 10000 floors to 0.
	quote, err := QuoteAt(cfg, big.NewInt(999), 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Fee.Sign() != 0 {
		t.Fatalf("expected zero fee on dust amount, got %s", quote.Fee)
	}
	if quote.DestinationAmount.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("destination %s", quote.DestinationAmount)
	}
}

func TestQuoteAtBounds(t *testing.T) {
	cfg := testConfig()
	cases := []*big.Int{
		nil,
		big.NewInt(0),
		new(big.Int).Sub(cfg.MinAmount, big.NewInt(1)),
		new(big.Int).Add(cfg.MaxAmount, big.NewInt(1)),
	}
	for _, amount := range cases {
		if _, err := QuoteAt(cfg, amount, 0); err != ErrAmountOutOfRange {
			t.Fatalf("amount %v: expected out of range, got %v", amount, err)
		}
	}
	// Inclusive bounds are quotable.
	if _, err := QuoteAt(cfg, cfg.MinAmount, 0); err != nil {
		t.Fatalf("min amount rejected: %v", err)
	}
	if _, err := QuoteAt(cfg, cfg.MaxAmount, 0); err != nil {
		t.Fatalf("max amount rejected: %v", err)
	}
}

func TestQuoteAtRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.TimeoutSeconds = 10
	if _, err := QuoteAt(cfg, big.NewInt(1000_000000), 0); err == nil {
		t.Fatal("expected config rejection")
	}
}

func TestRealizedSlippageBps(t *testing.T) {
	net := big.NewInt(999_000000)
	cases := []struct {
		name string
		min  *big.Int
		want uint64
	}{
		{"at principal", big.NewInt(999_000000), 0},
		{"above principal", big.NewInt(1000_000000), 0},
		{"forty bps", big.NewInt(995_004000), 40},
		{"one percent", big.NewInt(989_010000), 100},
		{"deep discount", big.NewInt(899_100000), 1000},
	}
	for _, tc := range cases {
		if got := realizedSlippageBps(net, tc.min); got != tc.want {
			t.Fatalf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}
