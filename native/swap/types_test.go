package swap

import (
	"errors"
	"math/big"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"nil min", func(c *Config) { c.MinAmount = nil }, false},
		{"zero min", func(c *Config) { c.MinAmount = big.NewInt(0) }, false},
		{"max equals min", func(c *Config) { c.MaxAmount = new(big.Int).Set(c.MinAmount) }, false},
		{"max below min", func(c *Config) { c.MaxAmount = big.NewInt(1) }, false},
		{"slippage at ceiling", func(c *Config) { c.MaxSlippageBps = MaxSlippageCeilingBps }, true},
		{"slippage above ceiling", func(c *Config) { c.MaxSlippageBps = MaxSlippageCeilingBps + 1 }, false},
		{"fee at ceiling", func(c *Config) { c.FeeBps = MaxFeeCeilingBps }, true},
		{"fee above ceiling", func(c *Config) { c.FeeBps = MaxFeeCeilingBps + 1 }, false},
		{"timeout at floor", func(c *Config) { c.TimeoutSeconds = MinTimeoutSeconds }, true},
		{"timeout below floor", func(c *Config) { c.TimeoutSeconds = MinTimeoutSeconds - 1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected rejection")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("error not wrapping the config sentinel: %v", err)
				}
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusInitiated: "initiated",
		StatusCompleted: "completed",
		StatusRefunded:  "refunded",
		StatusCancelled: "cancelled",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("status %d: got %q, want %q", status, got, want)
		}
		if !status.Valid() {
			t.Fatalf("status %d should be valid", status)
		}
	}
	if Status(99).Valid() {
		t.Fatal("out-of-range status should be invalid")
	}
}

func TestSanitizeSwap(t *testing.T) {
	base := sampleSwap(0x44)

	sanitized, err := SanitizeSwap(base)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized == base {
		t.Fatal("sanitize must return a copy")
	}

	padded := base.Clone()
	padded.Recipient = "  chain-b:recipient-1  "
	sanitized, err = SanitizeSwap(padded)
	if err != nil {
		t.Fatalf("sanitize padded: %v", err)
	}
	if sanitized.Recipient != "chain-b:recipient-1" {
		t.Fatalf("recipient not trimmed: %q", sanitized.Recipient)
	}

	for name, mutate := range map[string]func(*Swap){
		"empty recipient":      func(s *Swap) { s.Recipient = " " },
		"zero amount":          func(s *Swap) { s.SourceAmount = big.NewInt(0) },
		"negative fee":         func(s *Swap) { s.Fee = big.NewInt(-1) },
		"zero rate":            func(s *Swap) { s.Rate = big.NewInt(0) },
		"deadline before init": func(s *Swap) { s.Deadline = s.InitiatedAt - 1 },
		"settled initiated":    func(s *Swap) { s.Settled = true },
		"unsettled completed":  func(s *Swap) { s.Status = StatusCompleted },
	} {
		record := base.Clone()
		mutate(record)
		if _, err := SanitizeSwap(record); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestCloneIsolation(t *testing.T) {
	record := sampleSwap(0x45)
	clone := record.Clone()
	clone.SourceAmount.SetInt64(1)
	if record.SourceAmount.Cmp(big.NewInt(1000_000000)) != 0 {
		t.Fatal("clone shares amount storage with the original")
	}
}
