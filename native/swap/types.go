package swap

import (
	"fmt"
	"math/big"
	"strings"
)

// Status represents the lifecycle states supported by the settlement engine.
// A swap transitions out of StatusInitiated exactly once.
type Status uint8

const (
	StatusInitiated Status = iota
	StatusCompleted
	StatusRefunded
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusCompleted, StatusRefunded, StatusCancelled:
		return true
	default:
		return false
	}
}

// String renders the canonical lowercase status label.
func (s Status) String() string {
	switch s {
	case StatusInitiated:
		return "initiated"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Swap captures the immutable metadata and runtime status of a single
// cross-chain settlement. The identifier is the keccak256 hash of the
// initiator, recipient descriptor, source amount, initiation timestamp and a
// strictly increasing sequence, so concurrent initiations cannot collide.
type Swap struct {
	ID                [32]byte
	Initiator         [20]byte
	Recipient         string
	SourceAmount      *big.Int
	DestinationAmount *big.Int
	Fee               *big.Int
	Rate              *big.Int
	InitiatedAt       int64
	Deadline          int64
	Status            Status
	MessageRef        [32]byte
	Settled           bool
}

// Clone returns a deep copy of the swap so callers can safely mutate the copy
// without affecting the stored instance.
func (s *Swap) Clone() *Swap {
	if s == nil {
		return nil
	}
	clone := *s
	clone.SourceAmount = cloneBigInt(s.SourceAmount)
	clone.DestinationAmount = cloneBigInt(s.DestinationAmount)
	clone.Fee = cloneBigInt(s.Fee)
	clone.Rate = cloneBigInt(s.Rate)
	return &clone
}

// SanitizeSwap validates and normalises the supplied swap record, returning a
// cloned instance with trimmed recipient and non-nil amount fields. The
// function does not mutate the original value.
func SanitizeSwap(s *Swap) (*Swap, error) {
	if s == nil {
		return nil, fmt.Errorf("swap: nil record")
	}
	clone := s.Clone()
	clone.Recipient = strings.TrimSpace(clone.Recipient)
	if clone.Recipient == "" {
		return nil, ErrInvalidRecipient
	}
	if clone.SourceAmount.Sign() <= 0 {
		return nil, fmt.Errorf("swap: source amount must be positive")
	}
	if clone.DestinationAmount.Sign() < 0 || clone.Fee.Sign() < 0 {
		return nil, fmt.Errorf("swap: negative amount")
	}
	if clone.Rate.Sign() <= 0 {
		return nil, fmt.Errorf("swap: rate must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("swap: invalid status %d", clone.Status)
	}
	if clone.Deadline < clone.InitiatedAt {
		return nil, fmt.Errorf("swap: deadline before initiation")
	}
	settledStatus := clone.Status != StatusInitiated
	if clone.Settled != settledStatus {
		return nil, fmt.Errorf("swap: settled flag inconsistent with status %s", clone.Status)
	}
	return clone, nil
}

// Config carries the engine parameters. The whole struct is swapped atomically
// by UpdateConfig; readers never observe a partially applied change.
type Config struct {
	MinAmount      *big.Int
	MaxAmount      *big.Int
	MaxSlippageBps uint64
	FeeBps         uint64
	TimeoutSeconds int64
}

const (
	// MaxSlippageCeilingBps caps the configurable slippage tolerance at 10%.
	MaxSlippageCeilingBps = 1000
	// MaxFeeCeilingBps caps the configurable protocol fee at 1%.
	MaxFeeCeilingBps = 100
	// MinTimeoutSeconds is the smallest permitted swap deadline window.
	MinTimeoutSeconds = 300
	// CancelPenaltyBps is the fixed early-cancellation penalty (0.5%).
	CancelPenaltyBps = 50
)

// Validate checks the configuration invariants without mutating the receiver.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.MinAmount == nil || c.MinAmount.Sign() <= 0 {
		return fmt.Errorf("%w: min amount must be positive", ErrInvalidConfig)
	}
	if c.MaxAmount == nil || c.MaxAmount.Cmp(c.MinAmount) <= 0 {
		return fmt.Errorf("%w: max amount must exceed min amount", ErrInvalidConfig)
	}
	if c.MaxSlippageBps > MaxSlippageCeilingBps {
		return fmt.Errorf("%w: max slippage above %d bps", ErrInvalidConfig, MaxSlippageCeilingBps)
	}
	if c.FeeBps > MaxFeeCeilingBps {
		return fmt.Errorf("%w: fee above %d bps", ErrInvalidConfig, MaxFeeCeilingBps)
	}
	if c.TimeoutSeconds < MinTimeoutSeconds {
		return fmt.Errorf("%w: timeout below %d seconds", ErrInvalidConfig, MinTimeoutSeconds)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.MinAmount = cloneBigInt(c.MinAmount)
	clone.MaxAmount = cloneBigInt(c.MaxAmount)
	return &clone
}

// Metrics aggregates the process-wide settlement counters. TotalInitiated and
// TotalCompleted are monotonically non-decreasing.
type Metrics struct {
	TotalInitiated       uint64
	TotalCompleted       uint64
	TotalVolume          *big.Int
	TotalFees            *big.Int
	AvgCompletionSeconds int64
	SuccessRateBps       uint64
}

// Clone returns a deep copy of the metrics snapshot.
func (m *Metrics) Clone() *Metrics {
	if m == nil {
		return nil
	}
	clone := *m
	clone.TotalVolume = cloneBigInt(m.TotalVolume)
	clone.TotalFees = cloneBigInt(m.TotalFees)
	return &clone
}

// Account models the minimal ledger view the engine needs from its value
// transfer collaborator: a single stable-value balance per address.
type Account struct {
	Balance *big.Int
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	return &Account{Balance: cloneBigInt(a.Balance)}
}

// Role enumerates the caller capabilities checked by the engine. Identity
// resolution is external; the engine only asks whether a caller holds a role.
type Role uint8

const (
	// RoleRelay may submit destination-side completion confirmations.
	RoleRelay Role = iota + 1
	// RoleAdmin may reconfigure, pause/resume and withdraw collected fees.
	RoleAdmin
)

// Authorizer answers role checks for the engine. Implementations are injected
// so the core logic stays testable without a real identity system.
type Authorizer interface {
	Authorize(caller [20]byte, role Role) bool
}

// StaticAuthorizer grants roles from fixed address sets, typically sourced
// from configuration.
type StaticAuthorizer struct {
	Relays map[[20]byte]struct{}
	Admins map[[20]byte]struct{}
}

// NewStaticAuthorizer builds an authorizer over the supplied address lists.
func NewStaticAuthorizer(relays, admins [][20]byte) *StaticAuthorizer {
	auth := &StaticAuthorizer{
		Relays: make(map[[20]byte]struct{}, len(relays)),
		Admins: make(map[[20]byte]struct{}, len(admins)),
	}
	for _, addr := range relays {
		auth.Relays[addr] = struct{}{}
	}
	for _, addr := range admins {
		auth.Admins[addr] = struct{}{}
	}
	return auth
}

// Authorize implements the Authorizer interface.
func (a *StaticAuthorizer) Authorize(caller [20]byte, role Role) bool {
	if a == nil {
		return false
	}
	switch role {
	case RoleRelay:
		_, ok := a.Relays[caller]
		return ok
	case RoleAdmin:
		_, ok := a.Admins[caller]
		return ok
	default:
		return false
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
