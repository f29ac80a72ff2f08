package swap

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"swapsettle/core/events"
)

// EngineState is the persistence surface the engine drives. *State implements
// it over a key-value database; tests provide in-memory mocks.
type EngineState interface {
	SwapPut(*Swap) error
	SwapGet(id [32]byte) (*Swap, bool, error)
	SwapIndexAppend(initiator [20]byte, id [32]byte) error
	SwapIndexList(initiator [20]byte) ([][32]byte, error)
	MessageSeen(ref [32]byte) (bool, error)
	MessageMark(ref [32]byte) error
	ConfigGet() (*Config, bool, error)
	ConfigPut(*Config) error
	MetricsGet() (*Metrics, bool, error)
	MetricsPut(*Metrics) error
	PausedGet() (bool, error)
	PausedPut(bool) error
	SequenceNext() (uint64, error)
	EscrowLockedGet() (*big.Int, error)
	EscrowLockedPut(*big.Int) error
	GetAccount(addr [20]byte) (*Account, error)
	PutAccount(addr [20]byte, account *Account) error
}

// Engine owns the settlement state machine. Every public operation is atomic
// with respect to all others: a single mutex serialises the whole engine
// because metrics and the processed-message set are shared across swaps, so
// per-swap locking would be unsafe.
type Engine struct {
	mu      sync.Mutex
	state   EngineState
	auth    Authorizer
	emitter events.Emitter
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates a settlement engine over the supplied state backend with a
// no-op emitter. Callers can override collaborators via the Set methods.
func NewEngine(state EngineState) *Engine {
	return &Engine{
		state:   state,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetAuthorizer configures the role check used for relay and admin calls.
func (e *Engine) SetAuthorizer(auth Authorizer) { e.auth = auth }

// SetVault configures the engine-controlled escrow address.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// EnsureConfig persists the supplied configuration when none is stored yet,
// so a fresh database comes up with validated parameters.
func (e *Engine) EnsureConfig(cfg *Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return fmt.Errorf("swap engine: state not configured")
	}
	if _, ok, err := e.state.ConfigGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.ConfigPut(cfg)
}

func (e *Engine) emit(evt *Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) authorize(caller [20]byte, role Role) error {
	if e.auth == nil || !e.auth.Authorize(caller, role) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, ok, err := e.state.ConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("swap engine: configuration missing")
	}
	return cfg, nil
}

func (e *Engine) loadMetrics() (*Metrics, error) {
	metrics, ok, err := e.state.MetricsGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics = &Metrics{TotalVolume: big.NewInt(0), TotalFees: big.NewInt(0)}
	}
	return metrics, nil
}

func (e *Engine) loadSwap(id [32]byte) (*Swap, error) {
	record, ok, err := e.state.SwapGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSwapNotFound
	}
	return record, nil
}

// transfer moves value between ledger accounts. Zero amounts are a no-op;
// negative amounts are rejected.
func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrTransferFailed)
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.PutAccount(to, toAcc); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

func (e *Engine) adjustLocked(delta *big.Int) error {
	locked, err := e.state.EscrowLockedGet()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(locked, delta)
	if next.Sign() < 0 {
		return fmt.Errorf("swap engine: locked escrow underflow")
	}
	return e.state.EscrowLockedPut(next)
}

// DeriveID computes the deterministic swap identifier from the initiation
// inputs and the persisted sequence.
func DeriveID(initiator [20]byte, recipient string, amount *big.Int, ts int64, seq uint64) [32]byte {
	var tsBuf, seqBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(ts))
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	return ethcrypto.Keccak256Hash(
		initiator[:],
		[]byte(recipient),
		cloneBigInt(amount).Bytes(),
		tsBuf[:],
		seqBuf[:],
	)
}

// Quote computes the current slippage-protected estimate for the supplied
// source amount. It never mutates state.
func (e *Engine) Quote(amount *big.Int) (*Quote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return QuoteAt(cfg, amount, e.now())
}

// Initiate locks the source amount into the engine vault and records a new
// swap. Preconditions are checked in order; the first failure wins and leaves
// no state behind. On success the initiation event carries the descriptor the
// external relay settles against.
func (e *Engine) Initiate(initiator [20]byte, recipient string, amount, minDestination *big.Int) (*Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	paused, err := e.state.PausedGet()
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, ErrEnginePaused
	}
	if strings.TrimSpace(recipient) == "" {
		return nil, ErrInvalidRecipient
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	now := e.now()
	quote, err := QuoteAt(cfg, amount, now)
	if err != nil {
		return nil, err
	}
	if minDestination == nil || minDestination.Sign() <= 0 {
		return nil, ErrInvalidMinimum
	}
	if quote.DestinationAmount.Cmp(minDestination) < 0 {
		return nil, ErrSlippageExceeded
	}
	if realizedSlippageBps(quote.NetAmount, minDestination) > cfg.MaxSlippageBps {
		return nil, ErrSlippageAboveMaximum
	}

	seq, err := e.state.SequenceNext()
	if err != nil {
		return nil, err
	}
	id := DeriveID(initiator, strings.TrimSpace(recipient), amount, now, seq)
	if _, ok, err := e.state.SwapGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrIDCollision
	}

	if err := e.transfer(initiator, e.vault, amount); err != nil {
		return nil, err
	}
	record := &Swap{
		ID:                id,
		Initiator:         initiator,
		Recipient:         strings.TrimSpace(recipient),
		SourceAmount:      cloneBigInt(amount),
		DestinationAmount: quote.DestinationAmount,
		Fee:               quote.Fee,
		Rate:              quote.Rate,
		InitiatedAt:       now,
		Deadline:          now + cfg.TimeoutSeconds,
		Status:            StatusInitiated,
		Settled:           false,
	}
	if err := e.state.SwapPut(record); err != nil {
		// The debit must not survive a failed record write.
		if undoErr := e.transfer(e.vault, initiator, amount); undoErr != nil {
			return nil, fmt.Errorf("swap engine: record write failed (%v); escrow rollback failed: %w", err, undoErr)
		}
		return nil, err
	}
	if err := e.state.SwapIndexAppend(initiator, id); err != nil {
		return nil, err
	}
	if err := e.adjustLocked(record.SourceAmount); err != nil {
		return nil, err
	}
	metrics, err := e.loadMetrics()
	if err != nil {
		return nil, err
	}
	metrics.TotalInitiated++
	metrics.TotalVolume = new(big.Int).Add(metrics.TotalVolume, record.SourceAmount)
	metrics.TotalFees = new(big.Int).Add(metrics.TotalFees, record.Fee)
	metrics.SuccessRateBps = successRateBps(metrics.TotalCompleted, metrics.TotalInitiated)
	if err := e.state.MetricsPut(metrics); err != nil {
		return nil, err
	}
	e.emit(NewInitiatedEvent(record))
	return record.Clone(), nil
}

// Complete applies a relay confirmation of destination-side settlement. The
// message reference is consumed in the same atomic step as the transition, so
// at-least-once relay delivery cannot apply an effect twice. No source-ledger
// funds move: the escrow is considered spent by the confirmation.
func (e *Engine) Complete(caller [20]byte, id [32]byte, messageRef [32]byte) (*Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authorize(caller, RoleRelay); err != nil {
		return nil, err
	}
	record, err := e.loadSwap(id)
	if err != nil {
		return nil, err
	}
	seen, err := e.state.MessageSeen(messageRef)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, ErrDuplicateMessage
	}
	if record.Status != StatusInitiated || record.Settled {
		return nil, ErrInvalidStatus
	}
	now := e.now()
	if now > record.Deadline {
		return nil, ErrSwapTimedOut
	}
	if err := e.state.MessageMark(messageRef); err != nil {
		return nil, err
	}
	record.Status = StatusCompleted
	record.Settled = true
	record.MessageRef = messageRef
	if err := e.state.SwapPut(record); err != nil {
		return nil, err
	}
	if err := e.adjustLocked(new(big.Int).Neg(record.SourceAmount)); err != nil {
		return nil, err
	}
	metrics, err := e.loadMetrics()
	if err != nil {
		return nil, err
	}
	metrics.TotalCompleted++
	metrics.AvgCompletionSeconds = blendCompletionTime(metrics.AvgCompletionSeconds, now-record.InitiatedAt, metrics.TotalCompleted)
	metrics.SuccessRateBps = successRateBps(metrics.TotalCompleted, metrics.TotalInitiated)
	if err := e.state.MetricsPut(metrics); err != nil {
		return nil, err
	}
	e.emit(NewCompletedEvent(record, now))
	return record.Clone(), nil
}

// Refund returns the full source amount to the initiator once the deadline has
// elapsed without a completion. The protocol fee assessed inside the quote is
// not separately reversed; the gross escrowed principal goes back.
func (e *Engine) Refund(caller [20]byte, id [32]byte) (*Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadSwap(id)
	if err != nil {
		return nil, err
	}
	if caller != record.Initiator {
		return nil, ErrUnauthorized
	}
	if record.Status != StatusInitiated || record.Settled {
		return nil, ErrInvalidStatus
	}
	now := e.now()
	if now <= record.Deadline {
		return nil, ErrNotYetExpired
	}
	if err := e.transfer(e.vault, record.Initiator, record.SourceAmount); err != nil {
		return nil, err
	}
	record.Status = StatusRefunded
	record.Settled = true
	if err := e.state.SwapPut(record); err != nil {
		return nil, err
	}
	if err := e.adjustLocked(new(big.Int).Neg(record.SourceAmount)); err != nil {
		return nil, err
	}
	e.emit(NewRefundedEvent(record, now))
	return record.Clone(), nil
}

// Cancel unwinds an initiated swap before its deadline, retaining a fixed
// 0.5% penalty that accrues to collected fees.
func (e *Engine) Cancel(caller [20]byte, id [32]byte) (*Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadSwap(id)
	if err != nil {
		return nil, err
	}
	if caller != record.Initiator {
		return nil, ErrUnauthorized
	}
	if record.Status != StatusInitiated || record.Settled {
		return nil, ErrInvalidStatus
	}
	now := e.now()
	if now > record.Deadline {
		return nil, ErrSwapTimedOut
	}
	penalty := new(big.Int).Mul(record.SourceAmount, big.NewInt(CancelPenaltyBps))
	penalty.Div(penalty, bpsDivisor)
	returned := new(big.Int).Sub(record.SourceAmount, penalty)
	if err := e.transfer(e.vault, record.Initiator, returned); err != nil {
		return nil, err
	}
	record.Status = StatusCancelled
	record.Settled = true
	if err := e.state.SwapPut(record); err != nil {
		return nil, err
	}
	if err := e.adjustLocked(new(big.Int).Neg(record.SourceAmount)); err != nil {
		return nil, err
	}
	metrics, err := e.loadMetrics()
	if err != nil {
		return nil, err
	}
	metrics.TotalFees = new(big.Int).Add(metrics.TotalFees, penalty)
	if err := e.state.MetricsPut(metrics); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(record, penalty.String(), now))
	return record.Clone(), nil
}

// GetSwap retrieves a swap audit record by identifier.
func (e *Engine) GetSwap(id [32]byte) (*Swap, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadSwap(id)
}

// UserSwaps returns the append-ordered identifiers initiated by the address.
func (e *Engine) UserSwaps(initiator [20]byte) ([][32]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.SwapIndexList(initiator)
}

// CanRefund reports whether the swap is currently refundable.
func (e *Engine) CanRefund(id [32]byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	record, err := e.loadSwap(id)
	if err != nil {
		return false, err
	}
	refundable := record.Status == StatusInitiated && !record.Settled && e.now() > record.Deadline
	return refundable, nil
}

// MetricsSnapshot returns a copy of the current metrics record.
func (e *Engine) MetricsSnapshot() (*Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	metrics, err := e.loadMetrics()
	if err != nil {
		return nil, err
	}
	return metrics.Clone(), nil
}

// GetConfig returns a copy of the active configuration.
func (e *Engine) GetConfig() (*Config, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}

// Paused reports whether initiations are currently suspended.
func (e *Engine) Paused() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.PausedGet()
}

// UpdateConfig validates and atomically replaces the engine configuration.
// A rejected payload leaves the previous configuration untouched.
func (e *Engine) UpdateConfig(caller [20]byte, cfg *Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.state.ConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewConfigUpdatedEvent(cfg, e.now()))
	return nil
}

// Pause suspends new initiations. Completions, refunds and cancellations stay
// available so users are never trapped.
func (e *Engine) Pause(caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.state.PausedPut(true); err != nil {
		return err
	}
	e.emit(NewPausedEvent(e.now()))
	return nil
}

// Resume lifts a pause.
func (e *Engine) Resume(caller [20]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if err := e.state.PausedPut(false); err != nil {
		return err
	}
	e.emit(NewResumedEvent(e.now()))
	return nil
}

// WithdrawFees moves up to the non-escrowed vault balance to a recipient.
// Principal still owed to unsettled swaps can never be withdrawn.
func (e *Engine) WithdrawFees(caller, recipient [20]byte, amount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authorize(caller, RoleAdmin); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdrawal amount must be positive", ErrInvalidConfig)
	}
	vaultAcc, err := e.state.GetAccount(e.vault)
	if err != nil {
		return err
	}
	locked, err := e.state.EscrowLockedGet()
	if err != nil {
		return err
	}
	available := new(big.Int).Sub(vaultAcc.Balance, locked)
	if available.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.transfer(e.vault, recipient, amount); err != nil {
		return err
	}
	e.emit(NewFeesWithdrawnEvent(recipient, amount.String(), e.now()))
	return nil
}

// blendCompletionTime folds a completion duration into the running average.
// The first sample seeds the average; later samples blend in with an EWMA
// weight of 1/8.
func blendCompletionTime(avg, sample int64, completed uint64) int64 {
	if sample < 0 {
		sample = 0
	}
	if completed <= 1 {
		return sample
	}
	return avg + (sample-avg)/8
}

func successRateBps(completed, initiated uint64) uint64 {
	if initiated == 0 {
		return 0
	}
	return completed * 10000 / initiated
}
