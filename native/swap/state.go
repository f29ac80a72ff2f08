package swap

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/rlp"

	"swapsettle/storage"
)

// Key layout. All record families grow append-only: swaps and processed
// message refs are never deleted, and the per-initiator index is a counter
// plus numbered entries so appends never rewrite existing rows.
var (
	swapRecordPrefix  = []byte("swap/record/")
	swapUserPrefix    = []byte("swap/user/")
	processedPrefix   = []byte("swap/msg/")
	accountPrefix     = []byte("swap/account/")
	configKey         = []byte("swap/config")
	metricsKey        = []byte("swap/metrics")
	pausedKey         = []byte("swap/paused")
	sequenceKey       = []byte("swap/sequence")
	escrowLockedKey   = []byte("swap/locked")
	userIndexLenLabel = "/len"
)

// State persists all engine records in the underlying key-value store. It is
// not internally synchronised; the engine serialises access behind its mutex.
type State struct {
	db storage.Database
}

// NewState constructs a state layer bound to the provided database.
func NewState(db storage.Database) *State {
	return &State{db: db}
}

type storedSwap struct {
	Initiator         [20]byte
	Recipient         string
	SourceAmount      *big.Int
	DestinationAmount *big.Int
	Fee               *big.Int
	Rate              *big.Int
	InitiatedAt       uint64
	Deadline          uint64
	Status            uint8
	MessageRef        [32]byte
	Settled           bool
}

type storedConfig struct {
	MinAmount      *big.Int
	MaxAmount      *big.Int
	MaxSlippageBps uint64
	FeeBps         uint64
	TimeoutSeconds uint64
}

type storedMetrics struct {
	TotalInitiated       uint64
	TotalCompleted       uint64
	TotalVolume          *big.Int
	TotalFees            *big.Int
	AvgCompletionSeconds uint64
	SuccessRateBps       uint64
}

type storedAccount struct {
	Balance *big.Int
}

func (s *State) put(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return s.db.Put(key, encoded)
}

func (s *State) get(key []byte, out interface{}) (bool, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

// SwapPut sanitises and stores the swap record under its identifier.
func (s *State) SwapPut(record *Swap) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	sanitized, err := SanitizeSwap(record)
	if err != nil {
		return err
	}
	initiatedAt, err := int64ToUint64(sanitized.InitiatedAt)
	if err != nil {
		return fmt.Errorf("swap state: initiated at: %w", err)
	}
	deadline, err := int64ToUint64(sanitized.Deadline)
	if err != nil {
		return fmt.Errorf("swap state: deadline: %w", err)
	}
	stored := storedSwap{
		Initiator:         sanitized.Initiator,
		Recipient:         sanitized.Recipient,
		SourceAmount:      sanitized.SourceAmount,
		DestinationAmount: sanitized.DestinationAmount,
		Fee:               sanitized.Fee,
		Rate:              sanitized.Rate,
		InitiatedAt:       initiatedAt,
		Deadline:          deadline,
		Status:            uint8(sanitized.Status),
		MessageRef:        sanitized.MessageRef,
		Settled:           sanitized.Settled,
	}
	return s.put(swapKey(sanitized.ID), stored)
}

// SwapGet retrieves a swap record by identifier.
func (s *State) SwapGet(id [32]byte) (*Swap, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("swap state: not initialised")
	}
	var stored storedSwap
	ok, err := s.get(swapKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	initiatedAt, err := uint64ToInt64(stored.InitiatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("swap state: initiated at overflow: %w", err)
	}
	deadline, err := uint64ToInt64(stored.Deadline)
	if err != nil {
		return nil, false, fmt.Errorf("swap state: deadline overflow: %w", err)
	}
	record := &Swap{
		ID:                id,
		Initiator:         stored.Initiator,
		Recipient:         stored.Recipient,
		SourceAmount:      cloneBigInt(stored.SourceAmount),
		DestinationAmount: cloneBigInt(stored.DestinationAmount),
		Fee:               cloneBigInt(stored.Fee),
		Rate:              cloneBigInt(stored.Rate),
		InitiatedAt:       initiatedAt,
		Deadline:          deadline,
		Status:            Status(stored.Status),
		MessageRef:        stored.MessageRef,
		Settled:           stored.Settled,
	}
	if !record.Status.Valid() {
		return nil, false, fmt.Errorf("swap state: corrupt status %d", stored.Status)
	}
	return record, true, nil
}

// SwapIndexAppend records the identifier at the end of the initiator's index.
func (s *State) SwapIndexAppend(initiator [20]byte, id [32]byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	var length uint64
	ok, err := s.get(userIndexLenKey(initiator), &length)
	if err != nil {
		return err
	}
	if !ok {
		length = 0
	}
	if err := s.put(userIndexEntryKey(initiator, length), id); err != nil {
		return err
	}
	return s.put(userIndexLenKey(initiator), length+1)
}

// SwapIndexList returns the initiator's swap identifiers in append order.
func (s *State) SwapIndexList(initiator [20]byte) ([][32]byte, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("swap state: not initialised")
	}
	var length uint64
	ok, err := s.get(userIndexLenKey(initiator), &length)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ids := make([][32]byte, 0, length)
	for i := uint64(0); i < length; i++ {
		var id [32]byte
		ok, err := s.get(userIndexEntryKey(initiator, i), &id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("swap state: index entry %d missing for %s", i, hex.EncodeToString(initiator[:]))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MessageSeen reports whether a relay message reference was already consumed.
func (s *State) MessageSeen(ref [32]byte) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("swap state: not initialised")
	}
	return s.db.Has(messageKey(ref))
}

// MessageMark records the relay message reference as consumed. Entries are
// never removed.
func (s *State) MessageMark(ref [32]byte) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	return s.put(messageKey(ref), true)
}

// ConfigGet loads the persisted engine configuration.
func (s *State) ConfigGet() (*Config, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("swap state: not initialised")
	}
	var stored storedConfig
	ok, err := s.get(configKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	timeout, err := uint64ToInt64(stored.TimeoutSeconds)
	if err != nil {
		return nil, false, fmt.Errorf("swap state: timeout overflow: %w", err)
	}
	cfg := &Config{
		MinAmount:      cloneBigInt(stored.MinAmount),
		MaxAmount:      cloneBigInt(stored.MaxAmount),
		MaxSlippageBps: stored.MaxSlippageBps,
		FeeBps:         stored.FeeBps,
		TimeoutSeconds: timeout,
	}
	return cfg, true, nil
}

// ConfigPut validates and persists the engine configuration.
func (s *State) ConfigPut(cfg *Config) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	timeout, err := int64ToUint64(cfg.TimeoutSeconds)
	if err != nil {
		return fmt.Errorf("swap state: timeout: %w", err)
	}
	stored := storedConfig{
		MinAmount:      cfg.MinAmount,
		MaxAmount:      cfg.MaxAmount,
		MaxSlippageBps: cfg.MaxSlippageBps,
		FeeBps:         cfg.FeeBps,
		TimeoutSeconds: timeout,
	}
	return s.put(configKey, stored)
}

// MetricsGet loads the persisted metrics record.
func (s *State) MetricsGet() (*Metrics, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, fmt.Errorf("swap state: not initialised")
	}
	var stored storedMetrics
	ok, err := s.get(metricsKey, &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	avg, err := uint64ToInt64(stored.AvgCompletionSeconds)
	if err != nil {
		return nil, false, fmt.Errorf("swap state: avg completion overflow: %w", err)
	}
	metrics := &Metrics{
		TotalInitiated:       stored.TotalInitiated,
		TotalCompleted:       stored.TotalCompleted,
		TotalVolume:          cloneBigInt(stored.TotalVolume),
		TotalFees:            cloneBigInt(stored.TotalFees),
		AvgCompletionSeconds: avg,
		SuccessRateBps:       stored.SuccessRateBps,
	}
	return metrics, true, nil
}

// MetricsPut persists the metrics record.
func (s *State) MetricsPut(metrics *Metrics) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	if metrics == nil {
		return fmt.Errorf("swap state: nil metrics")
	}
	avg, err := int64ToUint64(metrics.AvgCompletionSeconds)
	if err != nil {
		return fmt.Errorf("swap state: avg completion: %w", err)
	}
	stored := storedMetrics{
		TotalInitiated:       metrics.TotalInitiated,
		TotalCompleted:       metrics.TotalCompleted,
		TotalVolume:          metrics.TotalVolume,
		TotalFees:            metrics.TotalFees,
		AvgCompletionSeconds: avg,
		SuccessRateBps:       metrics.SuccessRateBps,
	}
	return s.put(metricsKey, stored)
}

// PausedGet reports the persisted pause flag.
func (s *State) PausedGet() (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("swap state: not initialised")
	}
	var paused bool
	ok, err := s.get(pausedKey, &paused)
	if err != nil || !ok {
		return false, err
	}
	return paused, nil
}

// PausedPut persists the pause flag.
func (s *State) PausedPut(paused bool) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	return s.put(pausedKey, paused)
}

// SequenceNext increments and returns the strictly increasing swap sequence.
// The first call returns 1.
func (s *State) SequenceNext() (uint64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("swap state: not initialised")
	}
	var current uint64
	if _, err := s.get(sequenceKey, &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := s.put(sequenceKey, next); err != nil {
		return 0, err
	}
	return next, nil
}

// EscrowLockedGet returns the principal currently owed to unsettled swaps.
func (s *State) EscrowLockedGet() (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("swap state: not initialised")
	}
	var locked big.Int
	ok, err := s.get(escrowLockedKey, &locked)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return &locked, nil
}

// EscrowLockedPut persists the locked escrow total.
func (s *State) EscrowLockedPut(locked *big.Int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	if locked == nil || locked.Sign() < 0 {
		return fmt.Errorf("swap state: locked total must be non-negative")
	}
	return s.put(escrowLockedKey, locked)
}

// GetAccount loads the ledger account for the supplied address, returning a
// zero-balance account when none exists.
func (s *State) GetAccount(addr [20]byte) (*Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("swap state: not initialised")
	}
	var stored storedAccount
	ok, err := s.get(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Account{Balance: big.NewInt(0)}, nil
	}
	return &Account{Balance: cloneBigInt(stored.Balance)}, nil
}

// PutAccount persists the ledger account for the supplied address.
func (s *State) PutAccount(addr [20]byte, account *Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("swap state: not initialised")
	}
	if account == nil || account.Balance == nil || account.Balance.Sign() < 0 {
		return fmt.Errorf("swap state: account balance must be non-negative")
	}
	return s.put(accountKey(addr), storedAccount{Balance: account.Balance})
}

func swapKey(id [32]byte) []byte {
	buf := make([]byte, 0, len(swapRecordPrefix)+len(id))
	buf = append(buf, swapRecordPrefix...)
	return append(buf, id[:]...)
}

func messageKey(ref [32]byte) []byte {
	buf := make([]byte, 0, len(processedPrefix)+len(ref))
	buf = append(buf, processedPrefix...)
	return append(buf, ref[:]...)
}

func accountKey(addr [20]byte) []byte {
	encoded := hex.EncodeToString(addr[:])
	buf := make([]byte, 0, len(accountPrefix)+len(encoded))
	buf = append(buf, accountPrefix...)
	return append(buf, encoded...)
}

func userIndexLenKey(addr [20]byte) []byte {
	encoded := hex.EncodeToString(addr[:])
	buf := make([]byte, 0, len(swapUserPrefix)+len(encoded)+len(userIndexLenLabel))
	buf = append(buf, swapUserPrefix...)
	buf = append(buf, encoded...)
	return append(buf, userIndexLenLabel...)
}

func userIndexEntryKey(addr [20]byte, i uint64) []byte {
	encoded := hex.EncodeToString(addr[:])
	entry := strconv.FormatUint(i, 10)
	buf := make([]byte, 0, len(swapUserPrefix)+len(encoded)+1+len(entry))
	buf = append(buf, swapUserPrefix...)
	buf = append(buf, encoded...)
	buf = append(buf, '/')
	return append(buf, entry...)
}

func uint64ToInt64(value uint64) (int64, error) {
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("value %d exceeds int64 range", value)
	}
	return int64(value), nil
}

func int64ToUint64(value int64) (uint64, error) {
	if value < 0 {
		return 0, fmt.Errorf("value %d is negative", value)
	}
	return uint64(value), nil
}
