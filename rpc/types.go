package rpc

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"swapsettle/native/swap"
)

// SwapResult summarises a swap record for RPC consumers.
type SwapResult struct {
	ID                string `json:"id"`
	Initiator         string `json:"initiator"`
	Recipient         string `json:"recipient"`
	SourceAmount      string `json:"sourceAmount"`
	DestinationAmount string `json:"destinationAmount"`
	Fee               string `json:"fee"`
	Rate              string `json:"rate"`
	InitiatedAt       int64  `json:"initiatedAt"`
	Deadline          int64  `json:"deadline"`
	Status            string `json:"status"`
	MessageRef        string `json:"messageRef,omitempty"`
	Settled           bool   `json:"settled"`
}

// QuoteResult carries a slippage-protected estimate.
type QuoteResult struct {
	DestinationAmount string `json:"destinationAmount"`
	Fee               string `json:"fee"`
	Rate              string `json:"rate"`
}

// MetricsResult reflects the engine's aggregate counters.
type MetricsResult struct {
	TotalInitiated       uint64 `json:"totalInitiated"`
	TotalCompleted       uint64 `json:"totalCompleted"`
	TotalVolume          string `json:"totalVolume"`
	TotalFees            string `json:"totalFees"`
	AvgCompletionSeconds int64  `json:"avgCompletionSeconds"`
	SuccessRateBps       uint64 `json:"successRateBps"`
}

// ConfigResult reflects the active engine configuration.
type ConfigResult struct {
	MinAmount      string `json:"minAmount"`
	MaxAmount      string `json:"maxAmount"`
	MaxSlippageBps uint64 `json:"maxSlippageBps"`
	FeeBps         uint64 `json:"feeBps"`
	TimeoutSeconds int64  `json:"timeoutSeconds"`
}

// EventResult renders an emitted event for RPC consumers.
type EventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func formatSwap(record *swap.Swap) *SwapResult {
	if record == nil {
		return nil
	}
	result := &SwapResult{
		ID:                "0x" + hex.EncodeToString(record.ID[:]),
		Initiator:         ethcommon.Address(record.Initiator).Hex(),
		Recipient:         record.Recipient,
		SourceAmount:      record.SourceAmount.String(),
		DestinationAmount: record.DestinationAmount.String(),
		Fee:               record.Fee.String(),
		Rate:              record.Rate.String(),
		InitiatedAt:       record.InitiatedAt,
		Deadline:          record.Deadline,
		Status:            record.Status.String(),
		Settled:           record.Settled,
	}
	if record.Status == swap.StatusCompleted {
		result.MessageRef = "0x" + hex.EncodeToString(record.MessageRef[:])
	}
	return result
}

func parseAddressParam(value, field string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	return [20]byte(ethcommon.HexToAddress(trimmed)), nil
}

func parseHash32Param(value, field string) ([32]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil || len(decoded) != 32 {
		return [32]byte{}, fmt.Errorf("%s: expected 32 byte hex value", field)
	}
	var out [32]byte
	copy(out[:], decoded)
	return out, nil
}
