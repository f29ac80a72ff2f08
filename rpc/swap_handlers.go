package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"swapsettle/native/swap"
)

type quoteParams struct {
	Amount string `json:"amount"`
}

type initiateParams struct {
	Caller               string `json:"caller"`
	Recipient            string `json:"recipient"`
	Amount               string `json:"amount"`
	MinDestinationAmount string `json:"minDestinationAmount"`
}

type completeParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	MessageRef string `json:"messageRef"`
}

type swapRefParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

type idParams struct {
	ID string `json:"id"`
}

type userParams struct {
	Address string `json:"address"`
}

type updateConfigParams struct {
	Caller         string `json:"caller"`
	MinAmount      string `json:"minAmount"`
	MaxAmount      string `json:"maxAmount"`
	MaxSlippageBps uint64 `json:"maxSlippageBps"`
	FeeBps         uint64 `json:"feeBps"`
	TimeoutSeconds int64  `json:"timeoutSeconds"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type withdrawParams struct {
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type recentEventsParams struct {
	Limit int `json:"limit"`
}

func parseAmountParam(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: amount required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	return amount, nil
}

func (s *Server) handleGetQuote(w http.ResponseWriter, req *RPCRequest) {
	var params quoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	quote, err := s.engine.Quote(amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &QuoteResult{
		DestinationAmount: quote.DestinationAmount.String(),
		Fee:               quote.Fee.String(),
		Rate:              quote.Rate.String(),
	})
}

func (s *Server) handleInitiate(w http.ResponseWriter, req *RPCRequest) {
	var params initiateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minDestination, err := parseAmountParam(params.MinDestinationAmount, "minDestinationAmount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Initiate(caller, params.Recipient, amount, minDestination)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSwap(record))
}

func (s *Server) handleComplete(w http.ResponseWriter, req *RPCRequest) {
	var params completeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash32Param(params.ID, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	messageRef, err := parseHash32Param(params.MessageRef, "messageRef")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.Complete(caller, id, messageRef)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSwap(record))
}

func (s *Server) handleRefund(w http.ResponseWriter, req *RPCRequest) {
	s.handleSettle(w, req, s.engine.Refund)
}

func (s *Server) handleCancel(w http.ResponseWriter, req *RPCRequest) {
	s.handleSettle(w, req, s.engine.Cancel)
}

func (s *Server) handleSettle(w http.ResponseWriter, req *RPCRequest, op func([20]byte, [32]byte) (*swap.Swap, error)) {
	var params swapRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash32Param(params.ID, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := op(caller, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSwap(record))
}

func (s *Server) handleGet(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash32Param(params.ID, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.GetSwap(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatSwap(record))
}

func (s *Server) handleListByUser(w http.ResponseWriter, req *RPCRequest) {
	var params userParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	address, err := parseAddressParam(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids, err := s.engine.UserSwaps(address)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, fmt.Sprintf("0x%x", id))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCanRefund(w http.ResponseWriter, req *RPCRequest) {
	var params idParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := parseHash32Param(params.ID, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	refundable, err := s.engine.CanRefund(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"canRefund": refundable})
}

func (s *Server) handleMetrics(w http.ResponseWriter, req *RPCRequest) {
	metrics, err := s.engine.MetricsSnapshot()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &MetricsResult{
		TotalInitiated:       metrics.TotalInitiated,
		TotalCompleted:       metrics.TotalCompleted,
		TotalVolume:          metrics.TotalVolume.String(),
		TotalFees:            metrics.TotalFees.String(),
		AvgCompletionSeconds: metrics.AvgCompletionSeconds,
		SuccessRateBps:       metrics.SuccessRateBps,
	})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, req *RPCRequest) {
	cfg, err := s.engine.GetConfig()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	paused, err := s.engine.Paused()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"config": &ConfigResult{
			MinAmount:      cfg.MinAmount.String(),
			MaxAmount:      cfg.MaxAmount.String(),
			MaxSlippageBps: cfg.MaxSlippageBps,
			FeeBps:         cfg.FeeBps,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		"paused": paused,
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, req *RPCRequest) {
	var params updateConfigParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	minAmount, err := parseAmountParam(params.MinAmount, "minAmount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	maxAmount, err := parseAmountParam(params.MaxAmount, "maxAmount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	cfg := &swap.Config{
		MinAmount:      minAmount,
		MaxAmount:      maxAmount,
		MaxSlippageBps: params.MaxSlippageBps,
		FeeBps:         params.FeeBps,
		TimeoutSeconds: params.TimeoutSeconds,
	}
	if err := s.engine.UpdateConfig(caller, cfg); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handlePause(w http.ResponseWriter, req *RPCRequest) {
	s.handleToggle(w, req, s.engine.Pause, "paused")
}

func (s *Server) handleResume(w http.ResponseWriter, req *RPCRequest) {
	s.handleToggle(w, req, s.engine.Resume, "resumed")
}

func (s *Server) handleToggle(w http.ResponseWriter, req *RPCRequest, op func([20]byte) error, label string) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := op(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{label: true})
}

func (s *Server) handleWithdrawFees(w http.ResponseWriter, req *RPCRequest) {
	var params withdrawParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	recipient, err := parseAddressParam(params.Recipient, "recipient")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmountParam(params.Amount, "amount")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.WithdrawFees(caller, recipient, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"withdrawn": true})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, req *RPCRequest) {
	var params recentEventsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if s.recorder == nil {
		writeResult(w, req.ID, []EventResult{})
		return
	}
	recent := s.recorder.Recent(params.Limit)
	out := make([]EventResult, 0, len(recent))
	for _, evt := range recent {
		payload, ok := evt.(*swap.Event)
		if !ok {
			continue
		}
		out = append(out, EventResult{Type: payload.Type, Attributes: payload.Attributes})
	}
	writeResult(w, req.ID, out)
}
