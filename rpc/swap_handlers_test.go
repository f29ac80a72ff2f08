package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swapsettle/core/events"
	"swapsettle/native/swap"
	"swapsettle/storage"
)

const testToken = "test-rpc-token"

var (
	initiatorHex = "0x" + strings.Repeat("01", 20)
	relayHex     = "0x" + strings.Repeat("02", 20)
	adminHex     = "0x" + strings.Repeat("03", 20)
	otherHex     = "0x" + strings.Repeat("04", 20)
)

func addrFromFill(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type testHarness struct {
	server *httptest.Server
	now    *int64
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	state := swap.NewState(storage.NewMemDB())
	require.NoError(t, state.ConfigPut(&swap.Config{
		MinAmount:      big.NewInt(10_000000),
		MaxAmount:      big.NewInt(100000_000000),
		MaxSlippageBps: 300,
		FeeBps:         10,
		TimeoutSeconds: 1800,
	}))
	require.NoError(t, state.PutAccount(addrFromFill(0x01), &swap.Account{Balance: big.NewInt(5000_000000)}))

	now := int64(30)
	engine := swap.NewEngine(state)
	engine.SetVault(addrFromFill(0xAA))
	engine.SetAuthorizer(swap.NewStaticAuthorizer(
		[][20]byte{addrFromFill(0x02)},
		[][20]byte{addrFromFill(0x03)},
	))
	engine.SetNowFunc(func() int64 { return now })

	recorder := events.NewRecorder(0)
	engine.SetEmitter(recorder)

	rpcServer := NewServer(engine, recorder)
	rpcServer.SetAuthToken(testToken)

	server := httptest.NewServer(rpcServer.Handler())
	t.Cleanup(server.Close)
	return &testHarness{server: server, now: &now}
}

func (h *testHarness) call(t *testing.T, method string, params interface{}, token string) *RPCResponse {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return &decoded
}

func (h *testHarness) initiate(t *testing.T) *SwapResult {
	t.Helper()
	resp := h.call(t, "swap_initiate", map[string]string{
		"caller":               initiatorHex,
		"recipient":            "chain-b:recipient-1",
		"amount":               "1000000000",
		"minDestinationAmount": "995000000",
	}, testToken)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result SwapResult
	require.NoError(t, json.Unmarshal(raw, &result))
	return &result
}

func TestRPCRequiresPost(t *testing.T) {
	h := newTestHarness(t)
	resp, err := http.Get(h.server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRPCMethodNotFound(t *testing.T) {
	h := newTestHarness(t)
	resp := h.call(t, "swap_unknown", nil, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRPCQuoteIsOpen(t *testing.T) {
	h := newTestHarness(t)
	resp := h.call(t, "swap_getQuote", map[string]string{"amount": "1000000000"}, "")
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var quote QuoteResult
	require.NoError(t, json.Unmarshal(raw, &quote))
	require.Equal(t, "1000000", quote.Fee)
	require.Equal(t, "999000000", quote.DestinationAmount)
}

func TestRPCMutatingMethodsNeedToken(t *testing.T) {
	h := newTestHarness(t)
	resp := h.call(t, "swap_initiate", map[string]string{
		"caller":               initiatorHex,
		"recipient":            "chain-b:recipient-1",
		"amount":               "1000000000",
		"minDestinationAmount": "995000000",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = h.call(t, "swap_initiate", map[string]string{
		"caller":               initiatorHex,
		"recipient":            "chain-b:recipient-1",
		"amount":               "1000000000",
		"minDestinationAmount": "995000000",
	}, "wrong-token")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestRPCInitiateCompleteFlow(t *testing.T) {
	h := newTestHarness(t)
	record := h.initiate(t)
	require.Equal(t, "initiated", record.Status)
	require.Equal(t, "1000000", record.Fee)
	require.Empty(t, record.MessageRef)

	*h.now += 120
	msgRef := "0x" + strings.Repeat("b1", 32)
	resp := h.call(t, "swap_complete", map[string]string{
		"caller":     relayHex,
		"id":         record.ID,
		"messageRef": msgRef,
	}, testToken)
	require.Nil(t, resp.Error)

	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var completed SwapResult
	require.NoError(t, json.Unmarshal(raw, &completed))
	require.Equal(t, "completed", completed.Status)
	require.Equal(t, msgRef, completed.MessageRef)
	require.True(t, completed.Settled)

	// A second delivery of the same relay message maps to the duplicate code.
	second := h.initiate(t)
	resp = h.call(t, "swap_complete", map[string]string{
		"caller":     relayHex,
		"id":         second.ID,
		"messageRef": msgRef,
	}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeDuplicate, resp.Error.Code)
}

func TestRPCEngineErrorCodes(t *testing.T) {
	h := newTestHarness(t)
	record := h.initiate(t)

	// Refund before the deadline is a timing failure.
	resp := h.call(t, "swap_refund", map[string]string{
		"caller": initiatorHex,
		"id":     record.ID,
	}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeTiming, resp.Error.Code)

	// Non-relay completion is an authorization failure.
	resp = h.call(t, "swap_complete", map[string]string{
		"caller":     otherHex,
		"id":         record.ID,
		"messageRef": "0x" + strings.Repeat("c2", 32),
	}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// Unknown identifiers map to the not-found code.
	resp = h.call(t, "swap_get", map[string]string{
		"id": "0x" + strings.Repeat("ff", 32),
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeNotFound, resp.Error.Code)

	// Below-minimum amounts map to the validation code.
	resp = h.call(t, "swap_getQuote", map[string]string{"amount": "1"}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeValidation, resp.Error.Code)
}

func TestRPCInvalidParams(t *testing.T) {
	h := newTestHarness(t)
	cases := []struct {
		method string
		params map[string]string
	}{
		{"swap_getQuote", map[string]string{"amount": "abc"}},
		{"swap_get", map[string]string{"id": "0x1234"}},
		{"swap_listByUser", map[string]string{"address": "nope"}},
	}
	for _, tc := range cases {
		resp := h.call(t, tc.method, tc.params, "")
		require.NotNil(t, resp.Error, tc.method)
		require.Equal(t, codeInvalidParams, resp.Error.Code, tc.method)
	}
}

func TestRPCAdminFlow(t *testing.T) {
	h := newTestHarness(t)

	resp := h.call(t, "swap_pause", map[string]string{"caller": adminHex}, testToken)
	require.Nil(t, resp.Error)

	resp = h.call(t, "swap_initiate", map[string]string{
		"caller":               initiatorHex,
		"recipient":            "chain-b:recipient-1",
		"amount":               "1000000000",
		"minDestinationAmount": "995000000",
	}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeState, resp.Error.Code)

	resp = h.call(t, "swap_resume", map[string]string{"caller": adminHex}, testToken)
	require.Nil(t, resp.Error)

	resp = h.call(t, "swap_updateConfig", map[string]interface{}{
		"caller":         adminHex,
		"minAmount":      "5000000",
		"maxAmount":      "50000000000",
		"maxSlippageBps": 200,
		"feeBps":         5,
		"timeoutSeconds": 900,
	}, testToken)
	require.Nil(t, resp.Error)

	resp = h.call(t, "swap_getConfig", nil, "")
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var got struct {
		Config ConfigResult `json:"config"`
		Paused bool         `json:"paused"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "5000000", got.Config.MinAmount)
	require.Equal(t, uint64(5), got.Config.FeeBps)
	require.False(t, got.Paused)

	// Non-admin callers are rejected by the engine even with a valid token.
	resp = h.call(t, "swap_pause", map[string]string{"caller": otherHex}, testToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestRPCListAndEvents(t *testing.T) {
	h := newTestHarness(t)
	record := h.initiate(t)

	resp := h.call(t, "swap_listByUser", map[string]string{"address": initiatorHex}, "")
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal(raw, &ids))
	require.Equal(t, []string{record.ID}, ids)

	resp = h.call(t, "swap_recentEvents", map[string]int{"limit": 10}, "")
	require.Nil(t, resp.Error)
	raw, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	var evts []EventResult
	require.NoError(t, json.Unmarshal(raw, &evts))
	require.Len(t, evts, 1)
	require.Equal(t, "swap.initiated", evts[0].Type)
	require.Equal(t, record.ID, fmt.Sprintf("0x%s", strings.TrimPrefix(evts[0].Attributes["id"], "0x")))
}

func TestRPCMetricsEndpoint(t *testing.T) {
	h := newTestHarness(t)
	h.initiate(t)

	resp := h.call(t, "swap_metrics", nil, "")
	require.Nil(t, resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var metrics MetricsResult
	require.NoError(t, json.Unmarshal(raw, &metrics))
	require.Equal(t, uint64(1), metrics.TotalInitiated)
	require.Equal(t, "1000000000", metrics.TotalVolume)
	require.Equal(t, "1000000", metrics.TotalFees)
}
