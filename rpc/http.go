package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"swapsettle/core/events"
	"swapsettle/native/swap"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB

	authTokenEnv = "SWAPSETTLE_RPC_TOKEN"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeValidation     = -32030
	codeState          = -32031
	codeTiming         = -32032
	codeDuplicate      = -32033
	codeTransfer       = -32034
	codeNotFound       = -32035
)

// Server exposes the settlement engine over JSON-RPC 2.0. Mutating methods
// require the bearer token; queries and quotes are open.
type Server struct {
	engine    *swap.Engine
	recorder  *events.Recorder
	authToken string
}

// NewServer builds an RPC server bound to the engine. The recorder is optional
// and backs swap_recentEvents when provided.
func NewServer(engine *swap.Engine, recorder *events.Recorder) *Server {
	token := strings.TrimSpace(os.Getenv(authTokenEnv))
	return &Server{
		engine:    engine,
		recorder:  recorder,
		authToken: token,
	}
}

// SetAuthToken overrides the bearer token sourced from the environment.
func (s *Server) SetAuthToken(token string) {
	s.authToken = strings.TrimSpace(token)
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeEngineError maps an engine error onto the RPC error code space using
// the error taxonomy, so clients can distinguish retryable conditions.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	kind := swap.Classify(err)
	code := codeServerError
	status := http.StatusOK
	switch kind {
	case swap.KindValidation:
		code = codeValidation
	case swap.KindAuthorization:
		code = codeUnauthorized
	case swap.KindState:
		code = codeState
	case swap.KindTiming:
		code = codeTiming
	case swap.KindDuplicate:
		code = codeDuplicate
	case swap.KindTransfer:
		code = codeTransfer
	case swap.KindNotFound:
		code = codeNotFound
	}
	writeError(w, status, id, code, err.Error(), map[string]string{"kind": kind.String()})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return false
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body", nil)
		return
	}
	if len(body) > maxRequestBytes {
		writeError(w, http.StatusRequestEntityTooLarge, nil, codeInvalidRequest, "request body too large", nil)
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON-RPC request", nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found", req.Method)
		return
	}
	if mutatingMethods[req.Method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "bearer token required", nil)
		return
	}
	handler(w, &req)
}

type methodHandler func(http.ResponseWriter, *RPCRequest)

var mutatingMethods = map[string]bool{
	"swap_initiate":     true,
	"swap_complete":     true,
	"swap_refund":       true,
	"swap_cancel":       true,
	"swap_updateConfig": true,
	"swap_pause":        true,
	"swap_resume":       true,
	"swap_withdrawFees": true,
}

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"swap_getQuote":     s.handleGetQuote,
		"swap_initiate":     s.handleInitiate,
		"swap_complete":     s.handleComplete,
		"swap_refund":       s.handleRefund,
		"swap_cancel":       s.handleCancel,
		"swap_get":          s.handleGet,
		"swap_listByUser":   s.handleListByUser,
		"swap_canRefund":    s.handleCanRefund,
		"swap_metrics":      s.handleMetrics,
		"swap_getConfig":    s.handleGetConfig,
		"swap_updateConfig": s.handleUpdateConfig,
		"swap_pause":        s.handlePause,
		"swap_resume":       s.handleResume,
		"swap_withdrawFees": s.handleWithdrawFees,
		"swap_recentEvents": s.handleRecentEvents,
	}
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params[0], out)
}
