package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"lotterychain/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020

	codeAuthorization = -32041
	codeTiming        = -32042
	codeState         = -32043
	codeArithmetic    = -32044
)

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

	status int
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type methodHandler func(r *http.Request, params []json.RawMessage) (interface{}, *RPCError)

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data, status: http.StatusBadRequest}
}

func serverError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error(), status: http.StatusInternalServerError}
}

// codeForKind maps a failed transaction's kind to its JSON-RPC error code.
func codeForKind(kind string) int {
	switch kind {
	case "authorization":
		return codeAuthorization
	case "timing":
		return codeTiming
	case "state":
		return codeState
	case "arithmetic":
		return codeArithmetic
	default:
		return codeServerError
	}
}

func writeError(w http.ResponseWriter, rpcErr *RPCError, id interface{}) {
	status := rpcErr.status
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: rpcErr}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		rpcErr := &RPCError{Code: codeInvalidRequest, Message: "failed to read request body", Data: err.Error()}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			rpcErr.status = http.StatusRequestEntityTooLarge
			rpcErr.Message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, rpcErr, nil)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, &RPCError{Code: codeInvalidRequest, Message: "request body required"}, nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, &RPCError{Code: codeParseError, Message: "invalid JSON payload", Data: err.Error()}, nil)
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, &RPCError{Code: codeInvalidRequest, Message: "unsupported jsonrpc version", Data: req.JSONRPC}, req.ID)
		return
	}
	if req.Method == "" {
		writeError(w, &RPCError{Code: codeInvalidRequest, Message: "method required"}, req.ID)
		return
	}

	start := time.Now()
	handler, ok := s.methods[req.Method]
	if !ok {
		observability.RPC().Observe("unknown", codeMethodNotFound, time.Since(start))
		writeError(w, &RPCError{Code: codeMethodNotFound, Message: fmt.Sprintf("method %s not found", req.Method), status: http.StatusNotFound}, req.ID)
		return
	}

	result, rpcErr := handler(r, req.Params)
	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	observability.RPC().Observe(req.Method, code, time.Since(start))
	if rpcErr != nil {
		if rpcErr.Code == codeServerError {
			s.logger.Error("rpc method failed",
				slog.String("method", req.Method),
				slog.String("request_id", requestIDFrom(r.Context())),
				slog.Any("error", rpcErr.Data))
		}
		writeError(w, rpcErr, req.ID)
		return
	}
	writeResult(w, req.ID, result)
}
