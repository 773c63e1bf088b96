package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const devTokenLeeway = 2 * time.Minute

func unauthorized(message string) *RPCError {
	return &RPCError{Code: codeUnauthorized, Message: message, status: http.StatusUnauthorized}
}

// authorizeDev guards the dev_* namespace: dev mode must be enabled and the
// request must carry an HS256 bearer signed with the configured secret.
func (s *Server) authorizeDev(r *http.Request) *RPCError {
	if !s.cfg.DevMode {
		return &RPCError{Code: codeMethodNotFound, Message: "dev namespace disabled", status: http.StatusNotFound}
	}
	secret := strings.TrimSpace(s.cfg.DevJWTSecret)
	if secret == "" {
		return unauthorized("dev secret not configured")
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return unauthorized("missing bearer token")
	}
	tokenString := strings.TrimSpace(header[len("bearer "):])
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(devTokenLeeway), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return unauthorized("invalid token")
	}
	return nil
}

type IncreaseTimeResult struct {
	Now int64 `json:"now"`
}

// handleIncreaseTime moves the node clock forward by a number of seconds.
func (s *Server) handleIncreaseTime(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := s.authorizeDev(r); rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	seconds, rpcErr := uintParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	now, err := s.node.IncreaseTime(time.Duration(seconds) * time.Second)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidRequest, Message: err.Error(), status: http.StatusBadRequest}
	}
	return IncreaseTimeResult{Now: now.Unix()}, nil
}

func (s *Server) handleNow(r *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := s.authorizeDev(r); rpcErr != nil {
		return nil, rpcErr
	}
	return IncreaseTimeResult{Now: s.node.Now().Unix()}, nil
}
