package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"lotterychain/core/types"
	"lotterychain/crypto"
)

func requireParams(params []json.RawMessage, n int) *RPCError {
	if len(params) != n {
		return invalidParams(fmt.Sprintf("expected %d parameter(s), got %d", n, len(params)), nil)
	}
	return nil
}

func stringParam(raw json.RawMessage) (string, *RPCError) {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", invalidParams("parameter must be a string", err.Error())
	}
	return strings.TrimSpace(value), nil
}

func addressParam(raw json.RawMessage) ([20]byte, *RPCError) {
	value, rpcErr := stringParam(raw)
	if rpcErr != nil {
		return [20]byte{}, rpcErr
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return [20]byte{}, invalidParams("invalid address", err.Error())
	}
	return addr, nil
}

func uintParam(raw json.RawMessage) (uint64, *RPCError) {
	var value uint64
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, invalidParams("parameter must be a non-negative integer", err.Error())
	}
	return value, nil
}

func hashParam(raw json.RawMessage) ([]byte, *RPCError) {
	value, rpcErr := stringParam(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	decoded, err := types.ParseHash(value)
	if err != nil {
		return nil, invalidParams("invalid hash", err.Error())
	}
	return decoded, nil
}

func formatAddress(addr [20]byte) string {
	return crypto.AddressFromArray(addr).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
