package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"lotterychain/core"
	"lotterychain/core/types"
)

func (s *Server) routes() map[string]methodHandler {
	return map[string]methodHandler{
		"lottery_sendTransaction": s.handleSendTransaction,

		"lottery_status":        s.handleLotteryStatus,
		"lottery_owner":         s.handleLotteryOwner,
		"lottery_custody":       s.handleLotteryCustody,
		"lottery_betPrice":      s.handleLotteryBetPrice,
		"lottery_betFee":        s.handleLotteryBetFee,
		"lottery_open":          s.handleLotteryOpen,
		"lottery_closingEpoch":  s.handleLotteryClosingEpoch,
		"lottery_payoutPool":    s.handleLotteryPayoutPool,
		"lottery_feeCollection": s.handleLotteryFeeCollection,
		"lottery_latestWinner":  s.handleLotteryLatestWinner,
		"lottery_winningStash":  s.handleLotteryWinningStash,
		"lottery_pendingBurn":   s.handleLotteryPendingBurn,
		"lottery_roundResult":   s.handleLotteryRoundResult,

		"token_info":      s.handleTokenInfo,
		"token_balanceOf": s.handleTokenBalance,
		"token_allowance": s.handleTokenAllowance,
		"token_burnedBy":  s.handleTokenBurned,
		"bank_balance":    s.handleBankBalance,

		"chain_id":         s.handleChainID,
		"chain_height":     s.handleChainHeight,
		"chain_getBlock":   s.handleGetBlock,
		"chain_getReceipt": s.handleGetReceipt,
		"account_nonce":    s.handleAccountNonce,

		"dev_increaseTime": s.handleIncreaseTime,
		"dev_now":          s.handleNow,
	}
}

type EventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type ReceiptJSON struct {
	TxHash    string      `json:"txHash"`
	Height    uint64      `json:"height"`
	Sender    string      `json:"sender"`
	Type      string      `json:"type"`
	Success   bool        `json:"success"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"errorKind,omitempty"`
	Events    []EventJSON `json:"events"`
}

type BlockJSON struct {
	Height     uint64       `json:"height"`
	Timestamp  uint64       `json:"timestamp"`
	Hash       string       `json:"hash"`
	ParentHash string       `json:"parentHash"`
	TxHash     string       `json:"txHash,omitempty"`
	Receipt    *ReceiptJSON `json:"receipt,omitempty"`
}

func encodeHex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func receiptJSON(r *types.Receipt) *ReceiptJSON {
	if r == nil {
		return nil
	}
	out := &ReceiptJSON{
		TxHash:    encodeHex(r.TxHash),
		Height:    r.Height,
		Type:      r.Type.String(),
		Success:   r.Success,
		Error:     r.Error,
		ErrorKind: r.ErrorKind,
		Events:    make([]EventJSON, 0, len(r.Events)),
	}
	if len(r.Sender) == 20 {
		var sender [20]byte
		copy(sender[:], r.Sender)
		out.Sender = formatAddress(sender)
	}
	for _, evt := range r.Events {
		if evt == nil {
			continue
		}
		out.Events = append(out.Events, EventJSON{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}

func blockJSON(b *types.Block) (*BlockJSON, error) {
	hash, err := b.Header.Hash()
	if err != nil {
		return nil, err
	}
	return &BlockJSON{
		Height:     b.Header.Height,
		Timestamp:  b.Header.Timestamp,
		Hash:       encodeHex(hash),
		ParentHash: encodeHex(b.Header.ParentHash),
		TxHash:     encodeHex(b.Header.TxHash),
		Receipt:    receiptJSON(b.Receipt),
	}, nil
}

// handleSendTransaction submits one signed transaction. Inadmissible
// transactions are reported as invalid params; included transactions that an
// engine rejected come back as an error carrying the receipt.
func (s *Server) handleSendTransaction(r *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	var tx types.Transaction
	if err := json.Unmarshal(params[0], &tx); err != nil {
		return nil, invalidParams("invalid transaction", err.Error())
	}
	receipt, err := s.node.SubmitTransaction(r.Context(), &tx)
	if err != nil {
		if isRejection(err) {
			return nil, invalidParams(err.Error(), nil)
		}
		return nil, serverError(err)
	}
	out := receiptJSON(receipt)
	if !receipt.Success {
		return nil, &RPCError{
			Code:    codeForKind(receipt.ErrorKind),
			Message: receipt.Error,
			Data:    out,
			status:  http.StatusOK,
		}
	}
	return out, nil
}

func isRejection(err error) bool {
	switch {
	case errors.Is(err, core.ErrChainIDMismatch),
		errors.Is(err, core.ErrNonceMismatch),
		errors.Is(err, core.ErrInvalidPayload),
		errors.Is(err, core.ErrUnknownTxType),
		errors.Is(err, core.ErrNilTransaction),
		errors.Is(err, core.ErrInvalidSender):
		return true
	}
	return false
}

func (s *Server) handleLotteryCustody(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return formatAddress(s.node.CustodyAddress()), nil
}

type TokenInfoResult struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"totalSupply"`
}

func (s *Server) handleTokenInfo(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	info, err := s.node.TokenInfo()
	if err != nil {
		return nil, serverError(err)
	}
	return TokenInfoResult{Name: info.Name, Symbol: info.Symbol, TotalSupply: formatAmount(info.TotalSupply)}, nil
}

// addressQuery wraps a single-address accessor returning an amount.
func (s *Server) addressQuery(params []json.RawMessage, fn func([20]byte) (interface{}, error)) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := addressParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := fn(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return result, nil
}

func (s *Server) handleTokenBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	return s.addressQuery(params, func(addr [20]byte) (interface{}, error) {
		v, err := s.node.TokenBalance(addr)
		return formatAmount(v), err
	})
}

func (s *Server) handleTokenBurned(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	return s.addressQuery(params, func(addr [20]byte) (interface{}, error) {
		v, err := s.node.TokenBurned(addr)
		return formatAmount(v), err
	})
}

func (s *Server) handleBankBalance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	return s.addressQuery(params, func(addr [20]byte) (interface{}, error) {
		v, err := s.node.CurrencyBalance(addr)
		return formatAmount(v), err
	})
}

func (s *Server) handleAccountNonce(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	return s.addressQuery(params, func(addr [20]byte) (interface{}, error) {
		return s.node.Nonce(addr)
	})
}

func (s *Server) handleTokenAllowance(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 2); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := addressParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	spender, rpcErr := addressParam(params[1])
	if rpcErr != nil {
		return nil, rpcErr
	}
	allowance, err := s.node.TokenAllowance(owner, spender)
	if err != nil {
		return nil, serverError(err)
	}
	return formatAmount(allowance), nil
}

func (s *Server) handleChainID(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return s.node.ChainID(), nil
}

func (s *Server) handleChainHeight(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	height, err := s.node.Height()
	if err != nil {
		return nil, serverError(err)
	}
	return height, nil
}

func (s *Server) handleGetBlock(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	height, rpcErr := uintParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	block, err := s.node.BlockByHeight(height)
	if err != nil {
		return nil, serverError(err)
	}
	if block == nil || block.Header == nil {
		return nil, nil
	}
	out, err := blockJSON(block)
	if err != nil {
		return nil, serverError(err)
	}
	return out, nil
}

func (s *Server) handleGetReceipt(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	hash, rpcErr := hashParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.Receipt(hash)
	if err != nil {
		return nil, serverError(err)
	}
	if receipt == nil {
		return nil, nil
	}
	return receiptJSON(receipt), nil
}
