package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
)

// signer builds, signs and submits transactions for one key.
type signer struct {
	client *rpcClient
	key    *crypto.PrivateKey
}

func (s *signer) address() string { return s.key.PubKey().Address().String() }

func (s *signer) build(txType types.TxType, value *big.Int, to []byte, payload interface{}) (*types.Transaction, error) {
	var chainID uint64
	if err := s.client.call("chain_id", nil, &chainID); err != nil {
		return nil, err
	}
	var nonce uint64
	if err := s.client.call("account_nonce", []interface{}{s.address()}, &nonce); err != nil {
		return nil, err
	}
	tx := &types.Transaction{ChainID: chainID, Type: txType, Nonce: nonce, Value: value, To: to}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		tx.Data = data
	}
	if err := tx.Sign(s.key.PrivateKey); err != nil {
		return nil, err
	}
	return tx, nil
}

// submit sends the transaction and returns the raw receipt. A transaction
// that was included but reverted yields its receipt alongside the error.
func (s *signer) submit(txType types.TxType, value *big.Int, to []byte, payload interface{}) (json.RawMessage, error) {
	tx, err := s.build(txType, value, to, payload)
	if err != nil {
		return nil, err
	}
	var receipt json.RawMessage
	err = s.client.call("lottery_sendTransaction", []interface{}{tx}, &receipt)
	var rpcErr *rpcError
	if errors.As(err, &rpcErr) && len(rpcErr.Data) > 0 {
		return rpcErr.Data, err
	}
	return receipt, err
}

// withdrawSplit fetches the caller's stash and splits it at feeBps.
func (s *signer) withdrawSplit(feeBps uint64) (*types.WithdrawWinningPayload, error) {
	var raw string
	if err := s.client.call("lottery_winningStash", []interface{}{s.address()}, &raw); err != nil {
		return nil, err
	}
	stash, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stash %q", raw)
	}
	if stash.Sign() == 0 {
		return nil, errors.New("no winnings to withdraw")
	}
	net, fee, err := lottery.SplitWinnings(stash, feeBps)
	if err != nil {
		return nil, err
	}
	return &types.WithdrawWinningPayload{Net: net.String(), Fee: fee.String()}, nil
}

func parseAmount(raw string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return v, nil
}
