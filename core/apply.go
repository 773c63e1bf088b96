package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
	"lotterychain/observability"
)

// call applies one decoded transaction on behalf of sender.
type call func(n *Node, sender [20]byte) error

// decodeCall validates the payload of tx up front so that malformed
// transactions are rejected before they reach the ledger.
func decodeCall(tx *types.Transaction) (call, error) {
	switch tx.Type {
	case types.TxTypeTransfer:
		to, err := addressBytes(tx.To)
		if err != nil {
			return nil, err
		}
		value := txValue(tx)
		return func(n *Node, sender [20]byte) error {
			if to == n.params.Address {
				return lottery.ErrDirectCustodyTransfer
			}
			return n.bank.Transfer(sender, to, value)
		}, nil

	case types.TxTypeSellTokens:
		value := txValue(tx)
		return func(n *Node, sender [20]byte) error {
			return n.lottery.SellTokens(sender, value)
		}, nil

	case types.TxTypeStartLottery:
		var payload types.StartLotteryPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		rate, err := parseAmount(payload.BaseWinningFeeRate, true)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			_, err := n.lottery.StartLottery(sender, payload.ClosingEpoch, rate)
			return err
		}, nil

	case types.TxTypeBet:
		return func(n *Node, sender [20]byte) error {
			_, err := n.lottery.Bet(sender)
			return err
		}, nil

	case types.TxTypeEndLottery:
		return func(n *Node, sender [20]byte) error {
			result, err := n.lottery.EndLottery(sender)
			if err != nil {
				return err
			}
			observability.Lottery().RecordRoundClosed(result.Entries)
			return nil
		}, nil

	case types.TxTypeWithdrawWinning:
		var payload types.WithdrawWinningPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		net, err := parseAmount(payload.Net, false)
		if err != nil {
			return nil, err
		}
		fee, err := parseAmount(payload.Fee, false)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			return n.lottery.WithdrawWinning(sender, net, fee)
		}, nil

	case types.TxTypeTrackBurn:
		amount, err := decodeAmount(tx.Data)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			return n.lottery.TrackLatestBurn(sender, amount)
		}, nil

	case types.TxTypeRedeemBurn:
		return func(n *Node, sender [20]byte) error {
			_, err := n.lottery.WithdrawLastBurnToEther(sender)
			return err
		}, nil

	case types.TxTypeWithdrawFees:
		return func(n *Node, sender [20]byte) error {
			_, err := n.lottery.WithdrawFees(sender)
			return err
		}, nil

	case types.TxTypeTokenApprove:
		var payload types.TokenApprovePayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		spender, err := parsePayloadAddress(payload.Spender)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(payload.Amount, false)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			return n.token.Approve(sender, spender, amount)
		}, nil

	case types.TxTypeTokenTransfer:
		var payload types.TokenTransferPayload
		if err := decodePayload(tx.Data, &payload); err != nil {
			return nil, err
		}
		to, err := parsePayloadAddress(payload.To)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(payload.Amount, false)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			if to == n.params.Address {
				return lottery.ErrDirectCustodyTransfer
			}
			return n.token.Transfer(sender, to, amount)
		}, nil

	case types.TxTypeTokenBurn:
		amount, err := decodeAmount(tx.Data)
		if err != nil {
			return nil, err
		}
		return func(n *Node, sender [20]byte) error {
			return n.token.Burn(sender, amount)
		}, nil
	}
	return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTxType, byte(tx.Type))
}

func decodePayload(data []byte, out interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func decodeAmount(data []byte) (*big.Int, error) {
	var payload types.AmountPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	return parseAmount(payload.Amount, false)
}

// parseAmount parses a base-10 amount. Sign checks belong to the engines so
// that negative amounts are recorded as failed transactions with a kind.
func parseAmount(raw string, allowEmpty bool) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		if allowEmpty {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("%w: amount required", ErrInvalidPayload)
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: invalid amount %q", ErrInvalidPayload, raw)
	}
	return v, nil
}

func parsePayloadAddress(raw string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return addr, nil
}

func addressBytes(raw []byte) ([20]byte, error) {
	var out [20]byte
	if len(raw) != len(out) {
		return out, fmt.Errorf("%w: recipient must be 20 bytes", ErrInvalidPayload)
	}
	copy(out[:], raw)
	return out, nil
}

func txValue(tx *types.Transaction) *big.Int {
	if tx.Value == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(tx.Value)
}
