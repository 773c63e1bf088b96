package token

import (
	"math/big"

	"lotterychain/core/types"
	"lotterychain/crypto"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
	EventTypeMint     = "token.mint"
	EventTypeBurn     = "token.burn"
)

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func addr(a [20]byte) string { return crypto.AddressFromArray(a).String() }

func NewTransferEvent(from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"from":   addr(from),
		"to":     addr(to),
		"amount": amountString(amount),
	}}
}

func NewApprovalEvent(owner, spender [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeApproval, Attributes: map[string]string{
		"owner":   addr(owner),
		"spender": addr(spender),
		"amount":  amountString(amount),
	}}
}

func NewMintEvent(to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeMint, Attributes: map[string]string{
		"to":     addr(to),
		"amount": amountString(amount),
	}}
}

func NewBurnEvent(holder [20]byte, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBurn, Attributes: map[string]string{
		"holder": addr(holder),
		"amount": amountString(amount),
	}}
}
