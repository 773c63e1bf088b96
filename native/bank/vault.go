package bank

import (
	"errors"
	"math/big"

	"lotterychain/core/events"
	"lotterychain/core/types"
	"lotterychain/crypto"
)

const EventTypeTransfer = "bank.transfer"

var (
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrInvalidAmount     = errors.New("bank: amount must be positive")

	errNilState = errors.New("bank vault: state not configured")
)

type vaultState interface {
	CurrencyBalance(addr [20]byte) (*big.Int, error)
	SetCurrencyBalance(addr [20]byte, amount *big.Int) error
}

type bankEvent struct{ evt *types.Event }

func (e bankEvent) EventType() string   { return e.evt.Type }
func (e bankEvent) Event() *types.Event { return e.evt }

// Vault holds base-currency balances.
type Vault struct {
	state   vaultState
	emitter events.Emitter
}

func NewVault() *Vault {
	return &Vault{emitter: events.NoopEmitter{}}
}

func (v *Vault) SetState(state vaultState) { v.state = state }

func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

func (v *Vault) Balance(addr [20]byte) (*big.Int, error) {
	if v.state == nil {
		return nil, errNilState
	}
	return v.state.CurrencyBalance(addr)
}

// Credit adds amount to addr without a debit. Only genesis allocation uses it.
func (v *Vault) Credit(addr [20]byte, amount *big.Int) error {
	if v.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal, err := v.state.CurrencyBalance(addr)
	if err != nil {
		return err
	}
	return v.state.SetCurrencyBalance(addr, new(big.Int).Add(bal, amount))
}

// Transfer moves amount of currency between accounts.
func (v *Vault) Transfer(from, to [20]byte, amount *big.Int) error {
	if v.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromBal, err := v.state.CurrencyBalance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	if from == to {
		return nil
	}
	toBal, err := v.state.CurrencyBalance(to)
	if err != nil {
		return err
	}
	if err := v.state.SetCurrencyBalance(from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := v.state.SetCurrencyBalance(to, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	v.emitter.Emit(bankEvent{evt: &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"from":   crypto.AddressFromArray(from).String(),
		"to":     crypto.AddressFromArray(to).String(),
		"amount": amount.String(),
	}}})
	return nil
}
