package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"lotterychain/core/events"
	"lotterychain/core/types"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnauthorizedMinter    = errors.New("token: caller is not the minter")
	ErrOverflow              = errors.New("token: amount overflows 256 bits")
	ErrInvalidAmount         = errors.New("token: amount must be positive")

	errNilState = errors.New("token ledger: state not configured")
)

// Metadata describes the token. It is written once at genesis.
type Metadata struct {
	Name   string
	Symbol string
	Minter [20]byte
}

type ledgerState interface {
	TokenMetadata() (*Metadata, error)
	TokenBalance(addr [20]byte) (*big.Int, error)
	SetTokenBalance(addr [20]byte, amount *big.Int) error
	TokenAllowance(owner, spender [20]byte) (*big.Int, error)
	SetTokenAllowance(owner, spender [20]byte, amount *big.Int) error
	TokenBurned(addr [20]byte) (*big.Int, error)
	SetTokenBurned(addr [20]byte, amount *big.Int) error
	TokenSupply() (*big.Int, error)
	SetTokenSupply(amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Ledger is a fungible token with allowances and self-burn. Balances are
// bounded to 256 bits.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state ledgerState) { l.state = state }

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l == nil || l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: evt})
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func requirePositive(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return toU256(amount)
}

func add(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return sum, nil
}

func sub(a, b *uint256.Int, short error) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, short
	}
	return diff, nil
}

func (l *Ledger) balance(addr [20]byte) (*uint256.Int, error) {
	raw, err := l.state.TokenBalance(addr)
	if err != nil {
		return nil, err
	}
	return toU256(raw)
}

func (l *Ledger) Name() (string, error) {
	meta, err := l.metadata()
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

func (l *Ledger) Symbol() (string, error) {
	meta, err := l.metadata()
	if err != nil {
		return "", err
	}
	return meta.Symbol, nil
}

func (l *Ledger) metadata() (*Metadata, error) {
	if l.state == nil {
		return nil, errNilState
	}
	meta, err := l.state.TokenMetadata()
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("token: metadata not initialised")
	}
	return meta, nil
}

// Mint creates amount tokens for to. Only the configured minter may mint.
func (l *Ledger) Mint(minter, to [20]byte, amount *big.Int) error {
	meta, err := l.metadata()
	if err != nil {
		return err
	}
	if minter != meta.Minter {
		return ErrUnauthorizedMinter
	}
	amt, err := requirePositive(amount)
	if err != nil {
		return err
	}
	rawSupply, err := l.state.TokenSupply()
	if err != nil {
		return err
	}
	supply, err := toU256(rawSupply)
	if err != nil {
		return err
	}
	newSupply, err := add(supply, amt)
	if err != nil {
		return err
	}
	bal, err := l.balance(to)
	if err != nil {
		return err
	}
	newBal, err := add(bal, amt)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(newSupply.ToBig()); err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to, newBal.ToBig()); err != nil {
		return err
	}
	l.emit(NewMintEvent(to, amount))
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	amt, err := toU256(amount)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenAllowance(owner, spender, amt.ToBig()); err != nil {
		return err
	}
	l.emit(NewApprovalEvent(owner, spender, amt.ToBig()))
	return nil
}

func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return l.state.TokenAllowance(owner, spender)
}

func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	bal, err := l.balance(addr)
	if err != nil {
		return nil, err
	}
	return bal.ToBig(), nil
}

// BurnedBy returns the cumulative amount addr has burned.
func (l *Ledger) BurnedBy(addr [20]byte) (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return l.state.TokenBurned(addr)
}

func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l.state == nil {
		return nil, errNilState
	}
	return l.state.TokenSupply()
}

// Transfer moves amount from from to to.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	amt, err := requirePositive(amount)
	if err != nil {
		return err
	}
	if err := l.move(from, to, amt); err != nil {
		return err
	}
	l.emit(NewTransferEvent(from, to, amount))
	return nil
}

// TransferFrom moves amount out of from on behalf of spender, consuming
// allowance.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	amt, err := requirePositive(amount)
	if err != nil {
		return err
	}
	rawAllowed, err := l.state.TokenAllowance(from, spender)
	if err != nil {
		return err
	}
	allowed, err := toU256(rawAllowed)
	if err != nil {
		return err
	}
	remaining, err := sub(allowed, amt, ErrInsufficientAllowance)
	if err != nil {
		return err
	}
	if err := l.move(from, to, amt); err != nil {
		return err
	}
	if err := l.state.SetTokenAllowance(from, spender, remaining.ToBig()); err != nil {
		return err
	}
	l.emit(NewTransferEvent(from, to, amount))
	return nil
}

// Burn destroys amount of holder's tokens and records it against holder.
func (l *Ledger) Burn(holder [20]byte, amount *big.Int) error {
	if l.state == nil {
		return errNilState
	}
	amt, err := requirePositive(amount)
	if err != nil {
		return err
	}
	bal, err := l.balance(holder)
	if err != nil {
		return err
	}
	newBal, err := sub(bal, amt, ErrInsufficientBalance)
	if err != nil {
		return err
	}
	rawSupply, err := l.state.TokenSupply()
	if err != nil {
		return err
	}
	supply, err := toU256(rawSupply)
	if err != nil {
		return err
	}
	newSupply, err := sub(supply, amt, ErrInsufficientBalance)
	if err != nil {
		return err
	}
	rawBurned, err := l.state.TokenBurned(holder)
	if err != nil {
		return err
	}
	burned, err := toU256(rawBurned)
	if err != nil {
		return err
	}
	newBurned, err := add(burned, amt)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(holder, newBal.ToBig()); err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(newSupply.ToBig()); err != nil {
		return err
	}
	if err := l.state.SetTokenBurned(holder, newBurned.ToBig()); err != nil {
		return err
	}
	l.emit(NewBurnEvent(holder, amount))
	return nil
}

func (l *Ledger) move(from, to [20]byte, amt *uint256.Int) error {
	fromBal, err := l.balance(from)
	if err != nil {
		return err
	}
	newFrom, err := sub(fromBal, amt, ErrInsufficientBalance)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	toBal, err := l.balance(to)
	if err != nil {
		return err
	}
	newTo, err := add(toBal, amt)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(from, newFrom.ToBig()); err != nil {
		return err
	}
	return l.state.SetTokenBalance(to, newTo.ToBig())
}
