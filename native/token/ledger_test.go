package token

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

type pair struct{ owner, spender [20]byte }

type mockState struct {
	meta       *Metadata
	balances   map[[20]byte]*big.Int
	allowances map[pair]*big.Int
	burned     map[[20]byte]*big.Int
	supply     *big.Int
}

func newMockState(minter [20]byte) *mockState {
	return &mockState{
		meta:       &Metadata{Name: "Lottery Token", Symbol: "LT", Minter: minter},
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[pair]*big.Int),
		burned:     make(map[[20]byte]*big.Int),
		supply:     big.NewInt(0),
	}
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (m *mockState) TokenMetadata() (*Metadata, error) { return m.meta, nil }
func (m *mockState) TokenBalance(a [20]byte) (*big.Int, error) {
	return orZero(m.balances[a]), nil
}
func (m *mockState) SetTokenBalance(a [20]byte, v *big.Int) error {
	m.balances[a] = orZero(v)
	return nil
}
func (m *mockState) TokenAllowance(o, s [20]byte) (*big.Int, error) {
	return orZero(m.allowances[pair{o, s}]), nil
}
func (m *mockState) SetTokenAllowance(o, s [20]byte, v *big.Int) error {
	m.allowances[pair{o, s}] = orZero(v)
	return nil
}
func (m *mockState) TokenBurned(a [20]byte) (*big.Int, error) { return orZero(m.burned[a]), nil }
func (m *mockState) SetTokenBurned(a [20]byte, v *big.Int) error {
	m.burned[a] = orZero(v)
	return nil
}
func (m *mockState) TokenSupply() (*big.Int, error)    { return orZero(m.supply), nil }
func (m *mockState) SetTokenSupply(v *big.Int) error { m.supply = orZero(v); return nil }

func newTestAddress(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func newTestLedger(t *testing.T) (*Ledger, *mockState, [20]byte) {
	t.Helper()
	minter := newTestAddress(0xee)
	state := newMockState(minter)
	ledger := NewLedger()
	ledger.SetState(state)
	return ledger, state, minter
}

func TestMintRequiresMinter(t *testing.T) {
	ledger, _, minter := newTestLedger(t)
	holder := newTestAddress(0x01)

	require.ErrorIs(t, ledger.Mint(holder, holder, big.NewInt(10)), ErrUnauthorizedMinter)
	require.ErrorIs(t, ledger.Mint(minter, holder, big.NewInt(0)), ErrInvalidAmount)
	require.NoError(t, ledger.Mint(minter, holder, big.NewInt(10)))

	bal, err := ledger.BalanceOf(holder)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal.Int64())
	supply, err := ledger.TotalSupply()
	require.NoError(t, err)
	require.Equal(t, int64(10), supply.Int64())

	name, err := ledger.Name()
	require.NoError(t, err)
	require.Equal(t, "Lottery Token", name)
}

func TestMintRejectsOverflow(t *testing.T) {
	ledger, state, minter := newTestLedger(t)
	holder := newTestAddress(0x01)
	max := new(uint256.Int).SetAllOne().ToBig()
	state.balances[holder] = max
	state.supply = max

	require.ErrorIs(t, ledger.Mint(minter, holder, big.NewInt(1)), ErrOverflow)
	require.Equal(t, max, state.balances[holder])
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _, minter := newTestLedger(t)
	owner, spender, dest := newTestAddress(0x01), newTestAddress(0x02), newTestAddress(0x03)
	require.NoError(t, ledger.Mint(minter, owner, big.NewInt(100)))

	require.ErrorIs(t, ledger.TransferFrom(spender, owner, dest, big.NewInt(10)), ErrInsufficientAllowance)

	require.NoError(t, ledger.Approve(owner, spender, big.NewInt(60)))
	require.NoError(t, ledger.TransferFrom(spender, owner, dest, big.NewInt(51)))

	allowance, err := ledger.Allowance(owner, spender)
	require.NoError(t, err)
	require.Equal(t, int64(9), allowance.Int64())
	destBal, _ := ledger.BalanceOf(dest)
	require.Equal(t, int64(51), destBal.Int64())

	require.ErrorIs(t, ledger.TransferFrom(spender, owner, dest, big.NewInt(10)), ErrInsufficientAllowance)
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger, state, minter := newTestLedger(t)
	from, to := newTestAddress(0x01), newTestAddress(0x02)
	require.NoError(t, ledger.Mint(minter, from, big.NewInt(5)))

	require.ErrorIs(t, ledger.Transfer(from, to, big.NewInt(6)), ErrInsufficientBalance)
	require.Equal(t, int64(5), state.balances[from].Int64())

	require.NoError(t, ledger.Transfer(from, from, big.NewInt(5)))
	require.Equal(t, int64(5), state.balances[from].Int64())
}

func TestBurnTracksCumulativeAmount(t *testing.T) {
	ledger, _, minter := newTestLedger(t)
	holder := newTestAddress(0x01)
	require.NoError(t, ledger.Mint(minter, holder, big.NewInt(100)))

	require.NoError(t, ledger.Burn(holder, big.NewInt(30)))
	require.NoError(t, ledger.Burn(holder, big.NewInt(20)))
	require.ErrorIs(t, ledger.Burn(holder, big.NewInt(51)), ErrInsufficientBalance)

	burned, err := ledger.BurnedBy(holder)
	require.NoError(t, err)
	require.Equal(t, int64(50), burned.Int64())
	supply, _ := ledger.TotalSupply()
	require.Equal(t, int64(50), supply.Int64())
}
