package state

import (
	"math/big"

	"lotterychain/native/token"
)

type storedTokenMeta struct {
	Name   string
	Symbol string
	Minter [20]byte
}

func (m *Manager) TokenMetadata() (*token.Metadata, error) {
	var stored storedTokenMeta
	ok, err := m.KVGet(tokenMetaKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &token.Metadata{Name: stored.Name, Symbol: stored.Symbol, Minter: stored.Minter}, nil
}

func (m *Manager) SetTokenMetadata(meta *token.Metadata) error {
	return m.KVPut(tokenMetaKey, storedTokenMeta{Name: meta.Name, Symbol: meta.Symbol, Minter: meta.Minter})
}

func (m *Manager) bigValue(key []byte) (*big.Int, error) {
	out := new(big.Int)
	ok, err := m.KVGet(key, out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return out, nil
}

func (m *Manager) putBigValue(key []byte, v *big.Int) error {
	if v == nil || v.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, v)
}

func (m *Manager) TokenBalance(addr [20]byte) (*big.Int, error) {
	return m.bigValue(withSuffix(tokenBalancePrefix, addr[:]))
}

func (m *Manager) SetTokenBalance(addr [20]byte, amount *big.Int) error {
	return m.putBigValue(withSuffix(tokenBalancePrefix, addr[:]), amount)
}

func (m *Manager) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	return m.bigValue(withSuffix(tokenAllowancePrefix, owner[:], spender[:]))
}

func (m *Manager) SetTokenAllowance(owner, spender [20]byte, amount *big.Int) error {
	return m.putBigValue(withSuffix(tokenAllowancePrefix, owner[:], spender[:]), amount)
}

func (m *Manager) TokenBurned(addr [20]byte) (*big.Int, error) {
	return m.bigValue(withSuffix(tokenBurnedPrefix, addr[:]))
}

func (m *Manager) SetTokenBurned(addr [20]byte, amount *big.Int) error {
	return m.putBigValue(withSuffix(tokenBurnedPrefix, addr[:]), amount)
}

func (m *Manager) TokenSupply() (*big.Int, error) {
	return m.bigValue(tokenSupplyKey)
}

func (m *Manager) SetTokenSupply(amount *big.Int) error {
	return m.putBigValue(tokenSupplyKey, amount)
}
