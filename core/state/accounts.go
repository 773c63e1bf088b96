package state

import (
	"encoding/json"
	"math/big"

	"lotterychain/core/types"
)

func (m *Manager) CurrencyBalance(addr [20]byte) (*big.Int, error) {
	return m.bigValue(withSuffix(currencyBalancePrefix, addr[:]))
}

func (m *Manager) SetCurrencyBalance(addr [20]byte, amount *big.Int) error {
	return m.putBigValue(withSuffix(currencyBalancePrefix, addr[:]), amount)
}

// AccountNonce returns the next nonce expected from addr.
func (m *Manager) AccountNonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(withSuffix(accountNoncePrefix, addr[:]), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (m *Manager) SetAccountNonce(addr [20]byte, nonce uint64) error {
	return m.KVPut(withSuffix(accountNoncePrefix, addr[:]), nonce)
}

// ChainHead returns the height of the latest block and whether any exists.
func (m *Manager) ChainHead() (uint64, bool, error) {
	var height uint64
	ok, err := m.KVGet(chainHeadKey, &height)
	return height, ok, err
}

// AppendBlock stores block at its height, indexes its transaction hash and
// advances the head.
func (m *Manager) AppendBlock(block *types.Block) error {
	encoded, err := json.Marshal(block)
	if err != nil {
		return err
	}
	height := block.Header.Height
	if err := m.PutBlob(uint64Key(chainBlockPrefix, height), encoded); err != nil {
		return err
	}
	if len(block.Header.TxHash) > 0 {
		if err := m.KVPut(withSuffix(chainTxPrefix, block.Header.TxHash), height); err != nil {
			return err
		}
	}
	return m.KVPut(chainHeadKey, height)
}

// Block returns the block at height, or nil.
func (m *Manager) Block(height uint64) (*types.Block, error) {
	data, err := m.Blob(uint64Key(chainBlockPrefix, height))
	if err != nil || len(data) == 0 {
		return nil, err
	}
	block := new(types.Block)
	if err := json.Unmarshal(data, block); err != nil {
		return nil, err
	}
	return block, nil
}

// BlockByTxHash resolves the block containing the transaction, or nil.
func (m *Manager) BlockByTxHash(hash []byte) (*types.Block, error) {
	var height uint64
	ok, err := m.KVGet(withSuffix(chainTxPrefix, hash), &height)
	if err != nil || !ok {
		return nil, err
	}
	return m.Block(height)
}

// ChainID returns the chain id recorded at genesis, or zero.
func (m *Manager) ChainID() (uint64, error) {
	var id uint64
	if _, err := m.KVGet(chainIDKey, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (m *Manager) SetChainID(id uint64) error {
	return m.KVPut(chainIDKey, id)
}
