package types

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockHeader commits to a block's position and its single transaction.
type BlockHeader struct {
	Height     uint64 `json:"height"`
	Timestamp  uint64 `json:"timestamp"`
	ParentHash []byte `json:"parentHash"`
	TxHash     []byte `json:"txHash"`
}

// Hash returns the Keccak-256 digest of the RLP encoded header.
func (h *BlockHeader) Hash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(h)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Receipt records the outcome of a transaction. Failed transactions keep
// their receipt but carry no state effects.
type Receipt struct {
	TxHash    []byte   `json:"txHash"`
	Height    uint64   `json:"height"`
	Sender    []byte   `json:"sender"`
	Type      TxType   `json:"type"`
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	ErrorKind string   `json:"errorKind,omitempty"`
	Events    []*Event `json:"events,omitempty"`
}

// Block is one entry of the append-only ledger.
type Block struct {
	Header      *BlockHeader `json:"header"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Receipt     *Receipt     `json:"receipt,omitempty"`
}

func NewBlock(header *BlockHeader, tx *Transaction, receipt *Receipt) *Block {
	return &Block{Header: header, Transaction: tx, Receipt: receipt}
}
