package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeTransfer        TxType = 0x01 // Base-currency transfer
	TxTypeSellTokens      TxType = 0x10 // Exchange Value currency for lottery tokens
	TxTypeStartLottery    TxType = 0x11 // Owner opens a round
	TxTypeBet             TxType = 0x12 // Place one wager
	TxTypeEndLottery      TxType = 0x13 // Close the round once the deadline passed
	TxTypeWithdrawWinning TxType = 0x14 // Claim a stash as net + fee
	TxTypeTrackBurn       TxType = 0x15 // Declare an upcoming token burn
	TxTypeRedeemBurn      TxType = 0x16 // Redeem a tracked burn for currency
	TxTypeWithdrawFees    TxType = 0x17 // Owner collects accumulated fees
	TxTypeTokenApprove    TxType = 0x20
	TxTypeTokenTransfer   TxType = 0x21
	TxTypeTokenBurn       TxType = 0x22
)

var txTypeNames = map[TxType]string{
	TxTypeTransfer:        "transfer",
	TxTypeSellTokens:      "sell_tokens",
	TxTypeStartLottery:    "start_lottery",
	TxTypeBet:             "bet",
	TxTypeEndLottery:      "end_lottery",
	TxTypeWithdrawWinning: "withdraw_winning",
	TxTypeTrackBurn:       "track_burn",
	TxTypeRedeemBurn:      "redeem_burn",
	TxTypeWithdrawFees:    "withdraw_fees",
	TxTypeTokenApprove:    "token_approve",
	TxTypeTokenTransfer:   "token_transfer",
	TxTypeTokenBurn:       "token_burn",
}

// String returns the stable label used in logs and metrics.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the type is understood by the node.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

var ErrMissingSignature = errors.New("types: transaction is not signed")

// Transaction is a signed instruction submitted to the ledger. Data carries a
// JSON payload whose shape depends on Type.
type Transaction struct {
	ChainID uint64   `json:"chainId"`
	Type    TxType   `json:"type"`
	Nonce   uint64   `json:"nonce"`
	To      []byte   `json:"to,omitempty"`
	Value   *big.Int `json:"value,omitempty"`
	Data    []byte   `json:"data,omitempty"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

type signingPayload struct {
	ChainID uint64
	Type    uint8
	Nonce   uint64
	To      []byte
	Value   *big.Int
	Data    []byte
}

// Hash returns the Keccak-256 digest of the RLP encoded unsigned fields.
func (tx *Transaction) Hash() ([]byte, error) {
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	encoded, err := rlp.EncodeToBytes(signingPayload{
		ChainID: tx.ChainID,
		Type:    uint8(tx.Type),
		Nonce:   tx.Nonce,
		To:      tx.To,
		Value:   value,
		Data:    tx.Data,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the sender address from the signature.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return nil, errors.New("types: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

// Sender returns From as a fixed-size address.
func (tx *Transaction) Sender() ([20]byte, error) {
	var out [20]byte
	from, err := tx.From()
	if err != nil {
		return out, err
	}
	copy(out[:], from)
	return out, nil
}
