package lottery

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// RandomSource supplies the entropy used to draw a winner. The ledger's
// default source is weak: whoever triggers EndLottery can influence the
// block context it is derived from.
type RandomSource interface {
	Seed(caller [20]byte) (*big.Int, error)
}

// SeedFunc adapts a function to RandomSource.
type SeedFunc func(caller [20]byte) (*big.Int, error)

func (f SeedFunc) Seed(caller [20]byte) (*big.Int, error) { return f(caller) }

// BlockContext is the execution environment of the transaction being
// applied.
type BlockContext struct {
	ParentHash []byte
	Height     uint64
	Timestamp  int64
}

// EnvironmentEntropy hashes the pending block context together with the
// caller. It is predictable to anyone who can choose when to call.
type EnvironmentEntropy struct {
	Block func() BlockContext
}

// Seed implements RandomSource.
func (s EnvironmentEntropy) Seed(caller [20]byte) (*big.Int, error) {
	var ctx BlockContext
	if s.Block != nil {
		ctx = s.Block()
	}
	buf := make([]byte, 0, len(ctx.ParentHash)+16+len(caller))
	buf = append(buf, ctx.ParentHash...)
	buf = binary.BigEndian.AppendUint64(buf, ctx.Height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(ctx.Timestamp))
	buf = append(buf, caller[:]...)
	return new(big.Int).SetBytes(ethcrypto.Keccak256(buf)), nil
}

// SelectWinner returns entries[seed mod len(entries)] and its index.
func SelectWinner(entries [][20]byte, seed *big.Int) ([20]byte, int, error) {
	if len(entries) == 0 {
		return [20]byte{}, 0, errNoEntries
	}
	if seed == nil {
		return [20]byte{}, 0, errNilSeed
	}
	mod := new(big.Int).Mod(seed, big.NewInt(int64(len(entries))))
	idx := int(mod.Int64())
	return entries[idx], idx, nil
}
