package lottery

import (
	"fmt"
	"math/big"
)

// DefaultWinningFeeBps is the conventional share of a stash paid as fee when
// a winner withdraws.
const DefaultWinningFeeBps = 3000

const bpsDenominator = 10_000

// SplitWinnings divides stash into the net amount paid out and the fee left
// with the engine. The fee is rounded down so net+fee always equals stash.
func SplitWinnings(stash *big.Int, feeBps uint64) (net, fee *big.Int, err error) {
	if stash == nil || stash.Sign() < 0 {
		return nil, nil, fmt.Errorf("lottery: stash must not be negative")
	}
	if feeBps > bpsDenominator {
		return nil, nil, fmt.Errorf("lottery: fee bps %d exceeds %d", feeBps, bpsDenominator)
	}
	fee = new(big.Int).Mul(stash, new(big.Int).SetUint64(feeBps))
	fee.Quo(fee, big.NewInt(bpsDenominator))
	net = new(big.Int).Sub(stash, fee)
	return net, fee, nil
}
