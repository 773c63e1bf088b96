package state

import (
	"math/big"

	"lotterychain/native/lottery"
)

type storedRound struct {
	Number             uint64
	Status             uint8
	ClosingEpoch       uint64
	BaseWinningFeeRate *big.Int
	Entries            [][20]byte
	Pool               *big.Int
	FeeCollection      *big.Int
}

type storedCustody struct {
	Escrowed     *big.Int
	AccruedFees  *big.Int
	LatestWinner [20]byte
}

type storedPendingBurn struct {
	Amount        *big.Int
	BurnedAtTrack *big.Int
}

type storedResult struct {
	Number        uint64
	Winner        [20]byte
	Pool          *big.Int
	FeeCollection *big.Int
	Entries       uint64
	ClosingEpoch  uint64
	ClosedAt      uint64
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func clampEpoch(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// LotteryRound returns the current round, or the initial closed round when
// no lottery has run yet.
func (m *Manager) LotteryRound() (*lottery.Round, error) {
	var stored storedRound
	ok, err := m.KVGet(lotteryRoundKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return lottery.NewRound(), nil
	}
	round := &lottery.Round{
		Number:             stored.Number,
		Status:             lottery.RoundStatus(stored.Status),
		ClosingEpoch:       int64(stored.ClosingEpoch),
		BaseWinningFeeRate: nonNil(stored.BaseWinningFeeRate),
		Pool:               nonNil(stored.Pool),
		FeeCollection:      nonNil(stored.FeeCollection),
	}
	if len(stored.Entries) > 0 {
		round.Entries = stored.Entries
	}
	return round, nil
}

func (m *Manager) PutLotteryRound(round *lottery.Round) error {
	if round == nil {
		round = lottery.NewRound()
	}
	return m.KVPut(lotteryRoundKey, storedRound{
		Number:             round.Number,
		Status:             uint8(round.Status),
		ClosingEpoch:       clampEpoch(round.ClosingEpoch),
		BaseWinningFeeRate: nonNil(round.BaseWinningFeeRate),
		Entries:            round.Entries,
		Pool:               nonNil(round.Pool),
		FeeCollection:      nonNil(round.FeeCollection),
	})
}

func (m *Manager) LotteryCustody() (*lottery.Custody, error) {
	var stored storedCustody
	ok, err := m.KVGet(lotteryCustodyKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return lottery.NewCustody(), nil
	}
	return &lottery.Custody{
		Escrowed:     nonNil(stored.Escrowed),
		AccruedFees:  nonNil(stored.AccruedFees),
		LatestWinner: stored.LatestWinner,
	}, nil
}

func (m *Manager) PutLotteryCustody(c *lottery.Custody) error {
	if c == nil {
		c = lottery.NewCustody()
	}
	return m.KVPut(lotteryCustodyKey, storedCustody{
		Escrowed:     nonNil(c.Escrowed),
		AccruedFees:  nonNil(c.AccruedFees),
		LatestWinner: c.LatestWinner,
	})
}

func (m *Manager) LotteryStash(addr [20]byte) (*big.Int, error) {
	out := new(big.Int)
	ok, err := m.KVGet(withSuffix(lotteryStashPrefix, addr[:]), out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return out, nil
}

// PutLotteryStash stores the stash for addr; zero removes the entry.
func (m *Manager) PutLotteryStash(addr [20]byte, amount *big.Int) error {
	key := withSuffix(lotteryStashPrefix, addr[:])
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(key)
	}
	return m.KVPut(key, amount)
}

func (m *Manager) LotteryPendingBurn(addr [20]byte) (*lottery.PendingBurn, error) {
	var stored storedPendingBurn
	ok, err := m.KVGet(withSuffix(lotteryBurnPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lottery.PendingBurn{Amount: nonNil(stored.Amount), BurnedAtTrack: nonNil(stored.BurnedAtTrack)}, nil
}

// PutLotteryPendingBurn stores a pending burn; nil clears it.
func (m *Manager) PutLotteryPendingBurn(addr [20]byte, burn *lottery.PendingBurn) error {
	key := withSuffix(lotteryBurnPrefix, addr[:])
	if burn == nil {
		return m.KVDelete(key)
	}
	return m.KVPut(key, storedPendingBurn{Amount: nonNil(burn.Amount), BurnedAtTrack: nonNil(burn.BurnedAtTrack)})
}

func (m *Manager) PutLotteryResult(res *lottery.RoundResult) error {
	if res == nil {
		return nil
	}
	return m.KVPut(uint64Key(lotteryResultPref, res.Number), storedResult{
		Number:        res.Number,
		Winner:        res.Winner,
		Pool:          nonNil(res.Pool),
		FeeCollection: nonNil(res.FeeCollection),
		Entries:       res.Entries,
		ClosingEpoch:  clampEpoch(res.ClosingEpoch),
		ClosedAt:      clampEpoch(res.ClosedAt),
	})
}

// LotteryResult returns the archived outcome of round number, or nil.
func (m *Manager) LotteryResult(number uint64) (*lottery.RoundResult, error) {
	var stored storedResult
	ok, err := m.KVGet(uint64Key(lotteryResultPref, number), &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lottery.RoundResult{
		Number:        stored.Number,
		Winner:        stored.Winner,
		Pool:          nonNil(stored.Pool),
		FeeCollection: nonNil(stored.FeeCollection),
		Entries:       stored.Entries,
		ClosingEpoch:  int64(stored.ClosingEpoch),
		ClosedAt:      int64(stored.ClosedAt),
	}, nil
}

type storedParams struct {
	Owner    [20]byte
	Address  [20]byte
	BetPrice *big.Int
	BetFee   *big.Int
}

// LotteryParams returns the parameters recorded at genesis, or nil.
func (m *Manager) LotteryParams() (*lottery.Params, error) {
	var stored storedParams
	ok, err := m.KVGet(lotteryParamsKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	return &lottery.Params{
		Owner:    stored.Owner,
		Address:  stored.Address,
		BetPrice: nonNil(stored.BetPrice),
		BetFee:   nonNil(stored.BetFee),
	}, nil
}

func (m *Manager) PutLotteryParams(p lottery.Params) error {
	return m.KVPut(lotteryParamsKey, storedParams{
		Owner:    p.Owner,
		Address:  p.Address,
		BetPrice: nonNil(p.BetPrice),
		BetFee:   nonNil(p.BetFee),
	})
}
