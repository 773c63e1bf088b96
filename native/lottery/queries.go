package lottery

import "math/big"

func (e *Engine) Owner() [20]byte { return e.params.Owner }

// Address is the custody account holding escrowed currency and tokens.
func (e *Engine) Address() [20]byte { return e.params.Address }

func (e *Engine) BetPrice() *big.Int { return cloneBigInt(e.params.BetPrice) }

func (e *Engine) BetFee() *big.Int { return cloneBigInt(e.params.BetFee) }

// CurrentRound returns a copy of the current round.
func (e *Engine) CurrentRound() (*Round, error) {
	if e.state == nil {
		return nil, errNilState
	}
	return e.state.LotteryRound()
}

func (e *Engine) LotteryOpen() (bool, error) {
	round, err := e.CurrentRound()
	if err != nil {
		return false, err
	}
	return round.Open(), nil
}

func (e *Engine) LotteryClosingEpochInSeconds() (int64, error) {
	round, err := e.CurrentRound()
	if err != nil {
		return 0, err
	}
	return round.ClosingEpoch, nil
}

func (e *Engine) CurrentLotteryPayoutPool() (*big.Int, error) {
	round, err := e.CurrentRound()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(round.Pool), nil
}

func (e *Engine) FeeCollection() (*big.Int, error) {
	round, err := e.CurrentRound()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(round.FeeCollection), nil
}

// LatestLotteryWinner returns the winner of the most recently closed round,
// or the zero address when that round had no entries.
func (e *Engine) LatestLotteryWinner() ([20]byte, error) {
	if e.state == nil {
		return [20]byte{}, errNilState
	}
	custody, err := e.state.LotteryCustody()
	if err != nil {
		return [20]byte{}, err
	}
	return custody.LatestWinner, nil
}

func (e *Engine) WinningStash(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	stash, err := e.state.LotteryStash(addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(stash), nil
}

// PendingBurn returns the tracked burn amount for addr, zero when none.
func (e *Engine) PendingBurn(addr [20]byte) (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	pending, err := e.state.LotteryPendingBurn(addr)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return big.NewInt(0), nil
	}
	return cloneBigInt(pending.Amount), nil
}

func (e *Engine) Escrowed() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	custody, err := e.state.LotteryCustody()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(custody.Escrowed), nil
}

func (e *Engine) AccruedFees() (*big.Int, error) {
	if e.state == nil {
		return nil, errNilState
	}
	custody, err := e.state.LotteryCustody()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(custody.AccruedFees), nil
}
