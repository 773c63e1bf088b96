package core

import (
	"math/big"

	"lotterychain/core/types"
	"lotterychain/native/lottery"
)

// LotteryStatus is a consistent snapshot of the public lottery accessors.
type LotteryStatus struct {
	Owner         [20]byte
	Custody       [20]byte
	BetPrice      *big.Int
	BetFee        *big.Int
	Round         *lottery.Round
	Open          bool
	ClosingEpoch  int64
	PayoutPool    *big.Int
	FeeCollection *big.Int
	LatestWinner  [20]byte
	Escrowed      *big.Int
	AccruedFees   *big.Int
}

// LotteryStatus reads every round-level accessor under one lock.
func (n *Node) LotteryStatus() (*LotteryStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	round, err := n.lottery.CurrentRound()
	if err != nil {
		return nil, err
	}
	winner, err := n.lottery.LatestLotteryWinner()
	if err != nil {
		return nil, err
	}
	escrowed, err := n.lottery.Escrowed()
	if err != nil {
		return nil, err
	}
	accrued, err := n.lottery.AccruedFees()
	if err != nil {
		return nil, err
	}
	return &LotteryStatus{
		Owner:         n.lottery.Owner(),
		Custody:       n.lottery.Address(),
		BetPrice:      n.lottery.BetPrice(),
		BetFee:        n.lottery.BetFee(),
		Round:         round,
		Open:          round.Open(),
		ClosingEpoch:  round.ClosingEpoch,
		PayoutPool:    new(big.Int).Set(round.Pool),
		FeeCollection: new(big.Int).Set(round.FeeCollection),
		LatestWinner:  winner,
		Escrowed:      escrowed,
		AccruedFees:   accrued,
	}, nil
}

func (n *Node) LotteryOwner() [20]byte { return n.params.Owner }

// CustodyAddress is the account holding escrowed currency and pooled tokens.
func (n *Node) CustodyAddress() [20]byte { return n.params.Address }

func (n *Node) BetPrice() *big.Int { return new(big.Int).Set(n.params.BetPrice) }

func (n *Node) BetFee() *big.Int { return new(big.Int).Set(n.params.BetFee) }

func (n *Node) LotteryOpen() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.LotteryOpen()
}

func (n *Node) LotteryClosingEpochInSeconds() (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.LotteryClosingEpochInSeconds()
}

func (n *Node) CurrentLotteryPayoutPool() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.CurrentLotteryPayoutPool()
}

func (n *Node) FeeCollection() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.FeeCollection()
}

func (n *Node) LatestLotteryWinner() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.LatestLotteryWinner()
}

func (n *Node) WinningStash(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.WinningStash(addr)
}

func (n *Node) PendingBurn(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lottery.PendingBurn(addr)
}

// RoundResult returns the outcome of a closed round, or nil.
func (n *Node) RoundResult(number uint64) (*lottery.RoundResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.LotteryResult(number)
}

// TokenInfo describes the lottery token.
type TokenInfo struct {
	Name        string
	Symbol      string
	TotalSupply *big.Int
}

func (n *Node) TokenInfo() (*TokenInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	name, err := n.token.Name()
	if err != nil {
		return nil, err
	}
	symbol, err := n.token.Symbol()
	if err != nil {
		return nil, err
	}
	supply, err := n.token.TotalSupply()
	if err != nil {
		return nil, err
	}
	return &TokenInfo{Name: name, Symbol: symbol, TotalSupply: supply}, nil
}

func (n *Node) TokenBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.BalanceOf(addr)
}

func (n *Node) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.Allowance(owner, spender)
}

func (n *Node) TokenBurned(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.BurnedBy(addr)
}

func (n *Node) CurrencyBalance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.bank.Balance(addr)
}

// Nonce returns the next nonce the ledger expects from addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.AccountNonce(addr)
}

// Height returns the latest block height.
func (n *Node) Height() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	height, _, err := n.state.ChainHead()
	return height, err
}

func (n *Node) BlockByHeight(height uint64) (*types.Block, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Block(height)
}

// Receipt returns the receipt of an included transaction, or nil.
func (n *Node) Receipt(txHash []byte) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	block, err := n.state.BlockByTxHash(txHash)
	if err != nil || block == nil {
		return nil, err
	}
	return block.Receipt, nil
}
