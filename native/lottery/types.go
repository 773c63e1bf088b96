package lottery

import (
	"fmt"
	"math/big"
)

// RoundStatus captures whether the current round accepts wagers.
type RoundStatus uint8

const (
	RoundClosed RoundStatus = iota
	RoundOpen
)

func (s RoundStatus) String() string {
	switch s {
	case RoundClosed:
		return "closed"
	case RoundOpen:
		return "open"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Params are fixed when the ledger is initialised.
type Params struct {
	Owner    [20]byte
	Address  [20]byte // custody account on the token ledger and currency vault
	BetPrice *big.Int
	BetFee   *big.Int
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.Owner == ([20]byte{}) || p.Address == ([20]byte{}) {
		return errZeroAddress
	}
	if p.Owner == p.Address {
		return fmt.Errorf("lottery: owner must differ from custody address")
	}
	if p.BetPrice == nil || p.BetPrice.Sign() <= 0 {
		return fmt.Errorf("lottery: bet price must be positive")
	}
	if p.BetFee == nil || p.BetFee.Sign() < 0 {
		return fmt.Errorf("lottery: bet fee must not be negative")
	}
	return nil
}

// Stake is the token amount moved by a single wager.
func (p Params) Stake() *big.Int {
	return new(big.Int).Add(cloneBigInt(p.BetPrice), cloneBigInt(p.BetFee))
}

// Round is the single current lottery round. Entries keeps bet order and
// duplicates; a participant with k entries wins with probability k/len.
type Round struct {
	Number             uint64
	Status             RoundStatus
	ClosingEpoch       int64
	BaseWinningFeeRate *big.Int
	Entries            [][20]byte
	Pool               *big.Int
	FeeCollection      *big.Int
}

// NewRound returns the closed round that exists before any lottery started.
func NewRound() *Round {
	return &Round{
		Status:             RoundClosed,
		BaseWinningFeeRate: big.NewInt(0),
		Pool:               big.NewInt(0),
		FeeCollection:      big.NewInt(0),
	}
}

// Open reports whether the round accepts wagers.
func (r *Round) Open() bool { return r != nil && r.Status == RoundOpen }

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	clone.BaseWinningFeeRate = cloneBigInt(r.BaseWinningFeeRate)
	clone.Pool = cloneBigInt(r.Pool)
	clone.FeeCollection = cloneBigInt(r.FeeCollection)
	if len(r.Entries) > 0 {
		clone.Entries = append([][20]byte(nil), r.Entries...)
	} else {
		clone.Entries = nil
	}
	return &clone
}

// EntryCount returns how many entries the given address holds.
func (r *Round) EntryCount(addr [20]byte) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, entry := range r.Entries {
		if entry == addr {
			n++
		}
	}
	return n
}

// Custody tracks engine-wide balances that outlive individual rounds.
type Custody struct {
	Escrowed     *big.Int // base currency held against minted tokens
	AccruedFees  *big.Int // fee tokens carried over from finished rounds
	LatestWinner [20]byte
}

func NewCustody() *Custody {
	return &Custody{Escrowed: big.NewInt(0), AccruedFees: big.NewInt(0)}
}

func (c *Custody) Clone() *Custody {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Escrowed = cloneBigInt(c.Escrowed)
	clone.AccruedFees = cloneBigInt(c.AccruedFees)
	return &clone
}

// PendingBurn is a declared redemption. BurnedAtTrack snapshots the holder's
// cumulative burned amount so redemption can verify a fresh burn happened.
type PendingBurn struct {
	Amount        *big.Int
	BurnedAtTrack *big.Int
}

func (p *PendingBurn) Clone() *PendingBurn {
	if p == nil {
		return nil
	}
	return &PendingBurn{Amount: cloneBigInt(p.Amount), BurnedAtTrack: cloneBigInt(p.BurnedAtTrack)}
}

// RoundResult is the archived outcome of a closed round.
type RoundResult struct {
	Number        uint64
	Winner        [20]byte
	Pool          *big.Int
	FeeCollection *big.Int
	Entries       uint64
	ClosingEpoch  int64
	ClosedAt      int64
}

func (r *RoundResult) Clone() *RoundResult {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Pool = cloneBigInt(r.Pool)
	clone.FeeCollection = cloneBigInt(r.FeeCollection)
	return &clone
}

// HasWinner reports whether the round had at least one entry.
func (r *RoundResult) HasWinner() bool {
	return r != nil && r.Winner != ([20]byte{})
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
