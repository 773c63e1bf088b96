package lottery

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected operation unwraps to exactly one of them.
var (
	ErrAuthorization = errors.New("lottery: authorization error")
	ErrTiming        = errors.New("lottery: timing error")
	ErrState         = errors.New("lottery: state error")
	ErrArithmetic    = errors.New("lottery: arithmetic error")
)

var (
	errNilState    = errors.New("lottery engine: state not configured")
	errNilToken    = errors.New("lottery engine: token ledger not configured")
	errNilVault    = errors.New("lottery engine: currency vault not configured")
	errNilRandom   = errors.New("lottery engine: random source not configured")
	errNoEntries   = errors.New("lottery: cannot select a winner without entries")
	errNilSeed     = errors.New("lottery: random source returned no seed")
	errZeroAddress = errors.New("lottery: zero address")
)

const (
	reasonNotOwner          = "Lottery: Caller is not the owner!"
	reasonClosingInPast     = "Lottery: Closing time must be in the future!"
	reasonAlreadyOpen       = "Lottery: Lottery already open!"
	reasonNegativeFeeRate   = "Lottery: Winning fee rate must not be negative!"
	reasonNotOpenForBets    = "Lottery: Not yet open for bets!"
	reasonBettingClosed     = "Lottery: Betting window closed!"
	reasonOwnerBet          = "Lottery: Owner not allowed to bet!"
	reasonStillOpen         = "Lottery: Betting window still open!"
	reasonNotRunning        = "Lottery: No lottery in progress!"
	reasonNoWinnings        = "Lottery: No winnings to withdraw!"
	reasonNegativeSplit     = "Lottery: Withdrawal amounts must not be negative!"
	reasonSplitMismatch     = "Lottery: Net amount plus fee must equal the winning stash!"
	reasonNonPositiveAmount = "Lottery: Amount must be greater than zero!"
	reasonBurnExceeds       = "Lottery: Burn amount exceeds token balance!"
	reasonNoPendingBurn     = "Lottery: No pending burn to redeem!"
	reasonBurnNotObserved   = "Lottery: Tracked burn has not happened yet!"
	reasonEscrowShort       = "Lottery: Escrowed balance too low!"
	reasonLotteryOpen       = "Lottery: Lottery still open!"
	reasonNoFees            = "Lottery: No fees to withdraw!"
	reasonReentrant         = "Lottery: Reentrant call!"
	reasonDirectCustody     = "Lottery: Custody only receives funds through lottery operations!"
)

// Error carries the human readable reason for a rejected operation along
// with its kind.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

// ErrDirectCustodyTransfer rejects plain currency or token transfers whose
// recipient is the custody address.
var ErrDirectCustodyTransfer = newError(ErrState, reasonDirectCustody)

func newError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// KindOf reports the label of the error kind wrapped by err, or "" when err
// is not a lottery rejection.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrTiming):
		return "timing"
	case errors.Is(err, ErrState):
		return "state"
	case errors.Is(err, ErrArithmetic):
		return "arithmetic"
	default:
		return ""
	}
}

func wrapLedger(op string, err error) error {
	return fmt.Errorf("lottery: %s: %w", op, err)
}
