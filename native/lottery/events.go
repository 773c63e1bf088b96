package lottery

import (
	"math/big"
	"strconv"

	"lotterychain/core/types"
	"lotterychain/crypto"
)

const (
	EventTypeTokensSold       = "lottery.tokens_sold"
	EventTypeStarted          = "lottery.started"
	EventTypeBet              = "lottery.bet"
	EventTypeEnded            = "lottery.ended"
	EventTypeWinningWithdrawn = "lottery.winning_withdrawn"
	EventTypeBurnTracked      = "lottery.burn_tracked"
	EventTypeBurnRedeemed     = "lottery.burn_redeemed"
	EventTypeFeesWithdrawn    = "lottery.fees_withdrawn"
)

type lotteryEvent struct {
	evt *types.Event
}

func (e lotteryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e lotteryEvent) Event() *types.Event { return e.evt }

func formatAddress(addr [20]byte) string {
	return crypto.AddressFromArray(addr).String()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newEvent(kind string, attrs map[string]string) *types.Event {
	return &types.Event{Type: kind, Attributes: attrs}
}

// NewTokensSoldEvent reports a currency-for-token exchange.
func NewTokensSoldEvent(buyer [20]byte, amount *big.Int) *types.Event {
	return newEvent(EventTypeTokensSold, map[string]string{
		"buyer":  formatAddress(buyer),
		"amount": formatAmount(amount),
	})
}

// NewStartedEvent reports a newly opened round.
func NewStartedEvent(r *Round) *types.Event {
	return newEvent(EventTypeStarted, map[string]string{
		"round":              strconv.FormatUint(r.Number, 10),
		"closingEpoch":       strconv.FormatInt(r.ClosingEpoch, 10),
		"baseWinningFeeRate": formatAmount(r.BaseWinningFeeRate),
	})
}

func NewBetEvent(r *Round, player [20]byte) *types.Event {
	return newEvent(EventTypeBet, map[string]string{
		"round":         strconv.FormatUint(r.Number, 10),
		"player":        formatAddress(player),
		"entries":       strconv.Itoa(len(r.Entries)),
		"pool":          formatAmount(r.Pool),
		"feeCollection": formatAmount(r.FeeCollection),
	})
}

// NewEndedEvent reports the archived result of a round. The winner attribute
// is omitted when the round had no entries.
func NewEndedEvent(res *RoundResult) *types.Event {
	attrs := map[string]string{
		"round":         strconv.FormatUint(res.Number, 10),
		"pool":          formatAmount(res.Pool),
		"feeCollection": formatAmount(res.FeeCollection),
		"entries":       strconv.FormatUint(res.Entries, 10),
		"closingEpoch":  strconv.FormatInt(res.ClosingEpoch, 10),
		"closedAt":      strconv.FormatInt(res.ClosedAt, 10),
	}
	if res.HasWinner() {
		attrs["winner"] = formatAddress(res.Winner)
	}
	return newEvent(EventTypeEnded, attrs)
}

func NewWinningWithdrawnEvent(winner [20]byte, net, fee *big.Int) *types.Event {
	return newEvent(EventTypeWinningWithdrawn, map[string]string{
		"winner": formatAddress(winner),
		"net":    formatAmount(net),
		"fee":    formatAmount(fee),
	})
}

func NewBurnTrackedEvent(holder [20]byte, amount *big.Int) *types.Event {
	return newEvent(EventTypeBurnTracked, map[string]string{
		"holder": formatAddress(holder),
		"amount": formatAmount(amount),
	})
}

func NewBurnRedeemedEvent(holder [20]byte, amount *big.Int) *types.Event {
	return newEvent(EventTypeBurnRedeemed, map[string]string{
		"holder": formatAddress(holder),
		"amount": formatAmount(amount),
	})
}

func NewFeesWithdrawnEvent(owner [20]byte, amount *big.Int) *types.Event {
	return newEvent(EventTypeFeesWithdrawn, map[string]string{
		"owner":  formatAddress(owner),
		"amount": formatAmount(amount),
	})
}
