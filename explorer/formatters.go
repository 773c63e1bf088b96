package explorer

import (
	"strings"

	"lotterychain/native/lottery"
	"lotterychain/native/token"
)

var eventLabels = map[string]string{
	lottery.EventTypeTokensSold:       "Bought tokens",
	lottery.EventTypeStarted:          "Round opened",
	lottery.EventTypeBet:              "Placed bet",
	lottery.EventTypeEnded:            "Round closed",
	lottery.EventTypeWinningWithdrawn: "Withdrew winnings",
	lottery.EventTypeBurnTracked:      "Tracked burn",
	lottery.EventTypeBurnRedeemed:     "Redeemed burn",
	lottery.EventTypeFeesWithdrawn:    "Withdrew fees",
	token.EventTypeTransfer:           "Sent tokens",
	token.EventTypeApproval:           "Approved spender",
	token.EventTypeMint:               "Minted tokens",
	token.EventTypeBurn:               "Burned tokens",
}

// EventLabel returns the explorer label for an event type. Unknown types are
// rendered from their dotted name.
func EventLabel(eventType string) string {
	normalized := strings.ToLower(strings.TrimSpace(eventType))
	if label, ok := eventLabels[normalized]; ok {
		return label
	}
	if normalized == "" {
		return "Event"
	}
	words := strings.FieldsFunc(normalized, func(r rune) bool { return r == '.' || r == '_' })
	if len(words) == 0 {
		return "Event"
	}
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}

func isAddress(value string) bool {
	return strings.HasPrefix(value, "lot1") && len(value) > 10
}
