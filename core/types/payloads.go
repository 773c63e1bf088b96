package types

// Payloads are JSON encoded into Transaction.Data. Amounts are base-10
// strings so that clients never lose precision.

type StartLotteryPayload struct {
	ClosingEpoch       int64  `json:"closingEpoch"`
	BaseWinningFeeRate string `json:"baseWinningFeeRate"`
}

type WithdrawWinningPayload struct {
	Net string `json:"net"`
	Fee string `json:"fee"`
}

type AmountPayload struct {
	Amount string `json:"amount"`
}

type TokenApprovePayload struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TokenTransferPayload struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}
