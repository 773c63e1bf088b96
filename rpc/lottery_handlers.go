package rpc

import (
	"encoding/json"
	"net/http"

	"lotterychain/native/lottery"
)

type LotteryStatusResult struct {
	Owner              string `json:"owner"`
	Custody            string `json:"custody"`
	BetPrice           string `json:"betPrice"`
	BetFee             string `json:"betFee"`
	Round              uint64 `json:"round"`
	Open               bool   `json:"open"`
	ClosingEpoch       int64  `json:"closingEpoch"`
	BaseWinningFeeRate string `json:"baseWinningFeeRate"`
	Entries            int    `json:"entries"`
	PayoutPool         string `json:"payoutPool"`
	FeeCollection      string `json:"feeCollection"`
	LatestWinner       string `json:"latestWinner,omitempty"`
	Escrowed           string `json:"escrowed"`
	AccruedFees        string `json:"accruedFees"`
}

type RoundResultJSON struct {
	Number        uint64 `json:"number"`
	Winner        string `json:"winner,omitempty"`
	Pool          string `json:"pool"`
	FeeCollection string `json:"feeCollection"`
	Entries       uint64 `json:"entries"`
	ClosingEpoch  int64  `json:"closingEpoch"`
	ClosedAt      int64  `json:"closedAt"`
}

func roundResultJSON(res *lottery.RoundResult) *RoundResultJSON {
	out := &RoundResultJSON{
		Number:        res.Number,
		Pool:          formatAmount(res.Pool),
		FeeCollection: formatAmount(res.FeeCollection),
		Entries:       res.Entries,
		ClosingEpoch:  res.ClosingEpoch,
		ClosedAt:      res.ClosedAt,
	}
	if res.HasWinner() {
		out.Winner = formatAddress(res.Winner)
	}
	return out
}

func (s *Server) handleLotteryStatus(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	status, err := s.node.LotteryStatus()
	if err != nil {
		return nil, serverError(err)
	}
	result := LotteryStatusResult{
		Owner:              formatAddress(status.Owner),
		Custody:            formatAddress(status.Custody),
		BetPrice:           formatAmount(status.BetPrice),
		BetFee:             formatAmount(status.BetFee),
		Round:              status.Round.Number,
		Open:               status.Open,
		ClosingEpoch:       status.ClosingEpoch,
		BaseWinningFeeRate: formatAmount(status.Round.BaseWinningFeeRate),
		Entries:            len(status.Round.Entries),
		PayoutPool:         formatAmount(status.PayoutPool),
		FeeCollection:      formatAmount(status.FeeCollection),
		Escrowed:           formatAmount(status.Escrowed),
		AccruedFees:        formatAmount(status.AccruedFees),
	}
	if status.LatestWinner != ([20]byte{}) {
		result.LatestWinner = formatAddress(status.LatestWinner)
	}
	return result, nil
}

func (s *Server) handleLotteryOwner(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return formatAddress(s.node.LotteryOwner()), nil
}

func (s *Server) handleLotteryBetPrice(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return formatAmount(s.node.BetPrice()), nil
}

func (s *Server) handleLotteryBetFee(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	return formatAmount(s.node.BetFee()), nil
}

func (s *Server) handleLotteryOpen(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	open, err := s.node.LotteryOpen()
	if err != nil {
		return nil, serverError(err)
	}
	return open, nil
}

func (s *Server) handleLotteryClosingEpoch(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	epoch, err := s.node.LotteryClosingEpochInSeconds()
	if err != nil {
		return nil, serverError(err)
	}
	return epoch, nil
}

func (s *Server) handleLotteryPayoutPool(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	pool, err := s.node.CurrentLotteryPayoutPool()
	if err != nil {
		return nil, serverError(err)
	}
	return formatAmount(pool), nil
}

func (s *Server) handleLotteryFeeCollection(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	fees, err := s.node.FeeCollection()
	if err != nil {
		return nil, serverError(err)
	}
	return formatAmount(fees), nil
}

func (s *Server) handleLotteryLatestWinner(_ *http.Request, _ []json.RawMessage) (interface{}, *RPCError) {
	winner, err := s.node.LatestLotteryWinner()
	if err != nil {
		return nil, serverError(err)
	}
	if winner == ([20]byte{}) {
		return nil, nil
	}
	return formatAddress(winner), nil
}

func (s *Server) handleLotteryWinningStash(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := addressParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	stash, err := s.node.WinningStash(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return formatAmount(stash), nil
}

func (s *Server) handleLotteryPendingBurn(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := addressParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	pending, err := s.node.PendingBurn(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return formatAmount(pending), nil
}

func (s *Server) handleLotteryRoundResult(_ *http.Request, params []json.RawMessage) (interface{}, *RPCError) {
	if rpcErr := requireParams(params, 1); rpcErr != nil {
		return nil, rpcErr
	}
	number, rpcErr := uintParam(params[0])
	if rpcErr != nil {
		return nil, rpcErr
	}
	res, err := s.node.RoundResult(number)
	if err != nil {
		return nil, serverError(err)
	}
	if res == nil {
		return nil, nil
	}
	return roundResultJSON(res), nil
}
