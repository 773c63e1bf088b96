package state

import (
	"encoding/binary"
)

var (
	lotteryRoundKey    = []byte("lottery/round")
	lotteryCustodyKey  = []byte("lottery/custody")
	lotteryStashPrefix = []byte("lottery/stash/")
	lotteryBurnPrefix  = []byte("lottery/burn/")
	lotteryResultPref  = []byte("lottery/result/")
	lotteryParamsKey   = []byte("lottery/params")

	tokenMetaKey          = []byte("token/meta")
	tokenSupplyKey        = []byte("token/supply")
	tokenBalancePrefix    = []byte("token/balance/")
	tokenAllowancePrefix  = []byte("token/allowance/")
	tokenBurnedPrefix     = []byte("token/burned/")
	currencyBalancePrefix = []byte("bank/balance/")
	accountNoncePrefix    = []byte("account/nonce/")

	chainHeadKey     = []byte("chain/head")
	chainBlockPrefix = []byte("chain/block/")
	chainTxPrefix    = []byte("chain/tx/")
	chainIDKey       = []byte("chain/id")
)

func withSuffix(prefix []byte, parts ...[]byte) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	out = append(out, prefix...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uint64Key(prefix []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), v)
}
