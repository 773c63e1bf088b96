package core

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lotterychain/core/genesis"
	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
	"lotterychain/storage"
)

const testStart = int64(1_700_000_000)

type testChain struct {
	t     *testing.T
	node  *Node
	clock *ManualClock
	owner *crypto.PrivateKey
	a     *crypto.PrivateKey
	b     *crypto.PrivateKey
	c     *crypto.PrivateKey
}

func mustKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func addrOf(key *crypto.PrivateKey) [20]byte {
	return key.PubKey().Address().Array()
}

func testSpec(owner *crypto.PrivateKey, funded ...*crypto.PrivateKey) *genesis.GenesisSpec {
	alloc := make(map[string]string, len(funded))
	for _, key := range funded {
		alloc[key.PubKey().Address().String()] = "1000"
	}
	return &genesis.GenesisSpec{
		ChainID: 7,
		Lottery: genesis.LotterySpec{
			Owner:    owner.PubKey().Address().String(),
			BetPrice: "50",
			BetFee:   "1",
		},
		Alloc: alloc,
	}
}

func fixedSeed(v int64) lottery.RandomSource {
	return lottery.SeedFunc(func([20]byte) (*big.Int, error) { return big.NewInt(v), nil })
}

func newTestChain(t *testing.T, db storage.Database, opts ...Option) *testChain {
	t.Helper()
	c := &testChain{
		t:     t,
		clock: NewManualClock(time.Unix(testStart, 0)),
		owner: mustKey(t),
		a:     mustKey(t),
		b:     mustKey(t),
		c:     mustKey(t),
	}
	if db == nil {
		db = storage.NewMemDB()
	}
	opts = append([]Option{WithClock(c.clock)}, opts...)
	node, err := NewNode(db, testSpec(c.owner, c.a, c.b, c.c), opts...)
	require.NoError(t, err)
	c.node = node
	return c
}

func (c *testChain) tx(key *crypto.PrivateKey, txType types.TxType, value int64, payload interface{}) *types.Transaction {
	c.t.Helper()
	nonce, err := c.node.Nonce(addrOf(key))
	require.NoError(c.t, err)
	tx := &types.Transaction{ChainID: c.node.ChainID(), Type: txType, Nonce: nonce}
	if value != 0 {
		tx.Value = big.NewInt(value)
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(c.t, err)
		tx.Data = data
	}
	require.NoError(c.t, tx.Sign(key.PrivateKey))
	return tx
}

func (c *testChain) send(key *crypto.PrivateKey, txType types.TxType, value int64, payload interface{}) *types.Receipt {
	c.t.Helper()
	receipt, err := c.node.SubmitTransaction(context.Background(), c.tx(key, txType, value, payload))
	require.NoError(c.t, err)
	return receipt
}

func (c *testChain) mustSucceed(key *crypto.PrivateKey, txType types.TxType, value int64, payload interface{}) *types.Receipt {
	c.t.Helper()
	receipt := c.send(key, txType, value, payload)
	require.Truef(c.t, receipt.Success, "%s failed: %s", txType, receipt.Error)
	return receipt
}

func (c *testChain) mustFail(key *crypto.PrivateKey, txType types.TxType, payload interface{}, kind string) *types.Receipt {
	c.t.Helper()
	receipt := c.send(key, txType, 0, payload)
	require.Falsef(c.t, receipt.Success, "%s unexpectedly succeeded", txType)
	require.Equal(c.t, kind, receipt.ErrorKind, receipt.Error)
	require.Empty(c.t, receipt.Events)
	return receipt
}

func (c *testChain) custody() string {
	return crypto.AddressFromArray(c.node.CustodyAddress()).String()
}

func (c *testChain) approveCustody(key *crypto.PrivateKey) {
	c.mustSucceed(key, types.TxTypeTokenApprove, 0, types.TokenApprovePayload{Spender: c.custody(), Amount: "1000"})
}

func (c *testChain) tokenBalance(key *crypto.PrivateKey) int64 {
	bal, err := c.node.TokenBalance(addrOf(key))
	require.NoError(c.t, err)
	return bal.Int64()
}

func (c *testChain) currencyBalance(addr [20]byte) int64 {
	bal, err := c.node.CurrencyBalance(addr)
	require.NoError(c.t, err)
	return bal.Int64()
}

func TestFullRoundLifecycle(t *testing.T) {
	c := newTestChain(t, nil, WithRandomSource(fixedSeed(2)))

	c.mustSucceed(c.a, types.TxTypeSellTokens, 200, nil)
	c.mustSucceed(c.b, types.TxTypeSellTokens, 200, nil)
	c.mustSucceed(c.c, types.TxTypeSellTokens, 100, nil)
	for _, key := range []*crypto.PrivateKey{c.a, c.b, c.c} {
		c.approveCustody(key)
	}
	require.EqualValues(t, 500, c.currencyBalance(c.node.CustodyAddress()))

	closing := testStart + 3600
	c.mustFail(c.a, types.TxTypeStartLottery, types.StartLotteryPayload{ClosingEpoch: closing}, "authorization")
	c.mustFail(c.a, types.TxTypeBet, nil, "timing")
	c.mustSucceed(c.owner, types.TxTypeStartLottery, 0, types.StartLotteryPayload{ClosingEpoch: closing, BaseWinningFeeRate: "30"})

	for _, key := range []*crypto.PrivateKey{c.a, c.b, c.a, c.c} {
		c.mustSucceed(key, types.TxTypeBet, 0, nil)
	}
	c.mustFail(c.owner, types.TxTypeBet, nil, "state")
	c.mustFail(c.b, types.TxTypeEndLottery, nil, "timing")

	status, err := c.node.LotteryStatus()
	require.NoError(t, err)
	require.True(t, status.Open)
	require.EqualValues(t, 200, status.PayoutPool.Int64())
	require.EqualValues(t, 4, status.FeeCollection.Int64())
	require.Equal(t, closing, status.ClosingEpoch)

	_, err = c.node.IncreaseTime(3600 * time.Second)
	require.NoError(t, err)
	c.mustFail(c.a, types.TxTypeBet, nil, "timing")
	ended := c.mustSucceed(c.b, types.TxTypeEndLottery, 0, nil)
	require.NotEmpty(t, ended.Events)
	c.mustFail(c.b, types.TxTypeEndLottery, nil, "state")

	winner, err := c.node.LatestLotteryWinner()
	require.NoError(t, err)
	require.Equal(t, addrOf(c.a), winner)
	stash, err := c.node.WinningStash(addrOf(c.a))
	require.NoError(t, err)
	require.EqualValues(t, 200, stash.Int64())

	result, err := c.node.RoundResult(1)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.EqualValues(t, 4, result.Entries)

	c.mustFail(c.a, types.TxTypeWithdrawWinning, types.WithdrawWinningPayload{Net: "150", Fee: "60"}, "arithmetic")
	c.mustFail(c.b, types.TxTypeWithdrawWinning, types.WithdrawWinningPayload{Net: "0", Fee: "0"}, "state")
	net, fee, err := lottery.SplitWinnings(stash, lottery.DefaultWinningFeeBps)
	require.NoError(t, err)
	c.mustSucceed(c.a, types.TxTypeWithdrawWinning, 0, types.WithdrawWinningPayload{Net: net.String(), Fee: fee.String()})
	c.mustFail(c.a, types.TxTypeWithdrawWinning, types.WithdrawWinningPayload{Net: net.String(), Fee: fee.String()}, "state")
	require.EqualValues(t, 200-2*51+140, c.tokenBalance(c.a))

	fees, err := c.node.FeeCollection()
	require.NoError(t, err)
	require.EqualValues(t, 64, fees.Int64())

	c.mustFail(c.a, types.TxTypeWithdrawFees, nil, "authorization")
	c.mustSucceed(c.owner, types.TxTypeWithdrawFees, 0, nil)
	require.EqualValues(t, 64, c.tokenBalance(c.owner))

	// 500 tokens were minted and every one has left custody.
	custodyTokens, err := c.node.TokenBalance(c.node.CustodyAddress())
	require.NoError(t, err)
	require.Zero(t, custodyTokens.Sign())
	require.EqualValues(t, 500, c.tokenBalance(c.a)+c.tokenBalance(c.b)+c.tokenBalance(c.c)+c.tokenBalance(c.owner))
}

func TestBurnRedemptionThroughLedger(t *testing.T) {
	c := newTestChain(t, nil)

	c.mustSucceed(c.c, types.TxTypeSellTokens, 100, nil)
	c.mustFail(c.c, types.TxTypeTrackBurn, types.AmountPayload{Amount: "101"}, "state")
	c.mustSucceed(c.c, types.TxTypeTrackBurn, 0, types.AmountPayload{Amount: "20"})
	c.mustFail(c.c, types.TxTypeRedeemBurn, nil, "state")

	c.mustSucceed(c.c, types.TxTypeTokenBurn, 0, types.AmountPayload{Amount: "20"})
	c.mustSucceed(c.c, types.TxTypeRedeemBurn, 0, nil)

	require.EqualValues(t, 920, c.currencyBalance(addrOf(c.c)))
	require.EqualValues(t, 80, c.tokenBalance(c.c))
	require.EqualValues(t, 80, c.currencyBalance(c.node.CustodyAddress()))

	status, err := c.node.LotteryStatus()
	require.NoError(t, err)
	require.EqualValues(t, 80, status.Escrowed.Int64())

	c.mustFail(c.c, types.TxTypeRedeemBurn, nil, "state")
}

func TestFailedTransactionConsumesNonceOnly(t *testing.T) {
	c := newTestChain(t, nil)
	before, err := c.node.Height()
	require.NoError(t, err)

	receipt := c.mustFail(c.a, types.TxTypeSellTokens, nil, "arithmetic")
	nonce, err := c.node.Nonce(addrOf(c.a))
	require.NoError(t, err)
	require.EqualValues(t, 1, nonce)
	require.EqualValues(t, 1000, c.currencyBalance(addrOf(c.a)))

	height, err := c.node.Height()
	require.NoError(t, err)
	require.Equal(t, before+1, height)

	stored, err := c.node.Receipt(receipt.TxHash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.False(t, stored.Success)
	require.Equal(t, receipt.Error, stored.Error)
}

func TestTransfersToCustodyAreRejected(t *testing.T) {
	c := newTestChain(t, nil)
	custody := c.node.CustodyAddress()
	c.mustSucceed(c.a, types.TxTypeSellTokens, 100, nil)

	nonce, err := c.node.Nonce(addrOf(c.b))
	require.NoError(t, err)
	tx := &types.Transaction{ChainID: c.node.ChainID(), Type: types.TxTypeTransfer, Nonce: nonce, To: custody[:], Value: big.NewInt(5)}
	require.NoError(t, tx.Sign(c.b.PrivateKey))
	receipt, err := c.node.SubmitTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.False(t, receipt.Success)
	require.Equal(t, "state", receipt.ErrorKind)
	require.EqualValues(t, 1000, c.currencyBalance(addrOf(c.b)))

	tokens := c.send(c.a, types.TxTypeTokenTransfer, 0, types.TokenTransferPayload{To: c.custody(), Amount: "10"})
	require.False(t, tokens.Success)
	require.Equal(t, "state", tokens.ErrorKind)
	require.EqualValues(t, 100, c.tokenBalance(c.a))

	status, err := c.node.LotteryStatus()
	require.NoError(t, err)
	require.EqualValues(t, 100, status.Escrowed.Int64())
	require.EqualValues(t, 100, c.currencyBalance(custody))
}

func TestSubmitRejectsInadmissibleTransactions(t *testing.T) {
	c := newTestChain(t, nil)
	ctx := context.Background()

	wrongChain := c.tx(c.a, types.TxTypeBet, 0, nil)
	wrongChain.ChainID++
	require.NoError(t, wrongChain.Sign(c.a.PrivateKey))
	_, err := c.node.SubmitTransaction(ctx, wrongChain)
	require.ErrorIs(t, err, ErrChainIDMismatch)

	stale := c.tx(c.a, types.TxTypeBet, 0, nil)
	stale.Nonce = 5
	require.NoError(t, stale.Sign(c.a.PrivateKey))
	_, err = c.node.SubmitTransaction(ctx, stale)
	require.ErrorIs(t, err, ErrNonceMismatch)

	unsigned := &types.Transaction{ChainID: c.node.ChainID(), Type: types.TxTypeBet}
	_, err = c.node.SubmitTransaction(ctx, unsigned)
	require.ErrorIs(t, err, types.ErrMissingSignature)

	malformed := c.tx(c.a, types.TxTypeTrackBurn, 0, nil)
	_, err = c.node.SubmitTransaction(ctx, malformed)
	require.ErrorIs(t, err, ErrInvalidPayload)

	unknown := c.tx(c.a, types.TxType(0x7f), 0, nil)
	_, err = c.node.SubmitTransaction(ctx, unknown)
	require.ErrorIs(t, err, ErrUnknownTxType)

	height, err := c.node.Height()
	require.NoError(t, err)
	require.Zero(t, height)
}

func TestFeedPublishesCommittedEventsOnly(t *testing.T) {
	c := newTestChain(t, nil)
	ch, cancel := c.node.Feed().Subscribe(16)
	defer cancel()

	c.mustFail(c.a, types.TxTypeBet, nil, "timing")
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event from failed transaction: %s", evt.Type)
	default:
	}

	c.mustSucceed(c.a, types.TxTypeSellTokens, 10, nil)
	seen := map[string]bool{}
	for len(ch) > 0 {
		evt := <-ch
		seen[evt.Type] = true
	}
	require.True(t, seen[lottery.EventTypeTokensSold])
}

func TestBlocksChainByParentHash(t *testing.T) {
	c := newTestChain(t, nil)
	c.mustSucceed(c.a, types.TxTypeSellTokens, 10, nil)
	c.clock.Advance(5 * time.Second)
	c.mustSucceed(c.b, types.TxTypeSellTokens, 10, nil)

	genesisBlock, err := c.node.BlockByHeight(0)
	require.NoError(t, err)
	first, err := c.node.BlockByHeight(1)
	require.NoError(t, err)
	second, err := c.node.BlockByHeight(2)
	require.NoError(t, err)

	parent, err := genesisBlock.Header.Hash()
	require.NoError(t, err)
	require.Equal(t, parent, first.Header.ParentHash)
	parent, err = first.Header.Hash()
	require.NoError(t, err)
	require.Equal(t, parent, second.Header.ParentHash)
	require.EqualValues(t, testStart, first.Header.Timestamp)
	require.EqualValues(t, testStart+5, second.Header.Timestamp)
}

func TestNodeReopensFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	c := newTestChain(t, db)
	c.mustSucceed(c.a, types.TxTypeSellTokens, 25, nil)
	custody := c.node.CustodyAddress()
	db.Close()

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := NewNode(db, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(7), reopened.ChainID())
	require.Equal(t, custody, reopened.CustodyAddress())
	require.Equal(t, addrOf(c.owner), reopened.LotteryOwner())

	bal, err := reopened.TokenBalance(addrOf(c.a))
	require.NoError(t, err)
	require.EqualValues(t, 25, bal.Int64())
	height, err := reopened.Height()
	require.NoError(t, err)
	require.EqualValues(t, 1, height)
}

func TestNewNodeWithoutGenesis(t *testing.T) {
	_, err := NewNode(storage.NewMemDB(), nil)
	require.True(t, errors.Is(err, ErrNoGenesis))
}

func TestIncreaseTimeRequiresManualClock(t *testing.T) {
	owner := mustKey(t)
	node, err := NewNode(storage.NewMemDB(), testSpec(owner))
	require.NoError(t, err)
	_, err = node.IncreaseTime(time.Minute)
	require.ErrorIs(t, err, ErrClockNotManual)
}

func TestErrorKindMapsLedgerFailures(t *testing.T) {
	require.Equal(t, "", ErrorKind(nil))
	require.Equal(t, "timing", ErrorKind(&lottery.Error{Kind: lottery.ErrTiming, Reason: "x"}))
	require.Equal(t, "state", ErrorKind(errors.New("token: insufficient balance")))
}
