package explorer

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
	"lotterychain/native/token"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	idx := NewIndexer(db, nil)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func blockAt(height uint64, sender [20]byte, txType types.TxType, evts ...*types.Event) *types.Block {
	hash := make([]byte, 32)
	hash[31] = byte(height)
	return types.NewBlock(&types.BlockHeader{
		Height:    height,
		Timestamp: 1_700_000_000 + height,
		TxHash:    hash,
	}, nil, &types.Receipt{
		TxHash:  hash,
		Height:  height,
		Sender:  append([]byte(nil), sender[:]...),
		Type:    txType,
		Success: true,
		Events:  evts,
	})
}

func closedRound(number uint64, winner [20]byte, pool int64) *types.Event {
	return lottery.NewEndedEvent(&lottery.RoundResult{
		Number:        number,
		Winner:        winner,
		Pool:          big.NewInt(pool),
		FeeCollection: big.NewInt(4),
		Entries:       4,
		ClosingEpoch:  1_700_000_600,
		ClosedAt:      1_700_000_700,
	})
}

func TestIndexBlockStoresEventsAndRounds(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	alice := testAddr(1)
	bob := testAddr(2)

	require.NoError(t, idx.IndexBlock(ctx, blockAt(1, alice, types.TxTypeTokenTransfer,
		token.NewTransferEvent(alice, bob, big.NewInt(5)))))
	require.NoError(t, idx.IndexBlock(ctx, blockAt(2, bob, types.TxTypeEndLottery,
		closedRound(1, alice, 200))))

	rounds, err := idx.Rounds(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	require.Equal(t, uint64(1), rounds[0].Number)
	require.Equal(t, crypto.AddressFromArray(alice).String(), rounds[0].Winner)
	require.Equal(t, "200", rounds[0].Pool)
	require.Equal(t, uint64(2), rounds[0].Height)

	round, err := idx.Round(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, round)
	missing, err := idx.Round(ctx, 9)
	require.NoError(t, err)
	require.Nil(t, missing)

	transfers, err := idx.EventsByType(ctx, token.EventTypeTransfer, 0)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	require.Equal(t, "Sent tokens", transfers[0].Label)

	byAlice, err := idx.EventsByAddress(ctx, crypto.AddressFromArray(alice).String(), 0)
	require.NoError(t, err)
	require.Len(t, byAlice, 2)
	require.Equal(t, lottery.EventTypeEnded, byAlice[0].Type)

	byBob, err := idx.EventsByAddress(ctx, crypto.AddressFromArray(bob).String(), 0)
	require.NoError(t, err)
	require.Len(t, byBob, 1)
}

func TestIndexBlockIsIdempotent(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	block := blockAt(1, testAddr(1), types.TxTypeEndLottery, closedRound(1, testAddr(1), 50))
	require.NoError(t, idx.IndexBlock(ctx, block))
	require.NoError(t, idx.IndexBlock(ctx, block))

	var events int64
	require.NoError(t, idx.DB().Model(&EventRecord{}).Count(&events).Error)
	require.Equal(t, int64(1), events)
	rounds, err := idx.Rounds(ctx, 0)
	require.NoError(t, err)
	require.Len(t, rounds, 1)

	require.ErrorIs(t, idx.IndexBlock(ctx, &types.Block{}), ErrInvalidBlock)
}

func TestEventIDIsStable(t *testing.T) {
	evt := &types.Event{Type: "token.burn", Attributes: map[string]string{"holder": "x", "amount": "3"}}
	same := &types.Event{Type: "token.burn", Attributes: map[string]string{"amount": "3", "holder": "x"}}
	require.Equal(t, EventID(4, 0, evt), EventID(4, 0, same))
	require.NotEqual(t, EventID(4, 0, evt), EventID(4, 1, evt))
	require.Len(t, EventID(4, 0, evt), 64)
}

type sliceSource []*types.Block

func (s sliceSource) Height() (uint64, error) { return uint64(len(s) - 1), nil }

func (s sliceSource) BlockByHeight(h uint64) (*types.Block, error) {
	if h >= uint64(len(s)) {
		return nil, nil
	}
	return s[h], nil
}

func TestCatchUpResumesFromLatestHeight(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	src := sliceSource{
		types.NewBlock(&types.BlockHeader{Height: 0, Timestamp: 1_700_000_000}, nil, nil),
		blockAt(1, testAddr(1), types.TxTypeBet),
		blockAt(2, testAddr(1), types.TxTypeEndLottery, closedRound(1, testAddr(1), 50)),
	}
	n, err := idx.CatchUp(ctx, src[:2])
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = idx.CatchUp(ctx, src)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	height, ok, err := idx.LatestHeight(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), height)
}

func TestExportRoundsWritesParquet(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, idx.IndexBlock(ctx, blockAt(i, testAddr(1), types.TxTypeEndLottery,
			closedRound(i, testAddr(byte(i)), int64(100*i)))))
	}

	path, err := idx.ExportRounds(ctx, filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(roundParquetRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(3), pr.GetNumRows())

	rows := make([]roundParquetRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(1), rows[0].Number)
	require.Equal(t, "300", rows[2].Pool)
}

func TestEventLabel(t *testing.T) {
	require.Equal(t, "Placed bet", EventLabel(lottery.EventTypeBet))
	require.Equal(t, "Burned tokens", EventLabel(" TOKEN.BURN "))
	require.Equal(t, "Bank transfer", EventLabel("bank.transfer"))
	require.Equal(t, "Event", EventLabel(""))
}
