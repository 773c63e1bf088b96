package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lotterychain/core/events"
	"lotterychain/core/genesis"
	"lotterychain/core/state"
	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/bank"
	"lotterychain/native/lottery"
	"lotterychain/native/token"
	"lotterychain/observability"
	"lotterychain/storage"
)

var (
	ErrNilTransaction  = errors.New("core: transaction must not be nil")
	ErrChainIDMismatch = errors.New("core: chain id mismatch")
	ErrNonceMismatch   = errors.New("core: nonce mismatch")
	ErrUnknownTxType   = errors.New("core: unknown transaction type")
	ErrInvalidPayload  = errors.New("core: invalid transaction payload")
	ErrNoGenesis       = errors.New("core: empty database and no genesis spec")
	ErrClockNotManual  = errors.New("core: clock cannot be adjusted")
	ErrInvalidSender   = errors.New("core: cannot recover sender")
)

// BlockSink receives every committed block in height order.
type BlockSink interface {
	IndexBlock(ctx context.Context, block *types.Block) error
}

// Option customises a Node.
type Option func(*Node)

func WithClock(clock Clock) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRandomSource replaces the block-derived entropy used to draw winners.
func WithRandomSource(src lottery.RandomSource) Option {
	return func(n *Node) {
		if src != nil {
			n.random = src
		}
	}
}

func WithBlockSink(sink BlockSink) Option {
	return func(n *Node) { n.sinks = append(n.sinks, sink) }
}

// Node is the single-writer execution ledger. Every accepted transaction is
// applied atomically and sealed into its own block.
type Node struct {
	mu sync.Mutex

	db      storage.Database
	state   *state.Manager
	chainID uint64
	params  lottery.Params

	lottery  *lottery.Engine
	token    *token.Ledger
	bank     *bank.Vault
	recorder *events.Recorder
	feed     *events.Feed

	clock   Clock
	random  lottery.RandomSource
	logger  *slog.Logger
	sinks   []BlockSink
	pending lottery.BlockContext
}

// NewNode opens the ledger stored in db. An empty database is initialised
// from spec; otherwise spec is ignored and the stored parameters win.
func NewNode(db storage.Database, spec *genesis.GenesisSpec, opts ...Option) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	n := &Node{
		db:       db,
		state:    state.NewManager(db),
		recorder: &events.Recorder{},
		feed:     events.NewFeed(),
		clock:    SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	n.logger = n.logger.With(slog.String("component", "node"))

	if err := n.loadOrInitGenesis(spec); err != nil {
		return nil, err
	}
	if n.random == nil {
		n.random = lottery.EnvironmentEntropy{Block: func() lottery.BlockContext { return n.pending }}
	}

	n.token = token.NewLedger()
	n.token.SetState(n.state)
	n.token.SetEmitter(n.recorder)

	n.bank = bank.NewVault()
	n.bank.SetState(n.state)
	n.bank.SetEmitter(n.recorder)

	n.lottery = lottery.NewEngine(n.params)
	n.lottery.SetState(n.state)
	n.lottery.SetTokenLedger(n.token)
	n.lottery.SetCurrencyVault(n.bank)
	n.lottery.SetRandomSource(n.random)
	n.lottery.SetEmitter(n.recorder)
	n.lottery.SetNowFunc(func() int64 { return n.pending.Timestamp })

	head, _, err := n.state.ChainHead()
	if err != nil {
		return nil, err
	}
	observability.Lottery().SetChainHeight(head)
	n.logger.Info("ledger ready",
		slog.Uint64("chain_id", n.chainID),
		slog.Uint64("height", head),
		slog.String("owner", crypto.AddressFromArray(n.params.Owner).String()),
		slog.String("custody", crypto.AddressFromArray(n.params.Address).String()))
	return n, nil
}

func (n *Node) loadOrInitGenesis(spec *genesis.GenesisSpec) error {
	_, ok, err := n.state.ChainHead()
	if err != nil {
		return fmt.Errorf("core: read chain head: %w", err)
	}
	if !ok {
		if spec == nil {
			return ErrNoGenesis
		}
		block, params, err := genesis.BuildGenesis(spec, n.state)
		if err != nil {
			n.state.Discard()
			return fmt.Errorf("core: genesis: %w", err)
		}
		if err := n.state.Commit(); err != nil {
			return err
		}
		n.params = params
		n.chainID = spec.ChainID
		n.logger.Info("genesis written", slog.Uint64("timestamp", block.Header.Timestamp))
		return nil
	}

	params, err := n.state.LotteryParams()
	if err != nil {
		return fmt.Errorf("core: load lottery params: %w", err)
	}
	if params == nil {
		return fmt.Errorf("core: database has blocks but no lottery params")
	}
	n.params = *params
	if n.chainID, err = n.state.ChainID(); err != nil {
		return fmt.Errorf("core: load chain id: %w", err)
	}
	return nil
}

func (n *Node) ChainID() uint64 { return n.chainID }

// Feed returns the stream of committed events.
func (n *Node) Feed() *events.Feed { return n.feed }

// IncreaseTime advances a ManualClock. It fails for any other clock.
func (n *Node) IncreaseTime(d time.Duration) (time.Time, error) {
	manual, ok := n.clock.(*ManualClock)
	if !ok {
		return time.Time{}, ErrClockNotManual
	}
	return manual.Advance(d), nil
}

// Now returns the current clock reading.
func (n *Node) Now() time.Time { return n.clock.Now() }

// SubmitTransaction validates tx and, if it is admissible, applies it and
// seals it into a block. A transaction rejected by an engine is still
// included: its receipt carries the failure, its nonce is consumed and it
// leaves no other trace in state. The returned error is non-nil only when
// the transaction was not included.
func (n *Node) SubmitTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := otel.Tracer("lotterychain/core").Start(ctx, "node.submit_transaction")
	defer span.End()
	span.SetAttributes(attribute.String("tx.type", tx.Type.String()))

	if tx.ChainID != n.chainID {
		return nil, fmt.Errorf("%w: got %d want %d", ErrChainIDMismatch, tx.ChainID, n.chainID)
	}
	call, err := decodeCall(tx)
	if err != nil {
		return nil, err
	}
	sender, err := tx.Sender()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSender, err)
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	nonce, err := n.state.AccountNonce(sender)
	if err != nil {
		return nil, err
	}
	if tx.Nonce != nonce {
		return nil, fmt.Errorf("%w: got %d want %d", ErrNonceMismatch, tx.Nonce, nonce)
	}

	height, parentHash, parentTime, err := n.headLocked()
	if err != nil {
		return nil, err
	}
	timestamp := n.clock.Now().Unix()
	if timestamp < parentTime {
		timestamp = parentTime
	}
	n.pending = lottery.BlockContext{ParentHash: parentHash, Height: height + 1, Timestamp: timestamp}

	n.recorder.Reset()
	snap := n.state.Snapshot()
	applyErr := call(n, sender)
	if applyErr != nil {
		n.state.RevertToSnapshot(snap)
		n.recorder.Reset()
	}
	evts := n.recorder.Drain()

	receipt := &types.Receipt{
		TxHash:  hash,
		Height:  height + 1,
		Sender:  append([]byte(nil), sender[:]...),
		Type:    tx.Type,
		Success: applyErr == nil,
		Events:  evts,
	}
	if applyErr != nil {
		receipt.Error = applyErr.Error()
		receipt.ErrorKind = ErrorKind(applyErr)
	}
	block := types.NewBlock(&types.BlockHeader{
		Height:     height + 1,
		Timestamp:  uint64(timestamp),
		ParentHash: parentHash,
		TxHash:     hash,
	}, tx, receipt)

	if err := n.state.SetAccountNonce(sender, nonce+1); err != nil {
		n.state.Discard()
		return nil, err
	}
	if err := n.state.AppendBlock(block); err != nil {
		n.state.Discard()
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		return nil, err
	}

	metrics := observability.Lottery()
	metrics.RecordTransaction(tx.Type.String(), receipt.ErrorKind)
	metrics.SetChainHeight(block.Header.Height)
	if pool, err := n.lottery.CurrentLotteryPayoutPool(); err == nil {
		metrics.SetPayoutPool(pool)
	}
	if applyErr != nil {
		span.SetStatus(codes.Error, receipt.ErrorKind)
		n.logger.Info("transaction reverted",
			slog.String("type", tx.Type.String()),
			slog.Uint64("height", block.Header.Height),
			slog.String("kind", receipt.ErrorKind),
			slog.String("reason", receipt.Error))
	} else {
		n.logger.Debug("transaction applied",
			slog.String("type", tx.Type.String()),
			slog.Uint64("height", block.Header.Height),
			slog.Int("events", len(evts)))
	}

	n.feed.Publish(evts...)
	for _, sink := range n.sinks {
		if err := sink.IndexBlock(ctx, block); err != nil {
			n.logger.Warn("block sink failed", slog.Uint64("height", block.Header.Height), slog.Any("error", err))
		}
	}
	return receipt, nil
}

// headLocked returns the latest block height, its header hash and timestamp.
func (n *Node) headLocked() (uint64, []byte, int64, error) {
	height, ok, err := n.state.ChainHead()
	if err != nil {
		return 0, nil, 0, err
	}
	if !ok {
		return 0, nil, 0, ErrNoGenesis
	}
	parent, err := n.state.Block(height)
	if err != nil {
		return 0, nil, 0, err
	}
	if parent == nil || parent.Header == nil {
		return 0, nil, 0, fmt.Errorf("core: missing block %d", height)
	}
	hash, err := parent.Header.Hash()
	if err != nil {
		return 0, nil, 0, err
	}
	return height, hash, int64(parent.Header.Timestamp), nil
}

// ErrorKind classifies a failed transaction for receipts and RPC errors.
// Ledger failures that surface through the lottery engine keep the kind of
// the underlying token or vault error.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind := lottery.KindOf(err); kind != "" {
		return kind
	}
	switch {
	case errors.Is(err, token.ErrUnauthorizedMinter):
		return "authorization"
	case errors.Is(err, token.ErrOverflow),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, bank.ErrInvalidAmount):
		return "arithmetic"
	default:
		return "state"
	}
}
