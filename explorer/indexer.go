package explorer

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lukechampine.com/blake3"

	"lotterychain/core/types"
	"lotterychain/crypto"
	"lotterychain/native/lottery"
)

const defaultQueryLimit = 100

var ErrInvalidBlock = errors.New("explorer: block has no header")

// Open connects to the explorer database. DSNs starting with postgres:// or
// postgresql:// use Postgres, anything else is treated as a SQLite path.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("explorer: dsn required")
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("explorer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("explorer: migrate: %w", err)
	}
	return db, nil
}

// Indexer projects committed blocks into queryable tables.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewIndexer(db *gorm.DB, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{db: db, logger: log.With(slog.String("component", "explorer"))}
}

// DB exposes the underlying handle.
func (i *Indexer) DB() *gorm.DB { return i.db }

// Close releases the database connection.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IndexBlock stores block, its events and any round outcome it carries.
// Re-indexing the same block is a no-op.
func (i *Indexer) IndexBlock(ctx context.Context, block *types.Block) error {
	if block == nil || block.Header == nil {
		return ErrInvalidBlock
	}
	record := BlockRecord{
		Height:    block.Header.Height,
		Timestamp: int64(block.Header.Timestamp),
	}
	if len(block.Header.TxHash) > 0 {
		record.TxHash = "0x" + hex.EncodeToString(block.Header.TxHash)
	}
	var evts []*types.Event
	if r := block.Receipt; r != nil {
		record.TxType = r.Type.String()
		record.Success = r.Success
		record.ErrorKind = r.ErrorKind
		record.Error = r.Error
		if len(r.Sender) == 20 {
			var sender [20]byte
			copy(sender[:], r.Sender)
			record.Sender = crypto.AddressFromArray(sender).String()
		}
		evts = r.Events
	}

	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
			return err
		}
		for pos, evt := range evts {
			if evt == nil {
				continue
			}
			if err := i.indexEvent(tx, record, pos, evt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (i *Indexer) indexEvent(tx *gorm.DB, block BlockRecord, pos int, evt *types.Event) error {
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	id := EventID(block.Height, pos, evt)
	rec := EventRecord{
		ID:         id,
		Height:     block.Height,
		Position:   pos,
		Type:       evt.Type,
		Label:      EventLabel(evt.Type),
		Attributes: string(attrs),
		Timestamp:  block.Timestamp,
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return err
	}
	seen := make(map[string]struct{})
	for _, value := range evt.Attributes {
		if !isAddress(value) {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		link := EventAddress{EventID: id, Address: value}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
			return err
		}
	}
	if evt.Type != lottery.EventTypeEnded {
		return nil
	}
	round, err := roundFromEvent(evt, block.Height)
	if err != nil {
		i.logger.Warn("skipping malformed round event", slog.Uint64("height", block.Height), slog.Any("error", err))
		return nil
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(round).Error
}

func roundFromEvent(evt *types.Event, height uint64) (*RoundRecord, error) {
	attrs := evt.Attributes
	number, err := strconv.ParseUint(attrs["round"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("round: %w", err)
	}
	entries, err := strconv.ParseUint(attrs["entries"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	closingEpoch, err := strconv.ParseInt(attrs["closingEpoch"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("closingEpoch: %w", err)
	}
	closedAt, err := strconv.ParseInt(attrs["closedAt"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("closedAt: %w", err)
	}
	return &RoundRecord{
		Number:        number,
		Winner:        attrs["winner"],
		Pool:          attrs["pool"],
		FeeCollection: attrs["feeCollection"],
		Entries:       entries,
		ClosingEpoch:  closingEpoch,
		ClosedAt:      closedAt,
		Height:        height,
	}, nil
}

// EventID derives a stable identifier from the event's block height,
// position and content.
func EventID(height uint64, pos int, evt *types.Event) string {
	h := blake3.New(32, nil)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	_, _ = h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(pos))
	_, _ = h.Write(buf[:])
	_, _ = h.Write([]byte(evt.Type))
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{'='})
		_, _ = h.Write([]byte(evt.Attributes[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultQueryLimit
	}
	return limit
}

// Rounds lists closed rounds, newest first.
func (i *Indexer) Rounds(ctx context.Context, limit int) ([]RoundRecord, error) {
	var out []RoundRecord
	err := i.db.WithContext(ctx).Order("number desc").Limit(clampLimit(limit)).Find(&out).Error
	return out, err
}

// Round returns a closed round, or nil when it is not indexed.
func (i *Indexer) Round(ctx context.Context, number uint64) (*RoundRecord, error) {
	var out RoundRecord
	err := i.db.WithContext(ctx).Where("number = ?", number).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// EventsByType lists events of one type, newest first.
func (i *Indexer) EventsByType(ctx context.Context, eventType string, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Where("type = ?", eventType).
		Order("height desc").Order("position desc").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// EventsByAddress lists events naming addr in any attribute, newest first.
func (i *Indexer) EventsByAddress(ctx context.Context, addr string, limit int) ([]EventRecord, error) {
	var out []EventRecord
	err := i.db.WithContext(ctx).
		Joins("JOIN event_addresses ON event_addresses.event_id = event_records.id").
		Where("event_addresses.address = ?", addr).
		Order("event_records.height desc").Order("event_records.position desc").
		Limit(clampLimit(limit)).
		Find(&out).Error
	return out, err
}

// LatestHeight returns the highest indexed block height.
func (i *Indexer) LatestHeight(ctx context.Context) (uint64, bool, error) {
	var rec BlockRecord
	err := i.db.WithContext(ctx).Order("height desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.Height, true, nil
}

// BlockSource is the read side of the ledger used to backfill the index.
type BlockSource interface {
	Height() (uint64, error)
	BlockByHeight(height uint64) (*types.Block, error)
}

// CatchUp indexes every block in src above the latest indexed height.
func (i *Indexer) CatchUp(ctx context.Context, src BlockSource) (int, error) {
	head, err := src.Height()
	if err != nil {
		return 0, err
	}
	last, ok, err := i.LatestHeight(ctx)
	if err != nil {
		return 0, err
	}
	next := uint64(0)
	if ok {
		next = last + 1
	}
	indexed := 0
	for h := next; h <= head; h++ {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		block, err := src.BlockByHeight(h)
		if err != nil {
			return indexed, err
		}
		if block == nil {
			return indexed, fmt.Errorf("explorer: missing block %d", h)
		}
		if err := i.IndexBlock(ctx, block); err != nil {
			return indexed, err
		}
		indexed++
	}
	if indexed > 0 {
		i.logger.Info("explorer caught up", slog.Int("blocks", indexed), slog.Uint64("height", head))
	}
	return indexed, nil
}
