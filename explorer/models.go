package explorer

import "gorm.io/gorm"

// BlockRecord mirrors one committed ledger block.
type BlockRecord struct {
	Height    uint64 `gorm:"primaryKey;autoIncrement:false"`
	Timestamp int64  `gorm:"index"`
	TxHash    string `gorm:"size:66;index"`
	TxType    string `gorm:"size:32;index"`
	Sender    string `gorm:"size:64;index"`
	Success   bool
	ErrorKind string `gorm:"size:16"`
	Error     string
}

// EventRecord stores one receipt event. ID is the blake3 digest of the
// event's position and content.
type EventRecord struct {
	ID         string `gorm:"primaryKey;size:64"`
	Height     uint64 `gorm:"index"`
	Position   int
	Type       string `gorm:"size:64;index"`
	Label      string
	Attributes string
	Timestamp  int64
}

// EventAddress links an event to every address named in its attributes.
type EventAddress struct {
	EventID string `gorm:"primaryKey;size:64"`
	Address string `gorm:"primaryKey;size:64;index"`
}

// RoundRecord is the archived outcome of a closed round.
type RoundRecord struct {
	Number        uint64 `gorm:"primaryKey;autoIncrement:false"`
	Winner        string `gorm:"size:64;index"`
	Pool          string
	FeeCollection string
	Entries       uint64
	ClosingEpoch  int64
	ClosedAt      int64
	Height        uint64
}

// AutoMigrate creates or updates the explorer tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&BlockRecord{}, &EventRecord{}, &EventAddress{}, &RoundRecord{})
}
