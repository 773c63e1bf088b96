package state

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lotterychain/storage"
)

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// Manager is a journaled write-back overlay over a storage.Database. Writes
// stay in memory until Commit; Snapshot and RevertToSnapshot undo writes made
// after a snapshot was taken.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	journal []journalEntry
}

// NewManager creates a state manager on top of db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) getRaw(hashed []byte) ([]byte, error) {
	if value, ok := m.dirty[string(hashed)]; ok {
		return value, nil
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (m *Manager) putRaw(hashed []byte, value []byte) error {
	prev, err := m.getRaw(hashed)
	if err != nil {
		return err
	}
	_, existed := m.dirty[string(hashed)]
	m.journal = append(m.journal, journalEntry{key: string(hashed), prev: prev, existed: existed})
	m.dirty[string(hashed)] = value
	return nil
}

// Snapshot returns an identifier for the current journal position.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot undoes every write made after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.existed {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:id]
}

// Commit flushes pending writes to the database in key order and clears the
// journal. Empty values delete the key.
func (m *Manager) Commit() error {
	keys := make([]string, 0, len(m.dirty))
	for k := range m.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := m.dirty[k]
		var err error
		if len(value) == 0 {
			err = m.db.Delete([]byte(k))
		} else {
			err = m.db.Put([]byte(k), value)
		}
		if err != nil {
			return fmt.Errorf("state: commit: %w", err)
		}
	}
	m.dirty = make(map[string][]byte)
	m.journal = nil
	return nil
}

// Discard drops every uncommitted write.
func (m *Manager) Discard() {
	m.dirty = make(map[string][]byte)
	m.journal = nil
}

// Pending reports the number of uncommitted keys.
func (m *Manager) Pending() int { return len(m.dirty) }

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so prefixes never collide on disk.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.putRaw(kvKey(key), encoded)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRaw(kvKey(key), nil)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.getRaw(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVGetList decodes an RLP list stored under key into out, a pointer to a
// slice. Missing keys yield an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must be a non-nil slice pointer")
	}
	ok, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !ok {
		val.Elem().Set(reflect.MakeSlice(val.Elem().Type(), 0, 0))
	}
	return nil
}

// PutBlob stores raw bytes under key without RLP encoding.
func (m *Manager) PutBlob(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRaw(kvKey(key), append([]byte(nil), value...))
}

// Blob returns raw bytes stored under key, nil when absent.
func (m *Manager) Blob(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.getRaw(kvKey(key))
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}
