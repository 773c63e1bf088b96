package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("round"), []byte{0x01, 0x02}))
	value, err := db.Get([]byte("round"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, value)

	require.NoError(t, db.Put([]byte("round"), []byte{0x03}))
	value, err = db.Get([]byte("round"))
	require.NoError(t, err)
	require.Equal(t, []byte{0x03}, value)

	require.NoError(t, db.Delete([]byte("round")))
	_, err = db.Get([]byte("round"))
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte{0xaa}
	if err := db.Put([]byte("k"), buf); err != nil {
		t.Fatalf("put: %v", err)
	}
	buf[0] = 0xbb
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got[0] != 0xaa {
		t.Fatalf("stored value aliased caller buffer: %x", got)
	}
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestOpenSelectsBackend(t *testing.T) {
	db, err := Open("memory", "")
	require.NoError(t, err)
	require.IsType(t, &MemDB{}, db)

	_, err = Open("rocksdb", t.TempDir())
	require.Error(t, err)
}
