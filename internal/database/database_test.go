package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_CreatesSchema(t *testing.T) {
	db := testDB(t)

	version, err := db.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)
}

func TestNewDB_CreatesStoreDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "store")

	db, err := NewDB(dir, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
}

func TestNewDB_ReopenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewDB(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, db.SetKV(ctx, "marker", []byte("survives reopen")))
	require.NoError(t, db.Close())

	db, err = NewDB(dir, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	version, err := db.schemaVersion()
	require.NoError(t, err)
	assert.Equal(t, len(migrations), version)

	value, err := db.GetKV(ctx, "marker")
	require.NoError(t, err)
	assert.Equal(t, []byte("survives reopen"), value)
}

func TestNewDB_UnsupportedFutureSchema(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := NewDB(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, db.SetKV(ctx, keyVersion, []byte{byte(len(migrations) + 1)}))
	require.NoError(t, db.Close())

	_, err = NewDB(dir, zerolog.Nop())
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestDB_KVRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	value, err := db.GetKV(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, value)

	require.NoError(t, db.SetKV(ctx, "cipher", []byte{1, 2, 3}))

	value, err = db.GetKV(ctx, "cipher")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, value)

	// Replace wholesale.
	require.NoError(t, db.SetKV(ctx, "cipher", []byte{4}))

	value, err = db.GetKV(ctx, "cipher")
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, value)
}
