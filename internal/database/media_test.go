package database

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaidobit/mediacache/internal/crypto"
)

func testMediaRepo(t *testing.T, codec crypto.Codec) *MediaRepo {
	t.Helper()
	return NewMediaRepo(zerolog.Nop(), testDB(t), codec)
}

// contentsByLastAccess reads raw stored values, most recently accessed
// first.
func contentsByLastAccess(t *testing.T, db *DB) [][]byte {
	t.Helper()

	rows, err := db.handler.Query(`SELECT data FROM media_cache ORDER BY last_access DESC`)
	require.NoError(t, err)
	defer rows.Close()

	var contents [][]byte
	for rows.Next() {
		var data []byte
		require.NoError(t, rows.Scan(&data))
		contents = append(contents, data)
	}
	require.NoError(t, rows.Err())
	return contents
}

func TestMediaRepo_RoundTrip(t *testing.T) {
	cipher, err := crypto.NewStoreCipher()
	require.NoError(t, err)

	codecs := map[string]crypto.Codec{
		"plain":    crypto.PlainCodec{},
		"ciphered": crypto.NewCipherCodec(cipher),
	}

	for name, codec := range codecs {
		t.Run(name, func(t *testing.T) {
			repo := testMediaRepo(t, codec)
			ctx := context.Background()

			content := []byte("hello world")
			require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", content))

			got, found, err := repo.Get(ctx, "mxc://localhost/media", "file")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, content, got)

			// A nil value is the zero-length byte sequence and must store
			// and round-trip like any other.
			require.NoError(t, repo.Put(ctx, "mxc://localhost/empty", "file", nil))

			got, found, err = repo.Get(ctx, "mxc://localhost/empty", "file")
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte{}, got)
		})
	}
}

func TestMediaRepo_GetMissing(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})

	got, found, err := repo.Get(context.Background(), "mxc://localhost/nothing", "file")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestMediaRepo_Overwrite(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", []byte("first")))
	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", []byte("second")))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "overwrite must replace the row, not add one")

	got, found, err := repo.Get(ctx, "mxc://localhost/media", "file")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("second"), got)
}

func TestMediaRepo_RemoveMissingIsNotAnError(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	assert.NoError(t, repo.Remove(ctx, "mxc://localhost/nothing", "file"))
	assert.NoError(t, repo.RemoveAll(ctx, "mxc://localhost/nothing"))
}

func TestMediaRepo_Remove(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", []byte("x")))
	require.NoError(t, repo.Remove(ctx, "mxc://localhost/media", "file"))

	_, found, err := repo.Get(ctx, "mxc://localhost/media", "file")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMediaRepo_RemoveAllScope(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "mxc://localhost/a", "file", []byte("x")))
	require.NoError(t, repo.Put(ctx, "mxc://localhost/a", "thumbnail-100x100", []byte("y")))
	require.NoError(t, repo.Put(ctx, "mxc://localhost/b", "file", []byte("z")))

	require.NoError(t, repo.RemoveAll(ctx, "mxc://localhost/a"))

	_, found, err := repo.Get(ctx, "mxc://localhost/a", "file")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = repo.Get(ctx, "mxc://localhost/a", "thumbnail-100x100")
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := repo.Get(ctx, "mxc://localhost/b", "file")
	require.NoError(t, err)
	require.True(t, found, "RemoveAll must not touch other identifiers")
	assert.Equal(t, []byte("z"), got)
}

func TestMediaRepo_LastAccessOrdering(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	// Timestamps have second granularity; drive the clock instead of
	// sleeping past real ticks.
	current := time.Unix(1700000000, 0)
	repo.now = func() time.Time { return current }

	content := []byte("hello world")
	thumbnailContent := []byte("hello…")

	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", content))

	current = current.Add(3 * time.Second)
	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "thumbnail-100x100", thumbnailContent))

	contents := contentsByLastAccess(t, repo.db)
	require.Len(t, contents, 2)
	assert.Equal(t, thumbnailContent, contents[0], "thumbnail is not last access")
	assert.Equal(t, content, contents[1], "file is not second-to-last access")

	// Reading the file refreshes its timestamp past the thumbnail's.
	current = current.Add(3 * time.Second)
	_, found, err := repo.Get(ctx, "mxc://localhost/media", "file")
	require.NoError(t, err)
	require.True(t, found)

	contents = contentsByLastAccess(t, repo.db)
	require.Len(t, contents, 2)
	assert.Equal(t, content, contents[0], "file is not last access")
	assert.Equal(t, thumbnailContent, contents[1], "thumbnail is not second-to-last access")
}

func TestMediaRepo_CipheredRowsExposeNoPlaintext(t *testing.T) {
	cipher, err := crypto.NewStoreCipher()
	require.NoError(t, err)

	repo := testMediaRepo(t, crypto.NewCipherCodec(cipher))
	ctx := context.Background()

	content := []byte("very recognizable plaintext payload")
	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", content))

	var uri, data []byte
	err = repo.db.handler.QueryRow(`SELECT uri, data FROM media_cache`).Scan(&uri, &data)
	require.NoError(t, err)

	assert.NotEqual(t, []byte("mxc://localhost/media"), uri)
	assert.False(t, bytes.Contains(data, content), "stored value leaks plaintext")
}

func TestMediaRepo_CorruptedValueIsAnErrorNotAMiss(t *testing.T) {
	cipher, err := crypto.NewStoreCipher()
	require.NoError(t, err)

	repo := testMediaRepo(t, crypto.NewCipherCodec(cipher))
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "mxc://localhost/media", "file", []byte("hello world")))

	// Overwrite the stored blob out-of-band, as if the row had been
	// written under different key material.
	_, err = repo.db.handler.Exec(`UPDATE media_cache SET data = $1`, []byte("not a valid ciphertext"))
	require.NoError(t, err)

	got, found, err := repo.Get(ctx, "mxc://localhost/media", "file")
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrValueCorrupted)
	assert.False(t, found, "a decryption failure must not report a hit")
	assert.Nil(t, got)
}

func TestMediaRepo_Count(t *testing.T) {
	repo := testMediaRepo(t, crypto.PlainCodec{})
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.Put(ctx, "mxc://localhost/a", "file", []byte("x")))
	require.NoError(t, repo.Put(ctx, "mxc://localhost/b", "file", []byte("y")))

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
