// Package mediacache is a persistent, optionally encrypted-at-rest cache
// for binary media objects, keyed by a remote content identifier plus a
// rendering/format variant. It is the storage backend for a messaging
// client's media layer: when a passphrase is configured, identifiers are
// stored as deterministic keyed hashes and content is sealed with
// authenticated encryption, so the SQLite file on disk never exposes
// plaintext keys or values.
package mediacache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaidobit/mediacache/internal/crypto"
	"github.com/kaidobit/mediacache/internal/database"
)

// Errors callers are expected to branch on.
var (
	// ErrWrongPassphrase: the store was created under a different passphrase.
	ErrWrongPassphrase = crypto.ErrWrongPassphrase

	// ErrValueCorrupted: a row failed authenticated decryption. Distinct
	// from a missing row, never reported as one.
	ErrValueCorrupted = crypto.ErrValueCorrupted

	// ErrUnsupportedSchema: the database was written by a newer build.
	ErrUnsupportedSchema = database.ErrUnsupportedSchema
)

// Store is one opened media cache. It exclusively owns its cipher and its
// connection pool; both are safe for concurrent use.
type Store struct {
	log  zerolog.Logger
	db   *database.DB
	repo *database.MediaRepo
}

// Open opens the media cache at dir, creating the directory, the database
// file and the schema as needed. An empty passphrase opens the store
// unencrypted; a non-empty one derives the store cipher on first open and
// verifies it on every subsequent open.
func Open(ctx context.Context, dir, passphrase string, log zerolog.Logger) (*Store, error) {
	db, err := database.NewDB(dir, log)
	if err != nil {
		return nil, err
	}

	var codec crypto.Codec = crypto.PlainCodec{}
	if passphrase != "" {
		cipher, err := loadOrCreateCipher(ctx, db, passphrase)
		if err != nil {
			db.Close()
			return nil, err
		}
		codec = crypto.NewCipherCodec(cipher)
	}

	return &Store{
		log:  log.With().Str("module", "mediacache").Logger(),
		db:   db,
		repo: database.NewMediaRepo(log, db, codec),
	}, nil
}

// loadOrCreateCipher reconstructs the store cipher from its persisted
// export, or generates and persists fresh key material on first use.
func loadOrCreateCipher(ctx context.Context, db *database.DB, passphrase string) (*crypto.StoreCipher, error) {
	blob, err := db.GetKV(ctx, database.KeyCipher)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load cipher export")
	}

	if blob != nil {
		cipher, err := crypto.ImportStoreCipher(passphrase, blob)
		if err != nil {
			return nil, errors.Wrap(err, "unable to unlock store cipher")
		}
		return cipher, nil
	}

	cipher, err := crypto.NewStoreCipher()
	if err != nil {
		return nil, err
	}

	blob, err = cipher.Export(passphrase)
	if err != nil {
		return nil, err
	}

	if err := db.SetKV(ctx, database.KeyCipher, blob); err != nil {
		return nil, errors.Wrap(err, "unable to persist cipher export")
	}

	return cipher, nil
}

// Put caches content for (uri, format), replacing any prior content.
func (s *Store) Put(ctx context.Context, uri, format string, data []byte) error {
	return s.repo.Put(ctx, uri, format, data)
}

// Get returns the content cached for (uri, format) and refreshes its last
// access time. The boolean reports whether the entry existed.
func (s *Store) Get(ctx context.Context, uri, format string) ([]byte, bool, error) {
	return s.repo.Get(ctx, uri, format)
}

// Remove drops the entry for (uri, format) if present.
func (s *Store) Remove(ctx context.Context, uri, format string) error {
	return s.repo.Remove(ctx, uri, format)
}

// RemoveAll drops every entry cached for uri, across all formats.
func (s *Store) RemoveAll(ctx context.Context, uri string) error {
	return s.repo.RemoveAll(ctx, uri)
}

// Count returns the number of cached entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
