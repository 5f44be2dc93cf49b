// Package crypto implements the encryption-at-rest layer of the media
// cache: a StoreCipher holding the store's key material, and a Codec pair
// that the repository uses to transform keys and values before they reach
// SQLite.
//
// Key hashing is a keyed BLAKE2b-256 MAC, domain-separated by table
// namespace, so repeated lookups hit the same row while the database file
// never sees plaintext identifiers. Values are sealed with
// XChaCha20-Poly1305 under a random per-value nonce.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// exportVersion is the layout version of the persisted export blob.
	exportVersion = 1

	// saltLen is the length of the Argon2id salt in the export blob.
	saltLen = 16

	// keyLen is the length of each of the two store keys.
	keyLen = 32

	// Argon2id parameters for wrapping the key material with a passphrase.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// StoreCipher holds the key material of one store: an AEAD key for value
// encryption and a separate key for deterministic key hashing. It is
// immutable after construction and safe for concurrent use.
type StoreCipher struct {
	aead    cipher.AEAD
	aeadKey []byte
	hashKey []byte
}

// NewStoreCipher generates fresh random key material.
func NewStoreCipher() (*StoreCipher, error) {
	material := make([]byte, 2*keyLen)
	if _, err := rand.Read(material); err != nil {
		return nil, errors.Wrap(err, "unable to generate key material")
	}
	return newStoreCipher(material)
}

func newStoreCipher(material []byte) (*StoreCipher, error) {
	if len(material) != 2*keyLen {
		return nil, errors.Errorf("key material must be %d bytes, got %d", 2*keyLen, len(material))
	}

	aeadKey := make([]byte, keyLen)
	copy(aeadKey, material[:keyLen])

	aead, err := chacha20poly1305.NewX(aeadKey)
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize value cipher")
	}

	hashKey := make([]byte, keyLen)
	copy(hashKey, material[keyLen:])

	return &StoreCipher{aead: aead, aeadKey: aeadKey, hashKey: hashKey}, nil
}

// Export wraps the cipher's key material with a key derived from the
// passphrase so it can be persisted and reconstructed later. Blob layout:
//
//	version(1) || salt(16) || nonce(24) || sealed key material
func (c *StoreCipher) Export(passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "unable to generate salt")
	}

	wrapping, err := chacha20poly1305.NewX(deriveWrappingKey(passphrase, salt))
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize wrapping cipher")
	}

	nonce := make([]byte, wrapping.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "unable to generate nonce")
	}

	material := make([]byte, 2*keyLen)
	copy(material[:keyLen], c.aeadKey)
	copy(material[keyLen:], c.hashKey)

	blob := make([]byte, 0, 1+saltLen+len(nonce)+len(material)+wrapping.Overhead())
	blob = append(blob, exportVersion)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = wrapping.Seal(blob, nonce, material, nil)

	return blob, nil
}

// ImportStoreCipher reconstructs a StoreCipher from a persisted export
// blob. Returns ErrWrongPassphrase when the blob does not open under the
// supplied passphrase.
func ImportStoreCipher(passphrase string, blob []byte) (*StoreCipher, error) {
	if len(blob) < 1+saltLen+chacha20poly1305.NonceSizeX {
		return nil, ErrInvalidExport
	}
	if blob[0] != exportVersion {
		return nil, errors.Wrapf(ErrInvalidExport, "unknown export version %d", blob[0])
	}

	salt := blob[1 : 1+saltLen]
	nonce := blob[1+saltLen : 1+saltLen+chacha20poly1305.NonceSizeX]
	sealed := blob[1+saltLen+chacha20poly1305.NonceSizeX:]

	wrapping, err := chacha20poly1305.NewX(deriveWrappingKey(passphrase, salt))
	if err != nil {
		return nil, errors.Wrap(err, "unable to initialize wrapping cipher")
	}

	material, err := wrapping.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}

	return newStoreCipher(material)
}

func deriveWrappingKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keyLen)
}

// HashKey deterministically hashes a plaintext key for storage. Equal
// inputs in the same namespace always map to the same output; distinct
// namespaces never collide for equal inputs.
func (c *StoreCipher) HashKey(namespace string, key []byte) []byte {
	mac, err := blake2b.New256(c.hashKey)
	if err != nil {
		// Only reachable with an oversized key, which newStoreCipher rules out.
		panic(err)
	}
	mac.Write([]byte(namespace))
	mac.Write([]byte{0})
	mac.Write(key)
	return mac.Sum(nil)
}

// EncryptValue seals a value under the store's AEAD key. The random nonce
// is prepended, so encrypting the same plaintext twice yields different
// ciphertext.
func (c *StoreCipher) EncryptValue(value []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "unable to generate nonce")
	}
	return c.aead.Seal(nonce, nonce, value, nil), nil
}

// DecryptValue opens a value previously sealed by EncryptValue. Returns
// ErrValueCorrupted when the ciphertext was tampered with, truncated, or
// produced under different key material.
func (c *StoreCipher) DecryptValue(value []byte) ([]byte, error) {
	if len(value) < c.aead.NonceSize()+c.aead.Overhead() {
		return nil, ErrValueCorrupted
	}

	nonce := value[:c.aead.NonceSize()]
	plaintext, err := c.aead.Open(nil, nonce, value[c.aead.NonceSize():], nil)
	if err != nil {
		return nil, ErrValueCorrupted
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	return plaintext, nil
}
