package crypto

// Codec transforms keys and values on their way in and out of storage.
// The repository always calls through this interface, so the SQL layer
// never branches on whether encryption is configured.
type Codec interface {
	// EncodeKey maps a plaintext key to its stored form. Deterministic per
	// (namespace, key) pair.
	EncodeKey(namespace string, key []byte) []byte

	// EncodeValue maps a plaintext value to its stored form.
	EncodeValue(value []byte) ([]byte, error)

	// DecodeValue reverses EncodeValue.
	DecodeValue(value []byte) ([]byte, error)
}

// PlainCodec stores keys and values verbatim.
type PlainCodec struct{}

func (PlainCodec) EncodeKey(_ string, key []byte) []byte { return key }

func (PlainCodec) EncodeValue(value []byte) ([]byte, error) {
	// Normalize nil to an empty slice so the value never reaches the
	// storage layer as NULL.
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (PlainCodec) DecodeValue(value []byte) ([]byte, error) { return value, nil }

// CipherCodec hashes keys and encrypts values with a StoreCipher.
type CipherCodec struct {
	cipher *StoreCipher
}

// NewCipherCodec wraps a StoreCipher as a Codec.
func NewCipherCodec(cipher *StoreCipher) *CipherCodec {
	return &CipherCodec{cipher: cipher}
}

func (c *CipherCodec) EncodeKey(namespace string, key []byte) []byte {
	return c.cipher.HashKey(namespace, key)
}

func (c *CipherCodec) EncodeValue(value []byte) ([]byte, error) {
	return c.cipher.EncryptValue(value)
}

func (c *CipherCodec) DecodeValue(value []byte) ([]byte, error) {
	return c.cipher.DecryptValue(value)
}
