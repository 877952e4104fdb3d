package pak

import (
	"crypto/aes"
	"crypto/cipher"
)

// newKeyCipher builds the AES-256 block cipher for a raw 32-byte key.
func newKeyCipher(key []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, ErrAes
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrAes
	}
	return block, nil
}

// decrypt decrypts data in place with AES-ECB. Encrypted regions in a pak
// are always padded to the 16-byte block size; a trailing partial block is
// left untouched.
func decrypt(block cipher.Block, data []byte) error {
	if block == nil {
		return ErrEncrypted
	}
	bs := block.BlockSize()
	for i := 0; i+bs <= len(data); i += bs {
		block.Decrypt(data[i:i+bs], data[i:i+bs])
	}
	return nil
}
