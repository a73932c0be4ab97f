package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Cipher is the optional transport-encryption collaborator spec.md §1/§6
// describes as external to the core: every Send/ReadChunk call runs
// through it transparently if one is installed. The broker and the
// reference peer client never depend on a concrete Cipher; they depend
// only on this interface.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESCBCCipher is a dev-grade symmetric collaborator grounded on the
// teacher's AES key-wrap primitive (crypto/aeskw.go): same aes.NewCipher
// entry point and the same "derive, don't hand the raw secret to the
// cipher" posture, adapted from RFC 3394 key wrapping to CBC record
// encryption since the payload here is session traffic, not a wrapped key
// blob. A real deployment's key exchange (the spec's openssl collaborator)
// is out of scope; NewAESCBCCipher takes the shared secret directly.
type AESCBCCipher struct {
	block cipher.Block
}

// NewAESCBCCipher derives a 32-byte AES-256 key from sharedSecret with
// SHA3-256 (golang.org/x/crypto/sha3, the same hash family the teacher's
// DevStdCryptoProvider uses in crypto/devstd.go) and constructs the block
// cipher.
func NewAESCBCCipher(sharedSecret []byte) (*AESCBCCipher, error) {
	if len(sharedSecret) == 0 {
		return nil, errors.New("transport: empty shared secret")
	}
	key := sha3.Sum256(sharedSecret)
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("transport: aes cipher: %w", err)
	}
	return &AESCBCCipher{block: block}, nil
}

// Encrypt prepends a random IV and PKCS#7-pads the plaintext to the block
// size before CBC-encrypting it.
func (c *AESCBCCipher) Encrypt(plaintext []byte) ([]byte, error) {
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("transport: iv: %w", err)
	}
	mode := cipher.NewCBCEncrypter(c.block, iv)
	mode.CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}

// Decrypt reverses Encrypt: strips the leading IV, CBC-decrypts, and
// removes the PKCS#7 padding.
func (c *AESCBCCipher) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aes.BlockSize || (len(ciphertext)-aes.BlockSize)%aes.BlockSize != 0 {
		return nil, errors.New("transport: ciphertext has invalid length")
	}
	iv := ciphertext[:aes.BlockSize]
	body := ciphertext[aes.BlockSize:]
	out := make([]byte, len(body))
	mode := cipher.NewCBCDecrypter(c.block, iv)
	mode.CryptBlocks(out, body)
	return pkcs7Unpad(out)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, data...), padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("transport: empty padded block")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, errors.New("transport: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
