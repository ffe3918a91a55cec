// Package cryptohelper seals small values, such as the OAuth state cookie, with
// AES-256-GCM so they can round-trip through an untrusted client.
package cryptohelper

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeyLength is the AES-256 key size.
const KeyLength = 32

// DeriveKey expands an application secret into a purpose-bound AES key with
// HKDF-SHA256. The purpose is the HKDF info, so one secret never keys two uses.
func DeriveKey(secret, purpose string) []byte {
	key := make([]byte, KeyLength)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		// HKDF-SHA256 only fails past 255*32 bytes of output
		panic("cryptohelper: hkdf: " + err.Error())
	}
	return key
}

// Seal encrypts plaintext and returns base64url(nonce||ciphertext).
// The aad parameter is authenticated but not encrypted.
func Seal(key, plaintext, aad []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, aad)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal with the same key and aad.
func Open(key []byte, sealed string, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, errors.New("malformed sealed value")
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("sealed value too short")
	}
	nonce, ct := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, errors.New("invalid key length")
	}
	blk, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(blk)
}
