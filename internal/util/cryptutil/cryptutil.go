// Package cryptutil implements the at-rest confidentiality transform for
// message bodies: AES-256-CBC with a random IV, wire form
// "hex(iv):hex(ciphertext)". The transform degrades instead of failing:
// encryption errors fall back to plaintext and decryption errors return
// the stored value unchanged, so legacy rows stay readable.
package cryptutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"strings"
)

const sep = ":"

// Box holds a derived 32-byte key.
type Box struct {
	key [32]byte
}

// New derives a Box from an arbitrary secret. A secret that is not exactly
// 32 bytes is normalized through SHA-256 so any configured string works.
func New(secret string) *Box {
	b := &Box{}
	if len(secret) == aes.BlockSize*2 {
		copy(b.key[:], secret)
	} else {
		b.key = sha256.Sum256([]byte(secret))
	}
	return b
}

// Encrypt returns "hex(iv):hex(cipher)" for text. Empty input and any
// internal failure return the input unchanged; the write must not block
// on the transform.
func (b *Box) Encrypt(text string) string {
	if text == "" {
		return text
	}
	out, err := b.encrypt(text)
	if err != nil {
		log.Printf("cryptutil: encrypt failed, storing plaintext: %v", err)
		return text
	}
	return out
}

func (b *Box) encrypt(text string) (string, error) {
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}
	padded := pad([]byte(text))
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)
	return hex.EncodeToString(iv) + sep + hex.EncodeToString(ct), nil
}

// Decrypt inverts Encrypt. Input without the separator is assumed to be a
// legacy plaintext row and returned as-is; malformed ciphertext likewise.
func (b *Box) Decrypt(text string) string {
	if text == "" || !strings.Contains(text, sep) {
		return text
	}
	out, err := b.decrypt(text)
	if err != nil {
		return text
	}
	return out
}

var errMalformed = errors.New("cryptutil: malformed ciphertext")

func (b *Box) decrypt(text string) (string, error) {
	ivHex, ctHex, _ := strings.Cut(text, sep)
	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != aes.BlockSize {
		return "", errMalformed
	}
	ct, err := hex.DecodeString(ctHex)
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", errMalformed
	}
	block, err := aes.NewCipher(b.key[:])
	if err != nil {
		return "", err
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	out, err := unpad(pt)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errMalformed
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errMalformed
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errMalformed
		}
	}
	return b[:len(b)-n], nil
}
