// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

// Package vault implements envelope encryption for long-lived tenant
// secrets (game API keys, bot tokens) at rest.
//
// Algorithm:
//   - Key derivation: scrypt with a fresh 32-byte salt per secret
//   - Cipher: AES-256-GCM with a fresh 16-byte IV per secret
//   - Blob layout: base64(salt[32] || iv[16] || tag[16] || ciphertext)
//
// Every Encrypt call produces a different blob for the same plaintext.
// Decryption verifies the GCM authentication tag; a mismatch (tampered
// blob or wrong passphrase) fails with ErrIntegrity and never yields
// partial plaintext. All tenants' secrets are encrypted under one
// process-wide master passphrase; per-secret salts keep derived keys
// distinct.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 32
	ivSize   = 16
	tagSize  = 16
	keySize  = 32

	// scrypt cost parameters. Interactive-to-moderate hardness: the KDF
	// runs once per secret per session bootstrap, not per request.
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrEmptyPassphrase is returned when the master passphrase is empty.
	ErrEmptyPassphrase = errors.New("vault passphrase cannot be empty")

	// ErrEmptyPlaintext is returned when attempting to encrypt an empty secret.
	ErrEmptyPlaintext = errors.New("plaintext cannot be empty")

	// ErrInvalidCiphertext is returned when the blob is not valid base64.
	ErrInvalidCiphertext = errors.New("invalid ciphertext encoding")

	// ErrCiphertextTooShort is returned when the blob is shorter than
	// salt + iv + tag.
	ErrCiphertextTooShort = errors.New("ciphertext too short")

	// ErrIntegrity is returned when GCM tag verification fails: the blob
	// was tampered with or the passphrase is wrong. Hard failure by
	// contract; callers must not treat it as recoverable garbage.
	ErrIntegrity = errors.New("integrity check failed: tampered ciphertext or wrong passphrase")
)

// Vault encrypts and decrypts opaque secret strings under a single
// master passphrase.
type Vault struct {
	passphrase []byte
}

// New creates a Vault with the given master passphrase.
func New(passphrase string) (*Vault, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Vault{passphrase: []byte(passphrase)}, nil
}

// Encrypt encrypts a plaintext secret and returns the base64 blob.
// A fresh salt and IV are generated on every call.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext; the stored layout keeps
	// the tag before it, so split and reorder.
	sealed := gcm.Seal(nil, iv, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	blob := make([]byte, 0, saltSize+ivSize+tagSize+len(ct))
	blob = append(blob, salt...)
	blob = append(blob, iv...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)

	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt parses a blob produced by Encrypt, re-derives the key from the
// embedded salt, and decrypts with tag verification. Fails with
// ErrIntegrity when verification fails.
func (v *Vault) Decrypt(blob string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCiphertext, err.Error())
	}
	if len(data) < saltSize+ivSize+tagSize {
		return "", ErrCiphertextTooShort
	}

	salt := data[:saltSize]
	iv := data[saltSize : saltSize+ivSize]
	tag := data[saltSize+ivSize : saltSize+ivSize+tagSize]
	ct := data[saltSize+ivSize+tagSize:]

	gcm, err := v.aead(salt)
	if err != nil {
		return "", err
	}

	// Reassemble ciphertext||tag for GCM open.
	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plaintext), nil
}

// Validate reports whether a stored blob decrypts cleanly under the
// vault's passphrase, without exposing the plaintext to the caller.
func (v *Vault) Validate(blob string) error {
	_, err := v.Decrypt(blob)
	return err
}

// aead derives the per-secret key from the salt and builds the GCM cipher.
func (v *Vault) aead(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(v.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// MaskSecret returns a masked rendering of a secret for log output,
// showing only the last 4 characters.
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****..." + secret[len(secret)-4:]
}
