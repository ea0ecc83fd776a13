// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity persists the signed-in account between runs.
//
// The backend session token is sealed with AES-256-GCM before touching
// disk; the sealing key is derived with PBKDF2-SHA-256 from a random
// device secret kept alongside the session file.
package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a value as sealed (format: ENC:base64(nonce|ciphertext|tag))
const SealedPrefix = "ENC:"

// NonceSize is the size of the nonce/IV for AES-GCM (12 bytes / 96 bits)
const NonceSize = 12

// KeySize is the size of the AES-256 key (32 bytes / 256 bits)
const KeySize = 32

// SaltSize is the size of the salt for key derivation (32 bytes)
const SaltSize = 32

// PBKDF2Iterations is the number of iterations for PBKDF2 key derivation.
// OWASP 2023 recommends 600,000+ for PBKDF2-SHA-256.
const PBKDF2Iterations = 600000

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the sealed value format is invalid
	ErrInvalidCiphertext = errors.New("invalid sealed value format")
	// ErrUnsealFailed indicates unsealing failed (wrong key or tampered data)
	ErrUnsealFailed = errors.New("unseal failed: authentication tag mismatch")
)

// =============================================================================
// SECURITY HELPER FUNCTIONS
// =============================================================================

// zeroBytes zeros sensitive byte slices to prevent memory disclosure.
// SECURITY: Zero key material to prevent memory disclosure via crash dumps.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// =============================================================================
// KEY DERIVATION
// =============================================================================

// generateSecret generates a cryptographically secure random device secret.
func generateSecret() ([]byte, error) {
	secret := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate device secret: %w", err)
	}
	return secret, nil
}

// generateSalt generates a cryptographically secure random salt.
func generateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// deriveKey stretches the device secret into a sealing key using
// PBKDF2-SHA-256 (NIST SP 800-132).
func deriveKey(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, PBKDF2Iterations, KeySize, sha256.New)
}

// newAEAD builds the AES-256-GCM cipher for a derived key.
func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return gcm, nil
}

// =============================================================================
// SEAL / UNSEAL
// =============================================================================

// seal encrypts plaintext and returns ENC:base64(nonce|ciphertext|tag).
func seal(aead cipher.AEAD, plaintext string) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// unseal decrypts a value produced by seal. Values without the ENC:
// prefix are returned as-is for forward compatibility with plaintext
// session files written by older builds.
func unseal(aead cipher.AEAD, value string) (string, error) {
	if !strings.HasPrefix(value, SealedPrefix) {
		return value, nil
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(data) < NonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrUnsealFailed
	}
	return string(plaintext), nil
}

// IsSealed checks if a value carries the sealed marker.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}
