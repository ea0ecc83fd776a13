// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package identity

import (
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fininsight/finchat/internal/model"
	"github.com/fininsight/finchat/internal/util"
)

// =============================================================================
// SESSION FILE FORMAT
// =============================================================================

// sessionFile is the on-disk representation of a signed-in session.
type sessionFile struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	Picture   string `json:"picture,omitempty"`
	Guideline string `json:"guideline,omitempty"`
	// Token is sealed (ENC:...) before writing.
	Token string `json:"token"`
	// Salt is the base64 PBKDF2 salt for this file's sealing key.
	Salt    string    `json:"salt"`
	SavedAt time.Time `json:"saved_at"`
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the authenticated account to a session file with the
// token sealed at rest. All methods are safe for concurrent use.
type Store struct {
	mu sync.Mutex

	path    string
	keyPath string
}

// NewStore creates a session store writing to path. The device secret
// lives next to the session file as <path>.key.
func NewStore(path string) *Store {
	return &Store{
		path:    path,
		keyPath: path + ".key",
	}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// =============================================================================
// HYDRATE / SAVE / LOGOUT
// =============================================================================

// Hydrate loads the persisted session, unsealing the token. Returns
// (nil, nil) when no session file exists: a missing session is signed
// out, not an error.
func (s *Store) Hydrate() (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}

	token := sf.Token
	if IsSealed(token) {
		aead, err := s.loadAEAD(sf.Salt)
		if err != nil {
			return nil, err
		}
		token, err = unseal(aead, sf.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to unseal session token: %w", err)
		}
	}

	return &model.Account{
		Email:            sf.Email,
		Name:             sf.Name,
		Picture:          sf.Picture,
		DefaultGuideline: sf.Guideline,
		Token:            token,
	}, nil
}

// Save seals the token and writes the session file atomically.
func (s *Store) Save(account *model.Account) error {
	if account == nil || !account.IsAuthenticated() {
		return errors.New("cannot save unauthenticated account")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	salt, err := generateSalt()
	if err != nil {
		return err
	}

	aead, err := s.ensureAEAD(salt)
	if err != nil {
		return err
	}

	sealed, err := seal(aead, account.Token)
	if err != nil {
		return fmt.Errorf("failed to seal session token: %w", err)
	}

	sf := sessionFile{
		Email:     account.Email,
		Name:      account.Name,
		Picture:   account.Picture,
		Guideline: account.DefaultGuideline,
		Token:     sealed,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		SavedAt:   time.Now(),
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	// SECURITY: 0600 - the session file grants backend access
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Patch is a partial account update from the account form. Nil fields
// keep their stored values.
type Patch struct {
	Name             *string
	Picture          *string
	DefaultGuideline *string
}

// Merge shallow-merges a partial update into the stored session and
// returns the merged account. Email and token are identity, not
// profile, and cannot be patched.
func (s *Store) Merge(patch Patch) (*model.Account, error) {
	account, err := s.Hydrate()
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errors.New("no stored session to update")
	}

	if patch.Name != nil {
		account.Name = *patch.Name
	}
	if patch.Picture != nil {
		account.Picture = *patch.Picture
	}
	if patch.DefaultGuideline != nil {
		account.DefaultGuideline = *patch.DefaultGuideline
	}

	if err := s.Save(account); err != nil {
		return nil, err
	}
	return account, nil
}

// Logout removes the session file and device secret. Missing files are
// not an error: logout is idempotent.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove session file: %w", err))
	}
	if err := os.Remove(s.keyPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, fmt.Errorf("failed to remove device secret: %w", err))
	}
	return errors.Join(errs...)
}

// =============================================================================
// DEVICE SECRET
// =============================================================================

// ensureAEAD loads or creates the device secret and derives the sealing
// cipher for the given salt.
func (s *Store) ensureAEAD(salt []byte) (cipher.AEAD, error) {
	secret, err := s.readSecret()
	if errors.Is(err, os.ErrNotExist) {
		secret, err = generateSecret()
		if err != nil {
			return nil, err
		}
		encoded := base64.StdEncoding.EncodeToString(secret)
		// SECURITY: 0600 - secret plus session file unseal the token
		if err := util.AtomicWriteFile(s.keyPath, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("failed to write device secret: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	defer zeroBytes(secret)

	key := deriveKey(secret, salt)
	defer zeroBytes(key)
	return newAEAD(key)
}

// loadAEAD derives the sealing cipher from an existing device secret
// and a stored base64 salt.
func (s *Store) loadAEAD(saltB64 string) (cipher.AEAD, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, fmt.Errorf("invalid session salt: %w", err)
	}

	secret, err := s.readSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to read device secret: %w", err)
	}
	defer zeroBytes(secret)

	key := deriveKey(secret, salt)
	defer zeroBytes(key)
	return newAEAD(key)
}

func (s *Store) readSecret() ([]byte, error) {
	data, err := os.ReadFile(s.keyPath)
	if err != nil {
		return nil, err
	}
	secret, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, fmt.Errorf("corrupt device secret: %w", err)
	}
	return secret, nil
}
