// Package users implements the peripheral account store: salted
// password hashing, self-serve registration, password change, and opaque
// per-user config get/set. Password hashing uses golang.org/x/crypto's
// bcrypt subpackage, since the concern here is storage hashing rather
// than wire-protocol ciphering.
package users

import (
	"fmt"
	"regexp"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 16
	maxConfigBytes = 10000
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,15}$`)

// Record is one stored account.
type Record struct {
	Username        string
	PasswordHash    string
	Config          string
	Admin           bool
	SelfServeOrigin string
}

// Store is an in-memory, mutex-guarded account table. Snapshots persist it
// via the records it returns from All/Restore.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*Record
}

// NewStore returns an empty account store.
func NewStore() *Store {
	return &Store{accounts: make(map[string]*Record)}
}

// Restore replaces the store's contents, used when loading a snapshot.
func (s *Store) Restore(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = make(map[string]*Record, len(records))
	for i := range records {
		r := records[i]
		s.accounts[r.Username] = &r
	}
}

// All returns every stored account, for snapshotting.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.accounts))
	for _, r := range s.accounts {
		out = append(out, *r)
	}
	return out
}

// ValidUsername checks the username shape: ASCII alphanumeric, not
// starting with a digit, 3-16 chars.
func ValidUsername(u string) bool {
	return len(u) >= minUsernameLen && len(u) <= maxUsernameLen && usernamePattern.MatchString(u)
}

// Create registers a new account. It stops on the first validation
// failure rather than continuing to apply partial state.
func (s *Store) Create(username, password, cfg string, admin bool, selfServeOrigin string) error {
	if !ValidUsername(username) {
		return fmt.Errorf("users: invalid username %q", username)
	}
	if len(cfg) > maxConfigBytes {
		return fmt.Errorf("users: config exceeds %d bytes", maxConfigBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[username]; exists {
		return fmt.Errorf("users: %q already exists", username)
	}
	s.accounts[username] = &Record{
		Username:        username,
		PasswordHash:    string(hash),
		Config:          cfg,
		Admin:           admin,
		SelfServeOrigin: selfServeOrigin,
	}
	return nil
}

// Authenticate checks username/password and returns the matching record.
func (s *Store) Authenticate(username, password string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("users: unknown account %q", username)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("users: bad password for %q", username)
	}
	return rec, nil
}

// ChangePassword authenticates then replaces the stored hash.
func (s *Store) ChangePassword(username, oldPassword, newPassword string) error {
	if _, err := s.Authenticate(username, oldPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("users: hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username].PasswordHash = string(hash)
	return nil
}

// GetConfig authenticates then returns the stored opaque config string.
func (s *Store) GetConfig(username, password string) (string, error) {
	rec, err := s.Authenticate(username, password)
	if err != nil {
		return "", err
	}
	return rec.Config, nil
}

// SetConfig authenticates then replaces the stored opaque config string.
func (s *Store) SetConfig(username, password, cfg string) error {
	if len(cfg) > maxConfigBytes {
		return fmt.Errorf("users: config exceeds %d bytes", maxConfigBytes)
	}
	if _, err := s.Authenticate(username, password); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username].Config = cfg
	return nil
}

// IsAdmin authenticates then reports the account's admin flag, for
// authorising cleanShutdown/dirtyShutdown.
func (s *Store) IsAdmin(username, password string) (bool, error) {
	rec, err := s.Authenticate(username, password)
	if err != nil {
		return false, err
	}
	return rec.Admin, nil
}
