// Package keystore mediates access to validator keys. Consumers see
// public keys by registry index and an opaque signing capability; no
// caller ever holds secret key material directly.
package keystore

import (
	"sync"

	"github.com/meridianchain/meridian/shared/bls"
)

// KeyProvider resolves a validator registry index to its public key.
type KeyProvider interface {
	PublicKeyByIndex(index uint64) (*bls.PublicKey, bool)
}

// Signer is a signing capability bound to a single validator key.
type Signer interface {
	Sign(message []byte, domain uint64) *bls.Signature
}

// MemoryKeyStore holds validator keys in memory. Used by the scenario
// harness and tests; a production node would back this with an
// encrypted on-disk store.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[uint64]*bls.SecretKey
}

// NewMemoryKeyStore creates an empty in-memory key store.
func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{keys: make(map[uint64]*bls.SecretKey)}
}

// AddKey registers a secret key under a validator index, replacing any
// previous key for that index.
func (s *MemoryKeyStore) AddKey(index uint64, sec *bls.SecretKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[index] = sec
}

// PublicKeyByIndex returns the public key registered for the index.
func (s *MemoryKeyStore) PublicKeyByIndex(index uint64) (*bls.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.keys[index]
	if !ok {
		return nil, false
	}
	return sec.PublicKey(), true
}

// SignerByIndex returns the signing capability for the index.
func (s *MemoryKeyStore) SignerByIndex(index uint64) (Signer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sec, ok := s.keys[index]
	if !ok {
		return nil, false
	}
	return &memorySigner{sec: sec}, true
}

type memorySigner struct {
	sec *bls.SecretKey
}

func (m *memorySigner) Sign(message []byte, domain uint64) *bls.Signature {
	return m.sec.Sign(message, domain)
}
