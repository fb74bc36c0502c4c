// Package bls implements a go-wrapper around a library implementing the
// BLS12-381 curve. This package exposes a public API for signing,
// verifying and aggregating BLS signatures used by the beacon chain.
package bls

import (
	bls12 "github.com/herumi/bls-eth-go-binary/bls"
	"github.com/pkg/errors"

	"github.com/meridianchain/meridian/shared/bytesutil"
	"github.com/meridianchain/meridian/shared/hashutil"
)

func init() {
	if err := bls12.Init(bls12.BLS12_381); err != nil {
		panic(err)
	}
	if err := bls12.SetETHmode(bls12.EthModeDraft07); err != nil {
		panic(err)
	}
	// Check subgroup order for pubkeys and signatures.
	bls12.VerifyPublicKeyOrder(true)
	bls12.VerifySignatureOrder(true)
}

// SecretKey used in the BLS signature scheme.
type SecretKey struct {
	p *bls12.SecretKey
}

// PublicKey corresponding to secret key used in the BLS signature scheme.
type PublicKey struct {
	p *bls12.PublicKey
}

// Signature used in the BLS signature scheme.
type Signature struct {
	s *bls12.Sign
}

// RandKey creates a new private key using a random input.
func RandKey() *SecretKey {
	sec := &bls12.SecretKey{}
	sec.SetByCSPRNG()
	return &SecretKey{p: sec}
}

// SecretKeyFromBytes creates a BLS private key from a byte slice.
func SecretKeyFromBytes(b []byte) (*SecretKey, error) {
	sec := &bls12.SecretKey{}
	if err := sec.Deserialize(b); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal bytes into secret key")
	}
	return &SecretKey{p: sec}, nil
}

// PublicKeyFromBytes creates a BLS public key from a byte slice.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	pub := &bls12.PublicKey{}
	if err := pub.Deserialize(b); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal bytes into public key")
	}
	return &PublicKey{p: pub}, nil
}

// SignatureFromBytes creates a BLS signature from a byte slice.
func SignatureFromBytes(b []byte) (*Signature, error) {
	// Copy into a fresh allocation: cgo rejects interior pointers into
	// objects that also hold Go pointers (e.g. a signature array field
	// sliced out of a struct with slice fields).
	buf := make([]byte, len(b))
	copy(buf, b)
	s := &bls12.Sign{}
	if err := s.Deserialize(buf); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal bytes into signature")
	}
	return &Signature{s: s}, nil
}

// PublicKey obtains the public key corresponding to the BLS secret key.
func (k *SecretKey) PublicKey() *PublicKey {
	return &PublicKey{p: k.p.GetPublicKey()}
}

// Marshal a secret key into a byte slice.
func (k *SecretKey) Marshal() []byte {
	return k.p.Serialize()
}

// Sign a message using a secret key. The message is combined with the
// domain before signing, so two signatures over the same bytes under
// different domains never verify for each other.
func (k *SecretKey) Sign(msg []byte, domain uint64) *Signature {
	signingRoot := hashWithDomain(msg, domain)
	return &Signature{s: k.p.SignByte(signingRoot[:])}
}

// Marshal a public key into a byte slice.
func (p *PublicKey) Marshal() []byte {
	return p.p.Serialize()
}

// Copy the public key to a new pointer reference.
func (p *PublicKey) Copy() *PublicKey {
	np := *p.p
	return &PublicKey{p: &np}
}

// Aggregate two public keys. Mutates and returns the receiver.
func (p *PublicKey) Aggregate(p2 *PublicKey) *PublicKey {
	p.p.Add(p2.p)
	return p
}

// Verify a bls signature given a public key, a message and a domain.
func (s *Signature) Verify(msg []byte, pub *PublicKey, domain uint64) bool {
	signingRoot := hashWithDomain(msg, domain)
	return s.s.VerifyByte(pub.p, signingRoot[:])
}

// Marshal a signature into a byte slice.
func (s *Signature) Marshal() []byte {
	return s.s.Serialize()
}

// AggregatePublicKeys sums the given keys into a single group public key.
// Returns an error for an empty key list since there is no meaningful
// identity to verify against.
func AggregatePublicKeys(pubs []*PublicKey) (*PublicKey, error) {
	if len(pubs) == 0 {
		return nil, errors.New("nothing to aggregate, no public keys provided")
	}
	agg := pubs[0].Copy()
	for _, p := range pubs[1:] {
		agg.Aggregate(p)
	}
	return agg, nil
}

// AggregateSignatures converts a list of signatures into a single, aggregated one.
func AggregateSignatures(sigs []*Signature) (*Signature, error) {
	if len(sigs) == 0 {
		return nil, errors.New("nothing to aggregate, no signatures provided")
	}
	agg := &bls12.Sign{}
	*agg = *sigs[0].s
	for _, s := range sigs[1:] {
		agg.Add(s.s)
	}
	return &Signature{s: agg}, nil
}

// hashWithDomain returns the message digest signed by validators. The
// 8-byte big-endian domain is appended before hashing.
func hashWithDomain(msg []byte, domain uint64) [32]byte {
	return hashutil.Hash(append(msg, bytesutil.Bytes8(domain)...))
}
