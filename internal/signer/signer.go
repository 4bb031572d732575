// Package signer provides the ECDSA P-256 signers used for export files,
// object metadata and federation payloads.
//
// A Signer always returns an ASN.1 DER signature; JWS converts it to the
// fixed-width form JOSE expects.
package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

// Signer signs data with ECDSA P-256/SHA-256 and returns a DER signature.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
}

// LocalSigner signs with an in-process private key.
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

// Sign hashes data with SHA-256 and signs the digest.
func (s *LocalSigner) Sign(_ context.Context, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

// Public returns the verification key.
func (s *LocalSigner) Public() *ecdsa.PublicKey {
	return &s.key.PublicKey
}

// LoadLocalSigner reads a PEM encoded PKCS#8 or SEC 1 EC private key.
func LoadLocalSigner(path string) (*LocalSigner, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := ParsePrivateKey(b)
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(key), nil
}

// ParsePrivateKey decodes the first PEM block of b into an ECDSA key.
func ParsePrivateKey(b []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: %T", common.ErrUnsupportedKey, key)
		}
		return ec, nil
	}

	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse EC private key: %w", err)
	}
	return key, nil
}

// ParsePublicKey decodes a PEM "PUBLIC KEY" block. A private key PEM is
// also accepted and its public half returned.
func ParsePublicKey(b []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if block.Type != "PUBLIC KEY" {
		key, err := ParsePrivateKey(b)
		if err != nil {
			return nil, err
		}
		return &key.PublicKey, nil
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", common.ErrUnsupportedKey, key)
	}
	return ec, nil
}
