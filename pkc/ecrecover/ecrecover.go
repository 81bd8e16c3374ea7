// Package ecrecover recovers Ethereum-style signer addresses from secp256k1
// signatures, and signs hashes in the same 65-byte r || s || v layout.
package ecrecover

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"golang.org/x/crypto/sha3"

	"github.com/xellDart/ERC721-IP/model"
)

// SignatureLength is the size of an r || s || v signature.
const SignatureLength = 65

var ErrMalformedSignature = errors.New("malformed signature")

var halfOrder = new(big.Int).Rsh(btcec.S256().Params().N, 1)

// Recover returns the address whose key produced sig over hash.
//
// A signature of the wrong size, with a recovery id outside {0,1,27,28} or
// with a high s value fails with ErrMalformedSignature. Any other signature
// yields an address and no error; when it was not made over hash the address
// simply will not match the expected signer. If the curve has no point for
// r the zero address is returned.
func Recover(hash [32]byte, sig []byte) (model.Address, error) {
	if len(sig) != SignatureLength {
		return model.Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return model.Address{}, fmt.Errorf("%w: invalid recovery id %d", ErrMalformedSignature, sig[64])
	}
	if new(big.Int).SetBytes(sig[32:64]).Cmp(halfOrder) > 0 {
		return model.Address{}, fmt.Errorf("%w: s value in upper half of curve order", ErrMalformedSignature)
	}

	compact := make([]byte, SignatureLength)
	compact[0] = v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return model.Address{}, nil
	}
	return PubkeyToAddress(pub), nil
}

// Sign produces an r || s || v signature (v in {27,28}) over hash.
// The signature is deterministic (RFC 6979) and always low-s.
func Sign(hash [32]byte, priv *btcec.PrivateKey) []byte {
	compact := ecdsa.SignCompact(priv, hash[:], false)
	sig := make([]byte, SignatureLength)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return sig
}

// PubkeyToAddress is the last 20 bytes of keccak256 over the uncompressed
// public key without its 0x04 prefix.
func PubkeyToAddress(pub *btcec.PublicKey) model.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	sum := h.Sum(nil)
	var a model.Address
	copy(a[:], sum[12:])
	return a
}

// GenerateKey creates a new secp256k1 private key and its address.
func GenerateKey() (*btcec.PrivateKey, model.Address, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, model.Address{}, err
	}
	return priv, PubkeyToAddress(priv.PubKey()), nil
}

// ParsePrivateKeyHex parses a 32-byte hex private key, with or without 0x.
func ParsePrivateKeyHex(hexKey string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}

// ParseSignatureHex decodes a 0x-prefixed hex signature without checking it.
func ParseSignatureHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return b, nil
}
