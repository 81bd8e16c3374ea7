package model

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

const (
	AddressLength = 20
	DigestLength  = 32
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidDigest  = errors.New("invalid digest")
)

// Address is a 20-byte account identifier derived from a secp256k1 public key.
type Address [AddressLength]byte

// Digest is the content-addressed primary key of a Certificate.
type Digest [DigestLength]byte

// Identity names a party inside an attestation. Name is encoded as bytes32.
type Identity struct {
	Name   string
	Wallet Address
}

// Certificate is the registry record created once per Digest.
type Certificate struct {
	Digest   Digest
	Owner    Address
	Schema   string
	MintedAt time.Time
}

// ParseAddress decodes a 0x-prefixed, 40 hex character address. Mixed case
// is accepted without checksum enforcement.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := decodeFixedHex(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is ParseAddress for constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) IsZero() bool { return a == Address{} }

// Hex returns the EIP-55 mixed-case checksum encoding.
func (a Address) Hex() string {
	lower := hex.EncodeToString(a[:])
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	sum := h.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' {
			continue
		}
		nibble := sum[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f >= 8 {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}

func (a Address) String() string { return a.Hex() }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseDigest decodes a 0x-prefixed, 64 hex character digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := decodeFixedHex(s, DigestLength)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) Hex() string { return "0x" + hex.EncodeToString(d[:]) }

func (d Digest) String() string { return d.Hex() }

func (d Digest) MarshalText() ([]byte, error) { return []byte(d.Hex()), nil }

func (d *Digest) UnmarshalText(b []byte) error {
	parsed, err := ParseDigest(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func decodeFixedHex(s string, size int) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, errors.New("missing 0x prefix")
	}
	s = s[2:]
	if len(s) != size*2 {
		return nil, fmt.Errorf("want %d hex characters, got %d", size*2, len(s))
	}
	return hex.DecodeString(s)
}
