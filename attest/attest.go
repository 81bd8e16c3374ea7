// Package attest defines the attestation schemas a certificate can be
// issued under, the typed data each one signs, and the digest each one is
// registered by.
//
// The digest is a domain-free hashStruct over the public certification
// fields only, so anyone holding the title and checksums can recompute it
// without the signature.
package attest

import (
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
)

// Schema names an attestation layout.
type Schema string

const (
	SchemaV1 Schema = "v1"
	SchemaV2 Schema = "v2"
)

// ChecksumHexLength is the length of a hex-encoded SHA-512 checksum.
const ChecksumHexLength = 128

var (
	ErrEmptyContents   = errors.New("attest: contents must not be empty")
	ErrInvalidChecksum = errors.New("attest: content checksum must be 128 hex characters")
	ErrInvalidCreation = errors.New("attest: creation timestamp must not be negative")
	ErrUnknownSchema   = errors.New("attest: unknown schema")
)

// Attestation is implemented by V1 and V2.
type Attestation interface {
	Schema() Schema
	// Validate reports input-shape errors before anything is hashed.
	Validate() error
	// TypedData is the payload the owner signs under domain.
	TypedData(domain typeddata.Domain) (typeddata.TypedData, error)
	// Digest is the registry key of the certificate.
	Digest() (model.Digest, error)
}

// ParseSchema accepts "v1" and "v2"; the empty string selects v2.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case "", SchemaV2:
		return SchemaV2, nil
	case SchemaV1:
		return SchemaV1, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSchema, s)
}

// Checksum returns the lowercase hex SHA-512 of everything read from r.
func Checksum(r io.Reader) (string, error) {
	h := sha512.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func validateContents(contents []string) error {
	if len(contents) == 0 {
		return ErrEmptyContents
	}
	for i, c := range contents {
		if len(c) != ChecksumHexLength {
			return fmt.Errorf("%w: contents[%d] has %d characters", ErrInvalidChecksum, i, len(c))
		}
		if _, err := hex.DecodeString(c); err != nil {
			return fmt.Errorf("%w: contents[%d]: %v", ErrInvalidChecksum, i, err)
		}
	}
	return nil
}

func identity(id model.Identity) (typeddata.Message, error) {
	name, err := typeddata.FormatBytes32String(id.Name)
	if err != nil {
		return nil, fmt.Errorf("identity name: %w", err)
	}
	return typeddata.Message{"name": name, "wallet": id.Wallet}, nil
}

func digestOf(types typeddata.Types, msg typeddata.Message) (model.Digest, error) {
	h, err := types.HashStruct("Certificate", msg)
	if err != nil {
		return model.Digest{}, err
	}
	return model.Digest(h), nil
}

var issuerFields = []typeddata.Field{
	{Name: "name", Type: "bytes32"},
	{Name: "wallet", Type: "address"},
}

// SigningTypes returns a copy of the EIP-712 types signed under s, primary
// type "IPP". Callers may add to it.
func SigningTypes(s Schema) (typeddata.Types, error) {
	var src typeddata.Types
	switch s {
	case SchemaV1:
		src = v1Types
	case SchemaV2:
		src = v2Types
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, s)
	}
	out := make(typeddata.Types, len(src)+1)
	for name, fields := range src {
		out[name] = append([]typeddata.Field(nil), fields...)
	}
	return out, nil
}
