package typeddata

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xellDart/ERC721-IP/model"
)

// Domain is the EIP712Domain separator input. All four fields are always
// part of the encoding.
type Domain struct {
	Name              string        `json:"name"`
	Version           string        `json:"version"`
	ChainID           uint64        `json:"chainId"`
	VerifyingContract model.Address `json:"verifyingContract"`
}

var domainTypes = Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
}

// DomainFields returns the EIP712Domain field list, as wallets expect it in
// the "types" section of a signing request.
func DomainFields() []Field {
	return append([]Field(nil), domainTypes["EIP712Domain"]...)
}

// Separator returns hashStruct(EIP712Domain, d).
func (d Domain) Separator() [32]byte {
	h, err := domainTypes.HashStruct("EIP712Domain", Message{
		"name":              d.Name,
		"version":           d.Version,
		"chainId":           d.ChainID,
		"verifyingContract": d.VerifyingContract,
	})
	if err != nil {
		// Every domain field is a valid value for its declared type.
		panic(fmt.Sprintf("typeddata: domain separator: %v", err))
	}
	return h
}

// FormatBytes32String encodes s as a zero-padded bytes32. Strings longer than
// 32 bytes fail with ErrInputTooLong instead of being truncated. A NUL byte is
// rejected with ErrInvalidValue, otherwise "a" and "a\x00" would encode alike.
func FormatBytes32String(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > 32 {
		return out, fmt.Errorf("%w: %q is %d bytes", ErrInputTooLong, s, len(s))
	}
	if strings.IndexByte(s, 0) >= 0 {
		return out, fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidValue, s)
	}
	copy(out[:], s)
	return out, nil
}

// ParseBytes32String reverses FormatBytes32String, dropping trailing zeros.
func ParseBytes32String(b [32]byte) string {
	return string(bytes.TrimRight(b[:], "\x00"))
}
