package service

import (
	"errors"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/ecrecover"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
)

var (
	ErrInvalidSigner        = errors.New("signature was not produced by the claimed owner")
	ErrDuplicateCertificate = errors.New("certificate already minted for this digest")
	ErrCertificateNotFound  = errors.New("certificate not found")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindInput
	KindUnauthorized
	KindConflict
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var inputErrors = []error{
	typeddata.ErrInputTooLong,
	typeddata.ErrInvalidValue,
	typeddata.ErrValueOverflow,
	attest.ErrEmptyContents,
	attest.ErrInvalidChecksum,
	attest.ErrInvalidCreation,
	attest.ErrUnknownSchema,
	ecrecover.ErrMalformedSignature,
	model.ErrInvalidAddress,
	model.ErrInvalidDigest,
}

// KindOf classifies err. Unrecognised errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidSigner):
		return KindUnauthorized
	case errors.Is(err, ErrDuplicateCertificate):
		return KindConflict
	case errors.Is(err, ErrCertificateNotFound):
		return KindNotFound
	}
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			return KindInput
		}
	}
	return KindInternal
}
