package cidutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/xellDart/ERC721-IP/model"
)

var ErrNotCertificateCID = errors.New("cid is not a raw keccak-256 certificate id")

// FromDigest wraps a certificate digest as a CIDv1 using the "raw"
// multicodec and a keccak-256 multihash. The digest is already the hash, so
// it is encoded, not re-hashed.
func FromDigest(d model.Digest) (cid.Cid, error) {
	mh, err := multihash.Encode(d[:], multihash.KECCAK_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, multihash.Multihash(mh)), nil
}

// String is FromDigest rendered in the default base32 form.
func String(d model.Digest) string {
	id, err := FromDigest(d)
	if err != nil {
		// unreachable: the digest length always matches keccak-256
		return ""
	}
	return id.String()
}

// ToDigest parses a CID produced by FromDigest back into the digest.
func ToDigest(s string) (model.Digest, error) {
	var d model.Digest
	id, err := cid.Decode(s)
	if err != nil {
		return d, err
	}
	if id.Prefix().Codec != cid.Raw {
		return d, ErrNotCertificateCID
	}
	dec, err := multihash.Decode(id.Hash())
	if err != nil {
		return d, err
	}
	if dec.Code != multihash.KECCAK_256 || len(dec.Digest) != model.DigestLength {
		return d, ErrNotCertificateCID
	}
	copy(d[:], dec.Digest)
	return d, nil
}

// ParseDigest accepts either the 0x hex form of a digest or its CID. Any
// failure wraps model.ErrInvalidDigest.
func ParseDigest(s string) (model.Digest, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return model.ParseDigest(s)
	}
	d, err := ToDigest(s)
	if err != nil {
		return d, fmt.Errorf("%w: %v", model.ErrInvalidDigest, err)
	}
	return d, nil
}
