package cidutil

import (
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/stretchr/testify/require"

	"github.com/xellDart/ERC721-IP/model"
)

func TestDigestRoundTrip(t *testing.T) {
	d, err := model.ParseDigest("0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2")
	require.NoError(t, err)

	s := String(d)
	require.True(t, strings.HasPrefix(s, "b"), "want base32 multibase, got %q", s)

	id, err := FromDigest(d)
	require.NoError(t, err)
	require.Equal(t, uint64(1), id.Version())
	require.Equal(t, uint64(cid.Raw), id.Prefix().Codec)
	require.Equal(t, uint64(multihash.KECCAK_256), id.Prefix().MhType)

	back, err := ToDigest(s)
	require.NoError(t, err)
	require.Equal(t, d, back)
}

func TestDistinctDigestsDistinctCIDs(t *testing.T) {
	var a, b model.Digest
	b[31] = 1
	require.NotEqual(t, String(a), String(b))
}

func TestToDigestRejectsForeignCIDs(t *testing.T) {
	sum, err := multihash.Sum([]byte("hello"), multihash.SHA2_256, -1)
	require.NoError(t, err)

	_, err = ToDigest(cid.NewCidV1(cid.Raw, sum).String())
	require.ErrorIs(t, err, ErrNotCertificateCID)

	var d model.Digest
	mh, err := multihash.Encode(d[:], multihash.KECCAK_256)
	require.NoError(t, err)
	_, err = ToDigest(cid.NewCidV1(cid.DagCBOR, multihash.Multihash(mh)).String())
	require.ErrorIs(t, err, ErrNotCertificateCID)

	_, err = ToDigest("not a cid")
	require.Error(t, err)
}

func TestParseDigestAcceptsHexOrCID(t *testing.T) {
	var d model.Digest
	d[0], d[31] = 0xbe, 0xd2

	fromHex, err := ParseDigest(d.Hex())
	require.NoError(t, err)
	require.Equal(t, d, fromHex)

	fromCID, err := ParseDigest(String(d))
	require.NoError(t, err)
	require.Equal(t, d, fromCID)

	for _, bad := range []string{"", "0x1234", "bafy-not-a-cid", cid.NewCidV1(cid.Raw, mustSHA256(t)).String()} {
		_, err := ParseDigest(bad)
		require.ErrorIs(t, err, model.ErrInvalidDigest, bad)
	}
}

func mustSHA256(t *testing.T) multihash.Multihash {
	t.Helper()
	sum, err := multihash.Sum([]byte("hello"), multihash.SHA2_256, -1)
	require.NoError(t, err)
	return sum
}
