package service_test

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/ecrecover"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
	"github.com/xellDart/ERC721-IP/service"
	"github.com/xellDart/ERC721-IP/store/memory"
)

const (
	signerKey = "d3f0dfd31a6344648c5481eb59aa23e47e18638c9825e93093a048b0f63b7fa5"
	checksumH = "210aae6c8f9c7c4b23ee2cd0471c75ac7621076136d97f187a9580a93eb1817c3d7bb9f8dbb7426e33f7d60f27b75ede867ff83b3301a8a5b249f92591c88ece"
)

var checksumG = strings.Repeat("ab", 64)

// fakeStore wraps the memory store, counting writes and injecting failures.
type fakeStore struct {
	*memory.Store
	mu        sync.Mutex
	inserts   int
	insertErr error
}

func newFakeStore() *fakeStore { return &fakeStore{Store: memory.NewStore()} }

func (f *fakeStore) InsertCertificate(ctx context.Context, c *model.Certificate) error {
	f.mu.Lock()
	f.inserts++
	err := f.insertErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Store.InsertCertificate(ctx, c)
}

func (f *fakeStore) insertCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inserts
}

func v1Options() service.Options {
	opts := service.DefaultOptions()
	opts.Schema = attest.SchemaV1
	return opts
}

func sign(t *testing.T, opts service.Options, c service.Claim, priv *btcec.PrivateKey) []byte {
	t.Helper()
	hash, err := opts.SigningHash(c)
	require.NoError(t, err)
	return ecrecover.Sign(hash, priv)
}

func newKey(t *testing.T) (*btcec.PrivateKey, model.Address) {
	t.Helper()
	priv, addr, err := ecrecover.GenerateKey()
	require.NoError(t, err)
	return priv, addr
}

func TestMint_V1Scenario(t *testing.T) {
	ctx := context.Background()
	opts := v1Options()
	reg := service.New(memory.NewStore(), opts)

	priv, err := ecrecover.ParsePrivateKeyHex(signerKey)
	require.NoError(t, err)
	owner := ecrecover.PubkeyToAddress(priv.PubKey())

	claim := service.Claim{Owner: owner, Title: "Certification title", Contents: []string{checksumH, checksumH}}

	// computed by a separate EIP-712 encoder that reproduces the "Ether Mail" vector
	hash, err := opts.SigningHash(claim)
	require.NoError(t, err)
	require.Equal(t, "0e649f21ac980d5d3a52ee573a7a5cbbebd4ed359904a60c83fc9bde12ce9d4c", hex.EncodeToString(hash[:]))

	sig := sign(t, opts, claim, priv)

	got, err := reg.RecoverSigner(ctx, claim, sig)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	require.Equal(t, "IPP", reg.Symbol())

	bal, err := reg.BalanceOf(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bal)

	cert, err := reg.Mint(ctx, claim, sig)
	require.NoError(t, err)
	require.Equal(t, "v1", cert.Schema)

	bal, err = reg.BalanceOf(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal)

	digest, err := reg.GenerateDigest(claim)
	require.NoError(t, err)
	require.Equal(t, cert.Digest, digest)
	require.Equal(t, "0x026e5295b36ecb8d1822d982527a97cfd284b4e8a06eedb37bda3e3dd45474f3", digest.Hex())

	tokenOwner, err := reg.OwnerOf(ctx, digest)
	require.NoError(t, err)
	require.Equal(t, owner, tokenOwner)
}

func TestV2_PinnedHashes(t *testing.T) {
	opts := service.DefaultOptions()
	reg := service.New(memory.NewStore(), opts)
	claim := service.Claim{
		Owner:     model.MustParseAddress("0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"),
		OwnerName: "Ada",
		Title:     "Certification title",
		Creation:  1600000000000,
		Contents:  []string{checksumH},
	}

	hash, err := opts.SigningHash(claim)
	require.NoError(t, err)
	require.Equal(t, "eff7fe2cdd845885b53474c64c0f2a8f437b72162b7be171b4800bb7f43b456a", hex.EncodeToString(hash[:]))

	digest, err := reg.GenerateDigest(claim)
	require.NoError(t, err)
	require.Equal(t, "0x402586e6020ca249c3e369c0e7c494c35ab6b2f27094adebbaa6d69650e58827", digest.Hex())
}

func TestMint_V2CreationChangeAllowsRemint(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	reg := service.New(memory.NewStore(), opts)
	priv, owner := newKey(t)

	first := service.Claim{Owner: owner, OwnerName: "Ada", Title: "Certification title", Creation: 1600000000000, Contents: []string{checksumH}}
	second := first
	second.Creation++

	d1, err := reg.GenerateDigest(first)
	require.NoError(t, err)
	d2, err := reg.GenerateDigest(second)
	require.NoError(t, err)
	require.NotEqual(t, d1, d2)

	_, err = reg.Mint(ctx, first, sign(t, opts, first, priv))
	require.NoError(t, err)
	_, err = reg.Mint(ctx, second, sign(t, opts, second, priv))
	require.NoError(t, err)

	bal, err := reg.BalanceOf(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(2), bal)
}

func TestMint_DuplicateRegardlessOfSignerOrOwner(t *testing.T) {
	ctx := context.Background()
	opts := v1Options()
	fs := newFakeStore()
	reg := service.New(fs, opts)

	privA, a := newKey(t)
	privB, b := newKey(t)

	claimA := service.Claim{Owner: a, Title: "Work", Contents: []string{checksumH}}
	sigA := sign(t, opts, claimA, privA)
	_, err := reg.Mint(ctx, claimA, sigA)
	require.NoError(t, err)

	// same signature again
	_, err = reg.Mint(ctx, claimA, sigA)
	require.ErrorIs(t, err, service.ErrDuplicateCertificate)
	require.Equal(t, service.KindConflict, service.KindOf(err))

	// another owner with a valid signature of their own
	claimB := claimA
	claimB.Owner = b
	_, err = reg.Mint(ctx, claimB, sign(t, opts, claimB, privB))
	require.ErrorIs(t, err, service.ErrDuplicateCertificate)

	// a foreign signature or a garbage one still reports the duplicate
	_, err = reg.Mint(ctx, claimA, sign(t, opts, claimA, privB))
	require.ErrorIs(t, err, service.ErrDuplicateCertificate)
	require.Equal(t, service.KindConflict, service.KindOf(err))
	_, err = reg.Mint(ctx, claimA, []byte{1, 2, 3})
	require.ErrorIs(t, err, service.ErrDuplicateCertificate)

	digest, err := reg.GenerateDigest(claimA)
	require.NoError(t, err)
	owner, err := reg.OwnerOf(ctx, digest)
	require.NoError(t, err)
	require.Equal(t, a, owner)

	bal, err := reg.BalanceOf(ctx, b)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bal)

	st := reg.Stats()
	require.Equal(t, uint64(1), st.Minted)
	require.Equal(t, uint64(4), st.Duplicates)
	require.Equal(t, uint64(0), st.RejectedSignatures)
	require.Equal(t, 1, fs.insertCalls())
}

func TestMint_InvalidSigner(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	fs := newFakeStore()
	reg := service.New(fs, opts)

	_, owner := newKey(t)
	other, _ := newKey(t)
	claim := service.Claim{Owner: owner, Title: "Work", Creation: 1, Contents: []string{checksumH}}

	_, err := reg.Mint(ctx, claim, sign(t, opts, claim, other))
	require.ErrorIs(t, err, service.ErrInvalidSigner)
	require.Equal(t, service.KindUnauthorized, service.KindOf(err))
	require.Equal(t, 0, fs.insertCalls())
	require.Equal(t, uint64(1), reg.Stats().RejectedSignatures)

	bal, err := reg.BalanceOf(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bal)
}

func TestMint_SignatureOverOtherClaimRejected(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	reg := service.New(newFakeStore(), opts)
	priv, owner := newKey(t)

	signed := service.Claim{Owner: owner, Title: "Work", Creation: 1, Contents: []string{checksumH, checksumG}}
	submitted := signed
	submitted.Contents = []string{checksumG, checksumH}

	_, err := reg.Mint(ctx, submitted, sign(t, opts, signed, priv))
	require.ErrorIs(t, err, service.ErrInvalidSigner)
}

func TestMint_MalformedSignature(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	reg := service.New(fs, service.DefaultOptions())
	_, owner := newKey(t)
	claim := service.Claim{Owner: owner, Title: "Work", Contents: []string{checksumH}}

	for _, sig := range [][]byte{nil, make([]byte, 64), make([]byte, 66)} {
		_, err := reg.Mint(ctx, claim, sig)
		require.ErrorIs(t, err, ecrecover.ErrMalformedSignature)
		require.Equal(t, service.KindInput, service.KindOf(err))
	}
	require.Equal(t, 0, fs.insertCalls())
}

func TestMint_InputErrors(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	fs := newFakeStore()
	reg := service.New(fs, opts)
	priv, owner := newKey(t)

	valid := service.Claim{Owner: owner, Title: "Work", Creation: 1, Contents: []string{checksumH}}
	sig := sign(t, opts, valid, priv)

	cases := []struct {
		name   string
		mutate func(*service.Claim)
		want   error
	}{
		{"title over 32 bytes", func(c *service.Claim) { c.Title = strings.Repeat("x", 33) }, typeddata.ErrInputTooLong},
		{"owner name over 32 bytes", func(c *service.Claim) { c.OwnerName = strings.Repeat("n", 40) }, typeddata.ErrInputTooLong},
		{"title with trailing NUL", func(c *service.Claim) { c.Title += "\x00" }, typeddata.ErrInvalidValue},
		{"owner name with NUL", func(c *service.Claim) { c.OwnerName = "A\x00da" }, typeddata.ErrInvalidValue},
		{"no contents", func(c *service.Claim) { c.Contents = nil }, attest.ErrEmptyContents},
		{"short checksum", func(c *service.Claim) { c.Contents = []string{"abcd"} }, attest.ErrInvalidChecksum},
		{"non-hex checksum", func(c *service.Claim) { c.Contents = []string{strings.Repeat("zz", 64)} }, attest.ErrInvalidChecksum},
		{"negative creation", func(c *service.Claim) { c.Creation = -1 }, attest.ErrInvalidCreation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			_, err := reg.Mint(ctx, c, sig)
			require.ErrorIs(t, err, tc.want)
			require.Equal(t, service.KindInput, service.KindOf(err))

			_, err = reg.GenerateDigest(c)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Equal(t, 0, fs.insertCalls())
}

func TestMint_StoreFailurePropagates(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	fs := newFakeStore()
	fs.insertErr = errors.New("connection reset")
	reg := service.New(fs, opts)
	priv, owner := newKey(t)

	claim := service.Claim{Owner: owner, Title: "Work", Contents: []string{checksumH}}
	_, err := reg.Mint(ctx, claim, sign(t, opts, claim, priv))
	require.EqualError(t, err, "connection reset")
	require.Equal(t, service.KindInternal, service.KindOf(err))
	require.Equal(t, uint64(0), reg.Stats().Minted)
}

func TestGenerateDigest_PureAndOrderSensitive(t *testing.T) {
	fs := newFakeStore()
	reg := service.New(fs, service.DefaultOptions())
	_, owner := newKey(t)
	c := service.Claim{Owner: owner, Title: "Work", Creation: 7, Contents: []string{checksumH, checksumG}}

	d1, err := reg.GenerateDigest(c)
	require.NoError(t, err)
	d2, err := reg.GenerateDigest(c)
	require.NoError(t, err)
	require.Equal(t, d1, d2)

	reordered := c
	reordered.Contents = []string{checksumG, checksumH}
	d3, err := reg.GenerateDigest(reordered)
	require.NoError(t, err)
	require.NotEqual(t, d1, d3)

	require.Equal(t, 0, fs.insertCalls())
	bal, err := reg.BalanceOf(context.Background(), owner)
	require.NoError(t, err)
	require.Equal(t, uint64(0), bal)
}

func TestRecoverSigner_DomainMismatch(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	reg := service.New(newFakeStore(), opts)
	priv, owner := newKey(t)
	claim := service.Claim{Owner: owner, Title: "Work", Contents: []string{checksumH}}

	other := opts
	other.Domain.ChainID = 5
	got, err := reg.RecoverSigner(ctx, claim, sign(t, other, claim, priv))
	require.NoError(t, err)
	require.NotEqual(t, owner, got)

	got, err = reg.RecoverSigner(ctx, claim, sign(t, opts, claim, priv))
	require.NoError(t, err)
	require.Equal(t, owner, got)
}

func TestMint_ConcurrentSameDigest(t *testing.T) {
	ctx := context.Background()
	opts := service.DefaultOptions()
	reg := service.New(memory.NewStore(), opts)
	priv, owner := newKey(t)
	claim := service.Claim{Owner: owner, Title: "Race", Creation: 42, Contents: []string{checksumH}}
	sig := sign(t, opts, claim, priv)

	const workers = 32
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := reg.Mint(ctx, claim, sig)
			if err != nil && !errors.Is(err, service.ErrDuplicateCertificate) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	st := reg.Stats()
	require.Equal(t, uint64(1), st.Minted)
	require.Equal(t, uint64(workers-1), st.Duplicates)

	bal, err := reg.BalanceOf(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bal)
}

func TestLookupsNotFound(t *testing.T) {
	ctx := context.Background()
	reg := service.New(newFakeStore(), service.DefaultOptions())

	_, err := reg.OwnerOf(ctx, model.Digest{1})
	require.ErrorIs(t, err, service.ErrCertificateNotFound)
	require.Equal(t, service.KindNotFound, service.KindOf(err))

	_, err = reg.Certificate(ctx, model.Digest{1})
	require.ErrorIs(t, err, service.ErrCertificateNotFound)
}

func TestNew_Defaults(t *testing.T) {
	reg := service.New(newFakeStore(), service.Options{Schema: "v9"})
	require.Equal(t, "IPP", reg.Symbol())
	require.Equal(t, "IPPBlock", reg.Name())
	require.Equal(t, attest.SchemaV2, reg.Options().Schema)
}
