package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/xellDart/ERC721-IP/attest"
	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/pkc/ecrecover"
	"github.com/xellDart/ERC721-IP/pkc/typeddata"
	"github.com/xellDart/ERC721-IP/store"
)

const (
	DefaultSymbol = "IPP"
	DefaultName   = "IPPBlock"
)

// Options fixes everything a signature is bound to besides the claim itself.
type Options struct {
	Domain typeddata.Domain
	Issuer model.Identity
	Schema attest.Schema
	Symbol string
	Name   string
}

// DefaultOptions returns the constants certificates have been issued under
// since the first deployment.
func DefaultOptions() Options {
	return Options{
		Domain: typeddata.Domain{
			Name:              "IPPBlock Certification",
			Version:           "1",
			ChainID:           1,
			VerifyingContract: model.MustParseAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"),
		},
		Issuer: model.Identity{
			Name:   "IPPBlock",
			Wallet: model.MustParseAddress("0xDeaDbeefdEAdbeefdEadbEEFdeadbeEFdEaDbeeF"),
		},
		Schema: attest.SchemaV2,
		Symbol: DefaultSymbol,
		Name:   DefaultName,
	}
}

// Claim is what a caller asks to certify. Owner is the address expected to
// have signed. Under v1 only Title and Contents are hashed into the digest.
type Claim struct {
	Owner     model.Address
	OwnerName string
	Title     string
	Creation  int64
	Contents  []string
}

// Attestation builds the schema-specific attestation for c.
func (o Options) Attestation(c Claim) attest.Attestation {
	if o.Schema == attest.SchemaV1 {
		return attest.V1{Issuer: o.Issuer, Title: c.Title, Contents: c.Contents}
	}
	return attest.V2{
		Issuer:   o.Issuer,
		Owner:    model.Identity{Name: c.OwnerName, Wallet: c.Owner},
		Title:    c.Title,
		Creation: c.Creation,
		Contents: c.Contents,
	}
}

// SigningHash is the EIP-712 hash the owner signs for c.
func (o Options) SigningHash(c Claim) ([32]byte, error) {
	td, err := o.Attestation(c).TypedData(o.Domain)
	if err != nil {
		return [32]byte{}, err
	}
	return td.Hash()
}

// Stats is a snapshot of the registry counters.
type Stats struct {
	Minted             uint64 `json:"minted"`
	Duplicates         uint64 `json:"duplicates"`
	RejectedSignatures uint64 `json:"rejectedSignatures"`
}

type Registry struct {
	Store store.Store
	opts  Options
	now   func() time.Time

	minted     atomic.Uint64
	duplicates atomic.Uint64
	rejected   atomic.Uint64
}

// New returns a Registry over st. Empty Symbol and Name fall back to the
// defaults and an unknown schema to v2.
func New(st store.Store, opts Options) *Registry {
	if opts.Symbol == "" {
		opts.Symbol = DefaultSymbol
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Schema != attest.SchemaV1 {
		opts.Schema = attest.SchemaV2
	}
	return &Registry{Store: st, opts: opts, now: time.Now}
}

func (r *Registry) Options() Options { return r.opts }

func (r *Registry) Symbol() string { return r.opts.Symbol }

func (r *Registry) Name() string { return r.opts.Name }

// GenerateDigest returns the registry key for c. It never touches the store.
func (r *Registry) GenerateDigest(c Claim) (model.Digest, error) {
	att := r.opts.Attestation(c)
	if err := att.Validate(); err != nil {
		return model.Digest{}, err
	}
	return att.Digest()
}

// RecoverSigner returns the address that produced sig over the typed data of
// c. A well-formed signature by someone else yields a different address, not
// an error.
func (r *Registry) RecoverSigner(ctx context.Context, c Claim, sig []byte) (model.Address, error) {
	if err := ctx.Err(); err != nil {
		return model.Address{}, err
	}
	hash, err := r.opts.SigningHash(c)
	if err != nil {
		return model.Address{}, err
	}
	return ecrecover.Recover(hash, sig)
}

// Mint certifies c for c.Owner. sig must recover to c.Owner. A digest that is
// already minted fails with ErrDuplicateCertificate before the signature is
// looked at. The digest is claimed through the store's atomic insert, so of
// concurrent mints for one digest exactly one succeeds; a failed mint writes
// nothing.
func (r *Registry) Mint(ctx context.Context, c Claim, sig []byte) (*model.Certificate, error) {
	att := r.opts.Attestation(c)
	if err := att.Validate(); err != nil {
		return nil, err
	}
	digest, err := att.Digest()
	if err != nil {
		return nil, err
	}

	// An existing certificate wins over whatever signature is presented.
	// InsertCertificate below still settles concurrent first mints.
	switch _, err := r.Store.Certificate(ctx, digest); {
	case err == nil:
		r.duplicates.Inc()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCertificate, digest)
	case !store.IsNotFound(err):
		return nil, err
	}

	signer, err := r.RecoverSigner(ctx, c, sig)
	if err != nil {
		return nil, err
	}
	if signer.IsZero() || signer != c.Owner {
		r.rejected.Inc()
		glog.Warningf("mint %s rejected: signer %s, claimed owner %s", digest, signer, c.Owner)
		return nil, fmt.Errorf("%w: recovered %s", ErrInvalidSigner, signer)
	}

	cert := &model.Certificate{
		Digest:   digest,
		Owner:    c.Owner,
		Schema:   string(att.Schema()),
		MintedAt: r.now().UTC(),
	}
	if err := r.Store.InsertCertificate(ctx, cert); err != nil {
		if store.IsDuplicate(err) {
			r.duplicates.Inc()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCertificate, digest)
		}
		return nil, err
	}
	r.minted.Inc()
	glog.Infof("minted %s certificate %s to %s", cert.Schema, digest, c.Owner)
	return cert, nil
}

func (r *Registry) Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error) {
	c, err := r.Store.Certificate(ctx, digest)
	if store.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrCertificateNotFound, digest)
	}
	return c, err
}

func (r *Registry) OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error) {
	owner, err := r.Store.OwnerOf(ctx, digest)
	if store.IsNotFound(err) {
		return model.Address{}, fmt.Errorf("%w: %s", ErrCertificateNotFound, digest)
	}
	return owner, err
}

func (r *Registry) BalanceOf(ctx context.Context, owner model.Address) (uint64, error) {
	return r.Store.BalanceOf(ctx, owner)
}

func (r *Registry) Stats() Stats {
	return Stats{
		Minted:             r.minted.Load(),
		Duplicates:         r.duplicates.Load(),
		RejectedSignatures: r.rejected.Load(),
	}
}
