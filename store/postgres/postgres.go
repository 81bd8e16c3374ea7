package postgres

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

//go:embed schema.sql
var schema string

type pgStore struct{ db *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) store.Store { return &pgStore{db: db} }

// Migrate creates the certificates table if it does not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}

// -------- certificates -----------------------------------------------------

// InsertCertificate relies on the primary key: ON CONFLICT DO NOTHING makes
// the existence check and the insert a single statement.
func (p *pgStore) InsertCertificate(ctx context.Context, c *model.Certificate) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO certificates (digest, owner, schema_version, minted_at)
         VALUES ($1,$2,$3,$4)
         ON CONFLICT (digest) DO NOTHING`,
		c.Digest[:], c.Owner[:], c.Schema, c.MintedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicate
	}
	return nil
}

func (p *pgStore) Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error) {
	var (
		c     model.Certificate
		owner []byte
	)
	err := p.db.QueryRow(ctx,
		`SELECT owner, schema_version, minted_at
         FROM certificates
         WHERE digest=$1`, digest[:]).
		Scan(&owner, &c.Schema, &c.MintedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Digest = digest
	copy(c.Owner[:], owner)
	c.MintedAt = c.MintedAt.UTC()
	return &c, nil
}

// -------- ownership --------------------------------------------------------

func (p *pgStore) OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error) {
	var (
		a     model.Address
		owner []byte
	)
	err := p.db.QueryRow(ctx,
		`SELECT owner FROM certificates WHERE digest=$1`, digest[:]).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, store.ErrNotFound
	}
	if err != nil {
		return a, err
	}
	copy(a[:], owner)
	return a, nil
}

func (p *pgStore) BalanceOf(ctx context.Context, owner model.Address) (uint64, error) {
	var n int64
	err := p.db.QueryRow(ctx,
		`SELECT count(*) FROM certificates WHERE owner=$1`, owner[:]).Scan(&n)
	return uint64(n), err
}
