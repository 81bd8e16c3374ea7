package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

// errDupEntry is ER_DUP_ENTRY.
const errDupEntry = 1062

//go:embed schema.sql
var schema string

type mysqlStore struct {
	db *sql.DB
}

// Open connects using dsn, forcing parseTime so DATETIME columns scan into
// time.Time.
func Open(dsn string) (*sql.DB, error) {
	cfg, err := driver.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	return sql.Open("mysql", cfg.FormatDSN())
}

// NewStore wraps an open connection pool.
func NewStore(db *sql.DB) store.Store {
	return &mysqlStore{db: db}
}

// Migrate runs the embedded schema one statement at a time.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertCertificate lets the primary key arbitrate: a second insert for the
// same digest fails with ER_DUP_ENTRY inside the server.
func (c *mysqlStore) InsertCertificate(ctx context.Context, cert *model.Certificate) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO certificates (digest, owner, schema_version, minted_at) VALUES (?, ?, ?, ?)",
		cert.Digest[:], cert.Owner[:], cert.Schema, cert.MintedAt.UTC())
	var myErr *driver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDupEntry {
		return store.ErrDuplicate
	}
	return err
}

func (c *mysqlStore) Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error) {
	var (
		cert  model.Certificate
		owner []byte
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT owner, schema_version, minted_at FROM certificates WHERE digest = ?", digest[:]).
		Scan(&owner, &cert.Schema, &cert.MintedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cert.Digest = digest
	copy(cert.Owner[:], owner)
	cert.MintedAt = cert.MintedAt.UTC()
	return &cert, nil
}

func (c *mysqlStore) OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error) {
	var (
		a     model.Address
		owner []byte
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT owner FROM certificates WHERE digest = ?", digest[:]).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return a, store.ErrNotFound
	}
	if err != nil {
		return a, err
	}
	copy(a[:], owner)
	return a, nil
}

func (c *mysqlStore) BalanceOf(ctx context.Context, owner model.Address) (uint64, error) {
	var n uint64
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM certificates WHERE owner = ?", owner[:]).Scan(&n)
	return n, err
}
