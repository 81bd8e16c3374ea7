package store

import (
	"context"
	"errors"

	"github.com/xellDart/ERC721-IP/model"
)

var (
	ErrDuplicate = errors.New("store: certificate already exists")
	ErrNotFound  = errors.New("store: certificate not found")
)

// Store is the ownership ledger behind the registry.
//
// InsertCertificate is the only write. It must check that no certificate
// exists for c.Digest and record c in one indivisible step: of any number
// of concurrent inserts for one digest exactly one succeeds, the rest get
// ErrDuplicate and nothing is written for them.
type Store interface {
	InsertCertificate(ctx context.Context, c *model.Certificate) error
	Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error)
	OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error)
	BalanceOf(ctx context.Context, owner model.Address) (uint64, error)
}

func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
