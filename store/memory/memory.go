package memory

import (
	"context"
	"sync"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

// Store keeps the ledger in process memory. The zero value is not usable;
// call NewStore.
type Store struct {
	mu       sync.RWMutex
	certs    map[model.Digest]model.Certificate
	balances map[model.Address]uint64
}

func NewStore() *Store {
	return &Store{
		certs:    make(map[model.Digest]model.Certificate),
		balances: make(map[model.Address]uint64),
	}
}

func (s *Store) InsertCertificate(ctx context.Context, c *model.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[c.Digest]; ok {
		return store.ErrDuplicate
	}
	s.certs[c.Digest] = *c
	s.balances[c.Owner]++
	return nil
}

func (s *Store) Certificate(ctx context.Context, digest model.Digest) (*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certs[digest]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) OwnerOf(ctx context.Context, digest model.Digest) (model.Address, error) {
	c, err := s.Certificate(ctx, digest)
	if err != nil {
		return model.Address{}, err
	}
	return c.Owner, nil
}

func (s *Store) BalanceOf(ctx context.Context, owner model.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[owner], nil
}
