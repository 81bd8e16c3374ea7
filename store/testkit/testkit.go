// Package testkit holds the behaviour every store.Store backend must share.
package testkit

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/xellDart/ERC721-IP/model"
	"github.com/xellDart/ERC721-IP/store"
)

// NewStore constructs a fresh, empty store for one subtest.
type NewStore func(t *testing.T) store.Store

func RandomDigest(t *testing.T) model.Digest {
	t.Helper()
	var d model.Digest
	_, err := rand.Read(d[:])
	require.NoError(t, err)
	return d
}

func RandomAddress(t *testing.T) model.Address {
	t.Helper()
	var a model.Address
	_, err := rand.Read(a[:])
	require.NoError(t, err)
	return a
}

func RunStoreConformance(t *testing.T, newStore NewStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("InsertThenQuery", func(t *testing.T) {
		st := newStore(t)
		owner := RandomAddress(t)
		cert := &model.Certificate{
			Digest:   RandomDigest(t),
			Owner:    owner,
			Schema:   "v2",
			MintedAt: time.Now().UTC().Truncate(time.Millisecond),
		}

		bal, err := st.BalanceOf(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, uint64(0), bal)

		require.NoError(t, st.InsertCertificate(ctx, cert))

		got, err := st.OwnerOf(ctx, cert.Digest)
		require.NoError(t, err)
		require.Equal(t, owner, got)

		full, err := st.Certificate(ctx, cert.Digest)
		require.NoError(t, err)
		require.Equal(t, cert.Digest, full.Digest)
		require.Equal(t, cert.Owner, full.Owner)
		require.Equal(t, cert.Schema, full.Schema)
		require.True(t, cert.MintedAt.Equal(full.MintedAt), "minted_at %v != %v", full.MintedAt, cert.MintedAt)

		bal, err = st.BalanceOf(ctx, owner)
		require.NoError(t, err)
		require.Equal(t, uint64(1), bal)
	})

	t.Run("DuplicateNeverOverwrites", func(t *testing.T) {
		st := newStore(t)
		first, second := RandomAddress(t), RandomAddress(t)
		digest := RandomDigest(t)

		require.NoError(t, st.InsertCertificate(ctx, &model.Certificate{Digest: digest, Owner: first, Schema: "v2", MintedAt: time.Now().UTC()}))
		err := st.InsertCertificate(ctx, &model.Certificate{Digest: digest, Owner: second, Schema: "v2", MintedAt: time.Now().UTC()})
		require.ErrorIs(t, err, store.ErrDuplicate)

		got, err := st.OwnerOf(ctx, digest)
		require.NoError(t, err)
		require.Equal(t, first, got)

		bal, err := st.BalanceOf(ctx, second)
		require.NoError(t, err)
		require.Equal(t, uint64(0), bal)
	})

	t.Run("NotFound", func(t *testing.T) {
		st := newStore(t)
		_, err := st.OwnerOf(ctx, RandomDigest(t))
		require.ErrorIs(t, err, store.ErrNotFound)
		_, err = st.Certificate(ctx, RandomDigest(t))
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("BalancesPerOwner", func(t *testing.T) {
		st := newStore(t)
		a, b := RandomAddress(t), RandomAddress(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, st.InsertCertificate(ctx, &model.Certificate{Digest: RandomDigest(t), Owner: a, Schema: "v2", MintedAt: time.Now().UTC()}))
		}
		require.NoError(t, st.InsertCertificate(ctx, &model.Certificate{Digest: RandomDigest(t), Owner: b, Schema: "v1", MintedAt: time.Now().UTC()}))

		bal, err := st.BalanceOf(ctx, a)
		require.NoError(t, err)
		require.Equal(t, uint64(3), bal)
		bal, err = st.BalanceOf(ctx, b)
		require.NoError(t, err)
		require.Equal(t, uint64(1), bal)
	})

	t.Run("ConcurrentInsertSingleWinner", func(t *testing.T) {
		st := newStore(t)
		digest := RandomDigest(t)
		const workers = 16

		var (
			mu      sync.Mutex
			winners []model.Address
			dups    int
		)
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			owner := RandomAddress(t)
			g.Go(func() error {
				err := st.InsertCertificate(ctx, &model.Certificate{Digest: digest, Owner: owner, Schema: "v2", MintedAt: time.Now().UTC()})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, owner)
				case store.IsDuplicate(err):
					dups++
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		require.Len(t, winners, 1)
		require.Equal(t, workers-1, dups)

		got, err := st.OwnerOf(ctx, digest)
		require.NoError(t, err)
		require.Equal(t, winners[0], got)
	})
}
