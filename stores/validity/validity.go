// Package validity remembers terminal verdicts so token histories are never
// re-validated from scratch.
package validity

import (
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	gocache "github.com/patrickmn/go-cache"

	"github.com/simpleledger/slpdag/dagging"
)

// Store is an expiring verdict cache. Only conclusive verdicts are kept;
// writing ValidityUnknown is a no-op.
type Store struct {
	cache *gocache.Cache
}

// New returns a store whose entries expire after ttl. A non-positive ttl
// keeps verdicts forever.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		return &Store{cache: gocache.New(gocache.NoExpiration, 0)}
	}

	return &Store{cache: gocache.New(ttl, 2*ttl)}
}

// Get returns the remembered verdict for txid.
func (s *Store) Get(txid chainhash.Hash) (dagging.Validity, bool) {
	v, ok := s.cache.Get(txid.String())
	if !ok {
		return dagging.ValidityUnknown, false
	}

	return v.(dagging.Validity), true
}

// Put remembers a conclusive verdict.
func (s *Store) Put(txid chainhash.Hash, validity dagging.Validity) {
	if !validity.Conclusive() {
		return
	}

	s.cache.Set(txid.String(), validity, gocache.DefaultExpiration)
}

// Len returns the number of remembered verdicts.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}
