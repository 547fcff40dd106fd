// Package txstore supplies raw transactions to validation jobs, either from
// process memory or from a remote REST endpoint.
package txstore

import (
	"context"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
)

// Store is a transaction source. GetCached must answer from local state
// without touching the network; BatchFetch may download and is allowed to
// return a partial map, leaving out what it could not get.
type Store interface {
	GetCached(ctx context.Context, txid chainhash.Hash) (*bt.Tx, error)
	BatchFetch(ctx context.Context, txids []chainhash.Hash) (map[chainhash.Hash]*bt.Tx, error)
}
