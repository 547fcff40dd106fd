package txstore

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/errors"
)

// Memory holds transactions in a map, typically the wallet's own history
// seeded up front. It never fetches anything.
type Memory struct {
	mu  sync.RWMutex
	txs map[chainhash.Hash]*bt.Tx
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		txs: make(map[chainhash.Hash]*bt.Tx),
	}
}

// Put adds or replaces a transaction.
func (m *Memory) Put(tx *bt.Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs[*tx.TxIDChainHash()] = tx
}

// GetCached returns the stored transaction or an ErrTxNotFound-coded error.
func (m *Memory) GetCached(_ context.Context, txid chainhash.Hash) (*bt.Tx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[txid]
	if !ok {
		return nil, errors.NewTxNotFoundError("%s not in memory store", txid.String())
	}

	return tx, nil
}

// BatchFetch returns the stored subset of txids. Nothing is downloaded, so
// what is absent stays absent.
func (m *Memory) BatchFetch(_ context.Context, txids []chainhash.Hash) (map[chainhash.Hash]*bt.Tx, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[chainhash.Hash]*bt.Tx)

	for _, txid := range txids {
		if tx, ok := m.txs[txid]; ok {
			out[txid] = tx
		}
	}

	return out, nil
}
