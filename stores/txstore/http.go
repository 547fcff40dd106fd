package txstore

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/ulogger"
)

// HTTP downloads raw transactions from a REST endpoint serving
// GET <endpoint>/tx/<txid> as transaction bytes. Downloads are remembered in
// a TTL cache so a job revisiting a txid does not refetch it.
type HTTP struct {
	logger      ulogger.Logger
	endpoint    string
	client      *http.Client
	concurrency int
	cache       *ttlcache.Cache[chainhash.Hash, *bt.Tx]
}

// NewHTTP builds the store from the txstore settings.
func NewHTTP(logger ulogger.Logger, tSettings *settings.Settings) (*HTTP, error) {
	if tSettings.TxStore.Endpoint == nil {
		return nil, errors.NewConfigurationError("no txstore endpoint configured")
	}

	concurrency := tSettings.TxStore.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	h := &HTTP{
		logger:      logger,
		endpoint:    strings.TrimRight(tSettings.TxStore.Endpoint.String(), "/"),
		client:      &http.Client{Timeout: tSettings.TxStore.HTTPTimeout},
		concurrency: concurrency,
		cache:       ttlcache.New[chainhash.Hash, *bt.Tx](),
	}

	go h.cache.Start()

	return h, nil
}

// Close stops the cache janitor.
func (h *HTTP) Close() {
	h.cache.Stop()
}

// GetCached answers from previous downloads only.
func (h *HTTP) GetCached(_ context.Context, txid chainhash.Hash) (*bt.Tx, error) {
	if item := h.cache.Get(txid); item != nil {
		return item.Value(), nil
	}

	return nil, errors.NewTxNotFoundError("%s not downloaded yet", txid.String())
}

// BatchFetch downloads txids concurrently. Individual failures are logged
// and leave a hole in the result; the error return is reserved for the
// context ending.
func (h *HTTP) BatchFetch(ctx context.Context, txids []chainhash.Hash) (map[chainhash.Hash]*bt.Tx, error) {
	out := make(map[chainhash.Hash]*bt.Tx, len(txids))

	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)

	for _, txid := range txids {
		txid := txid

		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			tx, err := h.fetchOne(gCtx, txid)
			if err != nil {
				h.logger.Warnf("fetching %s: %v", txid.String(), err)

				return nil
			}

			mu.Lock()
			out[txid] = tx
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, errors.NewNetworkError("batch fetch aborted", err)
	}

	return out, nil
}

func (h *HTTP) fetchOne(ctx context.Context, txid chainhash.Hash) (*bt.Tx, error) {
	url := h.endpoint + "/tx/" + txid.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewNetworkError("building request", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError("requesting %s", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewTxNotFoundError("%s unknown to %s", txid.String(), h.endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewNetworkInvalidResponseError("status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.NewNetworkError("reading response", err)
	}

	tx, err := bt.NewTxFromBytes(body)
	if err != nil {
		return nil, errors.NewNetworkInvalidResponseError("parsing tx bytes", err)
	}

	if got := *tx.TxIDChainHash(); !got.IsEqual(&txid) {
		return nil, errors.NewNetworkInvalidResponseError("endpoint returned %s for %s", got.String(), txid.String())
	}

	h.cache.Set(txid, tx, ttlcache.NoTTL)

	return tx, nil
}
