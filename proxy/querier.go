// Package proxy asks a remote SLP validation oracle for verdicts on
// individual transactions. A proxy answer lets a wallet close a deep
// ancestry branch without downloading it, trading trust for bandwidth.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/jellydator/ttlcache/v3"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/ulogger"
)

// request is one queued oracle round trip.
type request struct {
	txids    []chainhash.Hash
	callback func(answers map[chainhash.Hash]bool)
}

// Querier talks to an SLP oracle over HTTP. Queries are served one at a time
// by a worker goroutine; answers are remembered for a while so repeated
// validation of overlapping histories does not hammer the oracle.
//
// An answer maps txid to the oracle's verdict: true for valid, false for
// invalid. Transactions the oracle does not know stay out of the map.
type Querier struct {
	logger    ulogger.Logger
	endpoint  string
	client    *http.Client
	answers   *ttlcache.Cache[chainhash.Hash, bool]
	requests  chan *request
	closeOnce chan struct{}
}

// NewQuerier builds a querier from the proxy settings. The worker is not
// running yet; call Start.
func NewQuerier(logger ulogger.Logger, tSettings *settings.Settings) (*Querier, error) {
	if tSettings.Proxy.Endpoint == nil {
		return nil, errors.NewConfigurationError("no proxy endpoint configured")
	}

	initPrometheusMetrics()

	return &Querier{
		logger:   logger,
		endpoint: strings.TrimRight(tSettings.Proxy.Endpoint.String(), "/"),
		client: &http.Client{
			Timeout: tSettings.Proxy.Timeout,
		},
		answers: ttlcache.New[chainhash.Hash, bool](
			ttlcache.WithTTL[chainhash.Hash, bool](tSettings.Proxy.CacheTTL),
		),
		requests:  make(chan *request, 16),
		closeOnce: make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine.
func (q *Querier) Start() {
	go q.answers.Start()
	go q.worker()
}

// Stop shuts the worker down. Queued requests are dropped without their
// callback firing.
func (q *Querier) Stop() {
	close(q.closeOnce)
	q.answers.Stop()
}

// QueueQuery hands txids to the worker; callback runs on the worker
// goroutine with whatever answers came back, possibly none.
func (q *Querier) QueueQuery(txids []chainhash.Hash, callback func(map[chainhash.Hash]bool)) {
	select {
	case q.requests <- &request{txids: txids, callback: callback}:
	case <-q.closeOnce:
	}
}

func (q *Querier) worker() {
	for {
		select {
		case req := <-q.requests:
			answers, err := q.Query(context.Background(), req.txids)
			if err != nil {
				// Oracle trouble never fails validation, it only withholds
				// shortcuts.
				q.logger.Warnf("proxy query failed: %v", err)
			}

			if req.callback != nil {
				req.callback(answers)
			}
		case <-q.closeOnce:
			return
		}
	}
}

// Query resolves txids against the answer cache and asks the oracle for the
// remainder. On oracle failure the cached part is still returned alongside
// the error.
func (q *Querier) Query(ctx context.Context, txids []chainhash.Hash) (map[chainhash.Hash]bool, error) {
	answers := make(map[chainhash.Hash]bool, len(txids))

	var missing []chainhash.Hash

	for _, txid := range txids {
		if item := q.answers.Get(txid); item != nil {
			answers[txid] = item.Value()

			continue
		}

		missing = append(missing, txid)
	}

	if len(missing) == 0 {
		return answers, nil
	}

	fetched, err := q.fetch(ctx, missing)
	if err != nil {
		return answers, err
	}

	for txid, valid := range fetched {
		q.answers.Set(txid, valid, ttlcache.DefaultTTL)
		answers[txid] = valid
	}

	prometheusProxyAnswers.Add(float64(len(fetched)))

	return answers, nil
}

// verifyRecord is one entry of the oracle's response. An absent or empty
// errors field means the oracle vouches for the transaction.
type verifyRecord struct {
	Tx     string          `json:"tx"`
	Errors json.RawMessage `json:"errors"`
}

type verifyResponse struct {
	Response []verifyRecord `json:"response"`
}

func (q *Querier) fetch(ctx context.Context, txids []chainhash.Hash) (map[chainhash.Hash]bool, error) {
	hexes := make([]string, len(txids))
	for i, txid := range txids {
		hexes[i] = txid.String()
	}

	url := q.endpoint + "/verify/" + strings.Join(hexes, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewNetworkError("building proxy request", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, errors.NewNetworkError("proxy request to %s", url, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewNetworkInvalidResponseError("proxy returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewNetworkError("reading proxy response", err)
	}

	var parsed verifyResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.NewNetworkInvalidResponseError("parsing proxy response", err)
	}

	known := make(map[chainhash.Hash]struct{}, len(txids))
	for _, txid := range txids {
		known[txid] = struct{}{}
	}

	answers := make(map[chainhash.Hash]bool, len(parsed.Response))

	for _, record := range parsed.Response {
		txid, err := chainhash.NewHashFromStr(record.Tx)
		if err != nil {
			q.logger.Warnf("proxy answered with unparseable txid %q", record.Tx)

			continue
		}

		if _, ok := known[*txid]; !ok {
			// Unsolicited answers are not trusted.
			continue
		}

		answers[*txid] = emptyErrors(record.Errors)
	}

	return answers, nil
}

// emptyErrors reports whether a JSON errors field carries nothing: absent,
// null, an empty string, array or object.
func emptyErrors(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))

	switch trimmed {
	case "", "null", `""`, "[]", "{}":
		return true
	default:
		return false
	}
}
