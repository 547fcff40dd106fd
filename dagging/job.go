package dagging

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"go.uber.org/atomic"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/ulogger"
)

// TxSource supplies raw transactions to a job. GetCached answers from local
// storage only; BatchFetch may go to the network and is allowed to return a
// partial result, omitting what it could not get.
type TxSource interface {
	GetCached(ctx context.Context, txid chainhash.Hash) (*bt.Tx, error)
	BatchFetch(ctx context.Context, txids []chainhash.Hash) (map[chainhash.Hash]*bt.Tx, error)
}

// ValidityCache remembers terminal verdicts across graphs and restarts.
type ValidityCache interface {
	Get(txid chainhash.Hash) (Validity, bool)
	Put(txid chainhash.Hash, validity Validity)
}

// StopReason says how a job's run ended.
type StopReason string

const (
	// StopReasonDone: every target node has concluded. Targets pruned as
	// irrelevant conclude with validity unknown.
	StopReasonDone StopReason = "done"

	// StopReasonStopped: Stop was called, or the context was canceled.
	StopReasonStopped StopReason = "stopped"

	// StopReasonInconclusive: nothing left to download yet some target is
	// still undecided.
	StopReasonInconclusive StopReason = "inconclusive"

	// StopReasonDepthLimit: the remaining work sits beyond the configured
	// ancestry depth.
	StopReasonDepthLimit StopReason = "depth limit reached"

	// StopReasonDownloadLimit: the configured download budget is spent.
	StopReasonDownloadLimit StopReason = "download limit reached"

	// StopReasonMissingTxs: an iteration obtained none of the transactions
	// it asked for.
	StopReasonMissingTxs StopReason = "missing txes"

	// StopReasonCrashed: the run panicked; see the log.
	StopReasonCrashed StopReason = "crashed"
)

// ValidationJob drives one TokenGraph breadth-first until its targets reach
// a verdict or a limit intervenes. A stopped job keeps all graph progress
// and can be run again later.
//
// Run executes on a single goroutine (normally the ValidationJobManager's
// worker); Stop, AddCallback and the read accessors are safe from any
// goroutine.
type ValidationJob struct {
	logger ulogger.Logger

	graph         *TokenGraph
	targets       []chainhash.Hash
	source        TxSource
	validityCache ValidityCache

	downloadLimit  int
	depthLimit     int32
	fetchBatchSize int
	fetchTimeout   time.Duration

	downloadCount int
	currentDepth  int32

	stopping atomic.Bool

	mu         sync.Mutex
	running    bool
	finished   bool
	stopReason StopReason
	callbacks  []func(*ValidationJob)
}

// NewValidationJob prepares a job over graph for the given target txids.
// validityCache may be nil when no verdicts should be remembered or reused.
func NewValidationJob(logger ulogger.Logger, tSettings *settings.Settings, graph *TokenGraph,
	targets []chainhash.Hash, source TxSource, validityCache ValidityCache) *ValidationJob {
	initPrometheusMetrics()

	depthLimit := InfDepth
	if tSettings.Validation.DepthLimit > 0 {
		depthLimit = int32(tSettings.Validation.DepthLimit)
	}

	fetchBatchSize := tSettings.Validation.FetchBatchSize
	if fetchBatchSize <= 0 {
		fetchBatchSize = 1
	}

	return &ValidationJob{
		logger:         logger,
		graph:          graph,
		targets:        targets,
		source:         source,
		validityCache:  validityCache,
		downloadLimit:  tSettings.Validation.DownloadLimit,
		depthLimit:     depthLimit,
		fetchBatchSize: fetchBatchSize,
		fetchTimeout:   tSettings.Validation.FetchTimeout,
	}
}

// Targets returns the txids this job is trying to settle.
func (j *ValidationJob) Targets() []chainhash.Hash {
	out := make([]chainhash.Hash, len(j.targets))
	copy(out, j.targets)

	return out
}

// Stop asks a running job to wind down at the next iteration boundary.
func (j *ValidationJob) Stop() {
	j.stopping.Store(true)
}

// StopReason returns how the last run ended, empty while never finished.
func (j *ValidationJob) StopReason() StopReason {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.stopReason
}

// Finished reports whether a run has completed since the job was created or
// last restarted.
func (j *ValidationJob) Finished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.finished
}

// DownloadCount returns how many transactions the job fetched over the
// network so far, across runs.
func (j *ValidationJob) DownloadCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.downloadCount
}

// Validity returns the graph's verdict for one of the job's targets.
func (j *ValidationJob) Validity(txid chainhash.Hash) Validity {
	return j.graph.Validity(txid)
}

// Validities returns the verdict for every target.
func (j *ValidationJob) Validities() map[chainhash.Hash]Validity {
	out := make(map[chainhash.Hash]Validity, len(j.targets))
	for _, txid := range j.targets {
		out[txid] = j.graph.Validity(txid)
	}

	return out
}

// AddCallback registers fn to run when the job finishes. Each registration
// fires exactly once per run; registering on an already finished job fires
// immediately on the caller's goroutine.
func (j *ValidationJob) AddCallback(fn func(*ValidationJob)) {
	j.mu.Lock()

	if j.finished {
		j.mu.Unlock()
		fn(j)

		return
	}

	j.callbacks = append(j.callbacks, fn)
	j.mu.Unlock()
}

// Run drives the graph until a stop condition is met and returns the reason.
// The error return flags misuse (job already running, graph already driven);
// everything that can go wrong during a healthy run is folded into the stop
// reason instead.
func (j *ValidationJob) Run(ctx context.Context) (reason StopReason, err error) {
	j.mu.Lock()

	if j.running {
		j.mu.Unlock()

		return "", errors.NewJobAlreadyRunningError("validation job is already running")
	}

	j.running = true
	j.finished = false
	j.stopReason = ""
	j.mu.Unlock()

	j.stopping.Store(false)

	if err = j.graph.acquire(); err != nil {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()

		return "", err
	}

	start := time.Now()

	defer func() {
		j.graph.release()

		// On a panic the deferred finish still runs, so subscribers hear
		// about the crash before the panic reaches the recovery upstream.
		if reason == "" {
			reason = StopReasonCrashed
		}

		prometheusDaggingJobDuration.WithLabelValues(string(reason)).Observe(time.Since(start).Seconds())

		j.finish(reason)
	}()

	j.graph.SetTargets(j.targets)
	j.graph.RunSched()
	j.currentDepth = 0

	for {
		if j.stopping.Load() || ctx.Err() != nil {
			return StopReasonStopped, nil
		}

		if j.targetsSettled() {
			return StopReasonDone, nil
		}

		// Placeholders at InfDepth are unreachable from the current targets
		// and never worth downloading.
		reachLimit := j.depthLimit
		if reachLimit >= InfDepth {
			reachLimit = InfDepth - 1
		}

		waiting := j.graph.GetWaiting(reachLimit)
		if len(waiting) == 0 {
			if len(j.graph.GetWaiting(InfDepth-1)) > 0 {
				return StopReasonDepthLimit, nil
			}

			return StopReasonInconclusive, nil
		}

		batch := batchAtDepth(waiting, j.currentDepth, j.fetchBatchSize)
		if len(batch) == 0 {
			minDepth := InfDepth
			for _, n := range waiting {
				if n.Depth() < minDepth {
					minDepth = n.Depth()
				}
			}

			j.currentDepth = minDepth
			batch = batchAtDepth(waiting, j.currentDepth, j.fetchBatchSize)
		}

		if j.downloadLimit > 0 && j.downloadCount >= j.downloadLimit {
			return StopReasonDownloadLimit, nil
		}

		if j.deliver(ctx, batch) == 0 {
			return StopReasonMissingTxs, nil
		}

		j.graph.RunSched()
	}
}

func batchAtDepth(waiting []*Node, depth int32, limit int) []*Node {
	batch := make([]*Node, 0, limit)

	for _, n := range waiting {
		if n.Depth() != depth {
			continue
		}

		batch = append(batch, n)
		if len(batch) == limit {
			break
		}
	}

	return batch
}

// deliver obtains transactions for the batch and loads them into the graph,
// returning how many nodes actually advanced. Cached verdicts conclude their
// nodes without a download; duplicate or mismatched deliveries abort only
// themselves.
func (j *ValidationJob) deliver(ctx context.Context, batch []*Node) int {
	txs := make(map[chainhash.Hash]*bt.Tx, len(batch))

	var missing []chainhash.Hash

	for _, n := range batch {
		tx, err := j.source.GetCached(ctx, n.Txid())
		if err == nil && tx != nil {
			txs[n.Txid()] = tx

			continue
		}

		if j.cachedValidity(n.Txid()).Conclusive() {
			// Verdict known, transaction not at hand: no need to download.
			continue
		}

		missing = append(missing, n.Txid())
	}

	if len(missing) > 0 {
		fetchCtx := ctx

		if j.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, j.fetchTimeout)

			defer cancel()
		}

		fetched, err := j.source.BatchFetch(fetchCtx, missing)
		if err != nil {
			j.logger.Warnf("batch fetch of %d txs failed: %v", len(missing), err)
		}

		for txid, tx := range fetched {
			txs[txid] = tx
		}

		j.mu.Lock()
		j.downloadCount += len(fetched)
		j.mu.Unlock()

		prometheusDaggingTxFetched.Add(float64(len(fetched)))
	}

	delivered := 0

	for _, n := range batch {
		cached := j.cachedValidity(n.Txid())

		tx, ok := txs[n.Txid()]
		if !ok {
			if !cached.Conclusive() {
				continue
			}

			if err := n.LoadCachedValidity(cached); err != nil {
				j.logger.Warnf("cached verdict delivery for %s rejected: %v", n.Txid().String(), err)

				continue
			}

			delivered++

			continue
		}

		if err := n.LoadTx(tx, cached); err != nil {
			j.logger.Warnf("tx delivery for %s rejected: %v", n.Txid().String(), err)

			continue
		}

		delivered++
	}

	return delivered
}

func (j *ValidationJob) cachedValidity(txid chainhash.Hash) Validity {
	if j.validityCache == nil {
		return ValidityUnknown
	}

	validity, ok := j.validityCache.Get(txid)
	if !ok {
		return ValidityUnknown
	}

	return validity
}

// targetsSettled reports whether every target node has gone inactive. A
// target pruned as irrelevant settles with validity unknown; only conclusive
// verdicts are written back to the cache.
func (j *ValidationJob) targetsSettled() bool {
	settled := true

	for _, txid := range j.targets {
		if j.graph.Active(txid) {
			settled = false

			continue
		}

		if validity := j.graph.Validity(txid); validity.Conclusive() && j.validityCache != nil {
			j.validityCache.Put(txid, validity)
		}
	}

	return settled
}

func (j *ValidationJob) finish(reason StopReason) {
	j.mu.Lock()
	j.running = false
	j.finished = true
	j.stopReason = reason
	downloads := j.downloadCount

	callbacks := j.callbacks
	j.callbacks = nil
	j.mu.Unlock()

	j.logger.Debugf("validation job finished: %s (%d targets, %d downloads)", reason, len(j.targets), downloads)

	for _, fn := range callbacks {
		fn(j)
	}
}
