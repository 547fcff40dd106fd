// Package validator is the assembled SLP validation service: one token
// graph, a transaction source, a verdict cache and optionally a remote
// oracle, driven through a shared job manager.
package validator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/dagging"
	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/settings"
	"github.com/simpleledger/slpdag/slpvalidator"
	"github.com/simpleledger/slpdag/stores/txstore"
	"github.com/simpleledger/slpdag/ulogger"
)

// OracleQuerier is the slice of the proxy querier the validator needs.
type OracleQuerier interface {
	QueueQuery(txids []chainhash.Hash, callback func(answers map[chainhash.Hash]bool))
}

// TokenValidator validates transactions of a single SLP token. Instances
// for different tokens can share one job manager; the manager's single
// worker keeps their graphs from ever being driven concurrently.
type TokenValidator struct {
	logger   ulogger.Logger
	settings *settings.Settings

	tokenID  chainhash.Hash
	graph    *dagging.TokenGraph
	manager  *dagging.ValidationJobManager
	source   txstore.Store
	verdicts dagging.ValidityCache

	// oracle is optional; nil disables proxy shortcuts.
	oracle OracleQuerier
}

// New assembles a validator for tokenID. verdicts and oracle may be nil.
func New(logger ulogger.Logger, tSettings *settings.Settings, tokenID chainhash.Hash,
	manager *dagging.ValidationJobManager, source txstore.Store,
	verdicts dagging.ValidityCache, oracle OracleQuerier) *TokenValidator {
	strategy := slpvalidator.New(logger, tokenID)

	return &TokenValidator{
		logger:   logger,
		settings: tSettings,
		tokenID:  tokenID,
		graph:    dagging.NewTokenGraph(logger, strategy),
		manager:  manager,
		source:   source,
		verdicts: verdicts,
		oracle:   oracle,
	}
}

// TokenID returns the token this validator is for.
func (v *TokenValidator) TokenID() chainhash.Hash {
	return v.tokenID
}

// Health reports liveness for operational checks.
func (v *TokenValidator) Health(_ context.Context) (int, string, error) {
	return http.StatusOK,
		fmt.Sprintf("OK: graph=%d pending=%d", v.graph.Size(), v.manager.PendingCount()),
		nil
}

// Validity returns the current verdict for txid, ValidityUnknown while no
// job has settled it.
func (v *TokenValidator) Validity(txid chainhash.Hash) dagging.Validity {
	return v.graph.Validity(txid)
}

// Submit queues a validation job for the given targets and returns it.
// Subscribe to the job or poll it for the outcome.
func (v *TokenValidator) Submit(targets []chainhash.Hash) (*dagging.ValidationJob, error) {
	job := dagging.NewValidationJob(v.logger, v.settings, v.graph, targets, v.source, v.verdicts)

	if err := v.manager.AddJob(job); err != nil {
		return nil, err
	}

	return job, nil
}

// ValidateWait queues a job for targets and blocks until it finishes or ctx
// ends. On a context end the job is paused, keeping its progress for a later
// submission.
func (v *TokenValidator) ValidateWait(ctx context.Context, targets []chainhash.Hash) (map[chainhash.Hash]dagging.Validity, dagging.StopReason, error) {
	job, err := v.Submit(targets)
	if err != nil {
		return nil, "", err
	}

	done := make(chan struct{})
	job.AddCallback(func(*dagging.ValidationJob) {
		close(done)
	})

	select {
	case <-done:
	case <-ctx.Done():
		v.manager.PauseJob(job)

		return nil, "", errors.NewProcessingError("validation interrupted", ctx.Err())
	}

	return job.Validities(), job.StopReason(), nil
}

// ConsultOracle asks the proxy about txids and settles the answers into the
// verdict cache. Only positive answers are taken: a negative answer is the
// oracle's opinion, not provenance this node has seen, so those txids stay
// open for real validation.
func (v *TokenValidator) ConsultOracle(txids []chainhash.Hash, onDone func(accepted int)) error {
	if v.oracle == nil {
		return errors.NewConfigurationError("no oracle configured")
	}

	if v.verdicts == nil {
		return errors.NewConfigurationError("no verdict cache to settle oracle answers into")
	}

	v.oracle.QueueQuery(txids, func(answers map[chainhash.Hash]bool) {
		accepted := 0

		for txid, valid := range answers {
			if !valid {
				continue
			}

			v.verdicts.Put(txid, dagging.ValidityValid)
			accepted++
		}

		v.logger.Debugf("oracle answered %d of %d, accepted %d", len(answers), len(txids), accepted)

		if onDone != nil {
			onDone(accepted)
		}
	})

	return nil
}
