// Package slpvalidator plugs SLP token-type-1 consensus rules into the
// dagging engine. One Validator instance judges transactions for exactly one
// token id; a graph built on it never mixes tokens.
package slpvalidator

import (
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/bscript"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/dagging"
	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/slp"
	"github.com/simpleledger/slpdag/ulogger"
)

// batonMarker is the output descriptor for a minting baton. Quantity outputs
// are plain uint64 values.
type batonMarker struct{}

// txSelf is the self-descriptor traveling through the graph for one SLP
// transaction.
type txSelf struct {
	txType slp.TxType

	// outSum is the total quantity a SEND declares across its outputs,
	// saturated at the top of the uint64 range.
	outSum uint64
}

// Validator implements dagging.Validator for SLP token-type-1.
type Validator struct {
	logger  ulogger.Logger
	tokenID chainhash.Hash
}

// New returns a validator judging transactions of the given token.
func New(logger ulogger.Logger, tokenID chainhash.Hash) *Validator {
	return &Validator{
		logger:  logger,
		tokenID: tokenID,
	}
}

// TokenID returns the token this validator judges.
func (v *Validator) TokenID() chainhash.Hash {
	return v.tokenID
}

// Prevalidation is on: SLP verdicts can often be reached from quantities
// alone while deeper ancestors are still downloading.
func (v *Validator) Prevalidation() bool { return true }

// GetInfo classifies tx by its first output script. Transactions that carry
// no SLP message, or a message for a different token or an unsupported token
// version, prune as irrelevant; SLP messages breaking a consensus rule prune
// as invalid.
func (v *Validator) GetInfo(tx *bt.Tx) (*dagging.TxInfo, dagging.Validity) {
	if len(tx.Outputs) == 0 {
		return nil, dagging.ValidityUnknown
	}

	msg, err := slp.ParseSlpOutputScript(tx.Outputs[0].LockingScript)
	if err != nil {
		if errors.Is(err, errors.ErrSlpNotSlp) || errors.Is(err, errors.ErrSlpUnsupportedType) {
			return nil, dagging.ValidityUnknown
		}

		v.logger.Debugf("malformed slp message in %s: %v", tx.TxIDChainHash().String(), err)

		return nil, dagging.ValidityInvalid
	}

	if tx.Outputs[0].Satoshis != 0 {
		return nil, dagging.ValidityInvalid
	}

	// Only the first output may carry an OP_RETURN script.
	for _, out := range tx.Outputs[1:] {
		script := out.LockingScript
		if script != nil && len(*script) > 0 && (*script)[0] == bscript.OpRETURN {
			return nil, dagging.ValidityInvalid
		}
	}

	switch msg.Type {
	case slp.TxTypeGenesis:
		if !tx.TxIDChainHash().IsEqual(&v.tokenID) {
			return nil, dagging.ValidityUnknown
		}
	default:
		if !msg.TokenID.IsEqual(&v.tokenID) {
			return nil, dagging.ValidityUnknown
		}
	}

	self := &txSelf{txType: msg.Type}

	outputs := make([]interface{}, len(tx.Outputs))

	switch msg.Type {
	case slp.TxTypeGenesis, slp.TxTypeMint:
		if len(outputs) > 1 && msg.Quantity > 0 {
			outputs[1] = msg.Quantity
		}

		if msg.MintBatonVout >= 2 && msg.MintBatonVout < len(outputs) {
			outputs[msg.MintBatonVout] = batonMarker{}
		}

	case slp.TxTypeSend:
		for i, amt := range msg.Amounts {
			vout := i + 1
			if vout >= len(outputs) {
				// Quantities assigned past the last real output are burned,
				// but still count against the inputs.
				break
			}

			// Zero amounts contribute nothing and stay undescribed, so
			// spenders never wait on them.
			if amt > 0 {
				outputs[vout] = amt
			}
		}

		for _, amt := range msg.Amounts {
			self.outSum = saturatingAdd(self.outSum, amt)
		}
	}

	vinMask := make([]bool, len(tx.Inputs))
	if msg.Type != slp.TxTypeGenesis {
		for i := range vinMask {
			vinMask[i] = true
		}
	}

	return &dagging.TxInfo{
		VinMask: vinMask,
		Self:    self,
		Outputs: outputs,
	}, dagging.ValidityUnknown
}

// CheckNeeded keeps only the parent connections that can sway the verdict: a
// MINT cares about baton outputs, a SEND about quantity outputs.
func (v *Validator) CheckNeeded(self interface{}, parentOut interface{}) bool {
	s, ok := self.(*txSelf)
	if !ok {
		return false
	}

	switch s.txType {
	case slp.TxTypeMint:
		_, isBaton := parentOut.(batonMarker)

		return isBaton
	case slp.TxTypeSend:
		amt, isQuantity := parentOut.(uint64)

		return isQuantity && amt > 0
	default:
		return false
	}
}

// Validate applies the token-type-1 verdict rules.
//
// GENESIS is valid on its own. MINT is valid as soon as any baton input is
// valid, and invalid once every baton input has concluded without one. SEND
// is valid once valid inputs cover the declared output sum, and invalid once
// even the undecided inputs could no longer close the gap.
func (v *Validator) Validate(self interface{}, inputs []dagging.InputInfo) (bool, bool, dagging.Validity) {
	s, ok := self.(*txSelf)
	if !ok {
		return true, false, dagging.ValidityInvalid
	}

	switch s.txType {
	case slp.TxTypeGenesis:
		return true, true, dagging.ValidityValid

	case slp.TxTypeMint:
		undecided := false

		for _, in := range inputs {
			switch in.Validity {
			case dagging.ValidityValid:
				return true, true, dagging.ValidityValid
			case dagging.ValidityUnknown:
				undecided = true
			}
		}

		if undecided {
			return false, false, dagging.ValidityUnknown
		}

		return true, false, dagging.ValidityInvalidProvenance

	case slp.TxTypeSend:
		var validSum, maybeSum uint64

		for _, in := range inputs {
			amt, ok := in.Out.(uint64)
			if !ok {
				continue
			}

			switch in.Validity {
			case dagging.ValidityValid:
				validSum = saturatingAdd(validSum, amt)
			case dagging.ValidityUnknown:
				maybeSum = saturatingAdd(maybeSum, amt)
			}
		}

		if validSum >= s.outSum {
			return true, true, dagging.ValidityValid
		}

		if saturatingAdd(validSum, maybeSum) < s.outSum {
			return true, false, dagging.ValidityInvalidProvenance
		}

		return false, false, dagging.ValidityUnknown
	}

	return true, false, dagging.ValidityInvalid
}

func saturatingAdd(a, b uint64) uint64 {
	sum := a + b
	if sum < a {
		return 1<<64 - 1
	}

	return sum
}
