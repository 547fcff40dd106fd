// Package dagging implements the breadth-first DAG traversal engine used to
// validate colored-coin transactions without a full node.
//
// Starting from one or more transactions of interest, the engine digs into
// ancestor transactions layer by layer, pruning connections and invalidating
// branches as protocol rules allow, so the search DAG it maintains is a
// dynamically shrinking subset of the transaction DAG. The protocol rules
// themselves are pluggable through the Validator interface; this package
// knows nothing about any particular token scheme.
//
// A TokenGraph (and every Node in it) is driven by exactly one ValidationJob
// at a time. Nodes and Connections are therefore mutated without locks; the
// graph's ownership guard enforces the single-driver rule so a future
// multi-fetcher design can introduce real mutual exclusion behind the same
// API.
package dagging

import (
	"github.com/bsv-blockchain/go-bt/v2"
)

// Validity is the verdict code attached to a transaction. Zero means the
// verdict is unknown or still being computed; all other codes are terminal.
type Validity int32

const (
	// ValidityUnknown marks a transaction with no verdict yet, or one judged
	// irrelevant (not part of the token scheme at all).
	ValidityUnknown Validity = 0

	// ValidityValid marks a consensus-valid token transaction.
	ValidityValid Validity = 1

	// ValidityInvalid marks a transaction that breaks a structural rule of
	// the token scheme on its own, with no ancestor inspection needed.
	ValidityInvalid Validity = 2

	// ValidityInvalidProvenance marks a transaction whose declared token
	// movement cannot be covered by its valid ancestry.
	ValidityInvalidProvenance Validity = 3

	numValidityCodes = 4
)

func (v Validity) String() string {
	switch v {
	case ValidityValid:
		return "valid"
	case ValidityInvalid:
		return "invalid"
	case ValidityInvalidProvenance:
		return "invalid-provenance"
	default:
		return "unknown"
	}
}

// Conclusive reports whether v is a terminal verdict.
func (v Validity) Conclusive() bool {
	return v != ValidityUnknown
}

// TxInfo is everything a Validator extracts from a transaction during
// classification. After GetInfo returns, the transaction object itself is
// forgotten; only TxInfo travels through the graph.
type TxInfo struct {
	// VinMask flags which transaction inputs may need to be considered for
	// validation, aligned 1:1 with the inputs. Inputs flagged false are
	// never downloaded.
	VinMask []bool

	// Self is the protocol-opaque self-descriptor consumed by CheckNeeded
	// and Validate on behalf of this transaction's node.
	Self interface{}

	// Outputs carries one protocol-opaque descriptor per transaction
	// output, aligned 1:1 with the outputs; nil entries carry no token
	// value. Descendants read these through their input connections.
	Outputs []interface{}
}

// InputInfo describes one (still relevant) input as seen by Validate.
type InputInfo struct {
	// Vin is the input index on the transaction being validated.
	Vin int

	// Validity is the input transaction's current verdict.
	Validity Validity

	// Out is the descriptor the input transaction declared for the spent
	// output, or nil if that information was pruned.
	Out interface{}
}

// Validator is the protocol strategy consumed by Node and TokenGraph. All
// methods must be pure: no side effects, no retained references.
type Validator interface {
	// Prevalidation selects when Validate is first attempted. When false,
	// Validate runs once per node, after every needed input has concluded.
	// When true, Validate runs repeatedly starting as soon as every needed
	// input is at least downloaded, which lets rules reach early verdicts
	// while ancestors are still being examined.
	Prevalidation() bool

	// GetInfo classifies a transaction using only its own scripts and
	// outputs. A nil TxInfo means the transaction needs no ancestor
	// inspection and its node prunes immediately with the returned
	// validity. Malformed scripts surface as a validity code here, never
	// as an error.
	GetInfo(tx *bt.Tx) (*TxInfo, Validity)

	// CheckNeeded reports whether a parent output descriptor can still
	// matter to the verdict of a node whose self-descriptor is self. It is
	// consulted once per connection, as soon as the parent's info is
	// available; connections judged unneeded are disconnected for good.
	CheckNeeded(self interface{}, parentOut interface{}) bool

	// Validate attempts a verdict from the node's self-descriptor and the
	// info of its remaining needed inputs. decided=false means undecided,
	// which is only legal while at least one needed input is still active.
	// keepInfo=false discards the node's output descriptors along with the
	// verdict, bounding memory for invalid/irrelevant subgraphs.
	Validate(self interface{}, inputs []InputInfo) (decided bool, keepInfo bool, validity Validity)
}
