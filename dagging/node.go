package dagging

import (
	"github.com/bsv-blockchain/go-bt/v2"
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/errors"
)

type nodeStatus int8

const (
	// nodeWaiting: the node exists only as a placeholder; no transaction
	// has been delivered for it yet.
	nodeWaiting nodeStatus = iota

	// nodeLive: the transaction is loaded and connected to its parents,
	// but no verdict has been reached.
	nodeLive

	// nodeInactive: terminal. The verdict is frozen and the parent side of
	// the node is disconnected.
	nodeInactive
)

// InfDepth is the depth assigned to nodes not (or no longer) reachable from
// a target through active connections. One less than MaxInt32 so recalcDepth
// can add 1 without overflow.
const InfDepth = int32(1<<31 - 2)

// Connection is a directed edge from a child node to the parent transaction
// backing one of its inputs. Connections are created by the child when its
// transaction loads and are owned jointly: the child keeps them in parents,
// the parent in children, until one side disconnects.
type Connection struct {
	parent *Node
	child  *Node

	// vout/vin locate the edge on the wire: the child's input vin spends
	// the parent's output vout. Both are -1 on root anchor connections.
	vout int
	vin  int

	// checked is set once CheckNeeded has approved this connection, so the
	// strategy is consulted at most once per (re-pointed) edge.
	checked bool
}

// Node tracks the validation state of one transaction inside a TokenGraph.
// A fourth flavor besides the three statuses is the graph's root pseudo-node,
// which anchors the current targets at depth -1 and never validates.
type Node struct {
	txid  chainhash.Hash
	graph *TokenGraph

	status nodeStatus
	isRoot bool

	// depth is 1 + the minimum depth of any child, maintained incrementally
	// so the job can schedule downloads breadth-first. InfDepth while
	// unreachable from the root.
	depth int32

	validity Validity

	// self and outputs are the strategy descriptors from TxInfo. outputs
	// survives inactivation when the strategy asked to keep info.
	self    interface{}
	outputs []interface{}

	parents  []*Connection
	children []*Connection

	// replacement is where re-pointed connections should attach once this
	// node went inactive: the node itself when info was kept, or one of
	// the graph's pruned singletons otherwise.
	replacement *Node
}

// Txid returns the transaction id this node stands for.
func (n *Node) Txid() chainhash.Hash { return n.txid }

// Depth returns the node's current distance from the root.
func (n *Node) Depth() int32 { return n.depth }

// Validity returns the node's verdict, ValidityUnknown while undecided.
func (n *Node) Validity() Validity { return n.validity }

// Active reports whether the node may still change state.
func (n *Node) Active() bool { return n.status != nodeInactive }

// Waiting reports whether the node is still a placeholder with no
// transaction delivered.
func (n *Node) Waiting() bool { return n.status == nodeWaiting }

// addChild attaches an incoming connection from a child. On an inactive node
// the connection is re-pointed to the replacement instead and the child is
// pinged so it observes the concluded parent.
func (n *Node) addChild(conn *Connection) {
	if n.status == nodeInactive {
		conn.parent = n.replacement
		conn.checked = false
		n.graph.addPing(conn.child)

		return
	}

	n.children = append(n.children, conn)

	newDepth := conn.child.depth + 1
	if newDepth > InfDepth {
		newDepth = InfDepth
	}

	if newDepth < n.depth {
		oldDepth := n.depth
		n.depth = newDepth

		// Parents whose depth hung off our old depth must be re-examined.
		for _, pc := range n.parents {
			if pc.parent.depth == oldDepth+1 {
				n.graph.addRecalcDepth(pc.parent)
			}
		}
	}
}

// delChild detaches a connection previously registered with addChild. On the
// pruned singletons there is nothing to maintain.
func (n *Node) delChild(conn *Connection) {
	if n.status == nodeInactive {
		return
	}

	for i, c := range n.children {
		if c == conn {
			last := len(n.children) - 1
			n.children[i] = n.children[last]
			n.children[last] = nil
			n.children = n.children[:last]

			break
		}
	}

	if n.depth <= conn.child.depth+1 {
		n.graph.addRecalcDepth(n)
	}
}

// LoadTx delivers the transaction backing this node. The strategy classifies
// it, parent placeholders are created and connected for every flagged input,
// and interested neighbors get scheduled. When cachedValidity carries a
// terminal verdict the node short-circuits to inactive with the transaction's
// output descriptors kept, building no parent connections at all.
//
// Loading anything but a waiting node is refused so that a duplicate delivery
// aborts only itself.
func (n *Node) LoadTx(tx *bt.Tx, cachedValidity Validity) error {
	if n.status != nodeWaiting {
		return errors.NewTxAlreadyExistsError("double load of %s", n.txid.String())
	}

	if txid := *tx.TxIDChainHash(); !txid.IsEqual(&n.txid) {
		return errors.NewInvalidArgumentError("delivered tx %s does not match node %s", txid.String(), n.txid.String())
	}

	info, validity := n.graph.validator.GetInfo(tx)
	if info == nil {
		n.inactivate(false, validity)

		return nil
	}

	if len(info.Outputs) != len(tx.Outputs) {
		return errors.NewProcessingError("strategy returned %d output descriptors for %d outputs on %s",
			len(info.Outputs), len(tx.Outputs), n.txid.String())
	}

	n.self = info.Self
	n.outputs = info.Outputs

	if cachedValidity.Conclusive() {
		n.inactivate(true, cachedValidity)

		return nil
	}

	if len(info.VinMask) != len(tx.Inputs) {
		return errors.NewProcessingError("strategy returned %d vin flags for %d inputs on %s",
			len(info.VinMask), len(tx.Inputs), n.txid.String())
	}

	parents := make([]*Connection, 0, len(tx.Inputs))

	for vin, input := range tx.Inputs {
		if !info.VinMask[vin] {
			continue
		}

		parent := n.graph.GetNode(*input.PreviousTxIDChainHash())

		conn := &Connection{
			parent: parent,
			child:  n,
			vout:   int(input.PreviousTxOutIndex),
			vin:    vin,
		}

		parent.addChild(conn)
		parents = append(parents, conn)
	}

	n.parents = parents
	n.status = nodeLive

	if len(parents) == 0 {
		// No relevant inputs: the node can be judged on its own.
		n.graph.addPing(n)
	} else {
		for _, c := range n.children {
			n.graph.addPing(c.child)
		}
	}

	return nil
}

// LoadCachedValidity concludes a waiting node from a remembered verdict when
// the transaction itself is not at hand. No output descriptors survive, so
// descendants treat the node like a pruned one.
func (n *Node) LoadCachedValidity(validity Validity) error {
	if n.status != nodeWaiting {
		return errors.NewTxAlreadyExistsError("double load of %s", n.txid.String())
	}

	if !validity.Conclusive() {
		return errors.NewInvalidArgumentError("inconclusive cached validity %d for %s", validity, n.txid.String())
	}

	n.inactivate(false, validity)

	return nil
}

// getOutInfo reports how this node, as a parent, currently looks through
// conn. The needed return is false when the strategy has just ruled the
// connection irrelevant; the caller must then disconnect it.
func (n *Node) getOutInfo(conn *Connection) (info parentInfo, needed bool) {
	var out interface{}
	if conn.vout >= 0 && conn.vout < len(n.outputs) {
		out = n.outputs[conn.vout]
	}

	waiting := n.status == nodeWaiting

	if !conn.checked && !waiting {
		if !n.graph.validator.CheckNeeded(conn.child.self, out) {
			return parentInfo{}, false
		}

		conn.checked = true
	}

	return parentInfo{
		active:   n.status != nodeInactive,
		waiting:  waiting,
		vin:      conn.vin,
		validity: n.validity,
		out:      out,
	}, true
}

type parentInfo struct {
	active   bool
	waiting  bool
	vin      int
	validity Validity
	out      interface{}
}

// ping re-examines the node's parents and attempts a verdict. Scheduled
// whenever a parent's situation changed; harmless when nothing came of it.
func (n *Node) ping() {
	if n.isRoot || n.status != nodeLive {
		return
	}

	validator := n.graph.validator

	pinfo := make([]parentInfo, 0, len(n.parents))
	kept := n.parents[:0]

	for _, conn := range n.parents {
		info, needed := conn.parent.getOutInfo(conn)
		if !needed {
			conn.parent.delChild(conn)

			continue
		}

		kept = append(kept, conn)
		pinfo = append(pinfo, info)
	}

	n.parents = kept

	var anyActive, anyWaiting bool

	for _, info := range pinfo {
		if info.active {
			anyActive = true
		}

		if info.waiting {
			anyWaiting = true
		}
	}

	if validator.Prevalidation() {
		if anyWaiting {
			return
		}
	} else if anyActive {
		return
	}

	inputs := make([]InputInfo, len(pinfo))
	for i, info := range pinfo {
		inputs[i] = InputInfo{Vin: info.vin, Validity: info.validity, Out: info.out}
	}

	decided, keepInfo, validity := validator.Validate(n.self, inputs)
	if !decided {
		if !anyActive {
			// Every needed input has concluded yet the strategy still
			// cannot decide. This only happens on an input cycle, which no
			// valid token history can contain.
			n.graph.logger.Errorf("undecidable node %s with no active inputs, forcing invalid", n.txid.String())
			n.inactivate(false, ValidityInvalid)
		}

		return
	}

	n.inactivate(keepInfo, validity)
}

// recalcDepth recomputes depth from the current children and propagates
// upward when it changed.
func (n *Node) recalcDepth() {
	if n.isRoot || n.status == nodeInactive {
		return
	}

	newDepth := InfDepth - 1
	for _, c := range n.children {
		if c.child.depth < newDepth {
			newDepth = c.child.depth
		}
	}

	newDepth++

	if newDepth != n.depth {
		n.depth = newDepth

		for _, c := range n.parents {
			n.graph.addRecalcDepth(c.parent)
		}
	}
}

// inactivate freezes the verdict and takes the node out of play. With
// keepInfo the node stays registered and keeps its output descriptors for
// descendants to read; otherwise it is replaced in the registry by the
// graph's pruned singleton for the verdict, so arbitrarily many pruned
// transactions cost constant memory per validity code. Children are
// re-pointed at the replacement and pinged; parents are disconnected.
func (n *Node) inactivate(keepInfo bool, validity Validity) {
	replacement := n
	if !keepInfo {
		replacement = n.graph.pruned[validity]
		n.graph.replaceNode(n.txid, replacement)
		n.outputs = nil
		n.self = nil
	}

	for _, conn := range n.parents {
		conn.parent.delChild(conn)
	}

	n.parents = nil

	n.status = nodeInactive
	n.depth = InfDepth
	n.validity = validity
	n.replacement = replacement

	children := n.children
	n.children = nil

	for _, conn := range children {
		conn.parent = replacement
		conn.checked = false
		n.graph.addPing(conn.child)
	}

	prometheusDaggingConclusions.WithLabelValues(validity.String()).Inc()
}
