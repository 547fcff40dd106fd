package dagging

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"

	"github.com/simpleledger/slpdag/errors"
	"github.com/simpleledger/slpdag/ulogger"
)

// TokenGraph is the search DAG for one token. It owns the txid registry, a
// root pseudo-node anchoring the current targets, the two work sets drained
// by RunSched, and one pruned singleton per validity code.
//
// A graph survives across jobs: verdicts reached for one target seed the
// next, which is what makes validating a wallet's transactions one by one
// affordable.
type TokenGraph struct {
	logger    ulogger.Logger
	validator Validator

	root  *Node
	nodes map[chainhash.Hash]*Node

	schedPing   map[*Node]struct{}
	schedRecalc map[*Node]struct{}

	pruned [numValidityCodes]*Node

	// busy is the single-driver ownership guard. Not a lock: concurrent
	// acquisition is a programming error, not something to wait out.
	busy bool
}

// NewTokenGraph builds an empty graph driven by the given strategy.
func NewTokenGraph(logger ulogger.Logger, validator Validator) *TokenGraph {
	initPrometheusMetrics()

	g := &TokenGraph{
		logger:      logger,
		validator:   validator,
		nodes:       make(map[chainhash.Hash]*Node),
		schedPing:   make(map[*Node]struct{}),
		schedRecalc: make(map[*Node]struct{}),
	}

	g.root = &Node{
		graph:  g,
		isRoot: true,
		status: nodeLive,
		depth:  -1,
	}

	for code := range g.pruned {
		p := &Node{
			graph:    g,
			status:   nodeInactive,
			depth:    InfDepth,
			validity: Validity(code),
		}
		p.replacement = p
		g.pruned[code] = p
	}

	return g
}

// Size returns the number of registered txids. Pruned transactions all
// collapse onto the singletons and are not counted.
func (g *TokenGraph) Size() int {
	return len(g.nodes)
}

// GetNode returns the node registered for txid, creating a waiting
// placeholder on first sight.
func (g *TokenGraph) GetNode(txid chainhash.Hash) *Node {
	if n, ok := g.nodes[txid]; ok {
		return n
	}

	n := &Node{
		txid:   txid,
		graph:  g,
		status: nodeWaiting,
		depth:  InfDepth,
	}
	g.nodes[txid] = n

	return n
}

// Active reports whether txid may still change state. Unregistered txids
// count as active: nothing has been learned about them yet.
func (g *TokenGraph) Active(txid chainhash.Hash) bool {
	n, ok := g.nodes[txid]
	if !ok {
		return true
	}

	return n.status != nodeInactive
}

// Validity returns the remembered verdict for txid, ValidityUnknown when the
// txid is unregistered or still active.
func (g *TokenGraph) Validity(txid chainhash.Hash) Validity {
	n, ok := g.nodes[txid]
	if !ok || n.status != nodeInactive {
		return ValidityUnknown
	}

	return n.validity
}

// replaceNode swaps the registry entry for txid, used when a node collapses
// onto a pruned singleton.
func (g *TokenGraph) replaceNode(txid chainhash.Hash, replacement *Node) {
	g.nodes[txid] = replacement
}

// addPing schedules a verdict re-attempt for n.
func (g *TokenGraph) addPing(n *Node) {
	g.schedPing[n] = struct{}{}
}

// addRecalcDepth schedules a depth recomputation for n.
func (g *TokenGraph) addRecalcDepth(n *Node) {
	g.schedRecalc[n] = struct{}{}
}

// RunSched drains the work sets: first every pending ping, including pings
// scheduled by pings, then every pending depth recalculation. Iterative on
// purpose; verdicts cascade through arbitrarily deep ancestries without
// growing the stack.
func (g *TokenGraph) RunSched() {
	for len(g.schedPing) > 0 {
		for n := range g.schedPing {
			delete(g.schedPing, n)
			n.ping()

			break
		}
	}

	for len(g.schedRecalc) > 0 {
		for n := range g.schedRecalc {
			delete(g.schedRecalc, n)
			n.recalcDepth()

			break
		}
	}

	prometheusDaggingGraphSize.Set(float64(len(g.nodes)))
}

// SetTargets re-anchors the root on the given txids. Previous targets are
// released; their subgraphs float back to InfDepth via the scheduled
// recalculations and stop attracting downloads, while every verdict already
// reached stays in the registry.
func (g *TokenGraph) SetTargets(txids []chainhash.Hash) {
	for _, conn := range g.root.parents {
		conn.parent.delChild(conn)
	}

	g.root.parents = nil

	for _, txid := range txids {
		target := g.GetNode(txid)

		conn := &Connection{
			parent: target,
			child:  g.root,
			vout:   -1,
			vin:    -1,
		}

		target.addChild(conn)
		g.root.parents = append(g.root.parents, conn)
	}
}

// GetWaiting returns the waiting nodes reachable at depth maxDepth or less.
// Placeholders that concluded since the last call are swept out of the
// waiting picture as a side effect of the registry holding the live state.
func (g *TokenGraph) GetWaiting(maxDepth int32) []*Node {
	var waiting []*Node

	for _, n := range g.nodes {
		if n.status == nodeWaiting && n.depth <= maxDepth {
			waiting = append(waiting, n)
		}
	}

	return waiting
}

// Reset drops every node and verdict, keeping the strategy. Mainly for
// tests and for abandoning a poisoned graph.
func (g *TokenGraph) Reset() {
	g.nodes = make(map[chainhash.Hash]*Node)
	g.schedPing = make(map[*Node]struct{})
	g.schedRecalc = make(map[*Node]struct{})
	g.root.parents = nil
}

// acquire claims exclusive drive of the graph for one job.
func (g *TokenGraph) acquire() error {
	if g.busy {
		return errors.NewGraphBusyError("token graph is already being driven by another job")
	}

	g.busy = true

	return nil
}

func (g *TokenGraph) release() {
	g.busy = false
}
