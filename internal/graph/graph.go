// Package graph implements the Zoned Network Graph: one node's view of its
// own zone's full internal topology plus one-hop-out external locator
// connectivity, grounded on the original source's
// sensor.network.router.forwardingtable.ZonedNetworkGraph.
//
// The graph is an arena of nodes keyed by identifier (map[domain.ID]*Node),
// not a structure of back-pointers (spec §9 design note); removing a node
// still scans every arena entry for external links that name it as a
// bridge node. It carries
// no internal locking of its own: per spec §5's single coarse-lock model,
// callers (the control plane) serialize all access.
package graph

import (
	"ilnpnode/internal/codec"
	"ilnpnode/internal/domain"
)

// LocatorLink tracks, for one border node and one external locator it
// bridges to, the bridge nodes on the far side and their lambdas. Which
// local border nodes reach a locator is indexed separately, in
// Graph.locatorToBorderNodes.
type LocatorLink struct {
	Locator     domain.Locator
	BridgeNodes map[domain.ID]uint32 // bridge node id on the far side -> its lambda
}

func newLocatorLink(loc domain.Locator) *LocatorLink {
	return &LocatorLink{Locator: loc, BridgeNodes: make(map[domain.ID]uint32)}
}

func (l *LocatorLink) addBridgeNode(id domain.ID, lambda uint32) {
	l.BridgeNodes[id] = lambda
}

func (l *LocatorLink) removeBridgeNode(id domain.ID) {
	delete(l.BridgeNodes, id)
}

func (l *LocatorLink) empty() bool { return len(l.BridgeNodes) == 0 }

// Node is one node's arena entry: its own lambda, its intra-zone neighbours
// (by id), and the external locators it bridges to as a border node.
type Node struct {
	ID           domain.ID
	Lambda       uint32
	Internal     map[domain.ID]struct{}       // neighbour id -> present
	ExternalLink map[domain.Locator]*LocatorLink
}

func newNode(id domain.ID, lambda uint32) *Node {
	return &Node{
		ID:           id,
		Lambda:       lambda,
		Internal:     make(map[domain.ID]struct{}),
		ExternalLink: make(map[domain.Locator]*LocatorLink),
	}
}

// IsBorderNode reports whether this node bridges to any external locator.
func (n *Node) IsBorderNode() bool { return len(n.ExternalLink) > 0 }

// LocatorOfBridgeNode returns the external locator reached via the given
// bridge node id, if any, and whether it was found.
func (n *Node) LocatorOfBridgeNode(bridgeID domain.ID) (domain.Locator, bool) {
	for loc, link := range n.ExternalLink {
		if _, ok := link.BridgeNodes[bridgeID]; ok {
			return loc, true
		}
	}
	return 0, false
}

// Graph is the Zoned Network Graph: an arena of Nodes plus a reverse index
// from external locator to the local border node ids bridging to it.
type Graph struct {
	Self domain.ID

	nodes map[domain.ID]*Node

	// locatorToBorderNodes indexes, for each external locator, which of our
	// own nodes border it - avoiding a full scan on lookup.
	locatorToBorderNodes map[domain.Locator]map[domain.ID]struct{}
}

// New creates a graph seeded with the owning node itself at lambda.
func New(self domain.ID, selfLambda uint32) *Graph {
	g := &Graph{
		Self:                 self,
		nodes:                make(map[domain.ID]*Node),
		locatorToBorderNodes: make(map[domain.Locator]map[domain.ID]struct{}),
	}
	g.nodes[self] = newNode(self, selfLambda)
	return g
}

func (g *Graph) getOrCreate(id domain.ID, lambda uint32) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = newNode(id, lambda)
		g.nodes[id] = n
	}
	return n
}

// Node returns the arena entry for id, if present.
func (g *Graph) Node(id domain.ID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// InternalNeighbours returns the intra-zone neighbour ids of id, or nil if
// id is unknown. Satisfies forwarding's internalNeighbours interface.
func (g *Graph) InternalNeighbours(id domain.ID) []domain.ID {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]domain.ID, 0, len(n.Internal))
	for neighbour := range n.Internal {
		out = append(out, neighbour)
	}
	return out
}

// Nodes returns every node id currently in the arena.
func (g *Graph) Nodes() []domain.ID {
	out := make([]domain.ID, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	return out
}

// AddInternalLink adds a symmetric intra-zone link between a and b,
// creating either endpoint's arena entry if missing.
func (g *Graph) AddInternalLink(a domain.ID, aLambda uint32, b domain.ID, bLambda uint32) {
	na := g.getOrCreate(a, aLambda)
	nb := g.getOrCreate(b, bLambda)
	na.Lambda = aLambda
	nb.Lambda = bLambda
	na.Internal[b] = struct{}{}
	nb.Internal[a] = struct{}{}
}

// ContainsInternalLink reports whether a and b are directly linked.
func (g *Graph) ContainsInternalLink(a, b domain.ID) bool {
	na, ok := g.nodes[a]
	if !ok {
		return false
	}
	_, ok = na.Internal[b]
	return ok
}

// AddExternalLink records that borderNode (one of our own nodes) bridges to
// bridgeNode in locator loc, and updates the reverse index.
func (g *Graph) AddExternalLink(borderNode domain.ID, loc domain.Locator, bridgeNode domain.ID, bridgeLambda uint32) {
	n := g.nodes[borderNode]
	if n == nil {
		n = g.getOrCreate(borderNode, 0)
	}
	link, ok := n.ExternalLink[loc]
	if !ok {
		link = newLocatorLink(loc)
		n.ExternalLink[loc] = link
	}
	link.addBridgeNode(bridgeNode, bridgeLambda)

	if g.locatorToBorderNodes[loc] == nil {
		g.locatorToBorderNodes[loc] = make(map[domain.ID]struct{})
	}
	g.locatorToBorderNodes[loc][borderNode] = struct{}{}
}

// ContainsExternalLink reports whether borderNode bridges to bridgeNode via loc.
func (g *Graph) ContainsExternalLink(borderNode domain.ID, loc domain.Locator, bridgeNode domain.ID) bool {
	n, ok := g.nodes[borderNode]
	if !ok {
		return false
	}
	link, ok := n.ExternalLink[loc]
	if !ok {
		return false
	}
	_, ok = link.BridgeNodes[bridgeNode]
	return ok
}

// BorderNodesForLocator returns the ids of our own nodes that bridge to loc.
func (g *Graph) BorderNodesForLocator(loc domain.Locator) []domain.ID {
	set := g.locatorToBorderNodes[loc]
	out := make([]domain.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (g *Graph) removeExternalLink(borderNode domain.ID, loc domain.Locator, bridgeNode domain.ID) {
	n, ok := g.nodes[borderNode]
	if !ok {
		return
	}
	link, ok := n.ExternalLink[loc]
	if !ok {
		return
	}
	link.removeBridgeNode(bridgeNode)
	if link.empty() {
		delete(n.ExternalLink, loc)
		g.removeBorderNodeFromIndex(borderNode, loc)
	}
}

func (g *Graph) removeBorderNodeFromIndex(borderNode domain.ID, loc domain.Locator) {
	set := g.locatorToBorderNodes[loc]
	if set == nil {
		return
	}
	delete(set, borderNode)
	if len(set) == 0 {
		delete(g.locatorToBorderNodes, loc)
	}
}

// removeNodeAsLocatorLink purges every external link pointing at lostID as
// a bridge node, across every border node in the arena.
func (g *Graph) removeNodeAsLocatorLink(lostID domain.ID) {
	for borderID, n := range g.nodes {
		for loc := range n.ExternalLink {
			if _, ok := n.ExternalLink[loc].BridgeNodes[lostID]; ok {
				g.removeExternalLink(borderID, loc, lostID)
			}
		}
	}
}

func (g *Graph) removeBorderNode(id domain.ID) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for loc := range n.ExternalLink {
		g.removeBorderNodeFromIndex(id, loc)
	}
	n.ExternalLink = make(map[domain.Locator]*LocatorLink)
}

// RemoveInternalNode deletes id from the arena entirely: its internal
// neighbours' back-references, its border-node external links, and the
// node itself. The owning node (g.Self) is never removed.
func (g *Graph) RemoveInternalNode(id domain.ID) {
	if id == g.Self {
		return
	}
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for neighbour := range n.Internal {
		if nb, ok := g.nodes[neighbour]; ok {
			delete(nb.Internal, id)
		}
	}
	g.removeBorderNode(id)
	g.removeNodeAsLocatorLink(id)
	delete(g.nodes, id)
}

// RemoveLink removes the link between a and b, whether internal (same
// zone) or external (a borders a locator that b bridges into), and reports
// whether anything was actually removed. Grounded on
// forwardingtable.py's ZonedNetworkGraph.remove_link, used by both
// EXPIRED_LINKS handling and neighbour-expiry cleanup.
func (g *Graph) RemoveLink(a, b domain.ID) bool {
	removedSomething := false

	if g.ContainsInternalLink(a, b) {
		if na, ok := g.nodes[a]; ok {
			delete(na.Internal, b)
		}
		if nb, ok := g.nodes[b]; ok {
			delete(nb.Internal, a)
		}
		removedSomething = true
	}

	if na, ok := g.nodes[a]; ok {
		for loc, link := range na.ExternalLink {
			if _, ok := link.BridgeNodes[b]; ok {
				g.removeExternalLink(a, loc, b)
				removedSomething = true
			}
		}
	}
	if nb, ok := g.nodes[b]; ok {
		for loc, link := range nb.ExternalLink {
			if _, ok := link.BridgeNodes[a]; ok {
				g.removeExternalLink(b, loc, a)
				removedSomething = true
			}
		}
	}

	// b might no longer be reachable by any means - if it has no internal
	// links left and isn't a border node, drop it from the arena too
	// (mirrors the Python original's cleanup of orphaned neighbour nodes).
	if nb, ok := g.nodes[b]; ok && b != g.Self && len(nb.Internal) == 0 && !nb.IsBorderNode() {
		delete(g.nodes, b)
	}

	return removedSomething
}

// ToLSDB serializes the full graph into an LSDB flood message tagged with
// seq. Internal links are deduplicated via (min,max) id pairs so each
// undirected edge is only emitted once.
func (g *Graph) ToLSDB(seq uint16) codec.LSDB {
	seen := make(map[[2]domain.ID]struct{})
	var internal []codec.InternalLink
	for id, n := range g.nodes {
		for neighbour := range n.Internal {
			key := [2]domain.ID{id, neighbour}
			if id > neighbour {
				key = [2]domain.ID{neighbour, id}
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			aLambda, bLambda := uint32(0), uint32(0)
			if na := g.nodes[key[0]]; na != nil {
				aLambda = na.Lambda
			}
			if nb := g.nodes[key[1]]; nb != nil {
				bLambda = nb.Lambda
			}
			internal = append(internal, codec.InternalLink{
				A: key[0], ALambda: aLambda,
				B: key[1], BLambda: bLambda,
			})
		}
	}

	var external []codec.ExternalLink
	for borderID, n := range g.nodes {
		for loc, link := range n.ExternalLink {
			for bridgeID, bridgeLambda := range link.BridgeNodes {
				external = append(external, codec.ExternalLink{
					BorderNode:   borderID,
					Locator:      loc,
					BridgeNode:   bridgeID,
					BridgeLambda: bridgeLambda,
				})
			}
		}
	}

	return codec.LSDB{SeqNumber: seq, InternalLinks: internal, ExternalLinks: external}
}

// AddAll merges every link described by an LSDB message into the graph and
// reports whether anything new was learned - the flood-termination check a
// receiver uses to decide whether to rebroadcast.
func (g *Graph) AddAll(msg codec.LSDB) bool {
	learned := false
	for _, l := range msg.InternalLinks {
		if !g.ContainsInternalLink(l.A, l.B) {
			g.AddInternalLink(l.A, l.ALambda, l.B, l.BLambda)
			learned = true
		}
	}
	for _, l := range msg.ExternalLinks {
		if !g.ContainsExternalLink(l.BorderNode, l.Locator, l.BridgeNode) {
			g.AddExternalLink(l.BorderNode, l.Locator, l.BridgeNode, l.BridgeLambda)
			learned = true
		}
	}
	return learned
}
