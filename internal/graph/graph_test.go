package graph

import (
	"testing"

	"ilnpnode/internal/domain"
)

func TestAddInternalLinkIsSymmetric(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddInternalLink(domain.ID(1), 100, domain.ID(2), 200)

	if !g.ContainsInternalLink(1, 2) || !g.ContainsInternalLink(2, 1) {
		t.Fatalf("expected symmetric internal link between 1 and 2")
	}
}

func TestAddAllReportsWhetherAnythingNew(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddInternalLink(domain.ID(1), 100, domain.ID(2), 200)
	lsdb := g.ToLSDB(1)
	if g.AddAll(lsdb) {
		t.Fatalf("re-merging own LSDB should report nothing new")
	}

	g2 := New(domain.ID(9), 50)
	if !g2.AddAll(lsdb) {
		t.Fatalf("merging an unseen LSDB into a fresh graph should report new info")
	}
}

func TestRemoveLinkPrunesOrphanedNeighbour(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddInternalLink(domain.ID(1), 100, domain.ID(2), 200)

	if removed := g.RemoveLink(domain.ID(1), domain.ID(2)); !removed {
		t.Fatalf("expected RemoveLink to report a removal")
	}
	if _, ok := g.Node(domain.ID(2)); ok {
		t.Fatalf("orphaned neighbour with no remaining links should be pruned")
	}
	if _, ok := g.Node(domain.ID(1)); !ok {
		t.Fatalf("self node must never be pruned")
	}
}

func TestRemoveLinkOnUnknownPairReportsNoChange(t *testing.T) {
	g := New(domain.ID(1), 100)
	if g.RemoveLink(domain.ID(5), domain.ID(6)) {
		t.Fatalf("removing a non-existent link should report no change")
	}
}

func TestExternalLinkTracksBorderNodeIndex(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddExternalLink(domain.ID(1), domain.Locator(0x42), domain.ID(7), 55)

	borders := g.BorderNodesForLocator(domain.Locator(0x42))
	if len(borders) != 1 || borders[0] != domain.ID(1) {
		t.Fatalf("expected node 1 indexed as border of locator 0x42, got %v", borders)
	}

	n, _ := g.Node(domain.ID(1))
	if !n.IsBorderNode() {
		t.Fatalf("node 1 should be a border node")
	}
}

func TestRemoveLinkClearsExternalBridge(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddExternalLink(domain.ID(1), domain.Locator(0x42), domain.ID(7), 55)

	if !g.RemoveLink(domain.ID(1), domain.ID(7)) {
		t.Fatalf("expected external bridge removal to report a change")
	}
	if len(g.BorderNodesForLocator(domain.Locator(0x42))) != 0 {
		t.Fatalf("expected locator index to be cleared once its only bridge is gone")
	}
}

func TestToLSDBDeduplicatesUndirectedEdges(t *testing.T) {
	g := New(domain.ID(1), 100)
	g.AddInternalLink(domain.ID(1), 100, domain.ID(2), 200)

	lsdb := g.ToLSDB(3)
	if len(lsdb.InternalLinks) != 1 {
		t.Fatalf("expected exactly one internal link entry, got %d", len(lsdb.InternalLinks))
	}
}
