package forwarding

import "ilnpnode/internal/domain"

// reachability is the result of a breadth-first search over a graph's
// internal (intra-zone) links rooted at one node: for every other reachable
// node, its hop distance and the set of first hops from root that all
// achieve that shortest distance (there may be more than one when multiple
// paths tie), grounded on the original source's get_distance_and_next_hops.
type reachability struct {
	distance  map[domain.ID]int
	firstHops map[domain.ID]map[domain.ID]struct{}
}

type internalNeighbours interface {
	InternalNeighbours(id domain.ID) []domain.ID
}

func bfsFromRoot(g internalNeighbours, root domain.ID) reachability {
	r := reachability{
		distance:  map[domain.ID]int{root: 0},
		firstHops: map[domain.ID]map[domain.ID]struct{}{},
	}

	current := []domain.ID{root}
	for len(current) > 0 {
		next := make(map[domain.ID]struct{})
		for _, node := range current {
			var propagate map[domain.ID]struct{}
			if node == root {
				propagate = nil // special-cased per neighbour below
			} else {
				propagate = r.firstHops[node]
			}

			for _, neighbour := range g.InternalNeighbours(node) {
				if _, done := r.distance[neighbour]; done {
					continue
				}
				next[neighbour] = struct{}{}
				if r.firstHops[neighbour] == nil {
					r.firstHops[neighbour] = make(map[domain.ID]struct{})
				}
				if node == root {
					r.firstHops[neighbour][neighbour] = struct{}{}
				} else {
					for hop := range propagate {
						r.firstHops[neighbour][hop] = struct{}{}
					}
				}
			}
		}

		nextLevel := r.distance[current[0]] + 1
		current = current[:0]
		for n := range next {
			r.distance[n] = nextLevel
			current = append(current, n)
		}
	}

	return r
}
