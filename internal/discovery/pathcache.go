package discovery

import "ilnpnode/internal/domain"

// differenceCounts returns how many locators of a appear in b (shared) and
// how many don't (notShared).
func differenceCounts(a, b []domain.Locator) (shared, notShared int) {
	inB := make(map[domain.Locator]struct{}, len(b))
	for _, loc := range b {
		inB[loc] = struct{}{}
	}
	for _, loc := range a {
		if _, ok := inB[loc]; ok {
			shared++
		} else {
			notShared++
		}
	}
	return shared, notShared
}

// chooseBestBackup picks whichever of pathA/pathB shares the fewest hops
// with mainPath, breaking ties by preferring the shorter path.
func chooseBestBackup(mainPath, pathA, pathB []domain.Locator) []domain.Locator {
	sharedA, _ := differenceCounts(mainPath, pathA)
	sharedB, _ := differenceCounts(mainPath, pathB)
	if sharedA == sharedB {
		if len(pathA) < len(pathB) {
			return pathA
		}
		return pathB
	}
	if sharedA < sharedB {
		return pathA
	}
	return pathB
}

type cachedPaths struct {
	main   []domain.Locator
	backup []domain.Locator
}

// PathCache remembers, per destination locator, the shortest known path
// and a backup path chosen to be maximally disjoint from the main one -
// grounded on interzone.PathCache.
type PathCache struct {
	paths map[domain.Locator]cachedPaths
}

// NewPathCache returns an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{paths: make(map[domain.Locator]cachedPaths)}
}

// Contains reports whether a path to destination is cached.
func (p *PathCache) Contains(destination domain.Locator) bool {
	_, ok := p.paths[destination]
	return ok
}

// RecordPath records path as a candidate route to destination, possibly
// replacing the current main path and recomputing the backup.
func (p *PathCache) RecordPath(destination domain.Locator, path []domain.Locator) {
	cur, ok := p.paths[destination]
	if !ok {
		p.paths[destination] = cachedPaths{main: path, backup: path}
		return
	}
	if len(path) < len(cur.main) {
		oldMain := cur.main
		cur.main = path
		cur.backup = chooseBestBackup(cur.main, oldMain, cur.backup)
	} else {
		cur.backup = chooseBestBackup(cur.main, cur.backup, path)
	}
	p.paths[destination] = cur
}

// PathTo returns the current main path to destination, if known.
func (p *PathCache) PathTo(destination domain.Locator) ([]domain.Locator, bool) {
	cur, ok := p.paths[destination]
	if !ok {
		return nil, false
	}
	return cur.main, true
}

// Destinations returns every locator currently cached, each paired with
// its main path - used to seed NH_ext entries after a recompute.
func (p *PathCache) Destinations() map[domain.Locator][]domain.Locator {
	out := make(map[domain.Locator][]domain.Locator, len(p.paths))
	for loc, cp := range p.paths {
		out[loc] = cp.main
	}
	return out
}
