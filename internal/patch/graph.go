// Package patch discovers, resolves and downloads the binary patch artifacts
// that move a game installation from one version to another.
package patch

import (
	"fmt"
	"slices"
	"sync"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
)

// Edge is one downloadable artifact transforming Prev into Target.
// Prev == 0 denotes a full install.
type Edge struct {
	Prev   game.Version
	Target game.Version
}

// IsFullInstall reports whether the edge starts from nothing.
func (e Edge) IsFullInstall() bool {
	return e.Prev == 0
}

// Valid reports whether the edge moves forward.
func (e Edge) Valid() bool {
	return e.Target > 0 && e.Prev < e.Target
}

func (e Edge) String() string {
	return fmt.Sprintf("%d->%d", e.Prev, e.Target)
}

// Graph is the set of edges observed for one branch. Absence of an edge
// means "not observed", never "impossible". Safe for concurrent use.
type Graph struct {
	branch game.Branch

	mu         sync.RWMutex
	out        map[game.Version][]game.Version
	count      int
	maxVersion game.Version
}

// NewGraph returns an empty graph for branch.
func NewGraph(branch game.Branch) *Graph {
	return &Graph{
		branch: branch,
		out:    make(map[game.Version][]game.Version),
	}
}

// Branch returns the branch the graph describes.
func (g *Graph) Branch() game.Branch {
	return g.branch
}

// Add records an edge. Adding a known edge is a no-op; invalid edges are ignored.
func (g *Graph) Add(e Edge) bool {
	if !e.Valid() {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	targets := g.out[e.Prev]

	idx, found := slices.BinarySearch(targets, e.Target)
	if found {
		return false
	}

	g.out[e.Prev] = slices.Insert(targets, idx, e.Target)
	g.count++

	if e.IsFullInstall() && e.Target > g.maxVersion {
		g.maxVersion = e.Target
	}

	return true
}

// Has reports whether the edge prev->target was observed.
func (g *Graph) Has(prev, target game.Version) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	_, found := slices.BinarySearch(g.out[prev], target)

	return found
}

// Targets returns the observed targets reachable from prev, ascending.
func (g *Graph) Targets(prev game.Version) []game.Version {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return slices.Clone(g.out[prev])
}

// MaxVersion returns the highest version with an observed full install.
func (g *Graph) MaxVersion() game.Version {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.maxVersion
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.count
}

// Edges returns every edge ordered by (Prev, Target).
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := make([]Edge, 0, g.count)

	for prev, targets := range g.out {
		for _, t := range targets {
			edges = append(edges, Edge{Prev: prev, Target: t})
		}
	}

	slices.SortFunc(edges, compareEdges)

	return edges
}

func compareEdges(a, b Edge) int {
	if a.Prev != b.Prev {
		if a.Prev < b.Prev {
			return -1
		}

		return 1
	}

	switch {
	case a.Target < b.Target:
		return -1
	case a.Target > b.Target:
		return 1
	default:
		return 0
	}
}

// GraphOf builds a graph from a list of edges.
func GraphOf(branch game.Branch, edges ...Edge) *Graph {
	g := NewGraph(branch)

	for _, e := range edges {
		g.Add(e)
	}

	return g
}
