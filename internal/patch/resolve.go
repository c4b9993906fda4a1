package patch

import "github.com/janekdeveloper/JanLauncher-sub000/internal/game"

// Resolve computes a feasible edge chain from -> to over g.
//
// A direct edge wins. Otherwise the walk repeatedly takes the outgoing edge
// with the largest target not past to. If the walk gets stuck the result is
// the single full-install edge (0, to). This finds a feasible path, not the
// fewest bytes.
func Resolve(from, to game.Version, g *Graph) []Edge {
	if from >= to {
		return nil
	}

	if g.Has(from, to) {
		return []Edge{{Prev: from, Target: to}}
	}

	var path []Edge

	for current := from; current != to; {
		next, ok := largestTargetUpTo(g.Targets(current), to)
		if !ok {
			return []Edge{{Prev: 0, Target: to}}
		}

		path = append(path, Edge{Prev: current, Target: next})
		current = next
	}

	return path
}

func largestTargetUpTo(targets []game.Version, limit game.Version) (game.Version, bool) {
	for i := len(targets) - 1; i >= 0; i-- {
		if targets[i] <= limit {
			return targets[i], true
		}
	}

	return 0, false
}

// Plan is a resolved chain plus how it was obtained.
type Plan struct {
	From  game.Version
	To    game.Version
	Edges []Edge

	// FellBack is set when the walk got stuck and the plan is a full reinstall
	// that the graph never advertised.
	FellBack bool
}

// FullInstall reports whether the plan starts from an empty directory.
func (p Plan) FullInstall() bool {
	return len(p.Edges) > 0 && p.Edges[0].IsFullInstall()
}

// Empty reports whether there is nothing to apply.
func (p Plan) Empty() bool {
	return len(p.Edges) == 0
}

// ResolvePlan wraps Resolve and flags fallbacks.
func ResolvePlan(from, to game.Version, g *Graph) Plan {
	edges := Resolve(from, to, g)

	plan := Plan{From: from, To: to, Edges: edges}

	if len(edges) == 1 && edges[0].IsFullInstall() && !g.Has(0, to) {
		plan.FellBack = true
	}

	return plan
}

// FullInstallPlan returns the plan for a reinstall from nothing.
func FullInstallPlan(to game.Version, g *Graph) Plan {
	return Plan{
		From:     0,
		To:       to,
		Edges:    []Edge{{Prev: 0, Target: to}},
		FellBack: g != nil && !g.Has(0, to),
	}
}
