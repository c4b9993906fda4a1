package patch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janekdeveloper/JanLauncher-sub000/internal/game"
	"github.com/janekdeveloper/JanLauncher-sub000/internal/patch"
)

func edge(prev, target game.Version) patch.Edge {
	return patch.Edge{Prev: prev, Target: target}
}

var _ = Describe("Graph", func() {
	It("deduplicates edges and tracks the highest full install", func() {
		g := patch.NewGraph(game.BranchRelease)

		Expect(g.Add(edge(0, 3))).To(BeTrue())
		Expect(g.Add(edge(0, 3))).To(BeFalse())
		Expect(g.Add(edge(1, 2))).To(BeTrue())
		Expect(g.Add(edge(0, 1))).To(BeTrue())

		Expect(g.Len()).To(Equal(3))
		Expect(g.MaxVersion()).To(Equal(game.Version(3)))
		Expect(g.Targets(0)).To(Equal([]game.Version{1, 3}))
		Expect(g.Edges()).To(Equal([]patch.Edge{edge(0, 1), edge(0, 3), edge(1, 2)}))
	})

	It("ignores backwards and self edges", func() {
		g := patch.NewGraph(game.BranchBeta)

		Expect(g.Add(edge(3, 2))).To(BeFalse())
		Expect(g.Add(edge(2, 2))).To(BeFalse())
		Expect(g.Len()).To(BeZero())
	})

	It("returns copies from Targets", func() {
		g := patch.GraphOf(game.BranchRelease, edge(1, 2), edge(1, 4))

		targets := g.Targets(1)
		targets[0] = 99

		Expect(g.Targets(1)).To(Equal([]game.Version{2, 4}))
	})
})

var _ = Describe("Resolve", func() {
	It("returns nothing when already at or past the target", func() {
		g := patch.GraphOf(game.BranchRelease, edge(0, 3))

		Expect(patch.Resolve(3, 3, g)).To(BeEmpty())
		Expect(patch.Resolve(5, 3, g)).To(BeEmpty())
	})

	It("prefers the direct edge", func() {
		g := patch.GraphOf(game.BranchRelease,
			edge(0, 1), edge(0, 2), edge(0, 3), edge(1, 2), edge(1, 3), edge(2, 3))

		Expect(patch.Resolve(0, 3, g)).To(Equal([]patch.Edge{edge(0, 3)}))
	})

	It("chains edges greedily when no direct edge exists", func() {
		g := patch.GraphOf(game.BranchRelease, edge(1, 2), edge(2, 3))

		Expect(patch.Resolve(1, 3, g)).To(Equal([]patch.Edge{edge(1, 2), edge(2, 3)}))
	})

	It("takes the largest jump that does not overshoot", func() {
		g := patch.GraphOf(game.BranchRelease,
			edge(1, 2), edge(1, 4), edge(1, 9), edge(2, 6), edge(4, 6), edge(6, 7))

		Expect(patch.Resolve(1, 7, g)).To(Equal([]patch.Edge{edge(1, 4), edge(4, 6), edge(6, 7)}))
	})

	It("falls back to a full install when there is no way forward", func() {
		g := patch.GraphOf(game.BranchRelease, edge(0, 5), edge(2, 3))

		Expect(patch.Resolve(1, 5, g)).To(Equal([]patch.Edge{edge(0, 5)}))
	})

	It("falls back when the walk dead-ends midway", func() {
		g := patch.GraphOf(game.BranchRelease, edge(1, 2), edge(2, 3))

		Expect(patch.Resolve(1, 5, g)).To(Equal([]patch.Edge{edge(0, 5)}))
	})
})

var _ = Describe("ResolvePlan", func() {
	It("flags a fallback the graph never advertised", func() {
		plan := patch.ResolvePlan(1, 5, patch.GraphOf(game.BranchRelease))

		Expect(plan.FellBack).To(BeTrue())
		Expect(plan.FullInstall()).To(BeTrue())
	})

	It("does not flag an advertised full install", func() {
		plan := patch.ResolvePlan(0, 5, patch.GraphOf(game.BranchRelease, edge(0, 5)))

		Expect(plan.FellBack).To(BeFalse())
		Expect(plan.FullInstall()).To(BeTrue())
		Expect(plan.Empty()).To(BeFalse())
	})

	It("builds explicit full-install plans", func() {
		plan := patch.FullInstallPlan(4, patch.GraphOf(game.BranchRelease, edge(0, 4)))

		Expect(plan.Edges).To(Equal([]patch.Edge{edge(0, 4)}))
		Expect(plan.FellBack).To(BeFalse())
	})
})
