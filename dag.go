package reach

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrResourceCycle is returned when a dependency cycle between
	// resources is found. It always indicates a misconfiguration of the
	// relation calculators on the resources involved.
	ErrResourceCycle = errors.New("resource cycle detected")
)

// resource is a CSS or JavaScript resource that can be ordered in a graph.
type resource interface {
	// identity is unique per resource; resources sharing an identity are
	// duplicates and only the first one is kept.
	identity() string

	// linked reports whether the resource is loaded from a URL rather
	// than rendered from a template. Linked resources sort first.
	linked() bool

	// sortKey breaks ties between resources that are ready at the same
	// time.
	sortKey() string

	// implicitlyOrdered reports whether the resource should be ordered
	// after its predecessor in its Component's output.
	implicitlyOrdered() bool

	// relate returns how this resource should be ordered relative to
	// other.
	relate(ctx context.Context, other resource) ResourceRelationship
}

// graph is a directed acyclic graph of resources. Nodes point to their
// dependencies, and dependencies are always walked first.
type graph struct {
	nodes []resource

	// deps holds, for each node position, the positions it depends on.
	deps map[int]map[int]struct{}
}

func newGraph() *graph {
	return &graph{deps: map[int]map[int]struct{}{}}
}

func (g *graph) contains(res resource) bool {
	id := res.identity()
	return slices.ContainsFunc(g.nodes, func(existing resource) bool {
		return existing.identity() == id
	})
}

func (g *graph) dependOn(node, dependency int) {
	if node == dependency {
		return
	}
	if g.deps[node] == nil {
		g.deps[node] = map[int]struct{}{}
	}
	g.deps[node][dependency] = struct{}{}
}

// chain adds resources to the graph, skipping duplicates, and makes each
// implicitly ordered resource depend on the one added before it.
func (g *graph) chain(resources []resource) {
	last := -1
	for _, res := range resources {
		if g.contains(res) {
			continue
		}
		g.nodes = append(g.nodes, res)
		if !res.implicitlyOrdered() {
			continue
		}
		pos := len(g.nodes) - 1
		if last >= 0 {
			g.dependOn(pos, last)
		}
		last = pos
	}
}

// relate adds the edges requested by every resource's relation calculators.
func (g *graph) relate(ctx context.Context) {
	for pos, res := range g.nodes {
		for otherPos, other := range g.nodes {
			if pos == otherPos {
				continue
			}
			switch res.relate(ctx, other) {
			case ResourceRelationshipAfter:
				g.dependOn(pos, otherPos)
			case ResourceRelationshipBefore:
				g.dependOn(otherPos, pos)
			case ResourceRelationshipNeutral:
			}
		}
	}
}

func compareResources(a, b resource) int {
	if a.linked() != b.linked() {
		if a.linked() {
			return -1
		}
		return 1
	}
	return strings.Compare(a.sortKey(), b.sortKey())
}

// walk returns the resources in dependency order. Among resources whose
// dependencies have all been walked, linked ones go first, then ties are
// broken by sortKey.
func (g *graph) walk() ([]resource, error) {
	remaining := make(map[int]int, len(g.nodes))
	dependents := map[int][]int{}
	var ready []int
	for pos := range g.nodes {
		remaining[pos] = len(g.deps[pos])
		for dep := range g.deps[pos] {
			dependents[dep] = append(dependents[dep], pos)
		}
		if remaining[pos] == 0 {
			ready = append(ready, pos)
		}
	}
	byResource := func(a, b int) int {
		return compareResources(g.nodes[a], g.nodes[b])
	}
	slices.SortFunc(ready, byResource)

	results := make([]resource, 0, len(g.nodes))
	for len(ready) > 0 {
		pos := ready[0]
		ready = ready[1:]
		results = append(results, g.nodes[pos])
		delete(remaining, pos)
		var changed bool
		for _, child := range dependents[pos] {
			remaining[child]--
			if remaining[child] == 0 {
				ready = append(ready, child)
				changed = true
			}
		}
		if changed {
			slices.SortFunc(ready, byResource)
		}
	}
	if len(remaining) > 0 {
		var stuck []string
		for pos := range g.nodes {
			if _, ok := remaining[pos]; ok {
				stuck = append(stuck, g.nodes[pos].identity())
			}
		}
		return results, fmt.Errorf("%w: resources=[%s]", ErrResourceCycle, strings.Join(stuck, ", "))
	}
	return results, nil
}

// resourceGraphs holds one graph for CSS, one for JavaScript in the page
// header, and one for JavaScript in the page footer.
type resourceGraphs struct {
	css    *graph
	headJS *graph
	footJS *graph
}

func buildGraphs(ctx context.Context, components []Component) resourceGraphs {
	result := resourceGraphs{
		css:    newGraph(),
		headJS: newGraph(),
		footJS: newGraph(),
	}
	for _, component := range components {
		if linker, ok := component.(CSSLinker); ok {
			result.css.chain(asResources(linker.LinkCSS(ctx)))
		}
		if embedder, ok := component.(CSSEmbedder); ok {
			result.css.chain(asResources(embedder.EmbedCSS(ctx)))
		}
		if linker, ok := component.(JSLinker); ok {
			head, foot := splitByPlacement(linker.LinkJS(ctx), func(link JSLink) bool { return link.PlaceInFooter })
			result.headJS.chain(head)
			result.footJS.chain(foot)
		}
		if embedder, ok := component.(JSEmbedder); ok {
			head, foot := splitByPlacement(embedder.EmbedJS(ctx), func(block JSInline) bool { return block.PlaceInFooter })
			result.headJS.chain(head)
			result.footJS.chain(foot)
		}
	}
	result.css.relate(ctx)
	result.headJS.relate(ctx)
	result.footJS.relate(ctx)
	return result
}

func asResources[Res resource](in []Res) []resource {
	out := make([]resource, 0, len(in))
	for _, res := range in {
		out = append(out, res)
	}
	return out
}

func splitByPlacement[Res resource](in []Res, inFooter func(Res) bool) (head, foot []resource) {
	for _, res := range in {
		if inFooter(res) {
			foot = append(foot, res)
		} else {
			head = append(head, res)
		}
	}
	return head, foot
}
