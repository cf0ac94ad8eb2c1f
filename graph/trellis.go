package graph

import (
	"math/bits"
	"sort"

	"github.com/teranos/discograph/entity"
)

// trellisNode is one discovered entity. Parents, children and siblings are
// indexes into the owning trellis arena.
type trellisNode struct {
	entity   *entity.Entity
	distance int

	parents  map[int]struct{}
	children map[int]struct{}
	siblings map[int]struct{}
	linkKeys map[string]struct{}

	// subgraphSize is nil until the node is reached from the center.
	subgraphSize  *int
	pages         map[int]struct{}
	missing       int
	missingByPage map[int]int
	cluster       *int
}

func newTrellisNode(e *entity.Entity, distance int) *trellisNode {
	return &trellisNode{
		entity:   e,
		distance: distance,
		parents:  make(map[int]struct{}),
		children: make(map[int]struct{}),
		siblings: make(map[int]struct{}),
		linkKeys: make(map[string]struct{}),
		pages:    make(map[int]struct{}),
	}
}

// trellis is the arena of nodes discovered by one build plus the links
// between them. index holds the live nodes; arena slots of removed nodes are
// never reused.
type trellis struct {
	nodes     []*trellisNode
	index     map[entity.Key]int
	links     map[string]*entity.Relation
	linkPages map[string]map[int]struct{}
}

func newTrellis() *trellis {
	return &trellis{
		index:     make(map[entity.Key]int),
		links:     make(map[string]*entity.Relation),
		linkPages: make(map[string]map[int]struct{}),
	}
}

// add creates a node for e at distance unless one exists. It reports whether
// a node was created.
func (t *trellis) add(e *entity.Entity, distance int) bool {
	if _, ok := t.index[e.Key()]; ok {
		return false
	}
	t.index[e.Key()] = len(t.nodes)
	t.nodes = append(t.nodes, newTrellisNode(e, distance))
	return true
}

func (t *trellis) has(key entity.Key) bool {
	_, ok := t.index[key]
	return ok
}

func (t *trellis) node(key entity.Key) (*trellisNode, bool) {
	i, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// live returns the arena indexes of live nodes in discovery order.
func (t *trellis) live() []int {
	out := make([]int, 0, len(t.index))
	for _, i := range t.index {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// connect attaches every link to its endpoints and classifies each pair as
// siblings (same distance) or parent and child. Links with an endpoint that
// never became a node are dropped. It returns the number dropped.
func (t *trellis) connect() int {
	dropped := 0
	for lk, r := range t.links {
		si, okSource := t.index[r.EntityOneKey()]
		ti, okTarget := t.index[r.EntityTwoKey()]
		if !okSource || !okTarget {
			delete(t.links, lk)
			dropped++
			continue
		}
		source, target := t.nodes[si], t.nodes[ti]
		source.linkKeys[lk] = struct{}{}
		target.linkKeys[lk] = struct{}{}

		switch {
		case source.distance == target.distance:
			source.siblings[ti] = struct{}{}
			target.siblings[si] = struct{}{}
		case source.distance < target.distance:
			source.children[ti] = struct{}{}
			target.parents[si] = struct{}{}
		default:
			target.children[si] = struct{}{}
			source.parents[ti] = struct{}{}
		}
	}
	return dropped
}

// computeSubgraphSizes sets subgraphSize on every node reachable from root
// through children: the number of distinct nodes in its sub-DAG, itself
// included. The walk is an explicit post-order stack.
func (t *trellis) computeSubgraphSizes(root int) {
	n := len(t.nodes)
	reach := make([]bitset, n)

	type frame struct {
		idx      int
		expanded bool
	}
	stack := []frame{{idx: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reach[f.idx] != nil {
			continue
		}

		node := t.nodes[f.idx]
		if !f.expanded {
			stack = append(stack, frame{idx: f.idx, expanded: true})
			for c := range node.children {
				if reach[c] == nil {
					stack = append(stack, frame{idx: c})
				}
			}
			continue
		}

		set := newBitset(n)
		set.set(f.idx)
		for c := range node.children {
			set.union(reach[c])
		}
		reach[f.idx] = set
		size := set.count()
		node.subgraphSize = &size
	}
}

// removeUnreached deletes nodes without a subgraph size and every link
// touching them. It returns the counts removed.
func (t *trellis) removeUnreached() (nodes, links int) {
	removed := make(map[int]struct{})
	for key, i := range t.index {
		if t.nodes[i].subgraphSize == nil {
			delete(t.index, key)
			removed[i] = struct{}{}
		}
	}
	if len(removed) == 0 {
		return 0, 0
	}

	for lk, r := range t.links {
		if t.has(r.EntityOneKey()) && t.has(r.EntityTwoKey()) {
			continue
		}
		delete(t.links, lk)
		links++
		for _, k := range []entity.Key{r.EntityOneKey(), r.EntityTwoKey()} {
			if n, ok := t.node(k); ok {
				delete(n.linkKeys, lk)
			}
		}
	}

	for _, i := range t.index {
		n := t.nodes[i]
		for r := range removed {
			delete(n.parents, r)
			delete(n.children, r)
			delete(n.siblings, r)
		}
	}
	return len(removed), links
}

// parentage returns i and all of its ancestors.
func (t *trellis) parentage(i int) map[int]struct{} {
	out := map[int]struct{}{i: {}}
	stack := []int{i}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for p := range t.nodes[cur].parents {
			if _, seen := out[p]; !seen {
				out[p] = struct{}{}
				stack = append(stack, p)
			}
		}
	}
	return out
}

// neighbors returns every node linked to i.
func (t *trellis) neighbors(i int) map[int]struct{} {
	n := t.nodes[i]
	out := make(map[int]struct{}, len(n.parents)+len(n.children)+len(n.siblings))
	for _, set := range []map[int]struct{}{n.parents, n.children, n.siblings} {
		for j := range set {
			out[j] = struct{}{}
		}
	}
	return out
}

// bitset is a fixed-size set of arena indexes.
type bitset []uint64

func newBitset(n int) bitset { return make(bitset, (n+63)/64) }

func (b bitset) set(i int) { b[i/64] |= 1 << (uint(i) % 64) }

func (b bitset) union(o bitset) {
	for i := range o {
		b[i] |= o[i]
	}
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}
