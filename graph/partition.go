package graph

import (
	"math"
	"sort"

	"go.uber.org/zap"
)

// partitioner spreads trellis nodes across display pages. Every page gets the
// local neighborhood of the center. Deeper structure is balanced by moving
// whole parentage chains onto the least-loaded page.
type partitioner struct {
	t      *trellis
	logger *zap.SugaredLogger
	pages  []map[int]struct{}

	// byDistance holds the not yet paged nodes of each distance, in key order.
	byDistance map[int][]int
	distances  []int
}

func newPartitioner(t *trellis, pageCount int, logger *zap.SugaredLogger) *partitioner {
	p := &partitioner{
		t:          t,
		logger:     logger,
		pages:      make([]map[int]struct{}, pageCount),
		byDistance: make(map[int][]int),
	}
	for i := range p.pages {
		p.pages[i] = make(map[int]struct{})
	}

	for _, i := range t.live() {
		d := t.nodes[i].distance
		p.byDistance[d] = append(p.byDistance[d], i)
	}
	for d, nodes := range p.byDistance {
		sort.Slice(nodes, func(a, b int) bool {
			return t.nodes[nodes[a]].entity.Key().Less(t.nodes[nodes[b]].entity.Key())
		})
		p.distances = append(p.distances, d)
	}
	sort.Ints(p.distances)
	return p
}

// partition assigns every live node to at least one page. maxDistance is the
// deepest BFS round the build reached.
func (p *partitioner) partition(maxDistance int) {
	total := len(p.t.index)
	if total == 0 {
		return
	}
	threshold := float64(total) / float64(len(p.pages)) / float64(len(p.distances))
	winning := p.winningDistance(threshold)

	p.pageLocalNeighborhood(float64(total) / float64(len(p.pages)))
	if maxDistance > 1 {
		p.pageBalanced(winning)
		for _, d := range p.distances {
			p.pageBalanced(d)
		}
	} else {
		p.pageRoundRobin()
	}

	for i, page := range p.pages {
		p.logger.Debugw("Paged trellis", "page", i+1, "nodes", len(page))
	}
}

// winningDistance returns the deepest distance whose geometric mean subgraph
// size is below threshold, promoted by one when it sits in the shallow half.
func (p *partitioner) winningDistance(threshold float64) int {
	winning := 0
	for i := len(p.distances) - 1; i >= 0; i-- {
		d := p.distances[i]
		mean := p.geometricMeanSize(d)
		p.logger.Debugw("Subgraph size at distance", "distance", d, "geometric_mean", mean, "threshold", threshold)
		if mean < threshold {
			winning = d
			break
		}
	}
	if float64(winning+1) < float64(len(p.distances))/2 {
		winning++
		p.logger.Debugw("Promoted winning distance", "distance", winning)
	}
	return winning
}

func (p *partitioner) geometricMeanSize(d int) float64 {
	nodes := p.byDistance[d]
	var logSum float64
	for _, i := range nodes {
		logSum += math.Log(float64(*p.t.nodes[i].subgraphSize))
	}
	return math.Exp(logSum / float64(len(nodes)))
}

// pageLocalNeighborhood puts shallow distances, while their accumulated size
// stays under limit, onto every page along with their parentage.
func (p *partitioner) pageLocalNeighborhood(limit float64) {
	var neighborhood []int
	for _, d := range p.distances {
		nodes := p.byDistance[d]
		if float64(len(neighborhood)+len(nodes)) < limit {
			neighborhood = append(neighborhood, nodes...)
			p.byDistance[d] = nil
		}
	}
	p.logger.Debugw("Paged local neighborhood", "nodes", len(neighborhood))

	for _, i := range neighborhood {
		parentage := p.t.parentage(i)
		for _, page := range p.pages {
			addAll(page, parentage)
		}
	}
}

// pageBalanced drains distance d, moving each node's parentage onto the page
// that stays smallest after the move. Ties go to the smaller page, then the
// lower page index.
func (p *partitioner) pageBalanced(d int) {
	for _, i := range p.byDistance[d] {
		parentage := p.t.parentage(i)
		best, bestAfter, bestLen := 0, math.MaxInt, math.MaxInt
		for idx, page := range p.pages {
			after := len(page)
			for j := range parentage {
				if _, ok := page[j]; !ok {
					after++
				}
			}
			if after < bestAfter || (after == bestAfter && len(page) < bestLen) {
				best, bestAfter, bestLen = idx, after, len(page)
			}
		}
		addAll(p.pages[best], parentage)
	}
	p.byDistance[d] = nil
}

// pageRoundRobin deals the remaining nodes, shallow first, across pages in turn.
func (p *partitioner) pageRoundRobin() {
	next := 0
	for _, d := range p.distances {
		for _, i := range p.byDistance[d] {
			p.pages[next][i] = struct{}{}
			next = (next + 1) % len(p.pages)
		}
		p.byDistance[d] = nil
	}
}

// apply records page numbers (1-based) on nodes and links, then counts per
// page the neighbors a node has off that page.
func (p *partitioner) apply() {
	t := p.t
	for idx, page := range p.pages {
		for i := range page {
			if n := t.nodes[i]; t.has(n.entity.Key()) {
				n.pages[idx+1] = struct{}{}
			}
		}
	}

	for lk, r := range t.links {
		source, _ := t.node(r.EntityOneKey())
		target, _ := t.node(r.EntityTwoKey())
		shared := make(map[int]struct{})
		for page := range source.pages {
			if _, ok := target.pages[page]; ok {
				shared[page] = struct{}{}
			}
		}
		t.linkPages[lk] = shared
	}

	for _, i := range t.live() {
		n := t.nodes[i]
		neighbors := t.neighbors(i)
		missing := make(map[int]int, len(n.pages))
		offPage := false
		for page := range n.pages {
			missing[page] = 0
			for j := range neighbors {
				if _, ok := t.nodes[j].pages[page]; !ok {
					missing[page]++
					offPage = true
				}
			}
		}
		if offPage {
			n.missingByPage = missing
		}
	}
}

func addAll(dst, src map[int]struct{}) {
	for k := range src {
		dst[k] = struct{}{}
	}
}
