package graph

import (
	"sort"

	"github.com/teranos/discograph/entity"
)

// assignClusters gives each alias group a cluster id. Nodes with the most
// aliases claim ids first, and an entity already claimed by an earlier group
// keeps that id. It returns the number of clusters allocated.
func (t *trellis) assignClusters() int {
	order := t.live()
	sort.SliceStable(order, func(a, b int) bool {
		return len(t.nodes[order[a]].entity.Section(entity.SectionAliases)) >
			len(t.nodes[order[b]].entity.Section(entity.SectionAliases))
	})

	clusters := make(map[entity.Key]int)
	count := 0
	for _, i := range order {
		n := t.nodes[i]
		if len(n.entity.Section(entity.SectionAliases)) == 0 {
			continue
		}
		key := n.entity.Key()
		if _, claimed := clusters[key]; !claimed {
			count++
			clusters[key] = count
			for _, id := range n.entity.AliasIDs() {
				clusters[entity.Key{Type: key.Type, ID: id}] = count
			}
		}
		cluster := clusters[key]
		n.cluster = &cluster
	}
	return count
}
