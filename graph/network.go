package graph

import (
	"sort"

	"github.com/teranos/discograph/entity"
)

// Network is the serialized ego network handed to the UI.
type Network struct {
	Center Center `json:"center"`
	Links  []Link `json:"links"`
	Nodes  []Node `json:"nodes"`
	Pages  int    `json:"pages"`
}

// Center describes the entity the network was built around.
type Center struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Node is one entity in the network.
type Node struct {
	ID            int         `json:"id"`
	Key           string      `json:"key"`
	Type          string      `json:"type"`
	Name          string      `json:"name"`
	Distance      int         `json:"distance"`
	Size          int         `json:"size"`
	Links         []string    `json:"links"`
	Missing       int         `json:"missing"`
	Pages         []int       `json:"pages"`
	Cluster       *int        `json:"cluster,omitempty"`
	MissingByPage map[int]int `json:"missing_by_page,omitempty"`
}

// Link is one relation between two nodes. Pages lists the pages on which
// both endpoints are visible.
type Link struct {
	Key      string `json:"key"`
	Role     string `json:"role"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Pages    []int  `json:"pages"`
	Distance *int   `json:"distance,omitempty"`
}

// NodeByKey returns the node with the given entity key, or nil.
func (n *Network) NodeByKey(key string) *Node {
	for i := range n.Nodes {
		if n.Nodes[i].Key == key {
			return &n.Nodes[i]
		}
	}
	return nil
}

// LinkByKey returns the link with the given link key, or nil.
func (n *Network) LinkByKey(key string) *Link {
	for i := range n.Links {
		if n.Links[i].Key == key {
			return &n.Links[i]
		}
	}
	return nil
}

// serialize converts the finished trellis into a Network. Nodes are ordered
// by entity key (type, then id) and links by link key.
func (t *trellis) serialize(center *entity.Entity, pageCount int) *Network {
	network := &Network{
		Center: Center{Key: center.Key().JSONKey(), Name: center.Name},
		Links:  make([]Link, 0, len(t.links)),
		Nodes:  make([]Node, 0, len(t.index)),
		Pages:  pageCount,
	}

	keys := make([]entity.Key, 0, len(t.index))
	for k := range t.index {
		keys = append(keys, k)
	}
	entity.SortKeys(keys)

	for _, k := range keys {
		n := t.nodes[t.index[k]]
		linkKeys := make([]string, 0, len(n.linkKeys))
		for lk := range n.linkKeys {
			linkKeys = append(linkKeys, lk)
		}
		sort.Strings(linkKeys)

		node := Node{
			ID:       n.entity.ID,
			Key:      k.JSONKey(),
			Type:     n.entity.Type.String(),
			Name:     n.entity.Name,
			Distance: n.distance,
			Size:     n.entity.Size(),
			Links:    linkKeys,
			Missing:  n.missing,
			Pages:    sortedPages(n.pages),
			Cluster:  n.cluster,
		}
		if len(n.missingByPage) > 0 {
			node.MissingByPage = n.missingByPage
		}
		network.Nodes = append(network.Nodes, node)
	}

	linkKeys := make([]string, 0, len(t.links))
	for lk := range t.links {
		linkKeys = append(linkKeys, lk)
	}
	sort.Strings(linkKeys)

	for _, lk := range linkKeys {
		r := t.links[lk]
		network.Links = append(network.Links, Link{
			Key:    lk,
			Role:   r.Role,
			Source: r.EntityOneKey().JSONKey(),
			Target: r.EntityTwoKey().JSONKey(),
			Pages:  sortedPages(t.linkPages[lk]),
		})
	}

	return network
}

func sortedPages(set map[int]struct{}) []int {
	pages := make([]int, 0, len(set))
	for p := range set {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}
