package display

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/discograph/graph"
	"github.com/teranos/discograph/storage"
)

// NetworkRows lays out nodes by distance, then key, with a header row.
func NetworkRows(n *graph.Network) [][]string {
	nodes := make([]graph.Node, len(n.Nodes))
	copy(nodes, n.Nodes)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Distance != nodes[j].Distance {
			return nodes[i].Distance < nodes[j].Distance
		}
		return nodes[i].Key < nodes[j].Key
	})

	rows := [][]string{{"Distance", "Key", "Name", "Links", "Missing", "Pages"}}
	for _, node := range nodes {
		rows = append(rows, []string{
			strconv.Itoa(node.Distance),
			node.Key,
			node.Name,
			strconv.Itoa(len(node.Links)),
			strconv.Itoa(node.Missing),
			joinInts(node.Pages),
		})
	}
	return rows
}

// LinkRows lists links by key, with a header row.
func LinkRows(n *graph.Network) [][]string {
	links := make([]graph.Link, len(n.Links))
	copy(links, n.Links)
	sort.Slice(links, func(i, j int) bool { return links[i].Key < links[j].Key })

	rows := [][]string{{"Role", "Source", "Target", "Pages"}}
	for _, link := range links {
		rows = append(rows, []string{link.Role, link.Source, link.Target, joinInts(link.Pages)})
	}
	return rows
}

// PrintNetwork renders n as a node table and a link table.
func PrintNetwork(n *graph.Network) error {
	pterm.DefaultSection.Printf("%s (%s)", n.Center.Name, n.Center.Key)
	pterm.Info.Printf("%d nodes, %d links, %d page(s)\n", len(n.Nodes), len(n.Links), n.Pages)

	if err := pterm.DefaultTable.WithHasHeader().WithData(NetworkRows(n)).Render(); err != nil {
		return err
	}
	if len(n.Links) == 0 {
		return nil
	}
	fmt.Println()
	return pterm.DefaultTable.WithHasHeader().WithData(LinkRows(n)).Render()
}

// PrintSearchResults renders name search hits.
func PrintSearchResults(query string, results []storage.SearchResult) error {
	if len(results) == 0 {
		pterm.Warning.Printf("No artists or labels match %q\n", query)
		return nil
	}
	rows := [][]string{{"Key", "Name"}}
	for _, r := range results {
		rows = append(rows, []string{r.Key, r.Name})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
}

// StatsRows lists table sizes, then relation counts per role by name.
func StatsRows(stats *storage.Stats) [][]string {
	rows := [][]string{
		{"Artists", strconv.Itoa(stats.Artists)},
		{"Labels", strconv.Itoa(stats.Labels)},
		{"Relations", strconv.Itoa(stats.Relations)},
		{"Roles", strconv.Itoa(stats.Roles)},
	}
	roles := make([]string, 0, len(stats.RelationsByRole))
	for name := range stats.RelationsByRole {
		roles = append(roles, name)
	}
	sort.Strings(roles)
	for _, name := range roles {
		rows = append(rows, []string{"  " + name, strconv.Itoa(stats.RelationsByRole[name])})
	}
	return rows
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
