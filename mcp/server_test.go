package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/discograph/am"
	"github.com/teranos/discograph/graph"
	dgtest "github.com/teranos/discograph/internal/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	v := viper.New()
	am.SetDefaults(v)
	cfg, err := am.LoadWithViper(v)
	require.NoError(t, err)
	return NewServer(dgtest.SeefeelMemoryStore(), cfg.Network, 0, zaptest.NewLogger(t).Sugar())
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", result.Content[0])
	return text.Text
}

func TestReadRoles(t *testing.T) {
	s := newTestServer(t)

	contents, err := s.handleReadRoles(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: RolesURI},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", text.MIMEType)
	assert.Equal(t, RolesURI, text.URI)

	var body struct {
		Categories []struct {
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		} `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &body))
	assert.NotEmpty(t, body.Categories)
}

func TestNetworkTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleNetwork(context.Background(), callTool("discograph_network", map[string]interface{}{
		"key":    "artist-2239",
		"roles":  []interface{}{"Released On"},
		"degree": float64(1),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var network graph.Network
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &network))
	assert.Equal(t, "artist-2239", network.Center.Key)
	assert.Len(t, network.Nodes, 3)
	assert.NotNil(t, network.LinkByKey("artist-2239-released-on-label-3054"))
	assert.Nil(t, network.NodeByKey("artist-53714"), "degree one stops before Disjecta")
}

func TestNetworkTool_YearFilter(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleNetwork(context.Background(), callTool("discograph_network", map[string]interface{}{
		"key":   "artist-2239",
		"roles": []interface{}{"Released On"},
		"year":  "1994",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var network graph.Network
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &network))
	assert.Len(t, network.Nodes, 2)
}

func TestNetworkTool_Errors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing key", map[string]interface{}{}, "key"},
		{"bad key", map[string]interface{}{"key": "release-1"}, "release"},
		{"unknown role", map[string]interface{}{"key": "artist-2239", "roles": []interface{}{"Kazoo"}}, "/api/roles"},
		{"bad year", map[string]interface{}{"key": "artist-2239", "year": "soon"}, "soon"},
		{"missing entity", map[string]interface{}{"key": "artist-999999"}, "artist-999999"},
		{"bad budget", map[string]interface{}{"key": "artist-2239", "max_nodes": float64(0)}, "max_nodes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.handleNetwork(context.Background(), callTool("discograph_network", tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestSearchTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleSearch(context.Background(), callTool("discograph_search", map[string]interface{}{
		"query": "warp",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"label-23528"`)

	result, err = s.handleSearch(context.Background(), callTool("discograph_search", map[string]interface{}{
		"query": "zzzz",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No artists or labels match")
}

func TestRelationsTool(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleRelations(context.Background(), callTool("discograph_relations", map[string]interface{}{
		"key": "label-23528",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var body struct {
		Results []relationRow `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &body))
	require.Len(t, body.Results, 2)
	for _, r := range body.Results {
		assert.Equal(t, "Released On", r.Role)
		assert.Equal(t, "label-23528", r.Target)
	}

	result, err = s.handleRelations(context.Background(), callTool("discograph_relations", map[string]interface{}{
		"key": "label-999999",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
