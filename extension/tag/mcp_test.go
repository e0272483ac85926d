package tag

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/extension"
	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
)

func newContext(t *testing.T) extension.Context {
	t.Helper()
	r, err := repo.Init(false, false, t.TempDir())
	require.NoError(t, err)
	svc, err := dms.Open(context.Background(), r, &config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	for _, name := range []string{"ADL-1001.txt", "ADL-1002.txt"} {
		_, err := svc.Ingest(context.Background(), name, strings.NewReader("x"), "tester",
			service.IngestOptions{Tags: []string{"finance"}})
		require.NoError(t, err)
	}
	return extension.NewContext(svc, svc.DB(), nil)
}

func callTool(t *testing.T, extCtx extension.Context, args map[string]any) string {
	t.Helper()
	tools := (&Extension{}).MCPTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "dms_tags", tools[0].Tool.Name)

	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := tools[0].Handler(context.Background(), extCtx, req)
	require.NoError(t, err)
	require.False(t, res.IsError)
	return res.Content[0].(mcp.TextContent).Text
}

func TestMCPTags_All(t *testing.T) {
	var got []struct {
		Tag   string `json:"tag"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(callTool(t, newContext(t), map[string]any{})), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "finance", got[0].Tag)
	assert.Equal(t, 2, got[0].Count)
}

func TestMCPTags_ByTag(t *testing.T) {
	var got struct {
		Codes []string `json:"codes"`
	}
	require.NoError(t, json.Unmarshal([]byte(callTool(t, newContext(t), map[string]any{"tag": "finance"})), &got))
	assert.Equal(t, []string{"ADL-1001", "ADL-1002"}, got.Codes)

	require.NoError(t, json.Unmarshal([]byte(callTool(t, newContext(t), map[string]any{"tag": "none"})), &got))
	assert.Empty(t, got.Codes)
}
