package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpl-au/dms/internal/config"
	"github.com/jpl-au/dms/internal/dms"
	"github.com/jpl-au/dms/internal/repo"
	"github.com/jpl-au/dms/internal/service"
)

var ctx = context.Background()

// testHandlers returns handlers whose open function opens a repository in
// a temp dir. When initialised is set the repository already exists.
func testHandlers(t *testing.T, initialised bool) *handlers {
	t.Helper()
	dir := t.TempDir()
	h := &handlers{dir: dir}
	h.open = func(ctx context.Context) (service.Service, error) {
		r, err := repo.DiscoverFrom(dir)
		if err != nil {
			return nil, err
		}
		return dms.Open(ctx, r, &config.Config{})
	}
	if initialised {
		_, err := repo.Init(false, false, dir)
		require.NoError(t, err)
		h.svc, err = h.open(ctx)
		require.NoError(t, err)
	}
	t.Cleanup(func() {
		if h.svc != nil {
			h.svc.Close()
		}
	})
	return h
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func ingest(t *testing.T, h *handlers, filename, content string, extra map[string]any) service.IngestResult {
	t.Helper()
	args := map[string]any{"filename": filename, "content": b64(content)}
	for k, v := range extra {
		args[k] = v
	}
	res, err := h.ingestDocument(ctx, call(args))
	require.NoError(t, err)
	return decode[service.IngestResult](t, res)
}

func TestParseDocumentURI(t *testing.T) {
	tests := []struct {
		uri     string
		code    string
		rev     int
		wantErr error
	}{
		{"dms://documents/ADL-1001", "ADL-1001", 0, nil},
		{"dms://documents/ADL-1001/r/3", "ADL-1001", 3, nil},
		{"dms://documents/", "", 0, ErrEmptyCode},
		{"dms://documents//r/2", "", 0, ErrEmptyCode},
		{"dms://documents/ADL-1001/r/x", "", 0, ErrInvalidURI},
		{"dms://documents/ADL-1001/r/0", "", 0, ErrInvalidURI},
		{"dms://documents/a/b", "", 0, ErrInvalidURI},
		{"llmd://documents/ADL-1001", "", 0, ErrInvalidURI},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			code, rev, err := parseDocumentURI(tt.uri)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.rev, rev)
		})
	}
}

func TestRequireInit(t *testing.T) {
	h := testHandlers(t, false)
	res, err := h.fetchDocument(ctx, call(map[string]any{"code": "ADL-1001"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, ErrNotInitialised, text(t, res))

	_, err = h.readDocument(ctx, mcp.ReadResourceRequest{})
	assert.EqualError(t, err, ErrNotInitialised)
}

func TestInitRepo(t *testing.T) {
	h := testHandlers(t, false)

	res, err := h.initRepo(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))
	assert.Equal(t, "repository initialised", text(t, res))
	require.NotNil(t, h.svc)

	res, err = h.initRepo(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestIngestFetch(t *testing.T) {
	h := testHandlers(t, true)

	in := ingest(t, h, "ADL-1234.txt", "Hello, World!", map[string]any{"description": "first"})
	assert.Equal(t, "ADL-1234", in.Code)
	assert.Equal(t, 1, in.Revision)
	assert.Equal(t, 1, in.Rule)

	res, err := h.fetchDocument(ctx, call(map[string]any{"code": "ADL-1234"}))
	require.NoError(t, err)
	got := decode[map[string]any](t, res)
	assert.Equal(t, "Hello, World!", got["text"])
	assert.Equal(t, b64("Hello, World!"), got["content"])
	assert.Equal(t, "ADL-1234.txt", got["filename"])

	meta := got["metadata"].(map[string]any)
	assert.Equal(t, "first", meta["description"])
	assert.Equal(t, defaultUser, meta["user"])
}

func TestIngest_Allocate(t *testing.T) {
	h := testHandlers(t, true)
	a := ingest(t, h, "scan.txt", "one", map[string]any{"allocate": true, "rule": float64(1)})
	b := ingest(t, h, "scan.txt", "two", map[string]any{"allocate": true, "rule": float64(1)})
	assert.Equal(t, "ADL-1001", a.Code)
	assert.Equal(t, "ADL-1002", b.Code)
}

func TestIngest_Errors(t *testing.T) {
	h := testHandlers(t, true)

	res, err := h.ingestDocument(ctx, call(map[string]any{"filename": "ADL-1234.txt"}))
	require.NoError(t, err)
	assert.Equal(t, "content is required", text(t, res))

	res, err = h.ingestDocument(ctx, call(map[string]any{"filename": "ADL-1234.txt", "content": "%%%"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid base64")

	res, err = h.ingestDocument(ctx, call(map[string]any{"filename": "../x.txt", "content": b64("x")}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(text(t, res), "validation:"), text(t, res))
}

func TestFetch_NotFound(t *testing.T) {
	h := testHandlers(t, true)
	res, err := h.fetchDocument(ctx, call(map[string]any{"code": "ADL-9999"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(text(t, res), "not_found:"), text(t, res))
}

func TestListHistoryRemove(t *testing.T) {
	h := testHandlers(t, true)
	ingest(t, h, "ADL-2000.txt", "a", nil)
	ingest(t, h, "ADL-2000.txt", "b", nil)
	ingest(t, h, "ADL-2001.txt", "c", nil)

	res, err := h.listDocuments(ctx, call(map[string]any{"rule": float64(1)}))
	require.NoError(t, err)
	list := decode[struct {
		Codes []string `json:"codes"`
		Count int      `json:"count"`
	}](t, res)
	assert.ElementsMatch(t, []string{"ADL-2000", "ADL-2001"}, list.Codes)
	assert.Equal(t, 2, list.Count)

	res, err = h.listDocuments(ctx, call(map[string]any{}))
	require.NoError(t, err)
	assert.Equal(t, "rule is required", text(t, res))

	res, err = h.historyDocument(ctx, call(map[string]any{"code": "ADL-2000"}))
	require.NoError(t, err)
	hist := decode[struct {
		Revisions []struct {
			Revision int `json:"revision"`
		} `json:"revisions"`
	}](t, res)
	require.Len(t, hist.Revisions, 2)
	assert.Equal(t, 2, hist.Revisions[1].Revision)

	res, err = h.removeDocument(ctx, call(map[string]any{"code": "ADL-2000", "revision": float64(1)}))
	require.NoError(t, err)
	assert.Equal(t, "removed ADL-2000 revision 1", text(t, res))

	res, err = h.removeDocument(ctx, call(map[string]any{"code": "ADL-2000"}))
	require.NoError(t, err)
	assert.Equal(t, "removed ADL-2000", text(t, res))

	res, err = h.fetchDocument(ctx, call(map[string]any{"code": "ADL-2000"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDiff(t *testing.T) {
	h := testHandlers(t, true)
	ingest(t, h, "ADL-3000.txt", "alpha\n", nil)
	ingest(t, h, "ADL-3000.txt", "beta\n", nil)

	res, err := h.diffDocument(ctx, call(map[string]any{"code": "ADL-3000", "from": float64(1)}))
	require.NoError(t, err)
	got := decode[map[string]any](t, res)
	assert.Equal(t, false, got["same"])
	assert.Contains(t, got["diff"], "-alpha")
	assert.Contains(t, got["diff"], "+beta")

	res, err = h.diffDocument(ctx, call(map[string]any{"code": "ADL-3000"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestUpdateAndTags(t *testing.T) {
	h := testHandlers(t, true)
	ingest(t, h, "ADL-4000.txt", "body", map[string]any{"tags": []any{"draft"}})

	res, err := h.updateDocument(ctx, call(map[string]any{
		"code":        "ADL-4000",
		"add_tags":    []any{"finance", "approved"},
		"remove_tags": []any{"draft"},
	}))
	require.NoError(t, err)
	up := decode[service.UpdateResult](t, res)
	assert.Equal(t, []string{"approved", "finance"}, up.Tags)

	codes, err := h.svc.CodesWithTag(ctx, "finance")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADL-4000"}, codes)

	res, err = h.updateDocument(ctx, call(map[string]any{"code": "ADL-4000"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListRules(t *testing.T) {
	h := testHandlers(t, true)
	res, err := h.listRules(ctx, call(nil))
	require.NoError(t, err)
	rules := decode[[]struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}](t, res)
	require.NotEmpty(t, rules)
	assert.Equal(t, 1, rules[0].ID)
}

func TestReadDocument(t *testing.T) {
	h := testHandlers(t, true)
	ingest(t, h, "ADL-5000.txt", "first", nil)
	ingest(t, h, "ADL-5000.txt", "second", nil)

	var req mcp.ReadResourceRequest
	req.Params.URI = "dms://documents/ADL-5000/r/1"
	contents, err := h.readDocument(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "first", tc.Text)

	req.Params.URI = "dms://documents/ADL-5000"
	contents, err = h.readDocument(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "second", contents[0].(mcp.TextResourceContents).Text)
}

func TestNewServer(t *testing.T) {
	assert.NotNil(t, newServer(testHandlers(t, false)))
}

func TestOpenRepo_SetsExtensionContext(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, err := repo.Init(false, false, dir)
	require.NoError(t, err)

	h := &handlers{dir: dir}
	svc, err := h.openRepo(ctx)
	require.NoError(t, err)
	defer svc.Close()
	require.NotNil(t, h.ext)
	assert.Same(t, svc, h.ext.Service())
}
