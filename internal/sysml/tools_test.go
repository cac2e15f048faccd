// ABOUTME: End-to-end tests driving the sysml_* tools through the MCP dispatch engine.
// ABOUTME: Verifies schemas, argument validation, rendering and the endpoint resource.

package sysml

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/qri-io/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sysml-mcp/internal/mcp"
)

func newEngine(t *testing.T, c *Client) *mcp.Server {
	t.Helper()
	pack := NewPack(c)
	s, err := mcp.NewServer(mcp.Config{Name: "sysml-test", Version: "test", Packs: []mcp.ToolPack{pack}})
	require.NoError(t, err)
	pack.RegisterResources(s)

	out := s.HandleRequest(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`))
	require.NotContains(t, string(out), `"error"`)
	return s
}

func callTool(t *testing.T, s *mcp.Server, name, arguments string) mcp.CallToolResult {
	t.Helper()
	req := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"` + name + `","arguments":` + arguments + `}}`

	var resp struct {
		Result mcp.CallToolResult `json:"result"`
		Error  *mcp.JSONRPCError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(s.HandleRequest(context.Background(), json.RawMessage(req)), &resp))
	require.Nil(t, resp.Error)
	require.Len(t, resp.Result.Content, 1)
	return resp.Result
}

func TestToolSchemasAreValid(t *testing.T) {
	names := map[string]bool{}
	for _, tl := range tools {
		var schema jsonschema.Schema
		require.NoError(t, json.Unmarshal([]byte(tl.schema), &schema), tl.name)
		require.True(t, json.Valid([]byte(tl.schema)), tl.name)
		assert.True(t, strings.HasPrefix(tl.name, "sysml_"), tl.name)
		names[tl.name] = true
	}
	assert.Len(t, names, 16)
}

func TestToolsListed(t *testing.T) {
	c, _ := fakeAPI(t, http.StatusOK, `[]`)
	s := newEngine(t, c)

	var resp struct {
		Result mcp.ListToolsResult `json:"result"`
	}
	out := s.HandleRequest(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, json.Unmarshal(out, &resp))

	// echo plus sixteen sysml tools
	require.Len(t, resp.Result.Tools, 17)
	assert.Equal(t, "echo", resp.Result.Tools[0].Name)
	assert.Equal(t, "sysml_create_project", resp.Result.Tools[1].Name)
}

func TestListProjectsTool(t *testing.T) {
	c, seen := fakeAPI(t, http.StatusOK, `[{"@id":"p1","name":"Drone"}]`)
	s := newEngine(t, c)

	result := callTool(t, s, "sysml_list_projects", `{}`)
	assert.False(t, result.IsError)
	assert.Equal(t, "Projects:\n[\n  {\n    \"@id\": \"p1\",\n    \"name\": \"Drone\"\n  }\n]", result.Content[0].Text)

	require.Len(t, *seen, 1)
	assert.Equal(t, "50", (*seen)[0].Query["page[size]"], "default page size")

	callTool(t, s, "sysml_list_projects", `{"pageSize":5}`)
	assert.Equal(t, "5", (*seen)[1].Query["page[size]"])
}

func TestDiffCommitsTool(t *testing.T) {
	c, seen := fakeAPI(t, http.StatusOK, `{"changes":[]}`)
	s := newEngine(t, c)

	result := callTool(t, s, "sysml_diff_commits",
		`{"projectId":"p1","baseCommitId":"c1","compareCommitId":"c2","changeTypes":["CREATED","UPDATED"]}`)
	assert.False(t, result.IsError)
	assert.True(t, strings.HasPrefix(result.Content[0].Text, "Commit Differences:\n"))

	require.Len(t, *seen, 1)
	assert.Equal(t, "/projects/p1/commits/c2/diff", (*seen)[0].Path)
	assert.Equal(t, "CREATED,UPDATED", (*seen)[0].Query["changeTypes"])
}

func TestReadTools(t *testing.T) {
	tests := []struct {
		tool      string
		arguments string
		wantPath  string
		wantTitle string
	}{
		{"sysml_get_commit", `{"projectId":"p1","commitId":"c1"}`, "/projects/p1/commits/c1", "Commit Details"},
		{"sysml_get_branch", `{"projectId":"p1","branchId":"b1"}`, "/projects/p1/branches/b1", "Branch Details"},
		{"sysml_get_tags", `{"projectId":"p1"}`, "/projects/p1/tags", "Tags"},
		{"sysml_get_tag", `{"projectId":"p1","tagId":"t1"}`, "/projects/p1/tags/t1", "Tag Details"},
		{"sysml_get_queries", `{"projectId":"p1"}`, "/projects/p1/queries", "Queries"},
		{"sysml_get_query", `{"projectId":"p1","queryId":"q1"}`, "/projects/p1/queries/q1", "Query Details"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			c, seen := fakeAPI(t, http.StatusOK, `{"@id":"x"}`)
			s := newEngine(t, c)

			result := callTool(t, s, tt.tool, tt.arguments)
			assert.False(t, result.IsError, result.Content[0].Text)
			assert.Equal(t, tt.wantTitle+":\n{\n  \"@id\": \"x\"\n}", result.Content[0].Text)

			require.Len(t, *seen, 1)
			assert.Equal(t, http.MethodGet, (*seen)[0].Method)
			assert.Equal(t, tt.wantPath, (*seen)[0].Path)
		})
	}
}

func TestReadToolsRequireIdentifiers(t *testing.T) {
	c, seen := fakeAPI(t, http.StatusOK, `{}`)
	s := newEngine(t, c)

	for _, tool := range []string{"sysml_get_commit", "sysml_get_branch", "sysml_get_tag", "sysml_get_query"} {
		result := callTool(t, s, tool, `{"projectId":"p1"}`)
		assert.True(t, result.IsError, tool)
	}
	assert.Empty(t, *seen)
}

func TestExecuteQueryTool(t *testing.T) {
	c, seen := fakeAPI(t, http.StatusOK, `[]`)
	s := newEngine(t, c)

	result := callTool(t, s, "sysml_execute_query", `{"projectId":"p1","query":{"select":["name"]},"commitId":"c3"}`)
	assert.False(t, result.IsError)

	require.Len(t, *seen, 1)
	assert.Equal(t, http.MethodPost, (*seen)[0].Method)
	assert.Equal(t, "/projects/p1/query-results", (*seen)[0].Path)
	assert.Equal(t, "c3", (*seen)[0].Query["commitId"])
	assert.Equal(t, map[string]any{"select": []any{"name"}}, (*seen)[0].Body)
}

func TestToolArgumentValidation(t *testing.T) {
	c, seen := fakeAPI(t, http.StatusOK, `{}`)
	s := newEngine(t, c)

	tests := []struct {
		name      string
		tool      string
		arguments string
	}{
		{"missing required", "sysml_get_project", `{}`},
		{"wrong type", "sysml_get_project", `{"projectId":42}`},
		{"bad enum", "sysml_diff_commits", `{"projectId":"p","baseCommitId":"a","compareCommitId":"b","changeTypes":["RENAMED"]}`},
		{"query not object", "sysml_execute_query", `{"projectId":"p","query":"select *"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, tt.tool, tt.arguments)
			assert.True(t, result.IsError)
			assert.Contains(t, result.Content[0].Text, "Error executing tool '"+tt.tool+"'. Reason: invalid arguments")
		})
	}
	assert.Empty(t, *seen, "invalid arguments must not reach the API")
}

func TestToolAPIErrorIsToolFailure(t *testing.T) {
	c, _ := fakeAPI(t, http.StatusInternalServerError, `boom`)
	s := newEngine(t, c)

	result := callTool(t, s, "sysml_get_branches", `{"projectId":"p1"}`)
	assert.True(t, result.IsError)
	assert.Equal(t, "Error executing tool 'sysml_get_branches'. Reason: SysML v2 API returned status 500: boom", result.Content[0].Text)
}

func TestEndpointResource(t *testing.T) {
	c, _ := fakeAPI(t, http.StatusOK, `{}`)
	s := newEngine(t, c)

	var resp struct {
		Result mcp.ReadResourceResult `json:"result"`
	}
	out := s.HandleRequest(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"sysml://api/endpoint"}}`))
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Len(t, resp.Result.Contents, 1)

	contents := resp.Result.Contents[0]
	assert.Equal(t, EndpointResourceURI, contents.URI)
	assert.Equal(t, "application/json", contents.MimeType)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(contents.Text), &body))
	assert.Equal(t, c.BaseURL(), body["baseUrl"])
	assert.False(t, strings.HasSuffix(body["baseUrl"], "/"))
}
