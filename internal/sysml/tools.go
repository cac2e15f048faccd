// ABOUTME: MCP tool pack exposing SysML v2 API operations as sysml_* tools.
// ABOUTME: Arguments are checked against each tool's input schema before the API is called.

package sysml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/2389/sysml-mcp/internal/mcp"
)

// DefaultPageSize is used when a listing tool is called without pageSize.
const DefaultPageSize = 50

// EndpointResourceURI identifies the resource describing the configured API endpoint.
const EndpointResourceURI = "sysml://api/endpoint"

// toolArgs is the union of all tool arguments.
type toolArgs struct {
	ProjectID       string          `json:"projectId"`
	CommitID        string          `json:"commitId"`
	ElementID       string          `json:"elementId"`
	BranchID        string          `json:"branchId"`
	TagID           string          `json:"tagId"`
	QueryID         string          `json:"queryId"`
	BaseCommitID    string          `json:"baseCommitId"`
	CompareCommitID string          `json:"compareCommitId"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	PageSize        *int            `json:"pageSize"`
	Query           json.RawMessage `json:"query"`
	ChangeTypes     []string        `json:"changeTypes"`
}

func (a toolArgs) pageSize() int {
	if a.PageSize == nil {
		return DefaultPageSize
	}
	return *a.PageSize
}

// tool describes one sysml_* tool.
type tool struct {
	name        string
	description string
	schema      string
	// title prefixes the rendered result.
	title string
	call  func(ctx context.Context, c *Client, args toolArgs) (json.RawMessage, error)
}

const (
	projectIDProp = `"projectId":{"type":"string","description":"UUID of the project"}`
	commitIDProp  = `"commitId":{"type":"string","description":"UUID of the commit"}`
)

func pageSizeProp(what string) string {
	return `"pageSize":{"type":"integer","description":"Maximum number of ` + what + ` per page","default":50}`
}

func objectSchema(required []string, props ...string) string {
	schema := `{"type":"object","properties":{` + strings.Join(props, ",") + `}`
	if len(required) > 0 {
		quoted := make([]string, len(required))
		for i, r := range required {
			quoted[i] = `"` + r + `"`
		}
		schema += `,"required":[` + strings.Join(quoted, ",") + `]`
	}
	return schema + `}`
}

var tools = []tool{
	{
		name:        "sysml_list_projects",
		description: "List all available SysML v2 projects.",
		schema:      objectSchema(nil, pageSizeProp("projects")),
		title:       "Projects",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListProjects(ctx, a.pageSize())
		},
	},
	{
		name:        "sysml_get_project",
		description: "Get specific SysML v2 project by ID.",
		schema:      objectSchema([]string{"projectId"}, projectIDProp),
		title:       "Project Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetProject(ctx, a.ProjectID)
		},
	},
	{
		name:        "sysml_create_project",
		description: "Create new SysML v2 project",
		schema: objectSchema([]string{"name"},
			`"name":{"type":"string","description":"Name of the project"}`,
			`"description":{"type":"string","description":"Optional description of the project"}`),
		title: "Created Project",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.CreateProject(ctx, a.Name, a.Description)
		},
	},
	{
		name:        "sysml_get_elements",
		description: "Get all elements in a project at specific commit.",
		schema:      objectSchema([]string{"projectId", "commitId"}, projectIDProp, commitIDProp, pageSizeProp("elements")),
		title:       "Elements",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListElements(ctx, a.ProjectID, a.CommitID, a.pageSize())
		},
	},
	{
		name:        "sysml_get_element",
		description: "Get specific element by ID.",
		schema: objectSchema([]string{"projectId", "commitId", "elementId"}, projectIDProp, commitIDProp,
			`"elementId":{"type":"string","description":"UUID of the element"}`),
		title: "Element Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetElement(ctx, a.ProjectID, a.CommitID, a.ElementID)
		},
	},
	{
		name:        "sysml_get_root_elements",
		description: "Get root elements in a project.",
		schema:      objectSchema([]string{"projectId", "commitId"}, projectIDProp, commitIDProp),
		title:       "Root Elements",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListRootElements(ctx, a.ProjectID, a.CommitID, 0)
		},
	},
	{
		name:        "sysml_get_branches",
		description: "Get all branches in a project.",
		schema:      objectSchema([]string{"projectId"}, projectIDProp),
		title:       "Branches",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListBranches(ctx, a.ProjectID)
		},
	},
	{
		name:        "sysml_get_commits",
		description: "Get commit history for a project.",
		schema:      objectSchema([]string{"projectId"}, projectIDProp, pageSizeProp("commits")),
		title:       "Commits",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListCommits(ctx, a.ProjectID, a.pageSize())
		},
	},
	{
		name:        "sysml_get_commit",
		description: "Get specific commit by ID.",
		schema:      objectSchema([]string{"projectId", "commitId"}, projectIDProp, commitIDProp),
		title:       "Commit Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetCommit(ctx, a.ProjectID, a.CommitID)
		},
	},
	{
		name:        "sysml_get_branch",
		description: "Get specific branch by ID.",
		schema: objectSchema([]string{"projectId", "branchId"}, projectIDProp,
			`"branchId":{"type":"string","description":"UUID of the branch"}`),
		title: "Branch Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetBranch(ctx, a.ProjectID, a.BranchID)
		},
	},
	{
		name:        "sysml_get_tags",
		description: "Get all tags in a project.",
		schema:      objectSchema([]string{"projectId"}, projectIDProp),
		title:       "Tags",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListTags(ctx, a.ProjectID)
		},
	},
	{
		name:        "sysml_get_tag",
		description: "Get specific tag by ID.",
		schema: objectSchema([]string{"projectId", "tagId"}, projectIDProp,
			`"tagId":{"type":"string","description":"UUID of the tag"}`),
		title: "Tag Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetTag(ctx, a.ProjectID, a.TagID)
		},
	},
	{
		name:        "sysml_get_queries",
		description: "Get all stored queries in a project.",
		schema:      objectSchema([]string{"projectId"}, projectIDProp),
		title:       "Queries",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ListQueries(ctx, a.ProjectID)
		},
	},
	{
		name:        "sysml_get_query",
		description: "Get specific stored query by ID.",
		schema: objectSchema([]string{"projectId", "queryId"}, projectIDProp,
			`"queryId":{"type":"string","description":"UUID of the query"}`),
		title: "Query Details",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.GetQuery(ctx, a.ProjectID, a.QueryID)
		},
	},
	{
		name:        "sysml_execute_query",
		description: "Execute SysML v2 query on project data.",
		schema: objectSchema([]string{"projectId", "query"}, projectIDProp,
			`"query":{"type":"object","description":"Query definition with select, where, orderBy clauses"}`,
			`"commitId":{"type":"string","description":"Optional commit ID to query against"}`),
		title: "Query Results",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.ExecuteQuery(ctx, a.ProjectID, a.Query, a.CommitID)
		},
	},
	{
		name:        "sysml_diff_commits",
		description: "Compare differences between two commits.",
		schema: objectSchema([]string{"projectId", "baseCommitId", "compareCommitId"}, projectIDProp,
			`"baseCommitId":{"type":"string","description":"UUID of the base commit"}`,
			`"compareCommitId":{"type":"string","description":"UUID of the compare commit"}`,
			`"changeTypes":{"type":"array","items":{"type":"string","enum":["CREATED","UPDATED","DELETED"]},"description":"Filter by change types"}`),
		title: "Commit Differences",
		call: func(ctx context.Context, c *Client, a toolArgs) (json.RawMessage, error) {
			return c.DiffCommits(ctx, a.ProjectID, a.BaseCommitID, a.CompareCommitID, a.ChangeTypes)
		},
	},
}

// Pack registers the SysML v2 tools and the endpoint resource.
type Pack struct {
	client *Client
}

// NewPack creates a Pack backed by client.
func NewPack(client *Client) *Pack {
	return &Pack{client: client}
}

// RegisterTools registers every sysml_* tool into r.
func (p *Pack) RegisterTools(r mcp.ToolRegistrar) {
	for _, t := range tools {
		r.RegisterTool(t.name, t.description, json.RawMessage(t.schema), p.handler(t))
	}
}

// RegisterResources registers the endpoint description resource into r.
func (p *Pack) RegisterResources(r mcp.ResourceRegistrar) {
	r.RegisterResource("SysML v2 API Endpoint", EndpointResourceURI,
		"Base URL of the SysML v2 API server the tools talk to.",
		"application/json",
		p.endpointResource,
	)
}

func (p *Pack) endpointResource(_ context.Context) (string, error) {
	out, err := json.MarshalIndent(map[string]string{
		"baseUrl":  p.client.BaseURL(),
		"protocol": "OMG Systems Modeling API and Services (REST/HTTP PSM)",
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (p *Pack) handler(t tool) mcp.ToolHandler {
	schema := jsonschema.Must(t.schema)

	return func(ctx context.Context, arguments json.RawMessage) (*mcp.ToolResult, error) {
		if err := validateArguments(ctx, schema, arguments); err != nil {
			return nil, err
		}

		var args toolArgs
		if err := json.Unmarshal(arguments, &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}

		data, err := t.call(ctx, p.client, args)
		if err != nil {
			return nil, err
		}

		text, err := render(t.title, data)
		if err != nil {
			return nil, err
		}
		return mcp.TextResult(text), nil
	}
}

func validateArguments(ctx context.Context, schema *jsonschema.Schema, arguments json.RawMessage) error {
	keyErrs, err := schema.ValidateBytes(ctx, arguments)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if len(keyErrs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(keyErrs))
	for _, ke := range keyErrs {
		msgs = append(msgs, ke.Error())
	}
	return errors.New("invalid arguments: " + strings.Join(msgs, "; "))
}

// render formats data as "<title>:\n" followed by two-space indented JSON.
func render(title string, data json.RawMessage) (string, error) {
	var out strings.Builder
	out.WriteString(title)
	out.WriteString(":\n")

	indented, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting result: %w", err)
	}
	out.Write(indented)
	return out.String(), nil
}
