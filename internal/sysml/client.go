// ABOUTME: Typed client for the OMG Systems Modeling (SysML v2) REST API.
// ABOUTME: Builds API paths and turns non-2xx answers into APIError values.

package sysml

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/2389/sysml-mcp/internal/toolclient"
)

// APIError is returned when the API answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("SysML v2 API returned status %d: %s", e.Status, e.Body)
}

// Client calls a SysML v2 API server rooted at a base URL.
type Client struct {
	rest    *toolclient.Client
	baseURL string
}

// NewClient creates a Client. Trailing slashes on baseURL are ignored.
func NewClient(rest *toolclient.Client, baseURL string) *Client {
	return &Client{
		rest:    rest,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Projects

func (c *Client) ListProjects(ctx context.Context, pageSize int) (json.RawMessage, error) {
	return c.get(ctx, "/projects", pageQuery(pageSize))
}

func (c *Client) GetProject(ctx context.Context, projectID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID), nil)
}

func (c *Client) CreateProject(ctx context.Context, name, description string) (json.RawMessage, error) {
	body := map[string]string{"name": name}
	if description != "" {
		body["description"] = description
	}
	return c.post(ctx, "/projects", nil, body)
}

// UpdateProject changes the name and/or description; empty values are left out.
func (c *Client) UpdateProject(ctx context.Context, projectID, name, description string) (json.RawMessage, error) {
	body := map[string]string{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}
	return c.put(ctx, path("projects", projectID), body)
}

func (c *Client) DeleteProject(ctx context.Context, projectID string) (json.RawMessage, error) {
	return c.delete(ctx, path("projects", projectID))
}

// Elements

func (c *Client) ListElements(ctx context.Context, projectID, commitID string, pageSize int) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "commits", commitID, "elements"), pageQuery(pageSize))
}

func (c *Client) GetElement(ctx context.Context, projectID, commitID, elementID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "commits", commitID, "elements", elementID), nil)
}

func (c *Client) ListRootElements(ctx context.Context, projectID, commitID string, pageSize int) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "commits", commitID, "roots"), pageQuery(pageSize))
}

// ListRelationships returns relationships of an element; direction is "in", "out" or "both".
func (c *Client) ListRelationships(ctx context.Context, projectID, commitID, elementID, direction string) (json.RawMessage, error) {
	q := url.Values{}
	if direction != "" {
		q.Set("direction", direction)
	}
	return c.get(ctx, path("projects", projectID, "commits", commitID, "elements", elementID, "relationships"), q)
}

// Commits

func (c *Client) ListCommits(ctx context.Context, projectID string, pageSize int) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "commits"), pageQuery(pageSize))
}

func (c *Client) GetCommit(ctx context.Context, projectID, commitID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "commits", commitID), nil)
}

func (c *Client) ListCommitChanges(ctx context.Context, projectID, commitID string, changeTypes []string) (json.RawMessage, error) {
	q := url.Values{}
	if len(changeTypes) > 0 {
		q.Set("changeTypes", strings.Join(changeTypes, ","))
	}
	return c.get(ctx, path("projects", projectID, "commits", commitID, "changes"), q)
}

// CreateCommit posts a change set, optionally onto a specific branch.
func (c *Client) CreateCommit(ctx context.Context, projectID string, changes json.RawMessage, branchID, description string) (json.RawMessage, error) {
	body := map[string]any{"change": changes}
	if description != "" {
		body["description"] = description
	}
	q := url.Values{}
	if branchID != "" {
		q.Set("branchId", branchID)
	}
	return c.post(ctx, path("projects", projectID, "commits"), q, body)
}

// DiffCommits compares compareCommitID against baseCommitID.
func (c *Client) DiffCommits(ctx context.Context, projectID, baseCommitID, compareCommitID string, changeTypes []string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("baseCommit", baseCommitID)
	if len(changeTypes) > 0 {
		q.Set("changeTypes", strings.Join(changeTypes, ","))
	}
	return c.get(ctx, path("projects", projectID, "commits", compareCommitID, "diff"), q)
}

// Branches

func (c *Client) ListBranches(ctx context.Context, projectID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "branches"), nil)
}

func (c *Client) GetBranch(ctx context.Context, projectID, branchID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "branches", branchID), nil)
}

func (c *Client) CreateBranch(ctx context.Context, projectID, name, headCommitID string) (json.RawMessage, error) {
	body := map[string]any{
		"name": name,
		"head": identified(headCommitID),
	}
	return c.post(ctx, path("projects", projectID, "branches"), nil, body)
}

func (c *Client) DeleteBranch(ctx context.Context, projectID, branchID string) (json.RawMessage, error) {
	return c.delete(ctx, path("projects", projectID, "branches", branchID))
}

// Tags

func (c *Client) ListTags(ctx context.Context, projectID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "tags"), nil)
}

func (c *Client) GetTag(ctx context.Context, projectID, tagID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "tags", tagID), nil)
}

func (c *Client) CreateTag(ctx context.Context, projectID, name, taggedCommitID string) (json.RawMessage, error) {
	body := map[string]any{
		"name":         name,
		"taggedCommit": identified(taggedCommitID),
	}
	return c.post(ctx, path("projects", projectID, "tags"), nil, body)
}

func (c *Client) DeleteTag(ctx context.Context, projectID, tagID string) (json.RawMessage, error) {
	return c.delete(ctx, path("projects", projectID, "tags", tagID))
}

// Queries

func (c *Client) ListQueries(ctx context.Context, projectID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "queries"), nil)
}

func (c *Client) GetQuery(ctx context.Context, projectID, queryID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "queries", queryID), nil)
}

// CreateQuery stores definition under name. definition must be a JSON object.
func (c *Client) CreateQuery(ctx context.Context, projectID, name string, definition json.RawMessage) (json.RawMessage, error) {
	body := map[string]json.RawMessage{}
	if len(definition) > 0 {
		if err := json.Unmarshal(definition, &body); err != nil {
			return nil, fmt.Errorf("query definition must be a JSON object: %w", err)
		}
	}
	encodedName, err := json.Marshal(name)
	if err != nil {
		return nil, err
	}
	body["name"] = encodedName
	return c.post(ctx, path("projects", projectID, "queries"), nil, body)
}

func (c *Client) ExecuteQueryByID(ctx context.Context, projectID, queryID, commitID string) (json.RawMessage, error) {
	return c.get(ctx, path("projects", projectID, "queries", queryID, "results"), commitQuery(commitID))
}

// ExecuteQuery runs an ad hoc query without storing it.
func (c *Client) ExecuteQuery(ctx context.Context, projectID string, query json.RawMessage, commitID string) (json.RawMessage, error) {
	return c.post(ctx, path("projects", projectID, "query-results"), commitQuery(commitID), query)
}

func (c *Client) get(ctx context.Context, p string, q url.Values) (json.RawMessage, error) {
	resp, err := c.rest.Get(ctx, c.endpoint(p, q), nil)
	return decode(resp, err)
}

func (c *Client) post(ctx context.Context, p string, q url.Values, body any) (json.RawMessage, error) {
	resp, err := c.rest.Post(ctx, c.endpoint(p, q), body, nil)
	return decode(resp, err)
}

func (c *Client) put(ctx context.Context, p string, body any) (json.RawMessage, error) {
	resp, err := c.rest.Put(ctx, c.endpoint(p, nil), body, nil)
	return decode(resp, err)
}

func (c *Client) delete(ctx context.Context, p string) (json.RawMessage, error) {
	resp, err := c.rest.Delete(ctx, c.endpoint(p, nil), nil)
	return decode(resp, err)
}

func (c *Client) endpoint(p string, q url.Values) string {
	if len(q) == 0 {
		return c.baseURL + p
	}
	return c.baseURL + p + "?" + q.Encode()
}

// decode returns the JSON body of a successful response. An empty body decodes
// to null and a non-JSON body to a JSON string holding the raw text.
func decode(resp *toolclient.Response, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &APIError{Status: resp.Status, Body: resp.Body}
	}
	if resp.JSON != nil {
		return resp.JSON, nil
	}
	if strings.TrimSpace(resp.Body) == "" {
		return json.RawMessage("null"), nil
	}
	text, err := json.Marshal(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("encoding response body: %w", err)
	}
	return text, nil
}

// path joins escaped segments into an absolute API path.
func path(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func pageQuery(pageSize int) url.Values {
	if pageSize <= 0 {
		return nil
	}
	return url.Values{"page[size]": []string{strconv.Itoa(pageSize)}}
}

func commitQuery(commitID string) url.Values {
	if commitID == "" {
		return nil
	}
	return url.Values{"commitId": []string{commitID}}
}

func identified(id string) map[string]string {
	return map[string]string{"@id": id}
}
