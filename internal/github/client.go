package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"

	"github.com/shepbot/shep/internal/retry"
)

// NewClient creates a new GitHub client with the default retry policy.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:      token,
		Owner:      owner,
		Repo:       repo,
		BaseURL:    DefaultAPIEndpoint,
		GraphQLURL: DefaultGraphQLEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		Policy: &retry.Policy{},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	clone := *c
	clone.HTTPClient = httpClient
	return &clone
}

// WithBaseURL returns a new client with custom REST and GraphQL endpoints
// (for testing or GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.BaseURL = baseURL
	clone.GraphQLURL = baseURL + "/graphql"
	return &clone
}

// WithRetryPolicy returns a new client using the given retry policy.
func (c *Client) WithRetryPolicy(p *retry.Policy) *Client {
	clone := *c
	clone.Policy = p
	return &clone
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// do performs a single HTTP request. It does not retry; the retry layer
// wraps it via call. Non-2xx responses come back as *APIError so the
// retry layer can classify them.
func (c *Client) do(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	const maxResponseSize = 50 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			RateLimit:  parseRateLimit(resp.Header),
		}
	}

	return respBody, resp.Header, nil
}

// call wraps do with the retry policy, decodes the response into out when
// non-nil, and throttles cooperatively when quota runs low.
func (c *Client) call(ctx context.Context, name, method, urlStr string, body, out interface{}) (http.Header, error) {
	var respBody []byte
	var headers http.Header

	err := c.Policy.Do(ctx, name, func() error {
		var err error
		respBody, headers, err = c.do(ctx, method, urlStr, body)
		return err
	})
	if err != nil {
		return headers, err
	}

	if err := retry.Throttle(ctx, c.Policy.Log, parseRateLimit(headers)); err != nil {
		return headers, err
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return headers, fmt.Errorf("failed to parse %s response: %w", name, err)
		}
	}
	return headers, nil
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// asAPIError unwraps err into an *APIError if one is in the chain.
func asAPIError(err error, target **APIError) bool {
	return errors.As(err, target)
}

// SearchIssues runs an issue search query. Pull requests are filtered out
// even though the search endpoint returns them alongside issues.
func (c *Client) SearchIssues(ctx context.Context, query string, perPage int) ([]Issue, error) {
	if perPage <= 0 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	params := map[string]string{
		"q":        query,
		"per_page": strconv.Itoa(perPage),
	}
	urlStr := c.buildURL("/search/issues", params)

	var result SearchResult
	if _, err := c.call(ctx, "search issues", http.MethodGet, urlStr, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}

	issues := make([]Issue, 0, len(result.Items))
	for i := range result.Items {
		if result.Items[i].PullRequest == nil {
			issues = append(issues, result.Items[i])
		}
	}
	return issues, nil
}

// SearchCode runs a code search query and returns the matching files.
func (c *Client) SearchCode(ctx context.Context, query string, perPage int) ([]CodeSearchItem, error) {
	if perPage <= 0 || perPage > MaxPageSize {
		perPage = MaxPageSize
	}
	params := map[string]string{
		"q":        query,
		"per_page": strconv.Itoa(perPage),
	}
	urlStr := c.buildURL("/search/code", params)

	var result CodeSearchResult
	if _, err := c.call(ctx, "search code", http.MethodGet, urlStr, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to search code: %w", err)
	}
	return result.Items, nil
}

// FetchIssue retrieves a single issue by number. A missing or
// inaccessible issue returns (nil, nil).
func (c *Client) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)

	var issue Issue
	if _, err := c.call(ctx, "fetch issue", http.MethodGet, urlStr, nil, &issue); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", number, err)
	}
	return &issue, nil
}

// AddLabels adds labels to an issue. Adding an already-present label is a
// no-op on the API side.
func (c *Client) AddLabels(ctx context.Context, number int, labels ...string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels", nil)
	body := map[string]interface{}{"labels": labels}

	if _, err := c.call(ctx, "add labels", http.MethodPost, urlStr, body, nil); err != nil {
		return fmt.Errorf("failed to add labels to #%d: %w", number, err)
	}
	return nil
}

// RemoveLabel removes a label from an issue. Removing a label the issue
// does not carry is tolerated.
func (c *Client) RemoveLabel(ctx context.Context, number int, label string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/labels/"+url.PathEscape(label), nil)

	if _, err := c.call(ctx, "remove label", http.MethodDelete, urlStr, nil, nil); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil
		}
		return fmt.Errorf("failed to remove label %q from #%d: %w", label, number, err)
	}
	return nil
}

// CreateComment posts a comment on an issue.
func (c *Client) CreateComment(ctx context.Context, number int, text string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	body := map[string]interface{}{"body": text}

	if _, err := c.call(ctx, "create comment", http.MethodPost, urlStr, body, nil); err != nil {
		return fmt.Errorf("failed to comment on #%d: %w", number, err)
	}
	return nil
}

// UpdateIssue patches an issue's mutable fields (title, state, body).
func (c *Client) UpdateIssue(ctx context.Context, number int, updates map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)

	var issue Issue
	if _, err := c.call(ctx, "update issue", http.MethodPatch, urlStr, updates, &issue); err != nil {
		return nil, fmt.Errorf("failed to update issue #%d: %w", number, err)
	}
	return &issue, nil
}

// Retitle replaces an issue's title.
func (c *Client) Retitle(ctx context.Context, number int, title string) error {
	_, err := c.UpdateIssue(ctx, number, map[string]interface{}{"title": title})
	return err
}

// CloseIssue closes an issue.
func (c *Client) CloseIssue(ctx context.Context, number int) error {
	_, err := c.UpdateIssue(ctx, number, map[string]interface{}{"state": "closed"})
	return err
}

// AddAssignees assigns actors to an issue. When the REST API rejects the
// assignment with a 422 (bot actors cannot be assigned over plain REST),
// it falls back to the GraphQL actor mutation. Inside GitHub Actions with
// the workflow's default token the fallback is skipped, because that
// token is not allowed to run the mutation.
func (c *Client) AddAssignees(ctx context.Context, number int, assignees ...string) error {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	body := map[string]interface{}{"assignees": assignees}

	_, err := c.call(ctx, "assign issue", http.MethodPatch, urlStr, body, nil)
	if err == nil {
		return nil
	}
	if !IsStatus(err, http.StatusUnprocessableEntity) {
		return fmt.Errorf("failed to assign #%d: %w", number, err)
	}

	if c.inActionsWithDefaultToken() {
		return nil
	}
	if len(assignees) == 0 {
		return nil
	}
	if err := c.assignViaGraphQL(ctx, number, assignees[0]); err != nil {
		return fmt.Errorf("failed to assign #%d: %w", number, err)
	}
	return nil
}

// inActionsWithDefaultToken reports whether we run inside GitHub Actions
// using the workflow's own token.
func (c *Client) inActionsWithDefaultToken() bool {
	if c.ActionsEnv != nil {
		return c.ActionsEnv()
	}
	return os.Getenv("GITHUB_ACTIONS") == "true" && c.Token != "" && c.Token == os.Getenv("GITHUB_TOKEN")
}

// ListTimeline retrieves an issue's timeline feed, following pagination.
func (c *Client) ListTimeline(ctx context.Context, number int) ([]TimelineEvent, error) {
	var all []TimelineEvent
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/timeline", map[string]string{
		"per_page": strconv.Itoa(MaxPageSize),
	})

	for page := 1; ; page++ {
		var events []TimelineEvent
		headers, err := c.call(ctx, "list timeline", http.MethodGet, urlStr, nil, &events)
		if err != nil {
			return nil, fmt.Errorf("failed to list timeline for #%d: %w", number, err)
		}
		all = append(all, events...)

		next, ok := hasNextPage(headers)
		if !ok {
			break
		}
		urlStr = next

		if page >= MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
	return all, nil
}
