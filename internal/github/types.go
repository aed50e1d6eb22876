// Package github provides the client and data types for the GitHub REST
// and GraphQL APIs.
//
// This package handles all interactions with GitHub's issue tracking
// system: searching and fetching issues, mutating labels, assignees, and
// state, posting comments, reading issue timelines, and working with
// classic project boards. Every call is routed through the retry layer
// and throttles cooperatively on low rate-limit quota.
package github

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shepbot/shep/internal/retry"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultGraphQLEndpoint is the GitHub GraphQL API URL.
	DefaultGraphQLEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// TriagePageSize bounds how many untriaged issues one run considers.
	TriagePageSize = 25

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages is the maximum number of pages to fetch before stopping.
	// This prevents infinite loops from malformed Link headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitHub APIs.
type Client struct {
	Token      string        // GitHub token, empty for unauthenticated reads
	Owner      string        // Repository owner (user or org)
	Repo       string        // Repository name
	BaseURL    string        // REST base URL (default: https://api.github.com)
	GraphQLURL string        // GraphQL URL (default: https://api.github.com/graphql)
	HTTPClient *http.Client  // Optional custom HTTP client
	Policy     *retry.Policy // Retry/backoff policy for every call

	// ActionsEnv reports whether we run inside GitHub Actions with the
	// workflow's default token; looked up from the environment when nil.
	ActionsEnv func() bool
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID          int        `json:"id"`     // Global unique ID
	Number      int        `json:"number"` // Repository-scoped issue number
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	State       string     `json:"state"` // "open" or "closed"
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	Labels      []Label    `json:"labels"`
	Assignees   []User     `json:"assignees,omitempty"`
	User        *User      `json:"user,omitempty"` // Author
	URL         string     `json:"url"`            // API URL, matches board card content_url
	HTMLURL     string     `json:"html_url"`
	PullRequest *PullRef   `json:"pull_request,omitempty"` // Non-nil if this is a PR
}

// PullRef indicates an issue is actually a pull request.
// The GitHub search and issues APIs return PRs alongside issues; this
// field distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user or bot actor.
type User struct {
	ID      int    `json:"id"`
	Login   string `json:"login"`
	Type    string `json:"type,omitempty"` // "User" or "Bot"
	HTMLURL string `json:"html_url,omitempty"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// SearchResult is the envelope returned by the issue search API.
type SearchResult struct {
	TotalCount int     `json:"total_count"`
	Items      []Issue `json:"items"`
}

// CodeSearchResult is the envelope returned by the code search API.
type CodeSearchResult struct {
	TotalCount int              `json:"total_count"`
	Items      []CodeSearchItem `json:"items"`
}

// CodeSearchItem is one file hit from the code search API.
type CodeSearchItem struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	HTMLURL string `json:"html_url"`
}

// Comment represents an issue comment.
type Comment struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	User      *User      `json:"user,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ProjectColumn is a column on a classic project board.
type ProjectColumn struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProjectCard is a card on a classic project board column.
type ProjectCard struct {
	ID         int64  `json:"id"`
	ContentURL string `json:"content_url,omitempty"`
}

// TimelineEvent is one entry of an issue's timeline feed.
type TimelineEvent struct {
	Event     string     `json:"event"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Actor     *User      `json:"actor,omitempty"`
	Body      string     `json:"body,omitempty"`
	Label     *Label     `json:"label,omitempty"`
}

// APIError is a non-2xx response from the API. It classifies itself for
// the retry layer: 5xx and 429 are transient, other 4xx are permanent. A
// 403 with an exhausted rate-limit quota counts as transient too.
type APIError struct {
	StatusCode int
	Body       string
	RateLimit  retry.RateLimit
}

// Error implements error.
func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.Body, e.StatusCode)
}

// Transient reports whether the request is worth retrying.
func (e *APIError) Transient() bool {
	if e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return e.StatusCode == http.StatusForbidden && e.RateLimit.Remaining == 0
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return asAPIError(err, &apiErr) && apiErr.StatusCode == code
}

// parseRateLimit reads the rate-limit headers from a response. Remaining
// is -1 when the headers are absent.
func parseRateLimit(headers http.Header) retry.RateLimit {
	rl := retry.RateLimit{Remaining: -1}
	if v := headers.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rl.Remaining = n
		}
	}
	if v := headers.Get("X-RateLimit-Reset"); v != "" {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			rl.Reset = time.Unix(sec, 0)
		}
	}
	return rl
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
