package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// ListProjectColumns retrieves the columns of a repository project board.
func (c *Client) ListProjectColumns(ctx context.Context, projectID int64) ([]ProjectColumn, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/projects/"+strconv.FormatInt(projectID, 10)+"/columns", nil)

	var columns []ProjectColumn
	if _, err := c.call(ctx, "list project columns", http.MethodGet, urlStr, nil, &columns); err != nil {
		return nil, fmt.Errorf("failed to list columns for project %d: %w", projectID, err)
	}
	return columns, nil
}

// ListColumnCards retrieves the cards in a project board column.
func (c *Client) ListColumnCards(ctx context.Context, columnID int64) ([]ProjectCard, error) {
	urlStr := c.buildURL("/projects/columns/"+strconv.FormatInt(columnID, 10)+"/cards", nil)

	var cards []ProjectCard
	if _, err := c.call(ctx, "list column cards", http.MethodGet, urlStr, nil, &cards); err != nil {
		return nil, fmt.Errorf("failed to list cards for column %d: %w", columnID, err)
	}
	return cards, nil
}

// MoveCard moves a card to the top of another column.
func (c *Client) MoveCard(ctx context.Context, cardID, toColumnID int64) error {
	urlStr := c.buildURL("/projects/columns/"+strconv.FormatInt(toColumnID, 10)+"/moves", nil)
	body := map[string]interface{}{
		"card_id":  cardID,
		"position": "top",
	}

	if _, err := c.call(ctx, "move card", http.MethodPost, urlStr, body, nil); err != nil {
		return fmt.Errorf("failed to move card %d to column %d: %w", cardID, toColumnID, err)
	}
	return nil
}

// CreateCard adds an issue as a new card in a column.
func (c *Client) CreateCard(ctx context.Context, columnID int64, issueID int) error {
	urlStr := c.buildURL("/projects/columns/"+strconv.FormatInt(columnID, 10)+"/cards", nil)
	body := map[string]interface{}{
		"content_id":   issueID,
		"content_type": "Issue",
	}

	if _, err := c.call(ctx, "create card", http.MethodPost, urlStr, body, nil); err != nil {
		return fmt.Errorf("failed to create card in column %d: %w", columnID, err)
	}
	return nil
}

// FindCardForIssue returns the card whose content URL matches the issue's
// API URL, or nil when the issue has no card in the given set.
func FindCardForIssue(cards []ProjectCard, issueURL string) *ProjectCard {
	for i := range cards {
		if cards[i].ContentURL == issueURL {
			return &cards[i]
		}
	}
	return nil
}

// FindIssueCard looks for the issue's card across every column of the
// project and returns the card and the column holding it.
func (c *Client) FindIssueCard(ctx context.Context, projectID int64, issueURL string) (*ProjectCard, *ProjectColumn, error) {
	columns, err := c.ListProjectColumns(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	for i := range columns {
		cards, err := c.ListColumnCards(ctx, columns[i].ID)
		if err != nil {
			return nil, nil, err
		}
		if card := FindCardForIssue(cards, issueURL); card != nil {
			return card, &columns[i], nil
		}
	}
	return nil, nil, nil
}

// MoveIssueToColumn positions an issue's board card in the target column.
// When the issue has no card yet, one is created there if createMissing is
// set; otherwise the issue is left off the board.
func (c *Client) MoveIssueToColumn(ctx context.Context, projectID, toColumnID int64, issue *Issue, createMissing bool) error {
	card, _, err := c.FindIssueCard(ctx, projectID, issue.URL)
	if err != nil {
		return err
	}
	if card != nil {
		return c.MoveCard(ctx, card.ID, toColumnID)
	}
	if createMissing {
		return c.CreateCard(ctx, toColumnID, issue.ID)
	}
	return nil
}
