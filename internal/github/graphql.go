package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shepbot/shep/internal/retry"
)

const suggestedActorsQuery = `query($owner: String!, $name: String!) {
  repository(owner: $owner, name: $name) {
    suggestedActors(capabilities: [CAN_BE_ASSIGNED], first: 100) {
      nodes {
        login
        __typename
        ... on Bot { id }
        ... on User { id }
      }
    }
  }
}`

const issueNodeIDQuery = `query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    issue(number: $number) { id }
  }
}`

const replaceActorsMutation = `mutation($assignableId: ID!, $actorIds: [ID!]!) {
  replaceActorsForAssignable(input: {assignableId: $assignableId, actorIds: $actorIds}) {
    __typename
  }
}`

// graphQLError is one entry of a GraphQL error response.
type graphQLError struct {
	Message string `json:"message"`
}

// suggestedActor is an assignable actor returned by suggestedActors.
type suggestedActor struct {
	Login    string `json:"login"`
	ID       string `json:"id"`
	TypeName string `json:"__typename"`
}

// doGraphQL posts a GraphQL query and returns the raw data payload.
func (c *Client) doGraphQL(ctx context.Context, name, query string, variables map[string]interface{}) (json.RawMessage, error) {
	reqBody := map[string]interface{}{
		"query":     query,
		"variables": variables,
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}

	err := c.Policy.Do(ctx, name, func() error {
		body, headers, err := c.do(ctx, http.MethodPost, c.GraphQLURL, reqBody)
		if err != nil {
			return err
		}
		if err := retry.Throttle(ctx, c.Policy.Log, parseRateLimit(headers)); err != nil {
			return err
		}
		return json.Unmarshal(body, &envelope)
	})
	if err != nil {
		return nil, err
	}
	if len(envelope.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	return envelope.Data, nil
}

// suggestedActors lists the actors eligible for assignment in the repo.
func (c *Client) suggestedActors(ctx context.Context) ([]suggestedActor, error) {
	data, err := c.doGraphQL(ctx, "suggested actors", suggestedActorsQuery, map[string]interface{}{
		"owner": c.Owner,
		"name":  c.Repo,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Repository struct {
			SuggestedActors struct {
				Nodes []suggestedActor `json:"nodes"`
			} `json:"suggestedActors"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse suggested actors: %w", err)
	}
	return payload.Repository.SuggestedActors.Nodes, nil
}

// issueNodeID fetches the GraphQL node id of an issue.
func (c *Client) issueNodeID(ctx context.Context, number int) (string, error) {
	data, err := c.doGraphQL(ctx, "issue node id", issueNodeIDQuery, map[string]interface{}{
		"owner":  c.Owner,
		"name":   c.Repo,
		"number": number,
	})
	if err != nil {
		return "", err
	}

	var payload struct {
		Repository struct {
			Issue struct {
				ID string `json:"id"`
			} `json:"issue"`
		} `json:"repository"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("failed to parse issue node id: %w", err)
	}
	if payload.Repository.Issue.ID == "" {
		return "", fmt.Errorf("no node id for issue #%d", number)
	}
	return payload.Repository.Issue.ID, nil
}

// assignViaGraphQL reassigns an issue to a bot-class actor. Bot actors
// (the Copilot coding agent among them) are rejected by the REST assignee
// endpoint, so the actor-id mutation is the only way to assign them. The
// actor is matched by exact login first, then by login prefix, so the
// configured name "copilot" finds "copilot-swe-agent".
func (c *Client) assignViaGraphQL(ctx context.Context, number int, assignee string) error {
	actors, err := c.suggestedActors(ctx)
	if err != nil {
		return err
	}

	var actorID string
	for _, actor := range actors {
		if actor.Login == assignee {
			actorID = actor.ID
			break
		}
	}
	if actorID == "" {
		for _, actor := range actors {
			if strings.HasPrefix(actor.Login, assignee) {
				actorID = actor.ID
				break
			}
		}
	}
	if actorID == "" {
		return fmt.Errorf("no assignable actor matching %q", assignee)
	}

	nodeID, err := c.issueNodeID(ctx, number)
	if err != nil {
		return err
	}

	_, err = c.doGraphQL(ctx, "replace actors", replaceActorsMutation, map[string]interface{}{
		"assignableId": nodeID,
		"actorIds":     []string{actorID},
	})
	return err
}
