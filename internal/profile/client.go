// Package profile fetches social profile data from the DSCVR GraphQL API.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"

	"crowdfund/internal/observability/metrics"
)

// DefaultEndpoint is the public DSCVR GraphQL API.
const DefaultEndpoint = "https://api.dscvr.one/graphql"

// ErrNotFound means the service knows no user by that name.
var ErrNotFound = errors.New("user not found")

const getUserDataQuery = `
query GetUserData($username: String!) {
  userByName(name: $username) {
    id
    followingCount
    followerCount
    dscvrPoints
  }
}`

// UserData is the subset of a DSCVR user shown on the profile card.
type UserData struct {
	ID             string      `json:"id"`
	FollowingCount int64       `json:"followingCount"`
	FollowerCount  int64       `json:"followerCount"`
	Points         json.Number `json:"dscvrPoints"`
}

// Client queries user data.
type Client struct {
	gql *graphql.Client
}

// NewClient builds a client for endpoint using httpClient, or a client with a
// 10s timeout when nil.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{gql: graphql.NewClient(endpoint, graphql.WithHTTPClient(httpClient))}
}

// GetUserData looks up a user by name.
func (c *Client) GetUserData(ctx context.Context, username string) (data *UserData, err error) {
	start := time.Now()
	defer func() { metrics.ObserveProfileRequest(err, time.Since(start)) }()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	req := graphql.NewRequest(getUserDataQuery)
	req.Var("username", username)

	var resp struct {
		UserByName *UserData `json:"userByName"`
	}
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}
	if resp.UserByName == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
	}
	return resp.UserByName, nil
}

// ShortAddress abbreviates a wallet address to its first 6 and last 4 characters.
func ShortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// Avatar returns avatar, or a placeholder image built from the username's
// initials.
func Avatar(username, avatar string) string {
	if avatar != "" {
		return avatar
	}
	initials := username
	if r := []rune(username); len(r) > 2 {
		initials = string(r[:2])
	}
	return "https://via.placeholder.com/80?text=" + strings.ToUpper(initials)
}
