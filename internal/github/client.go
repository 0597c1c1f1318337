package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// Credentials selects how requests to GitHub are authenticated. App
// installation credentials win over the token when all of them are set.
type Credentials struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKey     []byte
	// BaseURL overrides https://api.github.com, e.g. for GitHub Enterprise.
	BaseURL string
}

func (c Credentials) usesApp() bool {
	return c.AppID != 0 && c.InstallationID != 0 && len(c.PrivateKey) > 0
}

// NewHTTPClient creates an authenticated http.Client bounded by timeout.
func NewHTTPClient(ctx context.Context, creds Credentials, timeout time.Duration) (*http.Client, error) {
	var client *http.Client
	switch {
	case creds.usesApp():
		// build transport that handles App JWT + installation token
		itr, err := ghinstallation.New(http.DefaultTransport, creds.AppID, creds.InstallationID, creds.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub installation transport: %w", err)
		}
		if creds.BaseURL != "" {
			itr.BaseURL = strings.TrimSuffix(creds.BaseURL, "/")
		}
		client = &http.Client{Transport: itr}
	case creds.Token != "":
		// wrap into oauth2.Transport so it sets Authorization header
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token}))
	default:
		// Unauthenticated; GitHub answers with 401/404 which surfaces as a failed grant.
		client = &http.Client{}
	}
	client.Timeout = timeout
	return client, nil
}

// UserLookup checks that a login belongs to an existing GitHub account.
type UserLookup interface {
	UserExists(ctx context.Context, login string) (bool, error)
}

// GraphQLUserLookup resolves logins through the GitHub GraphQL API.
type GraphQLUserLookup struct {
	client *githubv4.Client
}

// NewGraphQLUserLookup creates a lookup using httpClient. baseURL is the REST
// API root; the GraphQL endpoint is derived from it.
func NewGraphQLUserLookup(httpClient *http.Client, baseURL string) *GraphQLUserLookup {
	if baseURL == "" {
		return &GraphQLUserLookup{client: githubv4.NewClient(httpClient)}
	}
	endpoint := strings.TrimSuffix(baseURL, "/") + "/graphql"
	return &GraphQLUserLookup{client: githubv4.NewEnterpriseClient(endpoint, httpClient)}
}

// UserExists returns false without an error when GitHub does not know the login.
func (l *GraphQLUserLookup) UserExists(ctx context.Context, login string) (bool, error) {
	var q struct {
		User *struct {
			Login githubv4.String
		} `graphql:"user(login: $login)"`
	}
	variables := map[string]interface{}{
		"login": githubv4.String(login),
	}
	if err := l.client.Query(ctx, &q, variables); err != nil {
		if q.User == nil && strings.Contains(err.Error(), "Could not resolve to a User") {
			return false, nil
		}
		return false, err
	}
	return q.User != nil, nil
}
