package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v72/github"

	"github.com/navikt/stripe-github-access/internal/notify"
)

const (
	// DefaultPermission is the repository role granted to paying customers.
	DefaultPermission = "pull"
	// DefaultTimeout bounds a single grant round-trip.
	DefaultTimeout = 15 * time.Second
)

// loginPattern accepts GitHub login syntax: at most 39 characters, alphanumeric
// or hyphen, not starting with a hyphen. Trailing and repeated hyphens are
// allowed since older accounts still carry them.
var loginPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,38}$`)

// GrantResult is the outcome of one collaborator grant.
type GrantResult struct {
	Success    bool
	Outcome    notify.Outcome
	StatusCode int
	Message    string
}

// Granter adds users as collaborators on the configured repository.
type Granter interface {
	GrantAccess(ctx context.Context, username, permission string) GrantResult
}

// CollaboratorClient implements Granter with the GitHub REST API.
type CollaboratorClient struct {
	client  *gogithub.Client
	owner   string
	repo    string
	timeout time.Duration
	lookup  UserLookup
}

// Option configures a CollaboratorClient.
type Option func(*CollaboratorClient)

// WithUserLookup rejects unknown logins before the invitation is sent.
func WithUserLookup(lookup UserLookup) Option {
	return func(c *CollaboratorClient) {
		c.lookup = lookup
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CollaboratorClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewCollaboratorClient creates a client for owner/repo. httpClient carries
// authentication; baseURL may be empty for api.github.com.
func NewCollaboratorClient(httpClient *http.Client, baseURL, owner, repo string, opts ...Option) (*CollaboratorClient, error) {
	client := gogithub.NewClient(httpClient)
	if baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}

	c := &CollaboratorClient{
		client:  client,
		owner:   owner,
		repo:    repo,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Repository returns owner/repo.
func (c *CollaboratorClient) Repository() string {
	return c.owner + "/" + c.repo
}

// GrantAccess invites username with the given permission. 201 (invitation
// created) and 204 (already a collaborator) are successes; anything else is a
// failure carrying the status code and raw response body. No retries.
func (c *CollaboratorClient) GrantAccess(ctx context.Context, username, permission string) GrantResult {
	if username == "" {
		return GrantResult{Outcome: notify.OutcomeInvalidUsername, Message: "Empty GitHub username"}
	}
	if !loginPattern.MatchString(username) {
		return GrantResult{
			Outcome: notify.OutcomeInvalidUsername,
			Message: fmt.Sprintf("Invalid GitHub username %q", username),
		}
	}
	if permission == "" {
		permission = DefaultPermission
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.lookup != nil {
		exists, err := c.lookup.UserExists(ctx, username)
		switch {
		case err != nil:
			// The invitation call below gives the authoritative answer.
			slog.Warn("GitHub user lookup failed, sending invitation anyway",
				slog.String("user", username),
				slog.Any("error", err))
		case !exists:
			return GrantResult{
				Outcome: notify.OutcomeUserNotFound,
				Message: fmt.Sprintf("GitHub user %q not found", username),
			}
		}
	}

	_, resp, err := c.client.Repositories.AddCollaborator(ctx, c.owner, c.repo, username,
		&gogithub.RepositoryAddCollaboratorOptions{Permission: permission})
	return c.toResult(username, resp, err)
}

func (c *CollaboratorClient) toResult(username string, resp *gogithub.Response, err error) GrantResult {
	if resp == nil || resp.Response == nil {
		if err == nil {
			err = errors.New("no response")
		}
		return GrantResult{
			Outcome: notify.OutcomeUnreachable,
			Message: fmt.Sprintf("GitHub API unreachable: %v", err),
		}
	}

	status := resp.StatusCode
	if err == nil {
		switch status {
		case http.StatusCreated:
			return GrantResult{
				Success:    true,
				Outcome:    notify.OutcomeInvited,
				StatusCode: status,
				Message:    fmt.Sprintf("Access granted to %s: invitation sent for %s.", username, c.Repository()),
			}
		case http.StatusNoContent:
			return GrantResult{
				Success:    true,
				Outcome:    notify.OutcomeAlreadyCollaborator,
				StatusCode: status,
				Message:    fmt.Sprintf("Access granted to %s: already a collaborator on %s.", username, c.Repository()),
			}
		}
	}

	return GrantResult{
		Outcome:    notify.OutcomeRejected,
		StatusCode: status,
		Message:    fmt.Sprintf("GitHub API error %d: %s", status, rawBody(resp, err)),
	}
}

// rawBody returns the response body as GitHub sent it. go-github re-populates
// the body of error responses after decoding them.
func rawBody(resp *gogithub.Response, err error) string {
	var accepted *gogithub.AcceptedError
	if errors.As(err, &accepted) {
		return string(accepted.Raw)
	}
	if resp.Body == nil {
		return ""
	}
	data, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
