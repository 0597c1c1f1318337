// Package notify carries collaborator grant outcomes to operators and
// customers. The webhook response to Stripe never reflects a failed grant, so
// this is the only place such failures become visible.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Outcome classifies the result of a collaborator grant.
type Outcome string

const (
	OutcomeInvited             Outcome = "invited"
	OutcomeAlreadyCollaborator Outcome = "already_collaborator"
	OutcomeInvalidUsername     Outcome = "invalid_username"
	OutcomeUserNotFound        Outcome = "user_not_found"
	OutcomeRejected            Outcome = "rejected"
	OutcomeUnreachable         Outcome = "unreachable"
)

// Grant describes one collaborator grant attempt triggered by a checkout.
type Grant struct {
	EventID       string
	SessionID     string
	CustomerEmail string
	Username      string
	Repository    string
	Success       bool
	Outcome       Outcome
	StatusCode    int
	Message       string
}

// Reporter receives every grant outcome.
type Reporter interface {
	Report(ctx context.Context, grant Grant)
}

// LogReporter writes one structured log line per grant.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(ctx context.Context, grant Grant) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		slog.String("event_id", grant.EventID),
		slog.String("session_id", grant.SessionID),
		slog.String("username", grant.Username),
		slog.String("repository", grant.Repository),
		slog.String("outcome", string(grant.Outcome)),
		slog.Int("status", grant.StatusCode),
		slog.String("message", grant.Message),
	}
	if grant.Success {
		logger.InfoContext(ctx, "Collaborator grant succeeded", attrs...)
		return
	}
	logger.ErrorContext(ctx, "Collaborator grant failed", attrs...)
}

// MultiReporter fans a grant out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, grant Grant) {
	for _, r := range m {
		if r != nil {
			r.Report(ctx, grant)
		}
	}
}

// MockReporter records reported grants for testing.
type MockReporter struct {
	mu     sync.Mutex
	Grants []Grant
}

func (m *MockReporter) Report(_ context.Context, grant Grant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Grants = append(m.Grants, grant)
}

// Reported returns a copy of the grants recorded so far.
func (m *MockReporter) Reported() []Grant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Grant(nil), m.Grants...)
}
