package msgraph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/navikt/stripe-github-access/internal/notify"
)

func TestCreateEmailGraphClient(t *testing.T) {
	t.Run("returns error when client credentials missing", func(t *testing.T) {
		client, err := CreateEmailGraphClient(Settings{})
		if err == nil {
			t.Fatal("expected error when credentials missing")
		}
		if client != nil {
			t.Fatal("expected nil client when credentials are missing")
		}
	})

	// We can't fully test the actual client creation without valid credentials
}

func TestGenerateAccessEmailBody(t *testing.T) {
	body, err := generateAccessEmailBody("alice123", "acme/course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(body, "alice123") {
		t.Error("expected body to name the GitHub account")
	}
	if !strings.Contains(body, "https://github.com/acme/course/invitations") {
		t.Error("expected body to link the invitation page")
	}
}

func TestEmailReporter(t *testing.T) {
	invited := notify.Grant{
		Success:       true,
		Outcome:       notify.OutcomeInvited,
		CustomerEmail: "alice@example.com",
		Username:      "alice123",
		Repository:    "acme/course",
	}

	t.Run("sends email for new invitations", func(t *testing.T) {
		mockClient := &MockEmailClient{}
		EmailReporter{Client: mockClient}.Report(context.Background(), invited)

		if len(mockClient.SentEmails) != 1 {
			t.Fatalf("expected 1 sent email, got %d", len(mockClient.SentEmails))
		}
		sent := mockClient.SentEmails[0]
		if sent.Email != "alice@example.com" || sent.Username != "alice123" || sent.Repository != "acme/course" {
			t.Errorf("unexpected email: %+v", sent)
		}
	})

	t.Run("skips other outcomes and missing addresses", func(t *testing.T) {
		mockClient := &MockEmailClient{}
		reporter := EmailReporter{Client: mockClient}

		already := invited
		already.Outcome = notify.OutcomeAlreadyCollaborator
		failed := invited
		failed.Success = false
		failed.Outcome = notify.OutcomeRejected
		noEmail := invited
		noEmail.CustomerEmail = ""

		for _, grant := range []notify.Grant{already, failed, noEmail} {
			reporter.Report(context.Background(), grant)
		}
		if len(mockClient.SentEmails) != 0 {
			t.Errorf("expected no emails, got %d", len(mockClient.SentEmails))
		}
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		mockClient := &MockEmailClient{SendEmailError: errors.New("sending email failed")}
		EmailReporter{Client: mockClient}.Report(context.Background(), invited)
		if len(mockClient.SentEmails) != 0 {
			t.Error("expected no recorded emails on failure")
		}
	})
}
