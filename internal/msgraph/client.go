// Package msgraph provides integration with Microsoft Graph API
package msgraph

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	graph "github.com/microsoftgraph/msgraph-sdk-go"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/navikt/stripe-github-access/internal/notify"
)

const (
	defaultFromEmail = "noreply@example.com"
	sendTimeout      = 30 * time.Second
)

//go:embed templates/*.md
var templateFS embed.FS

// EmailClient handles sending emails via Microsoft Graph API
type EmailClient interface {
	SendAccessEmail(ctx context.Context, userEmail, username, repository string) error
}

// SentEmail represents an email that was sent for testing
type SentEmail struct {
	Email      string
	Username   string
	Repository string
}

// MockEmailClient implements the EmailClient interface for testing
type MockEmailClient struct {
	SendEmailError error
	SentEmails     []SentEmail
}

// SendAccessEmail mocks sending an access email for testing
func (m *MockEmailClient) SendAccessEmail(_ context.Context, userEmail, username, repository string) error {
	if m.SendEmailError != nil {
		return m.SendEmailError
	}
	m.SentEmails = append(m.SentEmails, SentEmail{
		Email:      userEmail,
		Username:   username,
		Repository: repository,
	})
	return nil
}

// Settings holds the Azure app registration used to send mail.
type Settings struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	FromEmail    string
}

type graphSDKClient struct {
	graphClient *graph.GraphServiceClient
	fromEmail   string
}

// CreateEmailGraphClient creates a new MS Graph API client for sending emails using the official SDK
func CreateEmailGraphClient(settings Settings) (EmailClient, error) {
	if settings.TenantID == "" || settings.ClientID == "" || settings.ClientSecret == "" {
		return nil, fmt.Errorf("missing required environment variables: AZURE_APP_CLIENT_ID, AZURE_APP_CLIENT_SECRET, or AZURE_APP_TENANT_ID")
	}

	fromEmail := settings.FromEmail
	if fromEmail == "" {
		fromEmail = defaultFromEmail
		slog.Info("Using default sender email address", slog.String("email", fromEmail))
	}

	credential, err := azidentity.NewClientSecretCredential(
		settings.TenantID,
		settings.ClientID,
		settings.ClientSecret,
		&azidentity.ClientSecretCredentialOptions{})
	if err != nil {
		slog.Error("Failed to create credential", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	graphClient, err := graph.NewGraphServiceClientWithCredentials(
		credential,
		[]string{"https://graph.microsoft.com/.default"},
	)
	if err != nil {
		slog.Error("Failed to create MS Graph client", slog.Any("error", err))
		return nil, fmt.Errorf("failed to create MS Graph client: %w", err)
	}

	slog.Info("Successfully created MS Graph email client using the SDK")
	return &graphSDKClient{
		graphClient: graphClient,
		fromEmail:   fromEmail,
	}, nil
}

// SendAccessEmail tells the customer which repository invitation is waiting for them
func (g *graphSDKClient) SendAccessEmail(ctx context.Context, userEmail, username, repository string) error {
	emailBody, err := generateAccessEmailBody(username, repository)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	message := graphmodels.NewMessage()
	message.SetSubject(ptr(fmt.Sprintf("Your invitation to %s", repository)))

	itemBody := graphmodels.NewItemBody()
	contentType := graphmodels.TEXT_BODYTYPE
	itemBody.SetContentType(&contentType)
	itemBody.SetContent(&emailBody)
	message.SetBody(itemBody)

	toRecipient := graphmodels.NewRecipient()
	emailAddress := graphmodels.NewEmailAddress()
	emailAddress.SetAddress(&userEmail)
	toRecipient.SetEmailAddress(emailAddress)
	message.SetToRecipients([]graphmodels.Recipientable{toRecipient})

	requestBody := users.NewItemSendMailPostRequestBody()
	requestBody.SetMessage(message)
	requestBody.SetSaveToSentItems(boolPtr(false))

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := g.graphClient.Users().ByUserId(g.fromEmail).SendMail().Post(ctx, requestBody, nil); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Info("Sent access email", slog.String("to", userEmail), slog.String("user", username))
	return nil
}

// EmailReporter emails the customer after a new invitation has been created.
type EmailReporter struct {
	Client EmailClient
}

func (r EmailReporter) Report(ctx context.Context, grant notify.Grant) {
	if r.Client == nil || grant.Outcome != notify.OutcomeInvited || grant.CustomerEmail == "" {
		return
	}
	if err := r.Client.SendAccessEmail(ctx, grant.CustomerEmail, grant.Username, grant.Repository); err != nil {
		// Don't fail the webhook because of email issues
		slog.Error("Failed to send access email",
			slog.String("email", grant.CustomerEmail),
			slog.String("user", grant.Username),
			slog.Any("error", err))
	}
}

type emailData struct {
	Username   string
	Repository string
}

// generateAccessEmailBody renders the access email from the embedded template
func generateAccessEmailBody(username, repository string) (string, error) {
	tmplFile, err := templateFS.ReadFile("templates/access_granted.md")
	if err != nil {
		return "", fmt.Errorf("failed to read email template file: %w", err)
	}

	tmpl, err := template.New("accessEmail").Parse(string(tmplFile))
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, emailData{Username: username, Repository: repository}); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}

	return buf.String(), nil
}

// Helper function to create string pointers
func ptr(s string) *string {
	return &s
}

// Helper function to create bool pointers
func boolPtr(b bool) *bool {
	return &b
}
