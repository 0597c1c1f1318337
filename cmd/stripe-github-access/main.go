package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	stripego "github.com/stripe/stripe-go/v82"

	"github.com/navikt/stripe-github-access/internal/config"
	"github.com/navikt/stripe-github-access/internal/github"
	"github.com/navikt/stripe-github-access/internal/handlers"
	"github.com/navikt/stripe-github-access/internal/metrics"
	"github.com/navikt/stripe-github-access/internal/msgraph"
	"github.com/navikt/stripe-github-access/internal/notify"
	"github.com/navikt/stripe-github-access/internal/slack"
	"github.com/navikt/stripe-github-access/internal/stripe"
)

func main() {
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)
	log.Info("Starting stripe-github-access")

	if missing := cfg.Missing(); len(missing) > 0 {
		log.Warn("Missing configuration, affected calls will fail", slog.Any("variables", missing))
	}

	handlerCtx, metricsHandler, err := setup(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(handlerCtx, metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Server listening", slog.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != nil {
		log.Error("Failed to start server", slog.Any("error", err))
		os.Exit(1)
	}
}

// setup builds the webhook handler and, when enabled, the metrics handler.
func setup(ctx context.Context, cfg config.Config, log *slog.Logger) (*handlers.HandlerContext, http.Handler, error) {
	stripego.Key = cfg.StripeSecretKey

	extractor, err := stripe.NewExtractor(cfg.UsernameSource, cfg.UsernameKey)
	if err != nil {
		return nil, nil, err
	}

	httpClient, err := github.NewHTTPClient(ctx, github.Credentials{
		Token:          cfg.GitHubToken,
		AppID:          cfg.GitHubAppID,
		InstallationID: cfg.GitHubAppInstallationID,
		PrivateKey:     []byte(cfg.GitHubAppPrivateKey),
		BaseURL:        cfg.GitHubAPIURL,
	}, cfg.GrantTimeout)
	if err != nil {
		return nil, nil, err
	}

	opts := []github.Option{github.WithTimeout(cfg.GrantTimeout)}
	if cfg.EnableUserLookup {
		log.Info("GitHub user lookup is enabled")
		opts = append(opts, github.WithUserLookup(github.NewGraphQLUserLookup(httpClient, cfg.GitHubAPIURL)))
	}
	granter, err := github.NewCollaboratorClient(httpClient, cfg.GitHubAPIURL, cfg.RepoOwner, cfg.RepoName, opts...)
	if err != nil {
		return nil, nil, err
	}

	reporters := notify.MultiReporter{notify.LogReporter{Logger: log}}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.EnableMetrics {
		m = metrics.New()
		metricsHandler = m.Handler()
		reporters = append(reporters, m)
	}

	if cfg.EnableSlackAlerts {
		alerts, err := slack.NewAlertClient(cfg.SlackToken, cfg.SlackChannelID)
		if err != nil {
			// Continue without Slack alerts rather than failing the application
			log.Warn("Slack alerts will be disabled despite being enabled in configuration", slog.Any("error", err))
		} else {
			reporters = append(reporters, alerts)
		}
	}

	if cfg.EnableEmail {
		log.Info("Email functionality is enabled, initializing MS Graph client")
		emailClient, err := msgraph.CreateEmailGraphClient(msgraph.Settings{
			TenantID:     cfg.AzureTenantID,
			ClientID:     cfg.AzureClientID,
			ClientSecret: cfg.AzureClientSecret,
			FromEmail:    cfg.EmailFromAddress,
		})
		if err != nil {
			log.Warn("Email functionality will be disabled despite being enabled in configuration", slog.Any("error", err))
		} else {
			reporters = append(reporters, msgraph.EmailReporter{Client: emailClient})
		}
	}

	return &handlers.HandlerContext{
		Verifier:   stripe.NewVerifier(cfg.StripeWebhookSecret, cfg.StripeWebhookTolerance),
		Extractor:  extractor,
		Granter:    granter,
		Repository: granter.Repository(),
		Permission: cfg.Permission,
		Reporter:   reporters,
		Metrics:    m,
		Logger:     log,
	}, metricsHandler, nil
}
