// Package config loads the service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort             = "5000"
	DefaultPermission       = "pull"
	DefaultGrantTimeout     = 15 * time.Second
	DefaultWebhookTolerance = 5 * time.Minute
	DefaultUsernameSource   = "any"
	DefaultUsernameKey      = "github_username"
)

// Config holds everything read from the environment at startup. It is built
// once and handed to the components that need it.
type Config struct {
	Port     string
	LogLevel slog.Level

	StripeSecretKey        string
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration

	RepoOwner    string
	RepoName     string
	GitHubToken  string
	GitHubAPIURL string
	Permission   string
	GrantTimeout time.Duration

	GitHubAppID             int64
	GitHubAppInstallationID int64
	GitHubAppPrivateKey     string

	UsernameSource string
	UsernameKey    string

	EnableUserLookup bool

	EnableSlackAlerts bool
	SlackToken        string
	SlackChannelID    string

	EnableEmail       bool
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	EmailFromAddress  string

	EnableMetrics bool
}

// Load reads a .env file when present and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:     getenv("PORT", DefaultPort),
		LogLevel: parseLevel(os.Getenv("LOG_LEVEL")),

		StripeSecretKey:        strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret:    strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		StripeWebhookTolerance: getenvDuration("STRIPE_WEBHOOK_TOLERANCE", DefaultWebhookTolerance),

		RepoOwner:    firstEnv("REPO_OWNER", "GITHUB_OWNER"),
		RepoName:     firstEnv("REPO_NAME", "GITHUB_REPO"),
		GitHubToken:  firstEnv("GITHUB_TOKEN", "GITHUB_PAT"),
		GitHubAPIURL: strings.TrimSpace(os.Getenv("GITHUB_API_URL")),
		Permission:   getenv("GITHUB_PERMISSION", DefaultPermission),
		GrantTimeout: getenvDuration("GITHUB_GRANT_TIMEOUT", DefaultGrantTimeout),

		GitHubAppID:             getenvInt64("GITHUB_APP_ID"),
		GitHubAppInstallationID: getenvInt64("GITHUB_APP_INSTALLATION_ID"),
		GitHubAppPrivateKey:     os.Getenv("GITHUB_APP_PRIVATE_KEY"),

		UsernameSource: strings.ToLower(getenv("USERNAME_SOURCE", DefaultUsernameSource)),
		UsernameKey:    getenv("USERNAME_FIELD_KEY", DefaultUsernameKey),

		EnableUserLookup: IsFeatureEnabled("ENABLE_USER_LOOKUP"),

		EnableSlackAlerts: IsFeatureEnabled("ENABLE_SLACK_ALERTS"),
		SlackToken:        strings.TrimSpace(os.Getenv("SLACK_TOKEN")),
		SlackChannelID:    strings.TrimSpace(os.Getenv("SLACK_CHANNEL_ID")),

		EnableEmail:       IsFeatureEnabled("ENABLE_EMAIL_FUNCTIONALITY"),
		AzureTenantID:     os.Getenv("AZURE_APP_TENANT_ID"),
		AzureClientID:     os.Getenv("AZURE_APP_CLIENT_ID"),
		AzureClientSecret: os.Getenv("AZURE_APP_CLIENT_SECRET"),
		EmailFromAddress:  os.Getenv("EMAIL_FROM_ADDRESS"),

		EnableMetrics: IsFeatureEnabled("ENABLE_METRICS"),
	}
}

// UsesGitHubApp reports whether GitHub App installation credentials are set.
func (c Config) UsesGitHubApp() bool {
	return c.GitHubAppID != 0 && c.GitHubAppInstallationID != 0 && c.GitHubAppPrivateKey != ""
}

// Missing returns the names of required settings that are empty. Values are
// only checked for presence.
func (c Config) Missing() []string {
	var missing []string
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.RepoOwner == "" {
		missing = append(missing, "REPO_OWNER")
	}
	if c.RepoName == "" {
		missing = append(missing, "REPO_NAME")
	}
	if c.GitHubToken == "" && !c.UsesGitHubApp() {
		missing = append(missing, "GITHUB_TOKEN")
	}
	return missing
}

// IsFeatureEnabled checks if a feature toggle is enabled via environment variable
// Returns true if the environment variable is set to "true", "yes", "1", or "on" (case insensitive)
func IsFeatureEnabled(envVarName string) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(envVarName)))
	return value == "true" || value == "yes" || value == "1" || value == "on"
}

func getenv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

func getenvInt64(key string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// getenvDuration accepts Go durations ("15s") and plain seconds ("15").
func getenvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
