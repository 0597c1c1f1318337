package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	stripego "github.com/stripe/stripe-go/v82"

	"github.com/navikt/stripe-github-access/internal/github"
	"github.com/navikt/stripe-github-access/internal/metrics"
	"github.com/navikt/stripe-github-access/internal/notify"
	"github.com/navikt/stripe-github-access/internal/stripe"
)

// maxPayloadBytes bounds the webhook body read into memory.
const maxPayloadBytes = 64 << 10

const healthMessage = "Server running. Stripe webhook active."

// Result values reported in the "status" field of webhook responses.
const (
	ResultIgnored     = "ignored"
	ResultNoUsername  = "no_username"
	ResultGranted     = "granted"
	ResultGrantFailed = "grant_failed"
)

// EventVerifier verifies and parses a raw webhook delivery.
type EventVerifier interface {
	ConstructEvent(payload []byte, signatureHeader string) (stripego.Event, error)
}

// HandlerContext holds dependencies for the handlers
type HandlerContext struct {
	Verifier   EventVerifier
	Extractor  stripe.UsernameExtractor
	Granter    github.Granter
	Repository string
	Permission string
	Reporter   notify.Reporter
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Response is what the webhook endpoint answers with.
type Response struct {
	Status  int    `json:"-"`
	Result  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (ctx *HandlerContext) logger() *slog.Logger {
	if ctx.Logger != nil {
		return ctx.Logger
	}
	return slog.Default()
}

// ProcessEvent verifies a delivery and, for completed checkouts, grants the
// buyer access. Grant failures are reported but still answered with 200 so
// Stripe does not redeliver because of GitHub trouble.
func (ctx *HandlerContext) ProcessEvent(c context.Context, payload []byte, signature string) Response {
	log := ctx.logger()

	event, err := ctx.Verifier.ConstructEvent(payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, stripe.ErrInvalidSignature):
			log.ErrorContext(c, "Invalid signature", slog.Any("error", err))
			ctx.Metrics.ObserveWebhook("", metrics.ResultInvalidSignature)
			return Response{Status: http.StatusBadRequest, Error: "Invalid signature"}
		default:
			log.ErrorContext(c, "Invalid payload", slog.Any("error", err))
			ctx.Metrics.ObserveWebhook("", metrics.ResultInvalidPayload)
			return Response{Status: http.StatusBadRequest, Error: "Invalid payload"}
		}
	}

	eventType := string(event.Type)
	log.InfoContext(c, "Received Stripe event",
		slog.String("type", eventType),
		slog.String("id", event.ID))
	log.DebugContext(c, "Stripe event payload", slog.String("payload", string(payload)))

	if !stripe.IsCheckoutCompleted(event) {
		ctx.Metrics.ObserveWebhook(eventType, metrics.ResultIgnored)
		return Response{
			Status:  http.StatusOK,
			Result:  ResultIgnored,
			Message: "Event type " + eventType + " ignored",
		}
	}

	session, err := stripe.CheckoutSession(event)
	if err != nil {
		log.ErrorContext(c, "Invalid payload", slog.String("id", event.ID), slog.Any("error", err))
		ctx.Metrics.ObserveWebhook(eventType, metrics.ResultInvalidPayload)
		return Response{Status: http.StatusBadRequest, Error: "Invalid payload"}
	}

	customerEmail := stripe.CustomerEmail(session)
	log.InfoContext(c, "Payment completed",
		slog.String("session", session.ID),
		slog.String("email", customerEmail))

	username := ctx.Extractor.Username(session)
	if username == "" {
		log.WarnContext(c, "No GitHub username found in checkout session", slog.String("session", session.ID))
		ctx.Metrics.ObserveWebhook(eventType, metrics.ResultNoUsername)
		return Response{
			Status:  http.StatusOK,
			Result:  ResultNoUsername,
			Message: "Payment received, but no GitHub username was supplied; no access granted",
		}
	}

	result := ctx.Granter.GrantAccess(c, username, ctx.Permission)
	ctx.Metrics.ObserveWebhook(eventType, metrics.ResultProcessed)
	if ctx.Reporter != nil {
		ctx.Reporter.Report(c, notify.Grant{
			EventID:       event.ID,
			SessionID:     session.ID,
			CustomerEmail: customerEmail,
			Username:      username,
			Repository:    ctx.Repository,
			Success:       result.Success,
			Outcome:       result.Outcome,
			StatusCode:    result.StatusCode,
			Message:       result.Message,
		})
	}

	response := Response{Status: http.StatusOK, Result: ResultGranted, Message: result.Message}
	if !result.Success {
		response.Result = ResultGrantFailed
	}
	return response
}

// StripeWebhookHandler receives Stripe deliveries. The body is passed on as
// raw bytes because the signature covers the exact byte sequence.
func (ctx *HandlerContext) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		ctx.logger().Error("Invalid request method", slog.String("method", r.Method))
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		ctx.logger().Error("Error reading request body", slog.Any("error", err))
		writeJSON(w, Response{Status: http.StatusBadRequest, Error: "Invalid payload"})
		return
	}

	// A Stripe disconnect must not abort an accepted grant or its reporting.
	// The grant timeout still bounds the GitHub call.
	writeJSON(w, ctx.ProcessEvent(context.WithoutCancel(r.Context()), payload, r.Header.Get(stripe.SignatureHeader)))
}

// HealthCheckHandler answers liveness checks with a static message.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Response{Status: http.StatusOK, Message: healthMessage})
}

// NewRouter registers the service routes. metricsHandler may be nil.
func NewRouter(ctx *HandlerContext, metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", HealthCheckHandler)
	mux.HandleFunc("GET /health", HealthCheckHandler)
	mux.HandleFunc("/webhook/stripe", ctx.StripeWebhookHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	json.NewEncoder(w).Encode(resp)
}
