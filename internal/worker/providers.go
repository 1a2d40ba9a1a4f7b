package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var errProviderFailure = errors.New("provider failure")

type Provider interface {
	Send(ctx context.Context, alert Alert) error
}

// Alert is a rendered staff notification for one recorded check-in.
type Alert struct {
	EventID   string `json:"event_id"`
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

type ProviderConfig struct {
	Kind         string
	WebhookURL   string
	WebhookToken string
	Logger       *zap.Logger
}

func NewProvider(cfg ProviderConfig) Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Kind {
	case "", "log":
		return logProvider{logger: logger}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if cfg.WebhookURL == "" {
			logger.Warn("webhook provider without ALERT_WEBHOOK_URL, falling back to log")
			return logProvider{logger: logger}
		}
		return newWebhookProvider(cfg.WebhookURL, cfg.WebhookToken)
	default:
		if strings.HasPrefix(cfg.Kind, "http://") || strings.HasPrefix(cfg.Kind, "https://") {
			return newWebhookProvider(cfg.Kind, cfg.WebhookToken)
		}
		logger.Warn("unknown alert provider, falling back to log", zap.String("provider", cfg.Kind))
		return logProvider{logger: logger}
	}
}

type logProvider struct {
	logger *zap.Logger
}

func (p logProvider) Send(ctx context.Context, alert Alert) error {
	p.logger.Info("check-in alert",
		zap.String("event_id", alert.EventID),
		zap.String("channel", alert.Channel),
		zap.String("recipient", alert.Recipient),
		zap.String("subject", alert.Subject),
		zap.String("message", alert.Message),
	)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, alert Alert) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, alert Alert) error {
	return errProviderFailure
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

func newWebhookProvider(url, token string) webhookProvider {
	return webhookProvider{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p webhookProvider) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected alert: status %d", resp.StatusCode)
	}
	return nil
}
