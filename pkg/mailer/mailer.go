// Package mailer sends transactional email through the Mailjet v3.1 send API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const sendURL = "https://api.mailjet.com/v3.1/send"

// Mailer sends email via the provider HTTP API.
type Mailer struct {
	apiKey      string
	apiSecret   string
	fromAddress string
	fromName    string
	client      *http.Client
	logger      *zap.Logger
}

// New creates a mailer. An empty API key produces a mailer that logs
// instead of sending, for local development.
func New(apiKey, apiSecret, fromAddress, fromName string, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		fromAddress: fromAddress,
		fromName:    fromName,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      logger,
	}
}

type sendRequest struct {
	Messages []message `json:"Messages"`
}

type message struct {
	From     party   `json:"From"`
	To       []party `json:"To"`
	Subject  string  `json:"Subject"`
	TextPart string  `json:"TextPart"`
	HTMLPart string  `json:"HTMLPart,omitempty"`
}

type party struct {
	Email string `json:"Email"`
	Name  string `json:"Name,omitempty"`
}

// Send delivers a single email.
func (m *Mailer) Send(ctx context.Context, to, subject, text, html string) error {
	if m.apiKey == "" {
		m.logger.Info("mail provider not configured, skipping send",
			zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	body, err := json.Marshal(sendRequest{Messages: []message{{
		From:     party{Email: m.fromAddress, Name: m.fromName},
		To:       []party{{Email: to}},
		Subject:  subject,
		TextPart: text,
		HTMLPart: html,
	}}})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(m.apiKey, m.apiSecret)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
