package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts emails as JSON to a relay endpoint.
type WebhookSender struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSender creates a sender targeting url.
func NewWebhookSender(url, token string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

func (s *WebhookSender) Send(ctx context.Context, email Email) error {
	if err := validate(email); err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload(email))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected email: status %d", resp.StatusCode)
	}
	return nil
}
