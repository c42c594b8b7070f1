// Package sender provides channel sender implementations for outbound
// message delivery.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/allisson/notifier/internal/errors"
	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// maxErrorBodySize bounds how much of a provider error response is read into
// the recorded error message.
const maxErrorBodySize = 2048

// WhatsAppSender delivers messages through a WhatsApp HTTP API. The provider
// receives the template name, destination phone and template variables; it
// answers with a delivery status of "sent", "queued" or an error.
type WhatsAppSender struct {
	apiURL     string
	apiToken   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWhatsAppSender creates a new WhatsAppSender. The per-request deadline is
// the caller's context; the client timeout is only a backstop.
func NewWhatsAppSender(apiURL, apiToken string, logger *slog.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		apiURL:   apiURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// sendRequest is the provider wire format for one outbound message.
type sendRequest struct {
	To        string                `json:"to"`
	Template  string                `json:"template"`
	Variables messageDomain.Payload `json:"variables"`
}

// sendResponse is the provider wire format for a delivery attempt result.
type sendResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Send posts the message to the WhatsApp API and maps the provider status to
// a send outcome.
func (w *WhatsAppSender) Send(
	ctx context.Context,
	message *messageDomain.OutboundMessage,
) (messageDomain.SendOutcome, error) {
	body, err := json.Marshal(sendRequest{
		To:        message.ToPhone,
		Template:  message.Template,
		Variables: message.Payload,
	})
	if err != nil {
		return messageDomain.OutcomeFailed, apperrors.Wrap(err, "failed to encode send request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.apiURL, bytes.NewReader(body))
	if err != nil {
		return messageDomain.OutcomeFailed, apperrors.Wrap(err, "failed to build send request")
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return messageDomain.OutcomeFailed, apperrors.Wrap(err, "whatsapp api request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return messageDomain.OutcomeFailed, apperrors.New(fmt.Sprintf(
			"whatsapp api returned status %d: %s", resp.StatusCode, string(snippet),
		))
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return messageDomain.OutcomeFailed, apperrors.Wrap(err, "failed to decode send response")
	}

	switch result.Status {
	case "sent":
		return messageDomain.OutcomeSent, nil
	case "queued":
		return messageDomain.OutcomeQueued, nil
	default:
		errMsg := result.Error
		if errMsg == "" {
			errMsg = fmt.Sprintf("unexpected provider status %q", result.Status)
		}
		return messageDomain.OutcomeFailed, apperrors.New(errMsg)
	}
}
