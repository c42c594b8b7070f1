package sender

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/notifier/internal/message/domain"
)

func testMessage() *domain.OutboundMessage {
	return domain.NewOutboundMessage(
		domain.ChannelWhatsApp,
		"+5511988887777",
		domain.TemplateOrderConfirmed,
		domain.Payload{"order_id": "123", "client_name": "Maria"},
		nil,
	)
}

func TestWhatsAppSender_Send_Sent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "+5511988887777", req.To)
		assert.Equal(t, domain.TemplateOrderConfirmed, req.Template)
		assert.Equal(t, "123", req.Variables["order_id"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Status: "sent"}) //nolint:errcheck
	}))
	defer server.Close()

	whatsappSender := NewWhatsAppSender(server.URL, "test-token", nil)

	outcome, err := whatsappSender.Send(context.Background(), testMessage())

	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeSent, outcome)
}

func TestWhatsAppSender_Send_Queued(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{Status: "queued"}) //nolint:errcheck
	}))
	defer server.Close()

	whatsappSender := NewWhatsAppSender(server.URL, "", nil)

	outcome, err := whatsappSender.Send(context.Background(), testMessage())

	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeQueued, outcome)
}

func TestWhatsAppSender_Send_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sendResponse{ //nolint:errcheck
			Status: "failed",
			Error:  "invalid destination number",
		})
	}))
	defer server.Close()

	whatsappSender := NewWhatsAppSender(server.URL, "", nil)

	outcome, err := whatsappSender.Send(context.Background(), testMessage())

	assert.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "invalid destination number")
}

func TestWhatsAppSender_Send_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	whatsappSender := NewWhatsAppSender(server.URL, "", nil)

	outcome, err := whatsappSender.Send(context.Background(), testMessage())

	assert.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "500")
}

func TestWhatsAppSender_Send_ContextTimeout(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server notices the client disconnect and the
		// handler can return once the request context is cancelled.
		io.Copy(io.Discard, r.Body) //nolint:errcheck
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	whatsappSender := NewWhatsAppSender(server.URL, "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	outcome, err := whatsappSender.Send(ctx, testMessage())

	<-started
	assert.Error(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome)
}

func TestLogSender_Send(t *testing.T) {
	logSender := NewLogSender(nil)

	outcome, err := logSender.Send(context.Background(), testMessage())

	assert.NoError(t, err)
	assert.Equal(t, domain.OutcomeSent, outcome)
}
