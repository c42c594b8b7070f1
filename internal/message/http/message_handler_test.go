package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	messageDomain "github.com/allisson/notifier/internal/message/domain"
	"github.com/allisson/notifier/internal/message/http/dto"
	messageUseCase "github.com/allisson/notifier/internal/message/usecase"
)

// MockMessageUseCase is a mock implementation of the message UseCase for testing.
type MockMessageUseCase struct {
	mock.Mock
}

func (m *MockMessageUseCase) Enqueue(
	ctx context.Context,
	channel messageDomain.Channel,
	toPhone string,
	template string,
	payload messageDomain.Payload,
	toClientID *uuid.UUID,
) (*messageDomain.OutboundMessage, error) {
	args := m.Called(ctx, channel, toPhone, template, payload, toClientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageDomain.OutboundMessage), args.Error(1)
}

func (m *MockMessageUseCase) DispatchBatch(
	ctx context.Context,
	batchSize int,
) (*messageUseCase.DispatchResult, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*messageUseCase.DispatchResult), args.Error(1)
}

func (m *MockMessageUseCase) CountPending(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// createTestContext creates a test Gin context with the given request.
func createTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, w
}

func setupTestHandler(t *testing.T) (*MessageHandler, *MockMessageUseCase) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	mockUseCase := &MockMessageUseCase{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewMessageHandler(mockUseCase, logger), mockUseCase
}

func TestMessageHandler_DispatchHandler(t *testing.T) {
	t.Run("Success_DefaultBatchSize", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("DispatchBatch", mock.Anything, 0).
			Return(&messageUseCase.DispatchResult{Processed: 3, Remaining: 1}, nil)

		c, w := createTestContext(http.MethodPost, "/v1/messages/dispatch", nil)

		handler.DispatchHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.DispatchResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 3, response.Processed)
		assert.Equal(t, int64(1), response.Remaining)
		assert.Empty(t, response.Errors)
	})

	t.Run("Success_ExplicitBatchSize", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("DispatchBatch", mock.Anything, 5).
			Return(&messageUseCase.DispatchResult{Processed: 5}, nil)

		c, w := createTestContext(http.MethodPost, "/v1/messages/dispatch",
			dto.DispatchRequest{BatchSize: 5})

		handler.DispatchHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mockUseCase.AssertExpectations(t)
	})

	t.Run("Success_WithErrors", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("DispatchBatch", mock.Anything, 0).
			Return(&messageUseCase.DispatchResult{
				Processed: 2,
				Remaining: 1,
				Errors:    []string{"message 018f: provider unavailable"},
			}, nil)

		c, w := createTestContext(http.MethodPost, "/v1/messages/dispatch", nil)

		handler.DispatchHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.DispatchResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Len(t, response.Errors, 1)
	})

	t.Run("Error_BatchSizeTooLarge", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		c, w := createTestContext(http.MethodPost, "/v1/messages/dispatch",
			dto.DispatchRequest{BatchSize: 500})

		handler.DispatchHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		mockUseCase.AssertNotCalled(t, "DispatchBatch")
	})

	t.Run("Error_UseCaseFailure", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("DispatchBatch", mock.Anything, 0).
			Return(nil, errors.New("claim failed"))

		c, w := createTestContext(http.MethodPost, "/v1/messages/dispatch", nil)

		handler.DispatchHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestMessageHandler_PendingCountHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("CountPending", mock.Anything).Return(int64(7), nil)

		c, w := createTestContext(http.MethodGet, "/v1/messages/pending-count", nil)

		handler.PendingCountHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)

		var response dto.PendingCountResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, int64(7), response.Pending)
	})

	t.Run("Error_UseCaseFailure", func(t *testing.T) {
		handler, mockUseCase := setupTestHandler(t)

		mockUseCase.On("CountPending", mock.Anything).
			Return(int64(0), errors.New("database unavailable"))

		c, w := createTestContext(http.MethodGet, "/v1/messages/pending-count", nil)

		handler.PendingCountHandler(c)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
