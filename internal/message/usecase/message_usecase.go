// Package usecase implements the outbound message queue business logic:
// enqueueing notifications and dispatching pending messages through a
// channel sender.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	messageDomain "github.com/allisson/notifier/internal/message/domain"
)

// DefaultBatchSize is the number of pending messages drained per dispatch
// run when no batch size is configured or requested.
const DefaultBatchSize = 10

// Config holds message dispatch configuration.
type Config struct {
	// BatchSize is the maximum number of messages drained per dispatch run.
	BatchSize int
	// SendTimeout bounds each channel sender call so one hanging send cannot
	// block the rest of the batch. A timeout is a delivery failure.
	SendTimeout time.Duration
	// ClaimLease is how long a claim holds before other runs may reclaim the
	// message. Protects against runs that crash between claim and outcome.
	ClaimLease time.Duration
}

// MessageRepository defines persistence operations for outbound messages.
// Implementations must support transaction-aware operations via context propagation.
type MessageRepository interface {
	// Create stores a new pending message.
	Create(ctx context.Context, message *messageDomain.OutboundMessage) error

	// ClaimPending atomically claims up to limit unsent messages in FIFO
	// order (created_at ascending) and returns them. Messages whose claim is
	// older than leaseCutoff are reclaimable.
	ClaimPending(ctx context.Context, limit int, leaseCutoff time.Time) ([]*messageDomain.OutboundMessage, error)

	// MarkOutcome persists the result of one delivery attempt.
	MarkOutcome(ctx context.Context, id uuid.UUID, sent bool, sentAt *time.Time, sendError *string) error

	// CountPending returns the number of messages with sent = false.
	CountPending(ctx context.Context) (int64, error)
}

// ChannelSender is the external transport capability used to deliver one
// message. Implementations report OutcomeSent for synchronous delivery,
// OutcomeQueued when the provider accepted the message for asynchronous
// delivery, and OutcomeFailed with a non-nil error otherwise.
type ChannelSender interface {
	Send(ctx context.Context, message *messageDomain.OutboundMessage) (messageDomain.SendOutcome, error)
}

// DispatchResult reports one dispatch run: how many messages had their
// outcome persisted, how many remain pending, and the per-message failures.
type DispatchResult struct {
	Processed int
	Remaining int64
	Errors    []string
}

// UseCase defines the outbound message queue operations.
type UseCase interface {
	// Enqueue validates and stores a new pending message.
	Enqueue(
		ctx context.Context,
		channel messageDomain.Channel,
		toPhone string,
		template string,
		payload messageDomain.Payload,
		toClientID *uuid.UUID,
	) (*messageDomain.OutboundMessage, error)

	// DispatchBatch drains one batch of pending messages through the sender.
	DispatchBatch(ctx context.Context, batchSize int) (*DispatchResult, error)

	// CountPending returns the number of messages with sent = false.
	CountPending(ctx context.Context) (int64, error)
}

// MessageUseCase implements the outbound message queue.
type MessageUseCase struct {
	config      Config
	messageRepo MessageRepository
	sender      ChannelSender
	logger      *slog.Logger
}

// NewMessageUseCase creates a new MessageUseCase.
func NewMessageUseCase(
	config Config,
	messageRepo MessageRepository,
	sender ChannelSender,
	logger *slog.Logger,
) *MessageUseCase {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &MessageUseCase{
		config:      config,
		messageRepo: messageRepo,
		sender:      sender,
		logger:      logger,
	}
}

// Enqueue validates the payload against the template's declared variables and
// stores a new pending message.
func (uc *MessageUseCase) Enqueue(
	ctx context.Context,
	channel messageDomain.Channel,
	toPhone string,
	template string,
	payload messageDomain.Payload,
	toClientID *uuid.UUID,
) (*messageDomain.OutboundMessage, error) {
	if err := messageDomain.ValidatePayload(template, payload); err != nil {
		return nil, err
	}

	message := messageDomain.NewOutboundMessage(channel, toPhone, template, payload, toClientID)
	if err := uc.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Debug("message enqueued",
			slog.String("message_id", message.ID.String()),
			slog.String("template", template),
		)
	}

	return message, nil
}

// DispatchBatch claims up to batchSize pending messages oldest first, attempts
// delivery for each, and persists every outcome independently before moving to
// the next message. A message already marked sent is never selected again; a
// failed message keeps sent = false and becomes eligible on the very next run.
// When batchSize is zero or negative the configured batch size applies.
func (uc *MessageUseCase) DispatchBatch(ctx context.Context, batchSize int) (*DispatchResult, error) {
	if batchSize <= 0 {
		batchSize = uc.config.BatchSize
	}

	leaseCutoff := time.Now().UTC().Add(-uc.config.ClaimLease)

	messages, err := uc.messageRepo.ClaimPending(ctx, batchSize, leaseCutoff)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}

	if len(messages) == 0 {
		result.Remaining, err = uc.messageRepo.CountPending(ctx)
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if uc.logger != nil {
		uc.logger.Info("dispatching messages", slog.Int("count", len(messages)))
	}

	for _, message := range messages {
		uc.dispatchOne(ctx, message, result)
	}

	result.Remaining, err = uc.messageRepo.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("dispatch run completed",
			slog.Int("processed", result.Processed),
			slog.Int64("remaining", result.Remaining),
			slog.Int("errors", len(result.Errors)),
		)
	}

	return result, nil
}

// CountPending returns the number of messages with sent = false.
func (uc *MessageUseCase) CountPending(ctx context.Context) (int64, error) {
	return uc.messageRepo.CountPending(ctx)
}

// dispatchOne attempts delivery of a single message and persists the outcome.
// A persistence failure is recorded in the result but never stops the batch.
func (uc *MessageUseCase) dispatchOne(
	ctx context.Context,
	message *messageDomain.OutboundMessage,
	result *DispatchResult,
) {
	sendCtx := ctx
	if uc.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, uc.config.SendTimeout)
		defer cancel()
	}

	outcome, sendErr := uc.sender.Send(sendCtx, message)

	var (
		sent      bool
		sentAt    *time.Time
		errorText *string
	)

	switch {
	case sendErr != nil || outcome == messageDomain.OutcomeFailed:
		errMsg := "delivery failed"
		if sendErr != nil {
			errMsg = sendErr.Error()
		}
		errorText = &errMsg
		result.Errors = append(result.Errors,
			fmt.Sprintf("message %s: %s", message.ID, errMsg))

		if uc.logger != nil {
			uc.logger.Error("message delivery failed",
				slog.String("message_id", message.ID.String()),
				slog.String("template", message.Template),
				slog.String("error", errMsg),
			)
		}
	default:
		// Provider-queued messages count as sent: delivery receipts are not
		// tracked, so acceptance is terminal for the queue.
		sent = true
		now := time.Now().UTC()
		sentAt = &now

		if uc.logger != nil {
			uc.logger.Info("message delivered",
				slog.String("message_id", message.ID.String()),
				slog.String("template", message.Template),
				slog.String("outcome", string(outcome)),
			)
		}
	}

	if err := uc.messageRepo.MarkOutcome(ctx, message.ID, sent, sentAt, errorText); err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("message %s: failed to persist outcome: %s", message.ID, err))

		if uc.logger != nil {
			uc.logger.Error("failed to persist message outcome",
				slog.String("message_id", message.ID.String()),
				slog.Any("error", err),
			)
		}
		return
	}

	result.Processed++
}
