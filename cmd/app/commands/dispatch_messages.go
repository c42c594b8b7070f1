package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/notifier/internal/app"
	"github.com/allisson/notifier/internal/config"
	messageUsecase "github.com/allisson/notifier/internal/message/usecase"
)

// RunDispatchMessages drains one batch of pending outbound messages in FIFO
// order. Per-message send failures are reported without failing the command;
// an error is returned only when the batch cannot be claimed at all.
func RunDispatchMessages(
	ctx context.Context,
	useCase messageUsecase.UseCase,
	logger *slog.Logger,
	out io.Writer,
	batchSize int,
	format string,
) error {
	if batchSize < 0 {
		return fmt.Errorf("batch size must be a positive number, got: %d", batchSize)
	}

	logger.Info("dispatching messages", slog.Int("batch_size", batchSize))

	result, err := useCase.DispatchBatch(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to dispatch messages: %w", err)
	}

	if format == "json" {
		outputDispatchJSON(out, result)
	} else {
		outputDispatchText(out, result)
	}

	logger.Info("dispatch completed",
		slog.Int("processed", result.Processed),
		slog.Int64("remaining", result.Remaining),
		slog.Int("errors", len(result.Errors)),
	)

	return nil
}

// RunDispatchMessagesCommand loads configuration, wires dependencies, and
// dispatches one batch.
func RunDispatchMessagesCommand(ctx context.Context, batchSize int, format string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	useCase, err := container.MessageUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize message use case: %w", err)
	}

	return RunDispatchMessages(ctx, useCase, logger, DefaultIO().Writer, batchSize, format)
}

// outputDispatchText outputs the dispatch result in human-readable text format.
func outputDispatchText(out io.Writer, result *messageUsecase.DispatchResult) {
	fmt.Fprintf(out, "Dispatched %d message(s), %d still pending\n", result.Processed, result.Remaining)
	for _, dispatchError := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", dispatchError)
	}
}

// outputDispatchJSON outputs the dispatch result in JSON format for machine consumption.
func outputDispatchJSON(out io.Writer, result *messageUsecase.DispatchResult) {
	dispatchErrors := result.Errors
	if dispatchErrors == nil {
		dispatchErrors = []string{}
	}

	payload := map[string]interface{}{
		"processed": result.Processed,
		"remaining": result.Remaining,
		"errors":    dispatchErrors,
	}

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
