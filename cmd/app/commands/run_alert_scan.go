package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	alertDomain "github.com/allisson/notifier/internal/alert/domain"
	alertUsecase "github.com/allisson/notifier/internal/alert/usecase"
	"github.com/allisson/notifier/internal/app"
	"github.com/allisson/notifier/internal/config"
)

// RunAlertScan evaluates every alert rule once and reports how many alerts
// each rule created. A failing rule is reported without failing the command;
// an error is returned only when the scan cannot run at all.
func RunAlertScan(
	ctx context.Context,
	useCase alertUsecase.UseCase,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	logger.Info("running alert scan")

	result, err := useCase.RunScan(ctx)
	if err != nil {
		return fmt.Errorf("failed to run alert scan: %w", err)
	}

	if format == "json" {
		outputScanJSON(out, result)
	} else {
		outputScanText(out, result)
	}

	logger.Info("alert scan completed",
		slog.Int("total", result.Total),
		slog.Int("failed_rules", len(result.Failed)),
	)

	return nil
}

// RunAlertScanCommand loads configuration, wires dependencies, and runs a scan.
func RunAlertScanCommand(ctx context.Context, format string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()

	defer closeContainer(container, logger)

	useCase, err := container.AlertUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize alert use case: %w", err)
	}

	return RunAlertScan(ctx, useCase, logger, DefaultIO().Writer, format)
}

// outputScanText outputs the scan result in human-readable text format.
func outputScanText(out io.Writer, result *alertUsecase.ScanResult) {
	fmt.Fprintf(out, "Alert scan created %d alert(s)\n", result.Total)
	for _, alertType := range alertDomain.AlertTypes {
		if count, ok := result.Created[alertType]; ok {
			fmt.Fprintf(out, "  %s: %d\n", alertType, count)
		}
	}
	for _, rule := range result.Failed {
		fmt.Fprintf(out, "  warning: rule %s failed\n", rule)
	}
}

// outputScanJSON outputs the scan result in JSON format for machine consumption.
func outputScanJSON(out io.Writer, result *alertUsecase.ScanResult) {
	created := make(map[string]int, len(result.Created))
	for alertType, count := range result.Created {
		created[string(alertType)] = count
	}

	failed := result.Failed
	if failed == nil {
		failed = []string{}
	}

	payload := map[string]interface{}{
		"created_by_type": created,
		"total":           result.Total,
		"failed_rules":    failed,
	}

	jsonBytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(out, string(jsonBytes))
}
