// Package notify delivers donor status change events to downstream consumers.
package notify

import (
	"context"
	"log/slog"

	"bloodlink/pkg/domain"
)

// Notifier is told about every donor status change that actually happened.
type Notifier interface {
	DonorStatusChanged(ctx context.Context, event domain.DonorStatusEvent) error
}

// LogNotifier writes events to the structured log and never fails.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier builds a notifier that logs through logger (slog.Default when nil).
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) DonorStatusChanged(ctx context.Context, event domain.DonorStatusEvent) error {
	n.logger.InfoContext(ctx, "donor_status_changed",
		"donor_id", event.DonorID,
		"email", event.Email,
		"from", string(event.From),
		"to", string(event.To),
	)
	return nil
}
