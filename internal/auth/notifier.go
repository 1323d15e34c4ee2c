package auth

import (
	"context"
	"log/slog"

	"github.com/zombor/receipt-keeper/internal/models"
)

// Notifier is told about account events. There is no mail transport; the
// default implementation only logs.
type Notifier interface {
	Welcome(ctx context.Context, user *models.User) error
}

// LogNotifier records the welcome message it would have sent.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Welcome(ctx context.Context, user *models.User) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "Welcome email queued (simulated)", "email", user.Email, "name", user.Name)
	return nil
}
