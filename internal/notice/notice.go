// Package notice is the user-facing notice channel. Notices are
// fire-and-forget: the core writes them and never waits for acknowledgment.
package notice

import (
	"context"
	"log/slog"
)

// Type classifies a notice for the host UI.
type Type string

const (
	TypeError Type = "error"
	TypeInfo  Type = "info"
)

// Notice is one message shown to the operator.
type Notice struct {
	Message   string `json:"message"`
	Type      Type   `json:"type"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// Notifier delivers notices. Implementations must not block the caller on
// delivery problems.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier records notices in the server log. The HTTP layer additionally
// returns the notice payload so the host SDK can render it client-side.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notice Notice) {
	n.logger.InfoContext(ctx, "operator notice",
		"type", string(notice.Type),
		"message", notice.Message,
	)
}
