package notify

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

// LogTransport writes messages to the structured log instead of sending
// them. The code or link a message carries is logged with the summary so a
// local run can be completed by hand; the body is logged at debug level only.
type LogTransport struct {
	logger logging.Logger
}

func NewLogTransport(logger logging.Logger) *LogTransport {
	return &LogTransport{logger: logger.With("transport", "log")}
}

func (t *LogTransport) Deliver(ctx context.Context, msg Message) error {
	args := []any{"kind", msg.Kind, "to", msg.To, "subject", msg.Subject}
	if msg.Action != "" {
		args = append(args, "action", msg.Action)
	}
	t.logger.Info(ctx, "outbound email", args...)
	t.logger.Debug(ctx, "outbound email body", "kind", msg.Kind, "html", msg.HTML)
	return nil
}
