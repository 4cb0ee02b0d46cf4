package log

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Forward re-emits a MessageWire payload received from an engine through
// logger, keeping its level, timestamp and attributes. Payloads that are not
// valid MessageWire JSON are logged raw at info level.
func Forward(ctx context.Context, logger *slog.Logger, payload []byte) {
	var msg MessageWire
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Message == "" {
		logger.InfoContext(ctx, "engine log", "payload", string(payload))
		return
	}

	level := ParseLevel(msg.Level)
	if !logger.Enabled(ctx, level) {
		return
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	record := slog.NewRecord(ts, level, msg.Message, 0)
	for _, a := range msg.Attrs {
		record.AddAttrs(a.Attr())
	}
	_ = logger.Handler().Handle(ctx, record)
}
