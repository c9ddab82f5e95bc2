package logger

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// ============================================================================
// WHATSAPP ADAPTER
// ============================================================================

// WhatsAppLoggerAdapter adapts our Logger to whatsmeow's waLog.Logger, the
// interface whatsmeow.NewClient and sqlstore.New expect.
type WhatsAppLoggerAdapter struct {
	logger Logger
}

// NewWhatsAppLoggerAdapter builds a waLog.Logger backed by logger.
func NewWhatsAppLoggerAdapter(logger Logger) waLog.Logger {
	return &WhatsAppLoggerAdapter{logger: logger}
}

func (w *WhatsAppLoggerAdapter) Errorf(msg string, args ...any) {
	if len(args) == 0 {
		w.logger.Error().Msg(msg)
	} else {
		w.logger.Error().Msgf(msg, args...)
	}
}

func (w *WhatsAppLoggerAdapter) Warnf(msg string, args ...any) {
	if len(args) == 0 {
		w.logger.Warn().Msg(msg)
	} else {
		w.logger.Warn().Msgf(msg, args...)
	}
}

func (w *WhatsAppLoggerAdapter) Infof(msg string, args ...any) {
	if len(args) == 0 {
		w.logger.Info().Msg(msg)
	} else {
		w.logger.Info().Msgf(msg, args...)
	}
}

func (w *WhatsAppLoggerAdapter) Debugf(msg string, args ...any) {
	if len(args) == 0 {
		w.logger.Debug().Msg(msg)
	} else {
		w.logger.Debug().Msgf(msg, args...)
	}
}

func (w *WhatsAppLoggerAdapter) Sub(module string) waLog.Logger {
	if module == "" {
		return w
	}
	return &WhatsAppLoggerAdapter{logger: w.logger.WithComponent(module)}
}

// ============================================================================
// BUN ORM ADAPTER
// ============================================================================

// BunQueryHook logs bun queries run against the diagnostics journal (§10.3).
type BunQueryHook struct {
	logger Logger
}

// NewBunQueryHook builds a bun.QueryHook backed by logger.
func NewBunQueryHook(logger Logger) bun.QueryHook {
	return &BunQueryHook{
		logger: logger.WithComponent("journal-db"),
	}
}

func (h *BunQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *BunQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)
	durationMs := duration.Milliseconds()

	if event.Err != nil {
		h.logger.Warn().
			Err(event.Err).
			Str("query", h.sanitizeQuery(event.Query)).
			Dur("duration", duration).
			Int64("duration_ms", durationMs).
			Str("operation", h.getQueryOperation(event.Query)).
			Str("table", h.getQueryTable(event.Query)).
			Msg("journal query failed")
		return
	}

	h.logSuccessfulQuery(event.Query, duration, durationMs)
}

func (h *BunQueryHook) logSuccessfulQuery(query string, duration time.Duration, durationMs int64) {
	operation := h.getQueryOperation(query)
	table := h.getQueryTable(query)

	if durationMs > 100 {
		h.logger.Warn().
			Str("operation", operation).
			Str("table", table).
			Str("query", h.sanitizeQuery(query)).
			Int64("duration_ms", durationMs).
			Msg("slow journal query")
		return
	}

	h.logger.Debug().
		Str("operation", operation).
		Str("table", table).
		Int64("duration_ms", durationMs).
		Msg("journal query completed")
}

// getQueryOperation extracts the leading SQL verb from query.
func (h *BunQueryHook) getQueryOperation(query string) string {
	query = strings.TrimSpace(strings.ToUpper(query))

	switch {
	case strings.HasPrefix(query, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(query, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(query, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(query, "DELETE"):
		return "DELETE"
	case strings.HasPrefix(query, "CREATE"):
		return "CREATE"
	case strings.HasPrefix(query, "ALTER"):
		return "ALTER"
	case strings.HasPrefix(query, "DROP"):
		return "DROP"
	}
	return "UNKNOWN"
}

// getQueryTable extracts the target table name from query, best-effort.
func (h *BunQueryHook) getQueryTable(query string) string {
	queryUpper := strings.ToUpper(query)

	operations := []string{"UPDATE", "INSERT", "DELETE", "SELECT", "CREATE"}
	for _, op := range operations {
		if strings.Contains(queryUpper, op) {
			return h.extractTableNameSimple(queryUpper, op)
		}
	}
	return "unknown"
}

func (h *BunQueryHook) extractTableNameSimple(query, operation string) string {
	var startKeyword string
	switch operation {
	case "UPDATE":
		startKeyword = "UPDATE"
	case "INSERT":
		startKeyword = "INTO"
	case "DELETE":
		startKeyword = "FROM"
	case "SELECT":
		startKeyword = "FROM"
	case "CREATE":
		startKeyword = "TABLE"
	default:
		return "unknown"
	}

	keywordPos := strings.Index(query, startKeyword)
	if keywordPos == -1 {
		return "unknown"
	}

	afterKeyword := strings.TrimSpace(query[keywordPos+len(startKeyword):])
	if operation == "CREATE" && strings.HasPrefix(afterKeyword, "IF NOT EXISTS") {
		afterKeyword = strings.TrimSpace(afterKeyword[13:])
	}

	parts := strings.Fields(afterKeyword)
	if len(parts) > 0 {
		return strings.ToLower(strings.Trim(parts[0], `"`))
	}
	return "unknown"
}

// sanitizeQuery caps query length and collapses whitespace for logging.
func (h *BunQueryHook) sanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	const maxLength = 200
	if len(query) > maxLength {
		query = query[:maxLength] + "..."
	}

	var builder strings.Builder
	builder.Grow(len(query))

	var lastWasSpace bool
	for _, r := range query {
		switch r {
		case '\n', '\t', '\r', ' ':
			if !lastWasSpace {
				builder.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			builder.WriteRune(r)
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(builder.String())
}
