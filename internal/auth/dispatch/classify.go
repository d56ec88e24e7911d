package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nalonix/better-auth/internal/pkg/pkgerror"
)

// Classification is the triage result for one dispatch failure.
type Classification struct {
	Severity slog.Level
	Message  string
}

// schemaHints map backend driver error wording to migration guidance. The
// list is ordered and the first match wins; the matching rules are coupled
// to driver message text and live here, in one place, so they can be
// revisited without touching dispatch logic.
var schemaHints = []struct {
	backend string
	match   func(msg string) bool
	hint    string
}{
	{
		backend: "sqlite",
		match: func(msg string) bool {
			return strings.Contains(msg, "no such table")
		},
		hint: "the auth tables are missing from the sqlite database, run the migrations to create them",
	},
	{
		backend: "postgres",
		match: func(msg string) bool {
			return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")
		},
		hint: "the auth relations are missing from the postgres database, run the migrations to create them",
	},
	{
		backend: "mysql",
		match: func(msg string) bool {
			return strings.Contains(msg, "Table") && strings.Contains(msg, "doesn't exist")
		},
		hint: "the auth tables are missing from the mysql database, run the migrations to create them",
	},
}

// Classifier triages failures raised during dispatch into actionable log
// entries. Classification is advisory only: it never changes the response
// the caller receives.
type Classifier struct {
	logger   *slog.Logger
	disabled bool
}

// NewClassifier builds a classifier writing to the given logger. When
// disabled, Classify does no work and emits nothing.
func NewClassifier(logger *slog.Logger, disabled bool) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{logger: logger, disabled: disabled}
}

// Classify triages one failure and logs it.
//
// Structured API errors are already actionable and log at warn with their
// own message. Other failures are scanned against the ordered schema-hint
// list; a hit logs the backend-specific migration hint at error severity.
// Everything else logs the raw failure at error severity.
func (c *Classifier) Classify(ctx context.Context, err error) *Classification {
	if c.disabled || err == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var apiErr *pkgerror.Error
	if errors.As(err, &apiErr) {
		c.logger.WarnContext(ctx, "request rejected",
			"message", apiErr.Msg(),
			"code", apiErr.Code().String(),
		)
		return &Classification{Severity: slog.LevelWarn, Message: apiErr.Msg()}
	}

	msg := err.Error()
	if msg != "" {
		for _, hint := range schemaHints {
			if hint.match(msg) {
				c.logger.ErrorContext(ctx, hint.hint, "backend", hint.backend, "error", msg)
				return &Classification{Severity: slog.LevelError, Message: hint.hint}
			}
		}
	}

	c.logger.ErrorContext(ctx, "unexpected failure during dispatch", "error", err)
	return &Classification{Severity: slog.LevelError, Message: msg}
}
