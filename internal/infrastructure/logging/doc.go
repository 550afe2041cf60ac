// Package logging provides structured logging for Parkshare Core,
// wrapping log/slog with level filtering, JSON/text output selection,
// and service-wide default fields.
package logging
