package transport

import "log/slog"

// socketLogger reads slog.Default when a socket opens, so sockets opened after
// a logging reconfiguration use the new handler.
func socketLogger(kind string, attrs ...any) *slog.Logger {
	return slog.Default().With(append([]any{"component", "transport." + kind}, attrs...)...)
}
