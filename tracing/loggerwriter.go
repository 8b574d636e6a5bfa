package tracing

import "github.com/skynetlabs/skynet/internal/dcontext"

// loggerWriter routes OpenTelemetry output and errors to the logger.
type loggerWriter struct {
	logger dcontext.Logger
}

// Write logs the data at debug level.
func (lw *loggerWriter) Write(p []byte) (n int, err error) {
	lw.logger.Debug(string(p))
	return len(p), nil
}

// Handle logs an exporter error. It makes loggerWriter an otel.ErrorHandler.
func (lw *loggerWriter) Handle(err error) {
	lw.logger.WithError(err).Warn("opentelemetry error")
}
