package eventsapi

// Logger defines the logging surface the client relies on. The client only traces
// at debug level; failures are returned, never logged as errors.
type Logger interface {
	DebugObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) DebugObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
