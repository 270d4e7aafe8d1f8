package logger

// Logger is the logging surface the domain packages depend on. Concrete
// backends live under infra/logger so core carries no logging deps.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs at debug level with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
