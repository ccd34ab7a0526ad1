package eventbus

import "github.com/sirupsen/logrus"

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithLogger attaches a logger for subscription and dispatch activity.
// Without one the registry is silent. Recovered handler panics are logged at
// error level, everything else at debug level.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithLogFile logs registry activity as JSON to the file at path, rotating
// it once it exceeds DefaultMaxBytes. If the file cannot be opened the
// registry stays silent. Close the registry to release the writer.
func WithLogFile(path string) Option {
	return func(r *Registry) {
		if writer, err := NewRotatingFileWriter(path, DefaultMaxBytes); err == nil {
			logger := logrus.New()
			logger.SetOutput(writer)
			logger.SetFormatter(&logrus.JSONFormatter{})
			logger.SetLevel(logrus.DebugLevel)
			r.logger = logger
			r.logCloser = writer
		}
	}
}
