package logging

import "go.uber.org/zap"

// New creates a new zap logger for the given environment. local gets a
// development logger with debug output, production a json logger at info
// level, anything else the example logger.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "local", "development":
		return zap.NewDevelopment()
	case "production":
		return zap.NewProduction()
	default:
		return zap.NewExample(), nil
	}
}
