package logging

import "go.uber.org/zap"

// New creates a new zap logger for the given environment. Anything other than
// production or development gets the example logger.
func New(env string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	switch env {
	case "production":
		logger, err = zap.NewProduction()
	case "development":
		logger, err = zap.NewDevelopment()
	default:
		logger = zap.NewExample()
	}
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	return logger.Sugar()
}

// Nop returns a logger that discards everything, used by tests and quiet clients
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
