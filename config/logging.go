package config

import "go.uber.org/zap"

// setLogger builds the zap logger for the given environment.
// local gets the example logger so debug output is visible while developing.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}
