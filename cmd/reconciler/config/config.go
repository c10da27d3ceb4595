// Package config builds the component configurations used by the CLI
// commands from flag and environment values.
package config

import (
	"payment-reconciliation-service/internal/matcher"
	"payment-reconciliation-service/pkg/logger"
)

// CreateMatchingConfig creates a matching configuration with the specified
// combination limit. Rule constants keep their production defaults.
func CreateMatchingConfig(maxCombinationSize int) *matcher.Config {
	cfg := matcher.DefaultConfig()

	if maxCombinationSize >= 2 {
		cfg.MaxCombinationSize = maxCombinationSize
	}

	return cfg
}

// CreateServiceLoggerConfig creates the logger configuration for service
// deployments: JSON lines on stdout.
func CreateServiceLoggerConfig() *logger.Config {
	return logger.ProductionConfig()
}
