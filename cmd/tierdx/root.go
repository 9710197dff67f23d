package main

import (
	"github.com/spf13/viper"

	"github.com/tierdx/tierdx/internal/config"
)

// loadConfig builds the configuration manager, honoring --config if set.
func loadConfig() (*config.Manager, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	}
	return config.NewManager()
}

// loadTables returns the decision tables, honoring --tables if set.
func loadTables() (*config.Tables, error) {
	if tablesFile == "" {
		return config.DefaultTables(), nil
	}
	return config.LoadTables(tablesFile)
}
