package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// AppContext carries what every command needs once the root pre-run has finished.
type AppContext struct {
	Logger *zap.Logger
	Config *CLIConfig
}

var globalAppContext *AppContext

func getAppContext(_ *cobra.Command) *AppContext {
	if globalAppContext == nil {
		globalAppContext = &AppContext{Logger: zap.NewNop(), Config: newCLIConfig()}
	}
	return globalAppContext
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
