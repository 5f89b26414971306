package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "gatespy",
	Short:         "Checkout page analysis relay, dashboard and CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		initConfig(v, cfgFile)
		applyConfigDefaults(cmd, v, cliConfig)

		logger, err := newLogger(debug)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		globalAppContext = &AppContext{Logger: logger, Config: cliConfig}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if globalAppContext != nil && globalAppContext.Logger != nil {
			_ = globalAppContext.Logger.Sync()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", colorError("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gatespy.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "use the development logger")
	rootCmd.PersistentFlags().StringVar(&cliConfig.ScannerURL, "scanner-url", cliConfig.ScannerURL, "scanner base URL (or set ANALYZER_URL)")
	rootCmd.PersistentFlags().DurationVar(&cliConfig.ScannerTimeout, "scanner-timeout", cliConfig.ScannerTimeout, "timeout for one analysis")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)
}
